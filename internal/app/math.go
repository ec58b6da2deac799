package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/prepcoach/internal/cli"
	"github.com/rbright/prepcoach/internal/collab"
	"github.com/rbright/prepcoach/internal/config"
	"github.com/rbright/prepcoach/internal/history"
	"github.com/rbright/prepcoach/internal/session"
)

var downloadExtensions = map[string]string{
	"markdown": ".md",
	"latex":    ".tex",
	"html":     ".html",
	"json":     ".json",
}

func (r Runner) commandMath(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	rt, err := newRuntime(ctx, cfg, "", logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer rt.Close()

	con := newConsole(r.Stdin, r.Stdout)
	sess := session.NewMath(session.MathConfig{
		Service: rt.client,
		Voice:   rt.voice,
		Logger:  logger,
		OnHint:  func(h collab.Hint) { printHint(con, h) },
	})

	startedAt := time.Now()
	err = rt.host(ctx, func() string { return sess.Snapshot().SessionID }, func(ctx context.Context) error {
		return rt.mathLoop(ctx, con, sess, parsed.Problem)
	})
	sess.Hints().Wait()
	logSessionResult(logger, "math", sess.Snapshot().SessionID, startedAt, err)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %s\n", hostError(err))
		return 1
	}
	return 0
}

func (rt *runtime) mathLoop(ctx context.Context, con *console, sess *session.Math, problem string) error {
	if err := startMath(ctx, con, sess, problem); err != nil {
		return err
	}

	for {
		line, ok := con.next(ctx)
		if !ok {
			sess.Reset()
			return nil
		}
		name, arg, isCmd := parseCommand(line)
		if !isCmd {
			if err := sess.SetStep(line); err != nil {
				con.printf("%s\n", describeError(err))
			}
			continue
		}

		switch name {
		case "record":
			rt.record(ctx, con, sess)
		case "submit":
			number := sess.Snapshot().NextStep
			fb, err := sess.Submit(ctx)
			if err != nil {
				if !session.IsSuperseded(err) {
					con.printf("%s\n", describeError(err))
				}
				continue
			}
			printStepFeedback(con, number, fb)
		case "hint":
			if err := sess.RequestHint(ctx); err != nil {
				con.printf("%s\n", describeError(err))
			}
		case "finish":
			solution, err := sess.Finish(ctx)
			if err != nil {
				if !session.IsSuperseded(err) {
					con.printf("%s\n", describeError(err))
				}
				continue
			}
			printSolution(con, solution)
			rt.archiveMath(ctx, con, sess.Snapshot())
		case "download":
			rt.download(ctx, con, sess, arg)
		case "reset":
			sess.Reset()
			if err := startMath(ctx, con, sess, problem); err != nil {
				return err
			}
		case "quit":
			sess.Reset()
			return nil
		case "help":
			con.printf("commands: :record :submit :hint :finish :download FMT :reset :quit\n")
		default:
			con.printf("unknown command :%s %s\n", name, arg)
		}
	}
}

func startMath(ctx context.Context, con *console, sess *session.Math, problem string) error {
	out, err := sess.Start(ctx, problem)
	if err != nil {
		return err
	}
	if out.IsFallback() {
		con.printf("problem analysis unavailable; continuing with a generic outline\n")
	}
	analysis := out.Value
	con.printf("\nTopic: %s", analysis.Topic)
	if analysis.Subtopic != "" {
		con.printf(" / %s", analysis.Subtopic)
	}
	con.printf(" (difficulty %d/5)\n", analysis.Difficulty)
	if len(analysis.RequiredConcepts) > 0 {
		con.printf("concepts: %s\n", strings.Join(analysis.RequiredConcepts, ", "))
	}
	if analysis.FirstQuestion != "" {
		con.printf("%s\n", analysis.FirstQuestion)
	}
	con.printf("Step 1: type your step, then :submit\n")
	return nil
}

func printHint(con *console, h collab.Hint) {
	con.printf("hint (level %d): %s\n", h.HintLevel, h.Hint)
	if h.Guidance != "" {
		con.printf("  %s\n", h.Guidance)
	}
	if h.CommonErrorToAvoid != "" {
		con.printf("  avoid: %s\n", h.CommonErrorToAvoid)
	}
}

func printStepFeedback(con *console, number int, fb collab.StepFeedback) {
	verdict := "not quite"
	if fb.IsCorrect {
		verdict = "correct"
	}
	con.printf("step %d: %s (reasoning %.0f/10)\n", number, verdict, fb.ReasoningQualityScore)
	if text := strings.TrimSpace(fb.Feedback.String()); text != "" {
		con.printf("%s\n", text)
	}
	if fb.IsCorrect {
		con.printf("Step %d: type your next step, or :finish\n", number+1)
		return
	}
	if hint := strings.TrimSpace(fb.Hint.String()); hint != "" {
		con.printf("  hint: %s\n", hint)
	}
	con.printf("revise step %d and :submit again\n", number)
}

func printSolution(con *console, solution collab.Solution) {
	con.printf("\nMastery: %.0f/100\n", solution.MasteryScore)
	con.printf("%s\n", solution.FullSolution)
	if answer := strings.TrimSpace(solution.FinalAnswer.String()); answer != "" {
		con.printf("answer: %s\n", answer)
	}
	if summary := strings.TrimSpace(solution.ConceptualSummary.String()); summary != "" {
		con.printf("%s\n", summary)
	}
	if len(solution.KeyConcepts) > 0 {
		con.printf("key concepts: %s\n", strings.Join(solution.KeyConcepts, ", "))
	}
	for _, insight := range solution.LearningInsights.Lines() {
		con.printf("  - %s\n", insight)
	}
	for _, mistake := range solution.CommonMistakes.Lines() {
		con.printf("  common mistake: %s\n", mistake)
	}
	for _, exercise := range solution.RecommendedExercises.Lines() {
		con.printf("  practice: %s\n", exercise)
	}
	con.printf("(:download markdown|latex|html|json, :reset, :quit)\n")
}

func (rt *runtime) archiveMath(ctx context.Context, con *console, snap session.MathSnapshot) {
	entry, err := history.MathEntry(snap)
	if err != nil {
		rt.logger.Warn("encode math archive failed", "error", err.Error())
		return
	}
	if rt.save(ctx, entry) {
		con.printf("saved to history as %s\n", entry.SessionID)
	}
}

// download writes the rendered solution into the working directory.
func (rt *runtime) download(ctx context.Context, con *console, sess *session.Math, format string) {
	doc, err := sess.Download(ctx, format)
	if err != nil {
		con.printf("%s\n", describeError(err))
		return
	}

	name := filepath.Base(strings.TrimSpace(doc.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "solution" + downloadExtensions[strings.ToLower(strings.TrimSpace(format))]
	}
	if err := os.WriteFile(name, []byte(doc.Content), 0o644); err != nil {
		con.printf("save %s: %v\n", name, err)
		return
	}
	con.printf("saved %s (%s)\n", name, doc.MimeType)
}
