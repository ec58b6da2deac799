package app

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"strings"
	"time"

	"github.com/rbright/prepcoach/internal/cli"
	"github.com/rbright/prepcoach/internal/collab"
	"github.com/rbright/prepcoach/internal/config"
	"github.com/rbright/prepcoach/internal/history"
	"github.com/rbright/prepcoach/internal/session"
)

func (r Runner) commandInterview(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	rt, err := newRuntime(ctx, cfg, parsed.Language, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer rt.Close()

	sess := session.NewInterview(session.InterviewConfig{
		Service:  rt.client,
		Voice:    rt.voice,
		Logger:   logger,
		Role:     cfg.Session.Role,
		Language: cfg.Session.Language,
		VoiceID:  cfg.Session.VoiceID,
	})
	con := newConsole(r.Stdin, r.Stdout)

	startedAt := time.Now()
	err = rt.host(ctx, func() string { return sess.Snapshot().SessionID }, func(ctx context.Context) error {
		return rt.interviewLoop(ctx, con, sess, parsed)
	})
	logSessionResult(logger, "interview", sess.Snapshot().SessionID, startedAt, err)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %s\n", hostError(err))
		return 1
	}
	return 0
}

func (rt *runtime) interviewLoop(ctx context.Context, con *console, sess *session.Interview, parsed cli.Parsed) error {
	if err := sess.Start(ctx, parsed.Role, parsed.Language); err != nil {
		return err
	}
	printQuestion(con, sess.Snapshot())

	for {
		line, ok := con.next(ctx)
		if !ok {
			sess.Reset()
			return nil
		}
		name, arg, isCmd := parseCommand(line)
		if !isCmd {
			if err := sess.SetAnswer(line); err != nil {
				con.printf("%s\n", describeError(err))
			}
			continue
		}

		switch name {
		case "record":
			rt.record(ctx, con, sess)
		case "submit":
			fb, err := sess.Submit(ctx)
			if err != nil {
				if !session.IsSuperseded(err) {
					con.printf("%s\n", describeError(err))
				}
				continue
			}
			printFeedback(con, fb)
		case "next":
			snap, err := sess.Advance(ctx)
			if err != nil {
				if !session.IsSuperseded(err) {
					con.printf("%s\n", describeError(err))
				}
				continue
			}
			if snap.Report != nil {
				printReport(con, *snap.Report)
				rt.archiveInterview(ctx, con, *snap.Report)
				continue
			}
			printQuestion(con, snap)
		case "speak":
			rt.speakTips(ctx, con, sess)
		case "reset":
			sess.Reset()
			if err := sess.Start(ctx, parsed.Role, parsed.Language); err != nil {
				return err
			}
			printQuestion(con, sess.Snapshot())
		case "quit":
			sess.Reset()
			return nil
		case "help":
			con.printf("commands: :record :submit :next :speak :reset :quit\n")
		default:
			con.printf("unknown command :%s %s\n", name, arg)
		}
	}
}

func printQuestion(con *console, snap session.InterviewSnapshot) {
	con.printf("\nQuestion %d/%d [%s]\n%s\n", snap.Index+1, snap.Total, snap.Role, snap.Question)
}

func printFeedback(con *console, fb collab.AnswerFeedback) {
	con.printf("score: %.0f/100\n", fb.Score)
	if text := strings.TrimSpace(fb.Feedback.String()); text != "" {
		con.printf("feedback: %s\n", text)
	}
	for _, tip := range fb.Tips.Lines() {
		con.printf("  tip: %s\n", tip)
	}
	con.printf("(:next to continue, or edit and :submit again)\n")
}

func printReport(con *console, report session.Report) {
	con.printf("\nSession report %s\n", report.SessionID)
	con.printf("average score: %.1f/100\n", report.AverageScore)
	if report.Summary != "" {
		con.printf("%s\n", report.Summary)
	}
	printList(con, "strengths", report.Strengths)
	printList(con, "improvements", report.Improvements)
	printList(con, "tips", report.Tips)
	for i, answer := range report.Answers {
		con.printf("  Q%d %.0f  %s\n", i+1, answer.Score, answer.Question)
	}
	con.printf("(:reset for a new session, :quit to leave)\n")
}

func printList(con *console, title string, items []string) {
	if len(items) == 0 {
		return
	}
	con.printf("%s:\n", title)
	for _, item := range items {
		con.printf("  - %s\n", item)
	}
}

func (rt *runtime) archiveInterview(ctx context.Context, con *console, report session.Report) {
	entry, err := history.InterviewEntry(report)
	if err != nil {
		rt.logger.Warn("encode interview archive failed", "error", err.Error())
		return
	}
	if rt.save(ctx, entry) {
		con.printf("saved to history as %s\n", entry.SessionID)
	}
}

// speakTips writes synthesized tips to a temp file for external playback.
func (rt *runtime) speakTips(ctx context.Context, con *console, sess *session.Interview) {
	speech, err := sess.SpeakTips(ctx)
	if err != nil {
		con.printf("%s\n", describeError(err))
		return
	}

	path, err := writeSpeech(speech)
	if err != nil {
		con.printf("save audio: %v\n", err)
		return
	}
	con.printf("tips audio saved to %s\n", path)
}

func writeSpeech(speech collab.Speech) (string, error) {
	ext := ".mp3"
	if media, _, err := mime.ParseMediaType(speech.ContentType); err == nil {
		switch media {
		case "audio/wav", "audio/x-wav", "audio/wave":
			ext = ".wav"
		case "audio/ogg":
			ext = ".ogg"
		}
	}

	f, err := os.CreateTemp("", "prepcoach-tips-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(speech.Audio); err != nil {
		_ = f.Close()
		return "", err
	}
	return f.Name(), f.Close()
}
