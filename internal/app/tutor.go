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
	"github.com/rbright/prepcoach/internal/session"
)

// commandTutor submits one exercise and relays chat lines until input ends.
func (r Runner) commandTutor(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	client, err := newCollabClient(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	exercise := collab.Exercise{Text: parsed.Problem, Attempt: parsed.Attempt}
	if parsed.File != "" {
		data, err := os.ReadFile(parsed.File)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: read exercise: %v\n", err)
			return 1
		}
		exercise.File = data
		exercise.Filename = filepath.Base(parsed.File)
	}

	tutor := session.NewTutor(client, logger)
	con := newConsole(r.Stdin, r.Stdout)
	startedAt := time.Now()

	sub, err := tutor.Submit(ctx, exercise)
	if err != nil {
		logSessionResult(logger, "tutor", "", startedAt, err)
		fmt.Fprintf(r.Stderr, "error: %s\n", describeError(err))
		return 1
	}
	printSubmission(con, sub)

	for {
		line, ok := con.next(ctx)
		if !ok {
			break
		}
		if name, _, isCmd := parseCommand(line); isCmd {
			if name == "quit" {
				break
			}
			con.printf("tutor commands: :quit\n")
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		reply, err := tutor.Chat(ctx, line)
		if err != nil {
			con.printf("%s\n", describeError(err))
			continue
		}
		con.printf("tutor: %s\n", reply)
	}

	logSessionResult(logger, "tutor", sub.SubmissionID, startedAt, nil)
	return 0
}

func printSubmission(con *console, sub collab.Submission) {
	problem := sub.Problem.Text
	if problem == "" {
		problem = sub.Problem.FullText
	}
	con.printf("Exercise %s", sub.SubmissionID)
	if sub.Problem.Topic != "" {
		con.printf(" [%s, difficulty %d]", sub.Problem.Topic, sub.Problem.Difficulty)
	}
	con.printf("\n%s\n", problem)
	for i, hint := range []string{sub.Hints.Hint1, sub.Hints.Hint2, sub.Hints.Hint3} {
		if hint != "" {
			con.printf("  hint %d: %s\n", i+1, hint)
		}
	}
	for _, msg := range sub.Chat.Context {
		if msg.Role == "assistant" {
			con.printf("tutor: %s\n", msg.Content)
		}
	}
	con.printf("(ask the tutor anything; :quit to leave)\n")
}
