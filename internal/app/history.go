package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rbright/prepcoach/internal/cli"
	"github.com/rbright/prepcoach/internal/config"
	"github.com/rbright/prepcoach/internal/history"
)

// historyDocument is the printable form of one archived session.
type historyDocument struct {
	SessionID string       `json:"session_id" yaml:"session_id"`
	Mode      history.Mode `json:"mode" yaml:"mode"`
	Title     string       `json:"title" yaml:"title"`
	Score     float64      `json:"score" yaml:"score"`
	CreatedAt time.Time    `json:"created_at" yaml:"created_at"`
	Detail    any          `json:"detail,omitempty" yaml:"detail,omitempty"`
}

func (r Runner) commandHistory(ctx context.Context, cfg config.Config, parsed cli.Parsed) int {
	if !cfg.History.Enable {
		fmt.Fprintln(r.Stderr, "error: history is disabled (history.enable=false)")
		return 1
	}
	path, err := cfg.HistoryPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	store, err := history.Open(ctx, path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer store.Close()

	if parsed.HistoryID == "" {
		return r.listHistory(ctx, store, parsed.Limit)
	}
	return r.showHistory(ctx, store, parsed.HistoryID, parsed.Format)
}

func (r Runner) listHistory(ctx context.Context, store *history.Store, limit int) int {
	entries, err := store.List(ctx, limit)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.Stdout, "no archived sessions")
		return 0
	}
	for _, e := range entries {
		fmt.Fprintf(r.Stdout, "%s  %-9s  %5.1f  %s  %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			e.Mode,
			e.Score,
			e.SessionID,
			e.Title,
		)
	}
	return 0
}

func (r Runner) showHistory(ctx context.Context, store *history.Store, id string, format string) int {
	entry, err := store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			fmt.Fprintf(r.Stderr, "error: %s: %v\n", id, err)
		} else {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
		}
		return 1
	}
	detail, err := entry.Detail()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	doc := historyDocument{
		SessionID: entry.SessionID,
		Mode:      entry.Mode,
		Title:     entry.Title,
		Score:     entry.Score,
		CreatedAt: entry.CreatedAt,
		Detail:    detail,
	}
	if err := writeDocument(r.Stdout, doc, format); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func writeDocument(w io.Writer, doc historyDocument, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}
