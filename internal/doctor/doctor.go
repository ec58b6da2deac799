// Package doctor runs readiness diagnostics for config, the collaborator
// service, audio, and the history archive.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/prepcoach/internal/audio"
	"github.com/rbright/prepcoach/internal/collab"
	"github.com/rbright/prepcoach/internal/config"
	"github.com/rbright/prepcoach/internal/history"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("%q not found; using defaults", cfg.Path)
	}
	checks := []Check{{Name: "config", Pass: true, Message: message}}

	checks = append(checks, checkServiceReady(ctx, cfg.Config))
	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkHistory(ctx, cfg.Config))
	if cfg.Config.Indicator.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
	}

	return Report{Checks: checks}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkServiceReady probes the collaborator health endpoint once, without retries.
func checkServiceReady(ctx context.Context, cfg config.Config) Check {
	client, err := collab.New(collab.Options{
		BaseURL:    cfg.Service.BaseURL,
		HealthPath: cfg.Service.HealthPath,
		Timeout:    2 * time.Second,
		MaxRetries: 0,
	})
	if err != nil {
		return Check{Name: "service.ready", Pass: false, Message: err.Error()}
	}

	target := client.BaseURL() + cfg.Service.HealthPath
	if err := client.Ready(ctx); err != nil {
		return Check{Name: "service.ready", Pass: false, Message: fmt.Sprintf("%s: %v", target, err)}
	}
	return Check{Name: "service.ready", Pass: true, Message: fmt.Sprintf("ready at %s", target)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: fmt.Sprintf("%v (typed answers still work)", err)}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkHistory opens the archive and counts entries.
func checkHistory(ctx context.Context, cfg config.Config) Check {
	if !cfg.History.Enable {
		return Check{Name: "history", Pass: true, Message: "disabled"}
	}
	path, err := cfg.HistoryPath()
	if err != nil {
		return Check{Name: "history", Pass: false, Message: err.Error()}
	}
	store, err := history.Open(ctx, path)
	if err != nil {
		return Check{Name: "history", Pass: false, Message: err.Error()}
	}
	defer store.Close()

	entries, err := store.List(ctx, 0)
	if err != nil {
		return Check{Name: "history", Pass: false, Message: err.Error()}
	}
	return Check{Name: "history", Pass: true, Message: fmt.Sprintf("%d sessions in %s", len(entries), path)}
}
