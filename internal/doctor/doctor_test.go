package doctor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rbright/prepcoach/internal/config"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestCheckBinaryFound(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckBinaryUsesPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "busctl")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir)

	check := checkBinary("busctl", "desktop notifications")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, scriptPath)
}

func TestCheckServiceReadySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/healthz", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Service.BaseURL = server.URL
	cfg.Service.HealthPath = "/healthz"

	check := checkServiceReady(context.Background(), cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "ready at "+server.URL+"/healthz")
}

func TestCheckServiceReadyFailureDoesNotRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"detail":"warming up"}`))
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Service.BaseURL = server.URL

	check := checkServiceReady(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "warming up")
	require.Equal(t, 1, calls)
}

func TestCheckServiceReadyInvalidURL(t *testing.T) {
	cfg := config.Default()
	cfg.Service.BaseURL = "ftp://example.com"

	check := checkServiceReady(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "http or https")
}

func TestCheckAudioSelectionFailsWithoutPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(context.Background(), config.Default())
	require.False(t, check.Pass)
	require.Equal(t, "audio.device", check.Name)
	require.Contains(t, check.Message, "typed answers still work")
}

func TestCheckHistoryDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.History.Enable = false

	check := checkHistory(context.Background(), cfg)
	require.True(t, check.Pass)
	require.Equal(t, "disabled", check.Message)
}

func TestCheckHistoryOpensStore(t *testing.T) {
	cfg := config.Default()
	cfg.History.Enable = true
	cfg.History.Path = filepath.Join(t.TempDir(), "nested", "history.db")

	check := checkHistory(context.Background(), cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "0 sessions")

	_, err := os.Stat(cfg.History.Path)
	require.NoError(t, err)
}

func TestRunIncludesBusctlOnlyWhenIndicatorEnabled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	cfg := config.Default()
	cfg.Service.BaseURL = server.URL
	cfg.History.Enable = false
	cfg.Indicator.Enable = false

	report := Run(context.Background(), config.Loaded{Path: "/tmp/prepcoach.jsonc", Config: cfg})
	names := checkNames(report)
	require.Equal(t, []string{"config", "service.ready", "audio.device", "history"}, names)
	require.Contains(t, report.Checks[0].Message, "not found; using defaults")
	require.False(t, report.OK())

	cfg.Indicator.Enable = true
	report = Run(context.Background(), config.Loaded{Path: "/tmp/prepcoach.jsonc", Config: cfg, Exists: true})
	require.Equal(t, "busctl", checkNames(report)[4])
	require.Contains(t, report.Checks[0].Message, "loaded")
}

func checkNames(report Report) []string {
	names := make([]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		names = append(names, check.Name)
	}
	return names
}
