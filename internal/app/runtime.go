package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/prepcoach/internal/audio"
	"github.com/rbright/prepcoach/internal/collab"
	"github.com/rbright/prepcoach/internal/config"
	"github.com/rbright/prepcoach/internal/history"
	"github.com/rbright/prepcoach/internal/indicator"
	"github.com/rbright/prepcoach/internal/ipc"
	"github.com/rbright/prepcoach/internal/recording"
	"github.com/rbright/prepcoach/internal/session"
	"github.com/rbright/prepcoach/internal/transcribe"
)

// runtime is the collaborator, voice, and archive wiring shared by the
// interactive commands.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	client   *collab.Client
	notifier *indicator.Notifier
	recorder *recording.Controller
	voice    *session.Voice
	archive  *history.Store
}

func newCollabClient(cfg config.Config, logger *slog.Logger) (*collab.Client, error) {
	return collab.New(collab.Options{
		BaseURL:    cfg.Service.BaseURL,
		Timeout:    time.Duration(cfg.Service.TimeoutMS) * time.Millisecond,
		MaxRetries: cfg.Service.MaxRetries,
		HealthPath: cfg.Service.HealthPath,
		Logger:     logger,
	})
}

// newRuntime wires the collaborator client, the recording stack, and the
// archive. A history store that fails to open is logged and skipped.
func newRuntime(ctx context.Context, cfg config.Config, language string, logger *slog.Logger) (*runtime, error) {
	client, err := newCollabClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	notifier := indicator.New(cfg.Indicator, logger)
	recorder := recording.New(
		audio.Opener{Input: cfg.Audio.Input, Fallback: cfg.Audio.Fallback, Logger: logger},
		recording.WithObserver(notifier),
		recording.WithLogger(logger),
	)

	if language == "" {
		language = cfg.Session.Language
	}
	bridgeOpts := transcribe.Options{
		Language:            language,
		CapitalizeSentences: cfg.Transcript.CapitalizeSentences,
		Logger:              logger,
	}
	if cfg.Debug.EnableAudioDump {
		if stateDir, err := config.StateDir(); err == nil {
			bridgeOpts.DumpDir = filepath.Join(stateDir, "debug")
		}
	}

	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		notifier: notifier,
		recorder: recorder,
		voice:    session.NewVoice(recorder, transcribe.New(client, bridgeOpts)),
	}

	if cfg.History.Enable {
		rt.archive = openArchive(ctx, cfg, logger)
	}
	return rt, nil
}

func openArchive(ctx context.Context, cfg config.Config, logger *slog.Logger) *history.Store {
	path, err := cfg.HistoryPath()
	if err != nil {
		logger.Warn("resolve history path failed", "error", err.Error())
		return nil
	}
	store, err := history.Open(ctx, path)
	if err != nil {
		logger.Warn("open history failed", "path", path, "error", err.Error())
		return nil
	}
	return store
}

// Close releases any capture still held, drains cues, and closes the archive.
func (rt *runtime) Close() {
	rt.recorder.Reset()
	rt.notifier.Wait()
	if rt.archive != nil {
		_ = rt.archive.Close()
	}
}

// save archives e when history is enabled. Failures are logged only.
func (rt *runtime) save(ctx context.Context, e history.Entry) bool {
	if rt.archive == nil {
		return false
	}
	if err := rt.archive.Save(ctx, e); err != nil {
		rt.logger.Warn("archive session failed", "session_id", e.SessionID, "error", err.Error())
		return false
	}
	rt.logger.Info("session archived", "session_id", e.SessionID, "mode", e.Mode)
	return true
}

// host owns the runtime socket while loop runs so stop, cancel, and status
// reach the recording in progress.
func (rt *runtime) host(ctx context.Context, sessionID func() string, loop func(context.Context) error) error {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		return err
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	handler := ipc.HandlerFunc(func(ctx context.Context, req ipc.Request) ipc.Response {
		resp := rt.voice.Handle(ctx, req)
		resp.Session = sessionID()
		return resp
	})

	serveCtx, stopServe := context.WithCancel(ctx)
	defer stopServe()

	g, gctx := errgroup.WithContext(serveCtx)
	g.Go(func() error {
		if err := ipc.Serve(gctx, listener, handler); err != nil {
			return fmt.Errorf("ipc server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer stopServe()
		return loop(gctx)
	})
	return g.Wait()
}

// hostError renders host failures for stderr.
func hostError(err error) string {
	if errors.Is(err, ipc.ErrAlreadyRunning) {
		return ipc.ErrAlreadyRunning.Error() + " (use 'prepcoach status')"
	}
	return err.Error()
}
