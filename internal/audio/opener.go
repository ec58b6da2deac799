package audio

import (
	"context"
	"log/slog"

	"github.com/rbright/prepcoach/internal/recording"
)

// Opener selects a source from config preferences and starts a Capture.
type Opener struct {
	Input    string
	Fallback string
	Logger   *slog.Logger
}

// Open implements recording.DeviceOpener.
func (o Opener) Open(ctx context.Context) (recording.Device, error) {
	selection, err := SelectDevice(ctx, o.Input, o.Fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" && o.Logger != nil {
		o.Logger.Warn(selection.Warning, "device", selection.Device.ID)
	}
	return StartCapture(ctx, selection.Device)
}
