package audio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// SampleRate is the capture rate sent to the transcription service.
	SampleRate = 16000
	channels   = 1
	// 20ms @ 16kHz mono s16
	fragmentBytes = 640
)

// Capture records one source into memory until Finish.
type Capture struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	mu       sync.Mutex
	pcm      []byte
	finished bool
}

// StartCapture opens a 16kHz mono s16 record stream on the selected source.
func StartCapture(_ context.Context, selected Device) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	c := &Capture{device: selected, client: client}
	writer := pulse.NewWriter(writerFunc(c.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(fragmentBytes),
		pulse.RecordMediaName("prepcoach answer"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	c.stream = stream
	stream.Start()
	return c, nil
}

// Name identifies the captured source.
func (c *Capture) Name() string {
	return c.device.Label()
}

// PCM returns a copy of the raw samples captured so far.
func (c *Capture) PCM() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.pcm...)
}

// Finish stops the stream, closes the Pulse client, and returns the capture
// as WAV. Later calls return the same audio without touching Pulse again.
func (c *Capture) Finish() ([]byte, error) {
	c.mu.Lock()
	already := c.finished
	c.finished = true
	c.mu.Unlock()

	if !already {
		if c.stream != nil {
			c.stream.Stop()
			c.stream.Close()
		}
		if c.client != nil {
			c.client.Close()
		}
	}

	return EncodeWAV(c.PCM(), SampleRate, channels), nil
}

func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return 0, io.EOF
	}
	c.pcm = append(c.pcm, buffer...)
	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
