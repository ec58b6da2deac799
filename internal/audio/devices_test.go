package audio

import (
	"context"
	"encoding/binary"
	"io"
	"reflect"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestChoose(t *testing.T) {
	elgato := Device{ID: "elgato", Description: "Elgato Wave 3 Mono", Available: true, Default: true}
	sony := Device{ID: "sony", Description: "Sony WH-1000XM6", Available: true}
	mutedElgato := elgato
	mutedElgato.Muted = true
	unplugged := sony
	unplugged.Available = false

	tests := []struct {
		name     string
		devices  []Device
		input    string
		fallback string
		wantID   string
		wantWarn string
		wantErr  string
	}{
		{name: "default source", devices: []Device{elgato, sony}, input: "default", fallback: "default", wantID: "elgato"},
		{name: "empty input means default", devices: []Device{elgato, sony}, input: "", wantID: "elgato"},
		{name: "match by description", devices: []Device{elgato, sony}, input: "WH-1000", wantID: "sony"},
		{name: "muted primary uses fallback", devices: []Device{mutedElgato, sony}, input: "elgato", fallback: "sony", wantID: "sony", wantWarn: "muted"},
		{name: "unplugged primary falls back to default", devices: []Device{elgato, unplugged}, input: "sony", fallback: "default", wantID: "elgato", wantWarn: "unavailable"},
		{name: "muted default with no other fallback", devices: []Device{mutedElgato}, input: "default", fallback: "default", wantErr: "muted"},
		{name: "unknown input", devices: []Device{elgato}, input: "missing", wantErr: "did not match"},
		{name: "unknown fallback", devices: []Device{mutedElgato}, input: "elgato", fallback: "missing", wantErr: "no usable fallback"},
		{name: "no devices", wantErr: "no audio input devices"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sel, err := choose(tc.devices, tc.input, tc.fallback)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantID, sel.Device.ID)
			if tc.wantWarn == "" {
				require.Empty(t, sel.Warning)
				require.False(t, sel.Fallback)
				return
			}
			require.Contains(t, sel.Warning, tc.wantWarn)
			require.True(t, sel.Fallback)
		})
	}
}

func TestDeviceLabel(t *testing.T) {
	require.Equal(t, "Mic (mic-1)", Device{ID: "mic-1", Description: "Mic"}.Label())
	require.Equal(t, "mic-1", Device{ID: "mic-1"}.Label())
	require.Equal(t, "Mic", Device{Description: "Mic"}.Label())
}

func TestListDevicesFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := ListDevices(context.Background())
	require.Error(t, err)

	_, err = Opener{Input: "default"}.Open(context.Background())
	require.Error(t, err)
}

func TestSourceStateString(t *testing.T) {
	require.Equal(t, "running", sourceStateString(0))
	require.Equal(t, "idle", sourceStateString(1))
	require.Equal(t, "suspended", sourceStateString(2))
	require.Equal(t, "unknown(99)", sourceStateString(99))
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{}))

	available := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, available, []sourcePort{{name: "mic", available: 2}})
	require.True(t, sourceAvailable(available))

	notAvailable := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, notAvailable, []sourcePort{{name: "mic", available: 1}})
	require.False(t, sourceAvailable(notAvailable))
}

func TestCaptureAccumulatesUntilFinish(t *testing.T) {
	c := &Capture{device: Device{ID: "mic-1", Description: "Mic"}}

	n, err := c.onPCM([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "Mic (mic-1)", c.Name())

	wav, err := c.Finish()
	require.NoError(t, err)
	require.Len(t, wav, 48)
	require.Equal(t, []byte{1, 2, 3, 4}, wav[44:])

	n, err = c.onPCM([]byte{5})
	require.Zero(t, n)
	require.ErrorIs(t, err, io.EOF)

	again, err := c.Finish()
	require.NoError(t, err)
	require.Equal(t, wav, again)
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := []byte{0, 1, 2, 3, 4, 5}
	wav := EncodeWAV(pcm, SampleRate, 1)

	require.Equal(t, "RIFF", string(wav[0:4]))
	require.Equal(t, "WAVE", string(wav[8:12]))
	require.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))
	require.Equal(t, uint32(SampleRate), binary.LittleEndian.Uint32(wav[24:28]))
	require.Equal(t, uint32(SampleRate*2), binary.LittleEndian.Uint32(wav[28:32]))
	require.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
	require.Equal(t, pcm, wav[44:])

	require.Equal(t, uint16(1), binary.LittleEndian.Uint16(EncodeWAV(nil, SampleRate, 0)[22:24]))
}

type sourcePort struct {
	name      string
	available uint32
}

func setSourcePorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports []sourcePort) {
	t.Helper()

	sliceType := reflect.TypeOf(reply.Ports)
	sliceValue := reflect.MakeSlice(sliceType, len(ports), len(ports))
	for i, port := range ports {
		item := sliceValue.Index(i)
		item.FieldByName("Name").SetString(port.name)
		item.FieldByName("Available").SetUint(uint64(port.available))
	}
	reflect.ValueOf(reply).Elem().FieldByName("Ports").Set(sliceValue)
}
