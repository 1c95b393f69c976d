package audio

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"
)

const quantizationTolerance = 1.0/32768 + 1e-9

func TestEncodeDecodeRoundTripStaysWithinQuantizationError(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := range 50 {
		frame := make(Frame, DefaultFrameSize)
		for i := range frame {
			frame[i] = float32(rng.Float64()*2 - 1)
		}
		// Make sure the extremes are always covered.
		frame[0], frame[1], frame[2] = 1, -1, 0

		chunk := Encode(frame)
		buffer, err := Decode(chunk.Data, DefaultSampleRate, 1)
		if err != nil {
			t.Fatalf("run %d: unexpected decode error: %v", run, err)
		}
		if got := buffer.Frames(); got != len(frame) {
			t.Fatalf("run %d: expected %d decoded samples, got %d", run, len(frame), got)
		}

		for i, want := range frame {
			got := buffer.Channels[0][i]
			if diff := math.Abs(float64(got) - float64(want)); diff > quantizationTolerance {
				t.Fatalf("run %d: sample %d drifted by %g (want %g, got %g)", run, i, diff, want, got)
			}
		}
	}
}

func TestEncodeClampsOutOfRangeSamples(t *testing.T) {
	chunk := Encode(Frame{1.5, -3, float32(math.NaN()), 1})

	buffer, err := Decode(chunk.Data, DefaultSampleRate, 1)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	samples := buffer.Channels[0]
	if samples[0] <= 0.99 {
		t.Fatalf("expected positive overflow to clamp near 1, got %g", samples[0])
	}
	if samples[1] != -1 {
		t.Fatalf("expected negative overflow to clamp to -1, got %g", samples[1])
	}
	if samples[2] != 0 {
		t.Fatalf("expected NaN to encode as silence, got %g", samples[2])
	}
	if samples[3] != samples[0] {
		t.Fatalf("expected 1.0 and 1.5 to clamp to the same value, got %g and %g", samples[3], samples[0])
	}
}

func TestEncodeTagsChunkWithInputMIMEType(t *testing.T) {
	chunk := Encode(Frame{0, 0})

	if chunk.MIMEType != "audio/pcm;rate=16000" {
		t.Fatalf("unexpected mime type %q", chunk.MIMEType)
	}
	if len(chunk.Data) != 4 {
		t.Fatalf("expected 2 bytes per sample, got %d bytes", len(chunk.Data))
	}
}

func TestChunkBase64RoundTrip(t *testing.T) {
	chunk := Encode(Frame{0.25, -0.25, 0.5})

	parsed, err := ChunkFromBase64(chunk.Base64(), chunk.MIMEType)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(parsed.Data) != string(chunk.Data) {
		t.Fatalf("expected payload to survive base64 round trip")
	}

	if _, err := ChunkFromBase64("not base64!", chunk.MIMEType); err == nil {
		t.Fatalf("expected invalid base64 to fail")
	}
}

func TestDecodeDeinterleavesChannels(t *testing.T) {
	// left: 0.5, -0.5; right: 0.25, -0.25
	interleaved := Encode(Frame{0.5, 0.25, -0.5, -0.25})

	buffer, err := Decode(interleaved.Data, DefaultOutputSampleRate, 2)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(buffer.Channels) != 2 || buffer.Frames() != 2 {
		t.Fatalf("expected 2 channels of 2 frames, got %d channels of %d", len(buffer.Channels), buffer.Frames())
	}
	if buffer.Channels[0][0] != 0.5 || buffer.Channels[0][1] != -0.5 {
		t.Fatalf("unexpected left channel %v", buffer.Channels[0])
	}
	if buffer.Channels[1][0] != 0.25 || buffer.Channels[1][1] != -0.25 {
		t.Fatalf("unexpected right channel %v", buffer.Channels[1])
	}
}

func TestDecodeRejectsMalformedPayloads(t *testing.T) {
	cases := []struct {
		name     string
		data     []byte
		rate     int
		channels int
	}{
		{name: "odd byte count", data: []byte{0x01, 0x02, 0x03}, rate: 24000, channels: 1},
		{name: "partial stereo frame", data: []byte{0x01, 0x02}, rate: 24000, channels: 2},
		{name: "zero channels", data: []byte{0x01, 0x02}, rate: 24000, channels: 0},
		{name: "zero rate", data: []byte{0x01, 0x02}, rate: 0, channels: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode(tc.data, tc.rate, tc.channels); !errors.Is(err, ErrMalformedPCM) {
				t.Fatalf("expected ErrMalformedPCM, got %v", err)
			}
		})
	}
}

func TestBufferDuration(t *testing.T) {
	buffer := Buffer{SampleRate: 24000, Channels: [][]float32{make([]float32, 12000)}}

	if got := buffer.Duration(); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms, got %s", got)
	}
	if got := (Buffer{}).Duration(); got != 0 {
		t.Fatalf("expected empty buffer to have zero duration, got %s", got)
	}
}

func TestParseRate(t *testing.T) {
	if got := ParseRate("audio/pcm;rate=24000", 16000); got != 24000 {
		t.Fatalf("expected 24000, got %d", got)
	}
	if got := ParseRate("audio/pcm", 24000); got != 24000 {
		t.Fatalf("expected fallback without rate, got %d", got)
	}
	if got := ParseRate("", 24000); got != 24000 {
		t.Fatalf("expected fallback for empty mime, got %d", got)
	}
	if got := ParseRate("audio/pcm;rate=abc", 8000); got != 8000 {
		t.Fatalf("expected fallback for invalid rate, got %d", got)
	}
}

func TestRMSVolume(t *testing.T) {
	if got := RMSVolume(nil); got != 0 {
		t.Fatalf("expected zero volume for empty frame, got %g", got)
	}
	if got := RMSVolume(Frame{0.5, -0.5, 0.5, -0.5}); math.Abs(got-50) > 1e-9 {
		t.Fatalf("expected volume 50, got %g", got)
	}
	if got := RMSVolume(Frame{1, -1}); got != 100 {
		t.Fatalf("expected full-scale volume 100, got %g", got)
	}
}
