package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"mime"
	"strconv"
	"time"
)

// ErrMalformedPCM is returned when a byte payload cannot be interpreted as
// interleaved 16-bit PCM with the requested channel count.
var ErrMalformedPCM = errors.New("malformed pcm payload")

const (
	pcmScale = 32768.0
	// maxSample is the largest float that still fits into int16 after scaling.
	maxSample = 32767.0 / pcmScale
)

// Frame is a block of mono float samples in [-1, 1] captured from the
// microphone.
type Frame []float32

// Chunk is the wire representation of a frame: little-endian 16-bit signed
// PCM tagged with a MIME descriptor.
type Chunk struct {
	Data     []byte
	MIMEType string
}

// Base64 returns the text-safe form of the chunk payload.
func (c Chunk) Base64() string {
	return base64.StdEncoding.EncodeToString(c.Data)
}

// ChunkFromBase64 parses a text-safe payload produced by [Chunk.Base64].
func ChunkFromBase64(data, mimeType string) (Chunk, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return Chunk{}, fmt.Errorf("failed to decode base64 audio: %w", err)
	}
	return Chunk{Data: raw, MIMEType: mimeType}, nil
}

// Encode quantizes a frame into 16-bit PCM.
//
// Samples outside of the representable range are clamped instead of being
// allowed to wrap around when narrowed.
func Encode(frame Frame) Chunk {
	data := make([]byte, len(frame)*2)
	for i, sample := range frame {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(quantize(sample)))
	}

	return Chunk{Data: data, MIMEType: GetDefaultEncodingInfo().MIMEType()}
}

func quantize(sample float32) int16 {
	s := float64(sample)
	switch {
	case math.IsNaN(s):
		return 0
	case s > maxSample:
		s = maxSample
	case s < -1:
		s = -1
	}
	return int16(s * pcmScale)
}

// Buffer is decoded output audio, one float slice per channel.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the number of samples per channel.
func (b Buffer) Frames() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration is how long the buffer takes to play at its sample rate.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(b.Frames()) / float64(b.SampleRate) * float64(time.Second))
}

// Decode converts interleaved little-endian 16-bit PCM into a float buffer.
func Decode(data []byte, sampleRate, channels int) (Buffer, error) {
	if channels <= 0 {
		return Buffer{}, fmt.Errorf("%w: invalid channel count %d", ErrMalformedPCM, channels)
	}
	if sampleRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: invalid sample rate %d", ErrMalformedPCM, sampleRate)
	}
	if len(data)%(2*channels) != 0 {
		return Buffer{}, fmt.Errorf("%w: %d bytes is not a whole number of %d-channel frames", ErrMalformedPCM, len(data), channels)
	}

	frameCount := len(data) / (2 * channels)
	buffer := Buffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for channel := range channels {
		channelData := make([]float32, frameCount)
		for i := range frameCount {
			offset := (i*channels + channel) * 2
			channelData[i] = float32(int16(binary.LittleEndian.Uint16(data[offset:]))) / pcmScale
		}
		buffer.Channels[channel] = channelData
	}

	return buffer, nil
}

// ParseRate reads the "rate" parameter of a PCM MIME descriptor such as
// "audio/pcm;rate=24000". The fallback is returned when the descriptor has
// no usable rate.
func ParseRate(mimeType string, fallback int) int {
	_, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return fallback
	}

	rate, err := strconv.Atoi(params["rate"])
	if err != nil || rate <= 0 {
		return fallback
	}
	return rate
}
