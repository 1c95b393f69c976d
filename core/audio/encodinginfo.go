package audio

import "strconv"

const (
	// DefaultSampleRate is the rate microphone audio is captured and sent at.
	DefaultSampleRate = 16000
	// DefaultOutputSampleRate is the rate the remote model synthesizes speech at.
	DefaultOutputSampleRate = 24000
	// DefaultFrameSize is the number of samples in one captured block (~256ms
	// at 16kHz).
	DefaultFrameSize = 4096
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: EncodingLinear16}
}

func GetDefaultOutputEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultOutputSampleRate, Format: EncodingLinear16}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// MIMEType returns the descriptor attached to raw PCM chunks on the wire,
// e.g. "audio/pcm;rate=16000".
func (e EncodingInfo) MIMEType() string {
	return "audio/pcm;rate=" + strconv.Itoa(e.SampleRate)
}

// BytesPerSecond is the byte rate of a single channel in this encoding.
func (e EncodingInfo) BytesPerSecond() int {
	return e.SampleRate * e.Format.ByteSize()
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingLinear16:
		return 2
	case EncodingFloat32:
		return 4
	}
	return -1
}

const (
	EncodingLinear16 encodingFormat = "linear16"
	EncodingFloat32  encodingFormat = "float32"
)
