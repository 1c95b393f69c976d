package miniaudio

import (
	"encoding/binary"
	"math"
)

// miniaudio hands out f32 samples in native byte order; every platform the
// backend is built for here is little-endian.

func float32Samples(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}

// putFloat32Samples writes samples into dst, clamped to [-1, 1]. dst is
// zeroed past the end of samples.
func putFloat32Samples(dst []byte, samples []float32) {
	n := min(len(samples), len(dst)/4)
	for i := range n {
		sample := max(min(samples[i], 1), -1)
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(sample))
	}
	clear(dst[n*4:])
}
