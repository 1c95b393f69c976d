package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler converts a continuous mono sample stream between two rates. The
// filter state carries over between calls, so blocks of one stream must go
// through the same Resampler.
type Resampler struct {
	from, to  int
	resampler resampling.Resampler
}

func NewResampler(from, to int) (*Resampler, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("invalid resampling rates %d -> %d", from, to)
	}

	r := &Resampler{from: from, to: to}
	if from == to {
		return r, nil
	}

	resampler, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}
	r.resampler = resampler
	return r, nil
}

// Process resamples the next block. The output length may differ slightly
// from the exact rate ratio while the filter primes.
func (r *Resampler) Process(samples []float32) ([]float32, error) {
	if r.resampler == nil {
		return samples, nil
	}

	input := make([]float64, len(samples))
	for i, sample := range samples {
		input[i] = float64(sample)
	}

	output, err := r.resampler.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}

	result := make([]float32, len(output))
	for i, sample := range output {
		result[i] = float32(sample)
	}
	return result, nil
}

// Mono mixes a buffer down to a single channel at its own rate.
func (b Buffer) Mono() []float32 {
	switch len(b.Channels) {
	case 0:
		return nil
	case 1:
		return b.Channels[0]
	}

	mono := make([]float32, b.Frames())
	scale := 1 / float32(len(b.Channels))
	for _, channel := range b.Channels {
		for i := range min(len(mono), len(channel)) {
			mono[i] += channel[i] * scale
		}
	}
	return mono
}
