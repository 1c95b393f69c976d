package capture

import (
	"sync"

	"github.com/koscakluka/ema-trial/core/audio"
)

// framer re-blocks device periods of arbitrary length into frames of a fixed
// size. Leftover samples wait for the next push.
type framer struct {
	mu      sync.Mutex
	size    int
	pending []float32
}

func newFramer(size int) *framer {
	return &framer{size: size, pending: make([]float32, 0, size)}
}

func (f *framer) push(samples []float32, emit func(audio.Frame)) {
	f.mu.Lock()
	var frames []audio.Frame
	for len(samples) > 0 {
		n := min(f.size-len(f.pending), len(samples))
		f.pending = append(f.pending, samples[:n]...)
		samples = samples[n:]

		if len(f.pending) == f.size {
			frames = append(frames, audio.Frame(f.pending))
			f.pending = make([]float32, 0, f.size)
		}
	}
	f.mu.Unlock()

	for _, frame := range frames {
		emit(frame)
	}
}

func (f *framer) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = f.pending[:0]
}
