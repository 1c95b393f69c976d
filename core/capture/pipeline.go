// Package capture acquires the microphone and turns its sample stream into
// fixed-size frames ready for encoding, reporting a live volume level on the
// side.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-trial/core/audio"
)

var (
	// ErrPermissionDenied is returned when the user or OS refuses access to
	// the microphone.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrDeviceUnavailable is returned when there is no usable capture device.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
)

// Constraints describe the requested microphone stream.
type Constraints struct {
	SampleRate       int
	Channels         int
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

func DefaultConstraints() Constraints {
	return Constraints{
		SampleRate:       audio.DefaultSampleRate,
		Channels:         1,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// Device opens microphone streams. Implementations should wrap
// [ErrPermissionDenied] or [ErrDeviceUnavailable] so callers can tell the two
// apart.
type Device interface {
	Open(ctx context.Context, constraints Constraints) (Stream, error)
}

// Stream is an opened but not necessarily running microphone stream. Samples
// are mono floats at the constraint sample rate, in whatever block size the
// device produces. onError reports a failure that stopped the stream after
// Start returned; it is not called for Close.
type Stream interface {
	Start(onSamples func(samples []float32), onError func(err error)) error
	Close() error
}

type PipelineOption func(*Pipeline)

// WithFrameSize overrides the number of samples per emitted frame.
func WithFrameSize(size int) PipelineOption {
	return func(p *Pipeline) {
		if size > 0 {
			p.frameSize = size
		}
	}
}

// WithVolumeCallback registers a receiver for the 0-100 volume level of each
// frame. It runs on its own goroutine; when it falls behind, intermediate
// levels are skipped rather than delaying frames.
func WithVolumeCallback(callback func(volume float64)) PipelineOption {
	return func(p *Pipeline) { p.onVolume = callback }
}

// WithErrorCallback registers a receiver for a failure of the running stream.
// It is called at most once, on its own goroutine, and never after
// [Handle.Stop].
func WithErrorCallback(callback func(err error)) PipelineOption {
	return func(p *Pipeline) { p.onError = callback }
}

func WithConstraints(constraints Constraints) PipelineOption {
	return func(p *Pipeline) { p.constraints = constraints }
}

type Pipeline struct {
	device      Device
	constraints Constraints
	frameSize   int
	onVolume    func(volume float64)
	onError     func(err error)
}

func NewPipeline(device Device, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		device:      device,
		constraints: DefaultConstraints(),
		frameSize:   audio.DefaultFrameSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start acquires the microphone. Frames are not emitted until
// [Handle.Stream] is called, so the permission prompt can happen before the
// rest of the session is ready.
func (p *Pipeline) Start(ctx context.Context) (*Handle, error) {
	if p == nil || p.device == nil {
		return nil, ErrDeviceUnavailable
	}

	stream, err := p.device.Open(ctx, p.constraints)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	return &Handle{
		stream:   stream,
		framer:   newFramer(p.frameSize),
		onVolume:   p.onVolume,
		onError:    p.onError,
		volumes:    make(chan float64, 1),
		volumeDone: make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Handle owns one acquired microphone stream.
type Handle struct {
	stream   Stream
	framer   *framer
	onVolume func(volume float64)
	onError  func(err error)

	volumes    chan float64
	volumeDone chan struct{}
	done       chan struct{}

	mu        sync.Mutex
	streaming bool
	reporting bool
	stopped   bool
	stopOnce  sync.Once
	failOnce  sync.Once
}

// Stream starts delivering frames to onFrame from the device goroutine.
func (h *Handle) Stream(onFrame func(audio.Frame)) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return fmt.Errorf("%w: capture already stopped", ErrDeviceUnavailable)
	}
	if h.streaming {
		return nil
	}

	if err := h.stream.Start(func(samples []float32) {
		h.framer.push(samples, func(frame audio.Frame) {
			h.publishVolume(audio.RMSVolume(frame))
			onFrame(frame)
		})
	}, h.fail); err != nil {
		return fmt.Errorf("failed to start capture stream: %w", err)
	}

	if h.onVolume != nil {
		h.reporting = true
		go h.reportVolume()
	}
	h.streaming = true
	return nil
}

// fail forwards the first stream failure unless the handle is stopping.
func (h *Handle) fail(err error) {
	if h.onError == nil || err == nil {
		return
	}
	select {
	case <-h.done:
		return
	default:
	}
	h.failOnce.Do(func() {
		go h.onError(fmt.Errorf("capture stream failed: %w", err))
	})
}

func (h *Handle) publishVolume(volume float64) {
	if h.onVolume == nil {
		return
	}

	select {
	case <-h.done:
		return
	default:
	}

	// Keep only the latest level.
	for {
		select {
		case h.volumes <- volume:
			return
		default:
			select {
			case <-h.volumes:
			default:
			}
		}
	}
}

func (h *Handle) reportVolume() {
	defer close(h.volumeDone)
	for {
		select {
		case <-h.done:
			return
		case volume := <-h.volumes:
			select {
			case <-h.done:
				return
			default:
			}
			h.onVolume(volume)
		}
	}
}

// Stop releases the microphone. It returns once no volume report is running,
// so nothing is reported after it. Repeated calls are no-ops.
func (h *Handle) Stop() error {
	if h == nil {
		return nil
	}

	var err error
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.stopped = true
		reporting := h.reporting
		h.mu.Unlock()

		close(h.done)
		if closeErr := h.stream.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close capture stream: %w", closeErr)
		}
		h.framer.reset()

		if reporting {
			<-h.volumeDone
		}
	})
	return err
}
