package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-trial/core/capture"
)

var errDeviceStopped = errors.New("capture device stopped unexpectedly")

// Microphone opens the default capture device.
type Microphone struct {
	audioContext *malgo.AllocatedContext
}

func (m *Microphone) Open(ctx context.Context, constraints capture.Constraints) (capture.Stream, error) {
	if m == nil || m.audioContext == nil {
		return nil, capture.ErrDeviceUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// miniaudio has no voice processing, the flags are best effort on the
	// platforms that apply it at the OS level.
	if constraints.EchoCancellation || constraints.NoiseSuppression || constraints.AutoGainControl {
		logger.Debug("voice processing requested but not supported by backend")
	}

	stream := &captureStream{}

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(constraints.SampleRate)
	config.Capture.Format = malgo.FormatF32
	config.Capture.Channels = 1
	config.Alsa.NoMMap = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = uint32(constraints.SampleRate / 100 * 3) // ~30ms
	config.Periods = 3

	bytesPerFrame := malgo.SampleSizeInBytes(config.Capture.Format)

	device, err := malgo.InitDevice(m.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			stream.deliver(float32Samples(pInput[:n]))
		},
		Stop: stream.stopped,
	})
	if err != nil {
		return nil, openError(err)
	}

	stream.device = device
	return stream, nil
}

type captureStream struct {
	mu        sync.Mutex
	device    *malgo.Device
	onSamples func(samples []float32)
	onError   func(err error)
}

func (s *captureStream) deliver(samples []float32) {
	s.mu.Lock()
	onSamples := s.onSamples
	s.mu.Unlock()

	if onSamples != nil {
		onSamples(samples)
	}
}

// stopped runs whenever the device stops. Close clears the callbacks first, so
// only a stop the backend initiated is reported.
func (s *captureStream) stopped() {
	s.mu.Lock()
	onError := s.onError
	s.mu.Unlock()

	if onError != nil {
		onError(errDeviceStopped)
	}
}

func (s *captureStream) Start(onSamples func(samples []float32), onError func(err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return fmt.Errorf("%w: stream closed", capture.ErrDeviceUnavailable)
	} else if s.device.IsStarted() {
		return nil
	}

	s.onSamples = onSamples
	s.onError = onError
	if err := s.device.Start(); err != nil {
		s.onSamples = nil
		s.onError = nil
		return fmt.Errorf("failed to start capture device: %w", openError(err))
	}
	return nil
}

func (s *captureStream) Close() error {
	s.mu.Lock()
	device := s.device
	s.device = nil
	s.onSamples = nil
	s.onError = nil
	s.mu.Unlock()

	if device == nil {
		return nil
	}

	var err error
	if device.IsStarted() {
		if stopErr := device.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop capture device: %w", stopErr)
		}
	}
	device.Uninit()
	return err
}

// openError classifies a device error. A microphone the OS refuses to hand
// out surfaces as MA_ACCESS_DENIED.
func openError(err error) error {
	if errors.Is(err, malgo.ErrAccessDenied) {
		return fmt.Errorf("%w: %w", capture.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %w", capture.ErrDeviceUnavailable, err)
}
