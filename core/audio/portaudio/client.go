// Package portaudio provides a microphone on top of PortAudio for systems
// where the miniaudio backend cannot open the capture device. Audio is read
// at the device's native rate and resampled to the requested one.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-trial/core/audio"
	"github.com/koscakluka/ema-trial/core/capture"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-trial/core/audio/portaudio"

var logger = otelslog.NewLogger(scopeName)

type Microphone struct {
	// bufferSize is the number of native-rate frames read per block.
	bufferSize int
}

func NewMicrophone(bufferSize int) *Microphone {
	return &Microphone{bufferSize: bufferSize}
}

func (m *Microphone) Open(ctx context.Context, constraints capture.Constraints) (capture.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", openError(err))
	}

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, openError(err)
	}

	nativeRate := int(device.DefaultSampleRate)
	resampler, err := audio.NewResampler(nativeRate, constraints.SampleRate)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("%w: %w", capture.ErrDeviceUnavailable, err)
	}

	bufferSize := m.bufferSize
	if bufferSize <= 0 {
		bufferSize = nativeRate / 50
	}

	in := make([]float32, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, device.DefaultSampleRate, bufferSize, in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open PortAudio stream: %w", openError(err))
	}

	logger.Debug("opened input stream", "device", device.Name, "native_rate", nativeRate, "rate", constraints.SampleRate)
	return &captureStream{
		stream:    stream,
		in:        in,
		resampler: resampler,
		done:      make(chan struct{}),
	}, nil
}

type captureStream struct {
	stream    *portaudio.Stream
	in        []float32
	resampler *audio.Resampler

	mu        sync.Mutex
	started   bool
	closed    bool
	done      chan struct{}
	readerEnd sync.WaitGroup
}

func (s *captureStream) Start(onSamples func(samples []float32), onError func(err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: stream closed", capture.ErrDeviceUnavailable)
	} else if s.started {
		return nil
	}

	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("failed to start PortAudio stream: %w", openError(err))
	}
	s.started = true

	s.readerEnd.Add(1)
	go s.read(onSamples, onError)
	return nil
}

func (s *captureStream) read(onSamples func(samples []float32), onError func(err error)) {
	defer s.readerEnd.Done()

	for {
		select {
		case <-s.done:
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if !errors.Is(err, portaudio.InputOverflowed) {
				logger.Error("failed to read from PortAudio stream", "error", err)
				if onError != nil {
					onError(fmt.Errorf("failed to read from PortAudio stream: %w", err))
				}
				return
			}
			// The block is still usable after an overflow.
			logger.Debug("PortAudio input overflowed")
		}

		samples, err := s.resampler.Process(append([]float32(nil), s.in...))
		if err != nil {
			logger.Warn("dropping unresampleable capture block", "error", err)
			continue
		}
		if len(samples) > 0 {
			onSamples(samples)
		}
	}
}

func (s *captureStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	close(s.done)
	s.mu.Unlock()

	var err error
	if started {
		if stopErr := s.stream.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop PortAudio stream: %w", stopErr)
		}
		s.readerEnd.Wait()
	}
	if closeErr := s.stream.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close PortAudio stream: %w", closeErr)
	}
	portaudio.Terminate()
	return err
}

// Host error codes meaning the OS refused access to the device.
const (
	errnoPermission          = 1          // EPERM
	errnoAccess              = 13         // EACCES
	coreAudioPermissionError = 0x70726D3F // kAudioDevicePermissionsError, 'prm?'
	hresultAccessDenied      = -2147024891
)

// openError classifies a PortAudio failure. PortAudio has no error of its
// own for a refused microphone, only the host API reports it.
func openError(err error) error {
	var hostErr portaudio.UnanticipatedHostError
	if errors.As(err, &hostErr) && accessDenied(hostErr) {
		return fmt.Errorf("%w: %w", capture.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%w: %w", capture.ErrDeviceUnavailable, err)
}

func accessDenied(err portaudio.UnanticipatedHostError) bool {
	switch err.HostApiType {
	case portaudio.ALSA, portaudio.OSS, portaudio.JACK:
		switch err.Code {
		case -errnoPermission, -errnoAccess, errnoPermission, errnoAccess:
			return true
		}
	case portaudio.CoreAudio:
		if err.Code == coreAudioPermissionError {
			return true
		}
	case portaudio.WASAPI, portaudio.WDMkS, portaudio.DirectSound, portaudio.MME:
		if int32(err.Code) == hresultAccessDenied {
			return true
		}
	}

	text := strings.ToLower(err.Text)
	return strings.Contains(text, "permission") || strings.Contains(text, "access denied")
}
