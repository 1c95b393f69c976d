package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-trial/core/audio"
	"github.com/koscakluka/ema-trial/core/playback"
)

var ErrOutputClosed = errors.New("output closed")

// Speaker opens the default playback device.
type Speaker struct {
	audioContext *malgo.AllocatedContext
}

// Open starts a playback device at the rate of info. The returned output
// renders silence until units are scheduled on it.
func (s *Speaker) Open(ctx context.Context, info audio.EncodingInfo) (playback.Output, error) {
	if s == nil || s.audioContext == nil {
		return nil, fmt.Errorf("%w: no audio context", playback.ErrNoOutput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o := &output{sampleRate: info.SampleRate}

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.SampleRate = uint32(info.SampleRate)
	config.Playback.Format = malgo.FormatF32
	config.Playback.Channels = 1
	config.Alsa.NoMMap = 1
	config.PeriodSizeInFrames = uint32(info.SampleRate / 50) // ~20ms
	config.Periods = 4

	device, err := malgo.InitDevice(s.audioContext.Context, config, malgo.DeviceCallbacks{
		Data: o.render,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	o.device = device
	return o, nil
}

// output mixes scheduled units into the device stream. Its clock is the
// number of frames handed to the device.
type output struct {
	sampleRate int
	rendered   atomic.Int64

	// resamplers holds one continuous stream per source rate, so chunk
	// boundaries neither click nor drift from the scheduled timeline.
	resampleMu sync.Mutex
	resamplers map[int]*audio.Resampler

	mu     sync.Mutex
	device *malgo.Device
	units  []*unit
	closed bool
}

type unit struct {
	samples []float32
	start   int64
	stopped atomic.Bool
	onEnded func()
}

func (u *unit) Stop() {
	u.stopped.Store(true)
}

func (o *output) Now() time.Duration {
	return time.Duration(o.rendered.Load()) * time.Second / time.Duration(o.sampleRate)
}

func (o *output) SampleRate() int {
	return o.sampleRate
}

func (o *output) Play(buf audio.Buffer, at time.Duration, onEnded func()) (playback.Handle, error) {
	samples, err := o.resample(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare audio for playback: %w", err)
	}

	u := &unit{
		samples: samples,
		start:   int64(at) * int64(o.sampleRate) / int64(time.Second),
		onEnded: onEnded,
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrOutputClosed
	}
	o.units = append(o.units, u)
	return u, nil
}

func (o *output) resample(buf audio.Buffer) ([]float32, error) {
	mono := buf.Mono()
	if buf.SampleRate == o.sampleRate || len(mono) == 0 {
		return mono, nil
	}

	o.resampleMu.Lock()
	defer o.resampleMu.Unlock()

	resampler, ok := o.resamplers[buf.SampleRate]
	if !ok {
		var err error
		if resampler, err = audio.NewResampler(buf.SampleRate, o.sampleRate); err != nil {
			return nil, err
		}
		if o.resamplers == nil {
			o.resamplers = make(map[int]*audio.Resampler)
		}
		o.resamplers[buf.SampleRate] = resampler
	}
	return resampler.Process(mono)
}

func (o *output) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.units = nil
	device := o.device
	o.mu.Unlock()

	var err error
	if device.IsStarted() {
		if stopErr := device.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop playback device: %w", stopErr)
		}
	}
	device.Uninit()
	return err
}

func (o *output) render(pOutput, _ []byte, frameCount uint32) {
	n := int64(frameCount)
	base := o.rendered.Load()
	mix := make([]float32, n)

	o.mu.Lock()
	var ended []func()
	kept := o.units[:0]
	for _, u := range o.units {
		if u.stopped.Load() {
			continue
		}

		end := u.start + int64(len(u.samples))
		from, to := max(u.start-base, 0), min(end-base, n)
		for i := from; i < to; i++ {
			mix[i] += u.samples[base+i-u.start]
		}

		if end <= base+n {
			if u.onEnded != nil {
				ended = append(ended, u.onEnded)
			}
			continue
		}
		kept = append(kept, u)
	}
	clear(o.units[len(kept):])
	o.units = kept
	o.mu.Unlock()

	putFloat32Samples(pOutput, mix)
	o.rendered.Add(n)

	if len(ended) > 0 {
		go func() {
			for _, onEnded := range ended {
				onEnded()
			}
		}()
	}
}
