package orchestration

import (
	"context"
	"time"

	"github.com/koscakluka/ema-trial/core/audio"
	"github.com/koscakluka/ema-trial/core/capture"
	"github.com/koscakluka/ema-trial/core/live"
	"github.com/koscakluka/ema-trial/core/playback"
	"github.com/koscakluka/ema-trial/core/uistate"
)

type ControllerOption func(*Controller)

// OutputDevice opens a playback context for one session.
type OutputDevice interface {
	Open(ctx context.Context, encoding audio.EncodingInfo) (playback.Output, error)
}

func WithDialer(dialer live.Dialer) ControllerOption {
	return func(c *Controller) {
		c.dialer = dialer
	}
}

func WithCaptureDevice(device capture.Device) ControllerOption {
	return func(c *Controller) {
		c.captureDevice = device
	}
}

func WithOutputDevice(device OutputDevice) ControllerOption {
	return func(c *Controller) {
		c.outputDevice = device
	}
}

// WithStore shares a state store with other consumers, such as a UI that
// was created before the controller.
func WithStore(store *uistate.Store) ControllerOption {
	return func(c *Controller) {
		if store != nil {
			c.store = store
		}
	}
}

func WithModel(model string) ControllerOption {
	return func(c *Controller) {
		c.model = model
	}
}

func WithVoice(voice string) ControllerOption {
	return func(c *Controller) {
		c.voice = voice
	}
}

// WithObjectionTTL only applies to the store the controller creates itself.
func WithObjectionTTL(ttl time.Duration) ControllerOption {
	return func(c *Controller) {
		c.objectionTTL = ttl
	}
}

func WithInputQueueSize(size int) ControllerOption {
	return func(c *Controller) {
		c.inputQueueSize = size
	}
}

// WithClock replaces the wall clock used to stamp objection alerts.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.now = now
	}
}
