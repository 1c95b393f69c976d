// Package miniaudio provides the microphone and speaker of a session on top
// of the miniaudio backend.
package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-trial/core/audio/miniaudio"

var logger = otelslog.NewLogger(scopeName)

type Client struct {
	// audioContext is only saved to be able to uninitialize it, devices opened
	// from it borrow it.
	audioContext *malgo.AllocatedContext

	closeOnce sync.Once
}

func NewClient() (*Client, error) {
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		logger.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	return &Client{audioContext: audioCtx}, nil
}

// Microphone returns a capture device backed by this context.
func (c *Client) Microphone() *Microphone {
	return &Microphone{audioContext: c.audioContext}
}

// Speaker returns an output device backed by this context.
func (c *Client) Speaker() *Speaker {
	return &Speaker{audioContext: c.audioContext}
}

// Close releases the backend context. Devices opened from it must be closed
// first.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.audioContext.Uninit()
		c.audioContext.Free()
	})
	return err
}
