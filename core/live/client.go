// Package live owns the duplex connection to the remote conversational model:
// it streams microphone chunks out, delivers server events in order and
// carries tool responses back.
package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-trial/core/audio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	// ErrConnection wraps handshake and mid-session network failures.
	ErrConnection = errors.New("live connection error")
	// ErrClosed is returned when sending on a closed client.
	ErrClosed = errors.New("live session closed")
)

const (
	// DefaultInputQueueSize bounds how many captured chunks may wait for the
	// network, about 8 seconds of 4096-sample frames.
	DefaultInputQueueSize = 32

	kickoffToolName = "initial_context_trigger"
	kickoffToolID   = "init"
)

// Transport is the raw duplex connection. Receive blocks until the next event
// and must return an error once Close has been called. Send methods are only
// ever called from one goroutine at a time.
type Transport interface {
	SendRealtimeInput(chunk audio.Chunk) error
	SendToolResponse(responses ...ToolResponse) error
	Receive() (*ServerEvent, error)
	Close() error
}

// Dialer opens transports. Dial returns once the remote side accepted the
// handshake.
type Dialer interface {
	Dial(ctx context.Context, config Config) (Transport, error)
}

type Callbacks struct {
	// OnEvent receives server events one at a time in arrival order.
	OnEvent func(ServerEvent)
	// OnError reports a terminal failure. OnClose follows it.
	OnError func(error)
	// OnClose fires exactly once when the session ends for any reason.
	OnClose func()
}

type ClientOption func(*Client)

// WithInputQueueSize bounds the outbound audio queue. When the network falls
// behind, the oldest queued chunk is dropped.
func WithInputQueueSize(size int) ClientOption {
	return func(c *Client) {
		if size > 0 {
			c.inputQueueSize = size
		}
	}
}

type Client struct {
	transport Transport
	callbacks Callbacks

	inputQueueSize int

	mu         sync.Mutex
	audioQueue []audio.Chunk
	toolQueue  []ToolResponse
	closed     bool
	failure    error

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	closeOnce sync.Once
	dropped   atomic.Uint64
}

// Connect dials the remote model and starts the read and write loops. It
// returns after the handshake succeeded.
func Connect(ctx context.Context, dialer Dialer, config Config, callbacks Callbacks, opts ...ClientOption) (*Client, error) {
	ctx, span := tracer.Start(ctx, "connect live session")
	defer span.End()
	span.SetAttributes(
		attribute.String("live.model", config.Model),
		attribute.Int("live.tools", len(config.Tools)),
	)

	if dialer == nil {
		err := fmt.Errorf("%w: no dialer configured", ErrConnection)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	transport, err := dialer.Dial(ctx, config)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrConnection, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c := &Client{
		transport:      transport,
		callbacks:      callbacks,
		inputQueueSize: DefaultInputQueueSize,
		wake:           make(chan struct{}, 1),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.writeLoop()
	go c.readLoop()

	return c, nil
}

// Send queues a captured chunk for transmission without blocking.
func (c *Client) Send(chunk audio.Chunk) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	if len(c.audioQueue) >= c.inputQueueSize {
		c.audioQueue = c.audioQueue[1:]
		if dropped := c.dropped.Add(1); dropped == 1 || dropped%50 == 0 {
			logger.Warn("live input queue full, dropping oldest audio", "dropped_total", dropped)
		}
	}
	c.audioQueue = append(c.audioQueue, chunk)
	c.mu.Unlock()

	c.signal()
	return nil
}

// RespondToTool queues the answer to a tool call. Tool responses are never
// dropped and are sent ahead of queued audio.
func (c *Client) RespondToTool(id, name string, result map[string]any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.toolQueue = append(c.toolQueue, ToolResponse{ID: id, Name: name, Response: result})
	c.mu.Unlock()

	c.signal()
	return nil
}

// SendKickoff nudges the model to open the conversation by answering a
// synthetic context trigger.
func (c *Client) SendKickoff() error {
	return c.RespondToTool(kickoffToolID, kickoffToolName, map[string]any{"status": "ready"})
}

// Close terminates the connection. OnClose fires once the read loop has
// wound down; repeated calls are no-ops.
func (c *Client) Close() error {
	return c.shutdown(nil)
}

// Done is closed after the read loop exited and the terminal callbacks ran.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Dropped reports how many captured chunks were discarded because the
// network could not keep up.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *Client) shutdown(failure error) error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.failure = failure
		c.audioQueue = nil
		c.toolQueue = nil
		c.mu.Unlock()

		close(c.stop)
		if closeErr := c.transport.Close(); closeErr != nil {
			err = fmt.Errorf("failed to close live transport: %w", closeErr)
		}
	})
	return err
}

func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Client) readLoop() {
	defer close(c.done)

	var receiveErr error
	for {
		event, err := c.transport.Receive()
		if err != nil {
			receiveErr = err
			break
		}
		if event == nil {
			continue
		}

		if err := c.deliver(*event); err != nil {
			c.shutdown(err)
			break
		}
	}

	c.mu.Lock()
	closedLocally := c.closed
	failure := c.failure
	c.mu.Unlock()

	if !closedLocally {
		// The remote side went away first.
		if receiveErr != nil && !errors.Is(receiveErr, io.EOF) && !errors.Is(receiveErr, ErrClosed) {
			failure = fmt.Errorf("%w: %w", ErrConnection, receiveErr)
		}
		c.shutdown(failure)
	}

	if failure != nil {
		logger.Error("live session failed", "error", failure)
		if c.callbacks.OnError != nil {
			c.callbacks.OnError(failure)
		}
	}
	if c.callbacks.OnClose != nil {
		c.callbacks.OnClose()
	}
}

func (c *Client) deliver(event ServerEvent) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("live event handler panicked: %v", recovered)
		}
	}()

	if c.callbacks.OnEvent != nil {
		c.callbacks.OnEvent(event)
	}
	return nil
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.stop:
			return
		case <-c.wake:
		}

		for {
			tools, chunk, ok := c.next()
			if !ok {
				break
			}

			if len(tools) > 0 {
				if err := c.transport.SendToolResponse(tools...); err != nil {
					c.shutdown(fmt.Errorf("%w: failed to send tool response: %w", ErrConnection, err))
					return
				}
				continue
			}

			if err := c.transport.SendRealtimeInput(chunk); err != nil {
				c.shutdown(fmt.Errorf("%w: failed to send audio: %w", ErrConnection, err))
				return
			}
		}
	}
}

// next pops all pending tool responses, or else the oldest audio chunk.
func (c *Client) next() (tools []ToolResponse, chunk audio.Chunk, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, audio.Chunk{}, false
	}
	if len(c.toolQueue) > 0 {
		tools, c.toolQueue = c.toolQueue, nil
		return tools, audio.Chunk{}, true
	}
	if len(c.audioQueue) > 0 {
		chunk, c.audioQueue = c.audioQueue[0], c.audioQueue[1:]
		return nil, chunk, true
	}
	return nil, audio.Chunk{}, false
}
