// Package orchestration runs live trial simulation sessions: it wires the
// microphone, the remote opposing counsel and the speakers together and keeps
// the observable session state consistent on every exit path.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-trial/core/audio"
	"github.com/koscakluka/ema-trial/core/capture"
	"github.com/koscakluka/ema-trial/core/live"
	"github.com/koscakluka/ema-trial/core/tools"
	"github.com/koscakluka/ema-trial/core/transcript"
	"github.com/koscakluka/ema-trial/core/trial"
	"github.com/koscakluka/ema-trial/core/uistate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrSessionActive   = errors.New("a session is already active")
	ErrSetupIncomplete = errors.New("session setup is incomplete")
	ErrMissingDevice   = errors.New("no device configured")
)

const (
	// ConnectFailureNotice is shown when a session could not be started.
	ConnectFailureNotice = "Failed to connect. Please ensure microphone permissions are granted."
	// SessionLostNotice is shown when a running session fails.
	SessionLostNotice = "The session ended unexpectedly. Check your connection and try again."
)

type Controller struct {
	dialer        live.Dialer
	captureDevice capture.Device
	outputDevice  OutputDevice
	store         *uistate.Store

	model          string
	voice          string
	objectionTTL   time.Duration
	inputQueueSize int
	now            func() time.Time

	mu      sync.Mutex
	state   SessionState
	session *session
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		inputQueueSize: live.DefaultInputQueueSize,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = uistate.NewStore(uistate.WithObjectionTTL(c.objectionTTL))
	}
	return c
}

func (c *Controller) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Store() *uistate.Store {
	return c.store
}

// StartSession connects a new session and returns once it is live. On any
// failure the controller is back to idle, resources are released and the
// store carries a failure notice.
func (c *Controller) StartSession(ctx context.Context, setup trial.Setup) (err error) {
	if !setup.Phase.Valid() || !setup.Mode.Valid() {
		return fmt.Errorf("%w: phase %q, mode %q", ErrSetupIncomplete, setup.Phase, setup.Mode)
	}

	c.mu.Lock()
	if c.state != SessionIdle {
		c.mu.Unlock()
		return ErrSessionActive
	}
	s := newSession(ctx, c.store, trace.WithAttributes(
		attribute.String("trial.phase", string(setup.Phase)),
		attribute.String("trial.mode", string(setup.Mode)),
	))
	s.dispatcher = tools.NewDispatcher(s.display, s, tools.WithClock(c.now))
	c.session = s
	c.state = SessionConnecting
	c.mu.Unlock()

	c.store.BeginSession()

	ctx, span := tracer.Start(ctx, "start session")
	defer span.End()
	span.SetAttributes(
		attribute.String("trial.phase", string(setup.Phase)),
		attribute.String("trial.mode", string(setup.Mode)),
	)

	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.teardown(s, err, ConnectFailureNotice)
		}
	}()

	hook := withContextCancelHook(ctx, func() {
		c.teardown(s, ctx.Err(), ConnectFailureNotice)
	})
	defer close(hook)

	if err := c.openOutput(ctx, s); err != nil {
		return err
	}
	if err := c.openCapture(ctx, s); err != nil {
		return err
	}
	client, err := c.connect(ctx, s, setup)
	if err != nil {
		return err
	}

	if err := client.SendKickoff(); err != nil {
		return fmt.Errorf("failed to send kickoff: %w", err)
	}

	s.mu.Lock()
	handle := s.capture
	s.mu.Unlock()
	if err := handle.Stream(func(frame audio.Frame) {
		if err := client.Send(audio.Encode(frame)); err != nil && !errors.Is(err, live.ErrClosed) {
			logger.Warn("failed to send captured audio", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to stream captured audio: %w", err)
	}

	c.mu.Lock()
	if c.session != s || c.state != SessionConnecting {
		c.mu.Unlock()
		return fmt.Errorf("session ended while connecting: %w", live.ErrClosed)
	}
	c.state = SessionLive
	c.mu.Unlock()
	s.display.write(func(store *uistate.Store) { store.SetStatus(uistate.StatusLive) })

	logger.Info("session live", "phase", setup.Phase, "mode", setup.Mode, "opponent", setup.Opponent())
	return nil
}

func (c *Controller) openOutput(ctx context.Context, s *session) error {
	if c.outputDevice == nil {
		return fmt.Errorf("output: %w", ErrMissingDevice)
	}
	output, err := c.outputDevice.Open(ctx, audio.GetDefaultOutputEncodingInfo())
	if err != nil {
		return fmt.Errorf("failed to open output device: %w", err)
	}
	if !s.attachOutput(output) {
		output.Close()
		return fmt.Errorf("session ended while opening output: %w", live.ErrClosed)
	}
	return nil
}

func (c *Controller) openCapture(ctx context.Context, s *session) error {
	if c.captureDevice == nil {
		return fmt.Errorf("capture: %w: %w", capture.ErrDeviceUnavailable, ErrMissingDevice)
	}
	pipeline := capture.NewPipeline(c.captureDevice,
		capture.WithVolumeCallback(s.display.SetVolume),
		capture.WithErrorCallback(func(err error) { c.teardown(s, err, SessionLostNotice) }),
	)
	handle, err := pipeline.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to open microphone: %w", err)
	}
	if !s.attachCapture(handle) {
		handle.Stop()
		return fmt.Errorf("session ended while opening microphone: %w", live.ErrClosed)
	}
	return nil
}

func (c *Controller) connect(ctx context.Context, s *session, setup trial.Setup) (*live.Client, error) {
	config := live.Config{
		Model:               c.model,
		Voice:               c.voice,
		SystemInstruction:   trial.SystemInstruction(setup),
		Tools:               tools.Declarations(),
		InputTranscription:  true,
		OutputTranscription: true,
	}

	client, err := live.Connect(ctx, c.dialer, config, live.Callbacks{
		OnEvent: func(event live.ServerEvent) { c.handleEvent(s, event) },
		OnError: func(err error) { c.teardown(s, err, SessionLostNotice) },
		OnClose: func() { c.teardown(s, nil, "") },
	}, live.WithInputQueueSize(c.inputQueueSize))
	if err != nil {
		return nil, err
	}
	if !s.attachClient(client) {
		client.Close()
		return nil, fmt.Errorf("session ended while connecting: %w", live.ErrClosed)
	}
	return client, nil
}

// StopSession ends the current session, keeping the finalized transcript.
// It is safe to call in any state.
func (c *Controller) StopSession() {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s == nil {
		return
	}
	c.teardown(s, nil, "")
	<-s.done
}

// teardown releases everything the session acquired. It runs once per
// session; later calls wait for nothing and return immediately.
func (c *Controller) teardown(s *session, cause error, notice string) {
	s.teardownOnce.Do(func() {
		defer close(s.done)

		_, span := tracer.Start(s.ctx, "teardown session")
		defer span.End()

		c.mu.Lock()
		if c.session == s {
			c.state = SessionClosing
		}
		c.mu.Unlock()
		c.store.SetStatus(uistate.StatusClosing)

		resources := s.release()
		var errs []error
		if err := resources.capture.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop capture: %w", err))
		}
		if resources.client != nil {
			if err := resources.client.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if resources.scheduler != nil {
			resources.scheduler.StopAll()
		}
		if resources.output != nil {
			if err := resources.output.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close output device: %w", err))
			}
		}
		s.assembler.Reset()
		s.cancel()

		if err := errors.Join(errs...); err != nil {
			span.RecordError(err)
			logger.Warn("session teardown incomplete", "error", err)
		}

		// Event handling and volume reports may still be finishing; nothing
		// they write may land after the final state below.
		s.display.seal()

		if cause != nil {
			span.RecordError(cause)
			span.SetStatus(codes.Error, cause.Error())
			s.span.SetStatus(codes.Error, cause.Error())
			logger.Error("session failed", "error", cause)
			c.store.Fail(notice)
		} else {
			c.store.EndSession()
		}

		c.mu.Lock()
		if c.session == s {
			c.session = nil
			c.state = SessionIdle
		}
		c.mu.Unlock()
		s.span.End()
	})
}

func (c *Controller) accepting(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == s && c.state.accepting()
}

// handleEvent applies one server event. It runs on the live client's reader
// goroutine, so events of a session are handled one at a time in order.
func (c *Controller) handleEvent(s *session, event live.ServerEvent) {
	if !c.accepting(s) {
		logger.Debug("dropping server event outside of an active session")
		return
	}

	handle := panicSafeNamedWorker("event handler", func(ctx context.Context) error {
		c.applyEvent(ctx, s, event)
		return nil
	})
	if err := handle(s.ctx); err != nil {
		c.teardown(s, err, SessionLostNotice)
	}
}

func (c *Controller) applyEvent(ctx context.Context, s *session, event live.ServerEvent) {
	if scheduler := s.currentScheduler(); scheduler != nil {
		for _, chunk := range event.Audio {
			buf, err := audio.Decode(chunk.Data, audio.ParseRate(chunk.MIMEType, audio.DefaultOutputSampleRate), 1)
			if err != nil {
				logger.Warn("skipping undecodable audio chunk", "error", err, "bytes", len(chunk.Data))
				continue
			}
			if _, err := scheduler.Schedule(buf); err != nil {
				logger.Warn("failed to schedule audio chunk", "error", err)
			}
		}
	}

	if event.InputTranscript != nil {
		s.assembler.AppendFragment(transcript.ChannelInput, *event.InputTranscript)
	}
	if event.OutputTranscript != nil {
		s.assembler.AppendFragment(transcript.ChannelOutput, *event.OutputTranscript)
	}

	span := trace.SpanFromContext(ctx)

	if event.Interrupted {
		span.AddEvent("interrupted")
		if scheduler := s.currentScheduler(); scheduler != nil {
			scheduler.StopAll()
		}
	}

	if event.TurnComplete {
		messages := s.assembler.TurnComplete()
		span.AddEvent("turn complete", trace.WithAttributes(attribute.Int("transcript.messages", len(messages))))
		s.display.AppendMessages(messages...)
	}

	if len(event.ToolCalls) > 0 {
		if err := s.dispatcher.Dispatch(ctx, event.ToolCalls); err != nil {
			logger.Warn("tool calls not fully acknowledged", "error", err)
		}
	}
}
