package orchestration

import (
	"context"
	"sync"

	"github.com/koscakluka/ema-trial/core/capture"
	"github.com/koscakluka/ema-trial/core/live"
	"github.com/koscakluka/ema-trial/core/playback"
	"github.com/koscakluka/ema-trial/core/tools"
	"github.com/koscakluka/ema-trial/core/transcript"
	"github.com/koscakluka/ema-trial/core/trial"
	"github.com/koscakluka/ema-trial/core/uistate"
	"go.opentelemetry.io/otel/trace"
)

// session owns the resources of one Start..Stop cycle. Resources are attached
// as they are acquired; once the session is released nothing more can be
// attached and late arrivals are closed by whoever acquired them.
type session struct {
	ctx    context.Context
	cancel context.CancelFunc
	// span covers the whole session and ends with teardown.
	span trace.Span

	assembler  *transcript.Assembler
	dispatcher *tools.Dispatcher
	display    *sessionDisplay

	mu        sync.Mutex
	released  bool
	output    playback.Output
	scheduler *playback.Scheduler
	capture   *capture.Handle
	client    *live.Client

	// clientReady is closed once client is attached or the session released.
	clientReady chan struct{}
	readyOnce   sync.Once

	teardownOnce sync.Once
	done         chan struct{}
}

func newSession(ctx context.Context, store *uistate.Store, opts ...trace.SpanStartOption) *session {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	ctx, span := tracer.Start(ctx, "trial session", opts...)
	return &session{
		ctx:         ctx,
		cancel:      cancel,
		span:        span,
		assembler:   transcript.NewAssembler(),
		display:     &sessionDisplay{store: store},
		clientReady: make(chan struct{}),
		done:        make(chan struct{}),
	}
}

func (s *session) attachOutput(output playback.Output) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.output = output
	s.scheduler = playback.NewScheduler(output)
	return true
}

func (s *session) attachCapture(handle *capture.Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.capture = handle
	return true
}

func (s *session) attachClient(client *live.Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.client = client
	s.readyOnce.Do(func() { close(s.clientReady) })
	return true
}

func (s *session) currentScheduler() *playback.Scheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler
}

// RespondToTool lets the session act as the tool acknowledger. Tool calls
// can arrive before Connect has returned the client, so this waits for it.
func (s *session) RespondToTool(id, name string, result map[string]any) error {
	<-s.clientReady

	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return live.ErrClosed
	}
	return client.RespondToTool(id, name, result)
}

type sessionResources struct {
	output    playback.Output
	scheduler *playback.Scheduler
	capture   *capture.Handle
	client    *live.Client
}

// release marks the session released and hands its resources to the caller.
func (s *session) release() sessionResources {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.released = true
	s.readyOnce.Do(func() { close(s.clientReady) })
	return sessionResources{
		output:    s.output,
		scheduler: s.scheduler,
		capture:   s.capture,
		client:    s.client,
	}
}

// sessionDisplay is the store as seen by one session. Once sealed, writes
// from callbacks that outlive the session are dropped.
type sessionDisplay struct {
	store *uistate.Store

	mu     sync.RWMutex
	sealed bool
}

// seal waits for writes in flight and rejects all later ones.
func (d *sessionDisplay) seal() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sealed = true
}

func (d *sessionDisplay) write(change func(store *uistate.Store)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.sealed {
		return
	}
	change(d.store)
}

func (d *sessionDisplay) SetCoaching(analysis trial.CoachingAnalysis) {
	d.write(func(store *uistate.Store) { store.SetCoaching(analysis) })
}

func (d *sessionDisplay) SetObjection(alert trial.ObjectionAlert) {
	d.write(func(store *uistate.Store) { store.SetObjection(alert) })
}

func (d *sessionDisplay) AppendMessages(messages ...trial.Message) {
	d.write(func(store *uistate.Store) { store.AppendMessages(messages...) })
}

func (d *sessionDisplay) SetVolume(volume float64) {
	d.write(func(store *uistate.Store) { store.SetVolume(volume) })
}
