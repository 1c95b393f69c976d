package uistate

import (
	"sync"
	"testing"
	"time"

	"github.com/koscakluka/ema-trial/core/trial"
)

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Duration
	fn       func()
	stopped  bool
	fired    bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{clock: c, deadline: c.now + d, fn: fn}
	c.timers = append(c.timers, timer)
	return timer
}

// Advance fires due timers synchronously, the way a runtime timer would fire
// on its own goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, timer := range c.timers {
		if !timer.stopped && !timer.fired && timer.deadline <= c.now {
			timer.fired = true
			due = append(due, timer)
		}
	}
	c.mu.Unlock()

	for _, timer := range due {
		timer.fn()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, timer := range c.timers {
		if !timer.stopped && !timer.fired {
			n++
		}
	}
	return n
}

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{}
	return NewStore(WithAfterFunc(clock.AfterFunc)), clock
}

func TestObjectionExpiresAfterTTL(t *testing.T) {
	store, clock := newTestStore()

	store.SetObjection(trial.ObjectionAlert{Grounds: "Leading", Explanation: "x"})
	if store.Snapshot().Objection == nil {
		t.Fatalf("expected objection to be visible")
	}

	clock.Advance(4999 * time.Millisecond)
	if store.Snapshot().Objection == nil {
		t.Fatalf("expected objection to still be visible before the TTL")
	}

	clock.Advance(time.Millisecond)
	if store.Snapshot().Objection != nil {
		t.Fatalf("expected objection to be cleared after the TTL")
	}
}

func TestNewObjectionRestartsExpiry(t *testing.T) {
	store, clock := newTestStore()

	store.SetObjection(trial.ObjectionAlert{Grounds: "Leading"})
	clock.Advance(4 * time.Second)
	store.SetObjection(trial.ObjectionAlert{Grounds: "Hearsay"})

	if clock.pending() != 1 {
		t.Fatalf("expected exactly one pending timer, got %d", clock.pending())
	}

	clock.Advance(2 * time.Second)
	objection := store.Snapshot().Objection
	if objection == nil || objection.Grounds != "Hearsay" {
		t.Fatalf("expected the newer objection to survive the old deadline, got %+v", objection)
	}

	clock.Advance(3 * time.Second)
	if store.Snapshot().Objection != nil {
		t.Fatalf("expected the newer objection to expire on its own deadline")
	}
}

func TestStaleTimerCannotClearNewerAlert(t *testing.T) {
	store, _ := newTestStore()

	store.SetObjection(trial.ObjectionAlert{Grounds: "Leading"})
	staleGen := store.objectionGen
	store.SetObjection(trial.ObjectionAlert{Grounds: "Speculation"})

	// A timer that already fired before Stop could take effect.
	store.expireObjection(staleGen)

	objection := store.Snapshot().Objection
	if objection == nil || objection.Grounds != "Speculation" {
		t.Fatalf("expected stale expiry to be ignored, got %+v", objection)
	}
}

func TestWithObjectionTTL(t *testing.T) {
	clock := &fakeClock{}
	store := NewStore(WithAfterFunc(clock.AfterFunc), WithObjectionTTL(time.Second))

	store.SetObjection(trial.ObjectionAlert{Grounds: "Relevance"})
	clock.Advance(time.Second)
	if store.Snapshot().Objection != nil {
		t.Fatalf("expected custom TTL to apply")
	}
}

func TestEndSessionKeepsTranscriptAndCancelsTimer(t *testing.T) {
	store, clock := newTestStore()

	store.BeginSession()
	store.SetStatus(StatusLive)
	store.AppendMessages(trial.Message{ID: "1", Sender: trial.SenderUser, Text: "Good morning."})
	store.SetCoaching(trial.CoachingAnalysis{Critique: "Fine."})
	store.SetObjection(trial.ObjectionAlert{Grounds: "Leading"})
	store.SetVolume(42)

	store.EndSession()

	snapshot := store.Snapshot()
	if snapshot.Status != StatusIdle || snapshot.Volume != 0 || snapshot.Objection != nil {
		t.Fatalf("unexpected snapshot after end %+v", snapshot)
	}
	if len(snapshot.Transcript) != 1 || snapshot.Coaching == nil {
		t.Fatalf("expected transcript and coaching to be kept for review, got %+v", snapshot)
	}
	if clock.pending() != 0 {
		t.Fatalf("expected objection timer to be cancelled")
	}
}

func TestFailResetsSessionSlices(t *testing.T) {
	store, clock := newTestStore()

	store.BeginSession()
	store.AppendMessages(trial.Message{Sender: trial.SenderOpponent, Text: "Please state your name."})
	store.SetCoaching(trial.CoachingAnalysis{Critique: "Fine."})
	store.SetObjection(trial.ObjectionAlert{Grounds: "Leading"})
	store.SetVolume(42)

	store.Fail("could not connect")

	snapshot := store.Snapshot()
	if snapshot.Status != StatusIdle || snapshot.Error != "could not connect" {
		t.Fatalf("unexpected snapshot after failure %+v", snapshot)
	}
	if len(snapshot.Transcript) != 0 {
		t.Fatalf("expected transcript to be cleared after failure, got %+v", snapshot.Transcript)
	}
	if snapshot.Coaching != nil || snapshot.Objection != nil || snapshot.Volume != 0 {
		t.Fatalf("expected session slices to be reset, got %+v", snapshot)
	}
	if clock.pending() != 0 {
		t.Fatalf("expected objection timer to be cancelled")
	}

	store.BeginSession()
	if store.Snapshot().Error != "" {
		t.Fatalf("expected a new session to clear the previous notice")
	}
}

func TestSubscribeCoalescesSignals(t *testing.T) {
	store, _ := newTestStore()
	updates, unsubscribe := store.Subscribe()

	for i := range 10 {
		store.SetVolume(float64(i))
	}

	select {
	case <-updates:
	default:
		t.Fatalf("expected a pending update signal")
	}
	select {
	case <-updates:
		t.Fatalf("expected signals to coalesce into one")
	default:
	}
	if store.Snapshot().Volume != 9 {
		t.Fatalf("expected latest volume to be readable")
	}

	unsubscribe()
	unsubscribe()
	store.SetVolume(1)
	select {
	case <-updates:
		t.Fatalf("expected no signal after unsubscribe")
	default:
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store, _ := newTestStore()
	store.AppendMessages(trial.Message{ID: "1", Text: "a"})
	store.SetCoaching(trial.CoachingAnalysis{FallaciesIdentified: []string{"Ad hominem"}})

	snapshot := store.Snapshot()
	snapshot.Transcript[0].Text = "mutated"
	snapshot.Coaching.FallaciesIdentified[0] = "mutated"

	again := store.Snapshot()
	if again.Transcript[0].Text != "a" || again.Coaching.FallaciesIdentified[0] != "Ad hominem" {
		t.Fatalf("expected snapshots not to alias store state")
	}
}
