// Package uistate holds the observable state of a trial session as the user
// sees it: status, finalized transcript, latest coaching, the transient
// objection alert, microphone volume and the last failure notice.
package uistate

import (
	"slices"
	"sync"
	"time"

	"github.com/koscakluka/ema-trial/core/trial"
)

const DefaultObjectionTTL = 5 * time.Second

type Status string

const (
	StatusIdle       Status = "idle"
	StatusConnecting Status = "connecting"
	StatusLive       Status = "live"
	StatusClosing    Status = "closing"
)

type Snapshot struct {
	Status     Status                  `json:"status"`
	Transcript []trial.Message         `json:"transcript"`
	Coaching   *trial.CoachingAnalysis `json:"coaching,omitempty"`
	Objection  *trial.ObjectionAlert   `json:"objection,omitempty"`
	Volume     float64                 `json:"volume"`
	Error      string                  `json:"error,omitempty"`
}

// Timer is the part of *time.Timer the store needs.
type Timer interface {
	Stop() bool
}

type StoreOption func(*Store)

// WithObjectionTTL sets how long an objection alert stays visible.
func WithObjectionTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.objectionTTL = ttl
		}
	}
}

// WithAfterFunc replaces time.AfterFunc, mostly for tests.
func WithAfterFunc(afterFunc func(time.Duration, func()) Timer) StoreOption {
	return func(s *Store) {
		s.afterFunc = afterFunc
	}
}

type Store struct {
	mu       sync.Mutex
	snapshot Snapshot

	objectionTTL   time.Duration
	afterFunc      func(time.Duration, func()) Timer
	objectionTimer Timer
	// objectionGen identifies the alert a pending timer belongs to.
	objectionGen uint64

	subscribers map[chan struct{}]struct{}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		snapshot:     Snapshot{Status: StatusIdle},
		objectionTTL: DefaultObjectionTTL,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		subscribers: map[chan struct{}]struct{}{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy safe to read without further locking.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot
	snapshot.Transcript = slices.Clone(s.snapshot.Transcript)
	if s.snapshot.Coaching != nil {
		coaching := *s.snapshot.Coaching
		coaching.FallaciesIdentified = slices.Clone(coaching.FallaciesIdentified)
		snapshot.Coaching = &coaching
	}
	if s.snapshot.Objection != nil {
		objection := *s.snapshot.Objection
		snapshot.Objection = &objection
	}
	return snapshot
}

// Subscribe returns a channel that receives a signal after every change.
// Signals coalesce: a slow reader sees one pending signal and should read
// the latest Snapshot. The returned func unsubscribes.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, ch)
			s.mu.Unlock()
		})
	}
}

func (s *Store) SetStatus(status Status) {
	s.update(func(snapshot *Snapshot) {
		snapshot.Status = status
	})
}

// BeginSession clears everything left over from a previous session.
func (s *Store) BeginSession() {
	s.update(func(snapshot *Snapshot) {
		s.cancelObjectionLocked()
		*snapshot = Snapshot{Status: StatusConnecting}
	})
}

// EndSession returns to idle keeping the finalized transcript and the last
// coaching for review.
func (s *Store) EndSession() {
	s.update(func(snapshot *Snapshot) {
		s.cancelObjectionLocked()
		snapshot.Status = StatusIdle
		snapshot.Volume = 0
	})
}

// Fail returns to idle showing notice. Transcript, coaching, objection and
// volume are reset; only EndSession keeps a transcript for review.
func (s *Store) Fail(notice string) {
	s.update(func(snapshot *Snapshot) {
		s.cancelObjectionLocked()
		snapshot.Status = StatusIdle
		snapshot.Transcript = nil
		snapshot.Coaching = nil
		snapshot.Volume = 0
		snapshot.Error = notice
	})
}

func (s *Store) AppendMessages(messages ...trial.Message) {
	if len(messages) == 0 {
		return
	}
	s.update(func(snapshot *Snapshot) {
		snapshot.Transcript = append(snapshot.Transcript, messages...)
	})
}

func (s *Store) SetCoaching(analysis trial.CoachingAnalysis) {
	s.update(func(snapshot *Snapshot) {
		snapshot.Coaching = &analysis
	})
}

// SetObjection replaces the visible alert and restarts its expiry.
func (s *Store) SetObjection(alert trial.ObjectionAlert) {
	s.update(func(snapshot *Snapshot) {
		s.cancelObjectionLocked()
		snapshot.Objection = &alert

		gen := s.objectionGen
		s.objectionTimer = s.afterFunc(s.objectionTTL, func() {
			s.expireObjection(gen)
		})
	})
}

func (s *Store) ClearObjection() {
	s.update(func(*Snapshot) {
		s.cancelObjectionLocked()
	})
}

func (s *Store) SetVolume(volume float64) {
	s.update(func(snapshot *Snapshot) {
		snapshot.Volume = volume
	})
}

func (s *Store) expireObjection(gen uint64) {
	s.update(func(snapshot *Snapshot) {
		if gen != s.objectionGen {
			return
		}
		s.objectionTimer = nil
		s.objectionGen++
		snapshot.Objection = nil
	})
}

// cancelObjectionLocked stops the pending expiry and hides the alert.
func (s *Store) cancelObjectionLocked() {
	if s.objectionTimer != nil {
		s.objectionTimer.Stop()
		s.objectionTimer = nil
	}
	s.objectionGen++
	s.snapshot.Objection = nil
}

func (s *Store) update(change func(snapshot *Snapshot)) {
	s.mu.Lock()
	change(&s.snapshot)
	subscribers := make([]chan struct{}, 0, len(s.subscribers))
	for ch := range s.subscribers {
		subscribers = append(subscribers, ch)
	}
	s.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
