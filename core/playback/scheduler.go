// Package playback schedules decoded output audio for gapless sequential
// playback against the output device clock.
package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/koscakluka/ema-trial/core/audio"
)

// Handle is one scheduled unit of output audio.
type Handle interface {
	// Stop halts the unit whether it is playing or still queued. The ended
	// callback passed to [Output.Play] is not invoked for stopped units.
	Stop()
}

// Output is an open output audio context.
type Output interface {
	// Now reports the monotonic output clock: how much audio the device has
	// rendered since it was opened.
	Now() time.Duration
	// Play queues buf to start at the given output clock position. onEnded is
	// called once the unit finished playing naturally.
	Play(buf audio.Buffer, at time.Duration, onEnded func()) (Handle, error)
	SampleRate() int
	Close() error
}

var ErrNoOutput = errors.New("no output configured")

// Scheduler keeps a start-time cursor on the output clock so chunks play back
// to back in arrival order. The cursor absorbs network jitter: a chunk that
// arrives early is queued behind the previous one, a chunk that arrives late
// starts immediately.
type Scheduler struct {
	mu     sync.Mutex
	output Output
	cursor time.Duration
	active map[*entry]struct{}
}

type entry struct {
	handle Handle
}

func NewScheduler(output Output) *Scheduler {
	return &Scheduler{output: output, active: map[*entry]struct{}{}}
}

// Schedule queues buf right after everything that is already scheduled and
// returns the start time that was chosen for it.
func (s *Scheduler) Schedule(buf audio.Buffer) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.output == nil {
		return 0, ErrNoOutput
	}

	startAt := max(s.cursor, s.output.Now())
	e := &entry{}
	handle, err := s.output.Play(buf, startAt, func() { s.release(e) })
	if err != nil {
		return 0, err
	}

	e.handle = handle
	s.cursor = startAt + buf.Duration()
	s.active[e] = struct{}{}
	return startAt, nil
}

func (s *Scheduler) release(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, e)
}

// StopAll halts every active unit, forgets them and rewinds the cursor. It is
// safe to call repeatedly and with nothing scheduled.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	active := s.active
	s.active = map[*entry]struct{}{}
	s.cursor = 0
	s.mu.Unlock()

	for e := range active {
		if e.handle != nil {
			e.handle.Stop()
		}
	}
}

// Active is the number of units that are playing or queued.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
