package audio

import (
	"errors"
	"sync"
	"time"
)

// Output is an audio output context with its own clock.
type Output interface {
	// CurrentTime is the output clock, starting at zero when the context opens.
	CurrentTime() time.Duration

	// Start schedules buf to begin at the given clock time. onEnded is called
	// once the source finishes or is stopped; it must not be called before
	// Start returns.
	Start(buf Buffer, at time.Duration, onEnded func()) (Source, error)
}

// Source is a scheduled buffer.
type Source interface {
	Stop()
}

// ErrNoOutput is returned when scheduling without an output context.
var ErrNoOutput = errors.New("audio: no output context")

// Scheduler queues buffers back to back on an Output. Each buffer starts at
// max(cursor, now); the cursor then advances by the buffer's duration.
type Scheduler struct {
	mu      sync.Mutex
	out     Output
	cursor  time.Duration
	nextID  uint64
	sources map[uint64]Source
	drained chan struct{}

	onDrained func()
}

// NewScheduler creates a scheduler over out.
func NewScheduler(out Output) *Scheduler {
	drained := make(chan struct{})
	close(drained)
	return &Scheduler{
		out:     out,
		sources: make(map[uint64]Source),
		drained: drained,
	}
}

// OnDrained registers fn to run each time the last tracked source ends.
func (s *Scheduler) OnDrained(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDrained = fn
}

// Schedule starts buf at the next gapless position and returns its start time.
func (s *Scheduler) Schedule(buf Buffer) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return 0, ErrNoOutput
	}

	start := s.cursor
	if now := s.out.CurrentTime(); now > start {
		start = now
	}

	id := s.nextID
	s.nextID++
	src, err := s.out.Start(buf, start, func() { s.ended(id) })
	if err != nil {
		return 0, err
	}
	if len(s.sources) == 0 {
		s.drained = make(chan struct{})
	}
	s.sources[id] = src
	s.cursor = start + buf.Duration()
	return start, nil
}

func (s *Scheduler) ended(id uint64) {
	s.mu.Lock()
	if _, ok := s.sources[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sources, id)
	fn := s.markDrainedLocked()
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// markDrainedLocked closes the drained channel if nothing is tracked and
// returns the callback to run after unlocking.
func (s *Scheduler) markDrainedLocked() func() {
	if len(s.sources) != 0 {
		return nil
	}
	select {
	case <-s.drained:
		return nil
	default:
	}
	close(s.drained)
	return s.onDrained
}

// Interrupt stops every tracked source, forgets them and resets the cursor
// so the next buffer starts immediately.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	stopping := make([]Source, 0, len(s.sources))
	for id, src := range s.sources {
		stopping = append(stopping, src)
		delete(s.sources, id)
	}
	s.cursor = 0
	fn := s.markDrainedLocked()
	s.mu.Unlock()

	for _, src := range stopping {
		src.Stop()
	}
	if fn != nil {
		fn()
	}
}

// Drained returns a channel that is closed once no scheduled source remains.
// While idle the returned channel is already closed.
func (s *Scheduler) Drained() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drained
}

// Active is the number of tracked sources.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}

// Cursor is the time at which the next gapless buffer would start.
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
