package audio

import (
	"errors"
	"sync"
	"time"
)

// Sink receives scheduled PCM16 for a device. FIFO sinks can write Play data
// straight away: the scheduler only ever places a buffer right after the
// previous one or at the current clock time.
type Sink interface {
	Play(id uint64, pcm []byte, at time.Duration) error
	Cancel(id uint64) error
	Close() error
}

// ErrOutputClosed is returned by Start after Close.
var ErrOutputClosed = errors.New("audio: output closed")

// TimedOutput implements Output over a Sink using a monotonic clock.
type TimedOutput struct {
	sink  Sink
	now   func() time.Time
	epoch time.Time

	mu      sync.Mutex
	nextID  uint64
	sources map[uint64]*timedSource
	closed  bool
}

// OutputOption configures a TimedOutput.
type OutputOption func(*TimedOutput)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) OutputOption {
	return func(o *TimedOutput) {
		if now != nil {
			o.now = now
		}
	}
}

// NewTimedOutput opens an output context whose clock starts now.
func NewTimedOutput(sink Sink, opts ...OutputOption) *TimedOutput {
	o := &TimedOutput{
		sink:    sink,
		now:     time.Now,
		sources: make(map[uint64]*timedSource),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.epoch = o.now()
	return o
}

// CurrentTime implements Output.
func (o *TimedOutput) CurrentTime() time.Duration {
	return o.now().Sub(o.epoch)
}

type timedSource struct {
	out     *TimedOutput
	id      uint64
	once    sync.Once
	timer   *time.Timer
	onEnded func()
}

// Start implements Output.
func (o *TimedOutput) Start(buf Buffer, at time.Duration, onEnded func()) (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrOutputClosed
	}

	id := o.nextID
	o.nextID++
	if err := o.sink.Play(id, buf.PCM16(), at); err != nil {
		return nil, err
	}

	src := &timedSource{out: o, id: id, onEnded: onEnded}
	wait := at + buf.Duration() - o.CurrentTime()
	if wait < 0 {
		wait = 0
	}
	o.sources[id] = src
	src.timer = time.AfterFunc(wait, func() { src.finish(false) })
	return src, nil
}

// Stop implements Source.
func (s *timedSource) Stop() {
	s.finish(true)
}

func (s *timedSource) finish(cancelled bool) {
	s.once.Do(func() {
		s.out.mu.Lock()
		delete(s.out.sources, s.id)
		timer := s.timer
		s.out.mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		if cancelled {
			_ = s.out.sink.Cancel(s.id)
		}
		if s.onEnded != nil {
			s.onEnded()
		}
	})
}

// Close stops every pending source and closes the sink. It is safe to call twice.
func (o *TimedOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	pending := make([]*timedSource, 0, len(o.sources))
	for _, src := range o.sources {
		pending = append(pending, src)
	}
	o.mu.Unlock()

	for _, src := range pending {
		src.Stop()
	}
	return o.sink.Close()
}
