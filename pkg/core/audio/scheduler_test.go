package audio

import (
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	out     *fakeOutput
	at      time.Duration
	dur     time.Duration
	onEnded func()
	stopped bool
}

func (s *fakeSource) Stop() {
	s.out.mu.Lock()
	s.stopped = true
	s.out.mu.Unlock()
}

// fakeOutput is a manually clocked output context.
type fakeOutput struct {
	mu      sync.Mutex
	now     time.Duration
	started []*fakeSource
}

func (o *fakeOutput) CurrentTime() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *fakeOutput) Start(buf Buffer, at time.Duration, onEnded func()) (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	src := &fakeSource{out: o, at: at, dur: buf.Duration(), onEnded: onEnded}
	o.started = append(o.started, src)
	return src, nil
}

func (o *fakeOutput) advance(d time.Duration) {
	o.mu.Lock()
	o.now += d
	var due []*fakeSource
	for _, s := range o.started {
		if !s.stopped && s.onEnded != nil && s.at+s.dur <= o.now {
			due = append(due, s)
		}
	}
	for _, s := range due {
		s.stopped = true
	}
	o.mu.Unlock()
	for _, s := range due {
		s.onEnded()
	}
}

func monoBuffer(d time.Duration) Buffer {
	frames := int(d * OutputSampleRate / time.Second)
	return Buffer{Samples: make([]float32, frames), SampleRate: OutputSampleRate, Channels: 1}
}

func TestScheduler_GaplessAcrossAsyncArrivals(t *testing.T) {
	t.Parallel()

	out := &fakeOutput{now: 50 * time.Millisecond}
	s := NewScheduler(out)

	d1, d2, d3 := 200*time.Millisecond, 120*time.Millisecond, 300*time.Millisecond

	start1, err := s.Schedule(monoBuffer(d1))
	if err != nil {
		t.Fatalf("Schedule 1: %v", err)
	}
	if start1 != 50*time.Millisecond {
		t.Fatalf("start1=%v, want the current clock 50ms", start1)
	}

	out.advance(30 * time.Millisecond)
	start2, _ := s.Schedule(monoBuffer(d2))

	out.advance(90 * time.Millisecond)
	start3, _ := s.Schedule(monoBuffer(d3))

	if start2 != start1+d1 {
		t.Fatalf("start2=%v, want %v", start2, start1+d1)
	}
	if start3 != start2+d2 {
		t.Fatalf("start3=%v, want %v", start3, start2+d2)
	}
}

func TestScheduler_LateArrivalStartsAtClock(t *testing.T) {
	t.Parallel()

	out := &fakeOutput{}
	s := NewScheduler(out)
	_, _ = s.Schedule(monoBuffer(100 * time.Millisecond))

	out.advance(time.Second)
	start, _ := s.Schedule(monoBuffer(100 * time.Millisecond))
	if start != time.Second {
		t.Fatalf("start=%v, want 1s", start)
	}
}

func TestScheduler_InterruptStopsAllAndResetsCursor(t *testing.T) {
	t.Parallel()

	out := &fakeOutput{}
	s := NewScheduler(out)
	for i := 0; i < 3; i++ {
		if _, err := s.Schedule(monoBuffer(time.Second)); err != nil {
			t.Fatalf("Schedule: %v", err)
		}
	}
	if s.Cursor() != 3*time.Second {
		t.Fatalf("Cursor=%v, want 3s", s.Cursor())
	}

	out.advance(500 * time.Millisecond)
	s.Interrupt()

	for i, src := range out.started {
		if !src.stopped {
			t.Fatalf("source %d not stopped", i)
		}
	}
	if s.Active() != 0 {
		t.Fatalf("Active=%d, want 0", s.Active())
	}
	if s.Cursor() != 0 {
		t.Fatalf("Cursor=%v, want 0", s.Cursor())
	}

	start, _ := s.Schedule(monoBuffer(time.Second))
	if start != 500*time.Millisecond {
		t.Fatalf("start after interrupt=%v, want the current clock 500ms", start)
	}
}

func TestScheduler_DrainedSignal(t *testing.T) {
	t.Parallel()

	out := &fakeOutput{}
	s := NewScheduler(out)

	select {
	case <-s.Drained():
	default:
		t.Fatal("idle scheduler should report drained")
	}

	var calls int
	s.OnDrained(func() { calls++ })

	_, _ = s.Schedule(monoBuffer(100 * time.Millisecond))
	_, _ = s.Schedule(monoBuffer(100 * time.Millisecond))
	drained := s.Drained()

	out.advance(150 * time.Millisecond)
	select {
	case <-drained:
		t.Fatal("drained fired while a source is still playing")
	default:
	}

	out.advance(100 * time.Millisecond)
	select {
	case <-drained:
	default:
		t.Fatal("drained did not fire after the last source ended")
	}
	if calls != 1 {
		t.Fatalf("OnDrained calls=%d, want 1", calls)
	}
}

func TestScheduler_NoOutput(t *testing.T) {
	s := NewScheduler(nil)
	if _, err := s.Schedule(monoBuffer(time.Millisecond)); err != ErrNoOutput {
		t.Fatalf("err=%v, want %v", err, ErrNoOutput)
	}
}
