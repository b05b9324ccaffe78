package audio

import (
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu        sync.Mutex
	played    []time.Duration
	bytes     int
	cancelled []uint64
	closed    int
}

func (s *recordingSink) Play(id uint64, pcm []byte, at time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.played = append(s.played, at)
	s.bytes += len(pcm)
	return nil
}

func (s *recordingSink) Cancel(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, id)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func TestTimedOutput_EndedFiresAfterDuration(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	out := NewTimedOutput(sink)
	defer out.Close()

	ended := make(chan struct{})
	_, err := out.Start(monoBuffer(20*time.Millisecond), out.CurrentTime(), func() { close(ended) })
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("ended callback did not fire")
	}
	if sink.bytes != 20*OutputSampleRate/1000*2 {
		t.Fatalf("sink bytes=%d", sink.bytes)
	}
}

func TestTimedOutput_StopCancelsSink(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	out := NewTimedOutput(sink)

	var endedCount int
	var mu sync.Mutex
	src, err := out.Start(monoBuffer(time.Minute), 0, func() {
		mu.Lock()
		endedCount++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	src.Stop()
	src.Stop()

	mu.Lock()
	if endedCount != 1 {
		t.Fatalf("ended count=%d, want 1", endedCount)
	}
	mu.Unlock()
	if len(sink.cancelled) != 1 {
		t.Fatalf("cancelled=%v, want one id", sink.cancelled)
	}

	if err := out.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	_ = out.Close()
	if sink.closed != 1 {
		t.Fatalf("sink closed %d times, want 1", sink.closed)
	}
	if _, err := out.Start(monoBuffer(time.Millisecond), 0, nil); err != ErrOutputClosed {
		t.Fatalf("Start after close err=%v, want %v", err, ErrOutputClosed)
	}
}

func TestTimedOutput_WithClock(t *testing.T) {
	base := time.Unix(100, 0)
	now := base
	out := NewTimedOutput(&recordingSink{}, WithClock(func() time.Time { return now }))
	now = base.Add(750 * time.Millisecond)
	if got := out.CurrentTime(); got != 750*time.Millisecond {
		t.Fatalf("CurrentTime=%v, want 750ms", got)
	}
}

func TestSchedulerOverTimedOutput_CloseDrains(t *testing.T) {
	t.Parallel()

	out := NewTimedOutput(&recordingSink{})
	s := NewScheduler(out)
	if _, err := s.Schedule(monoBuffer(time.Minute)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	drained := s.Drained()
	_ = out.Close()

	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("closing the output did not drain the scheduler")
	}
}
