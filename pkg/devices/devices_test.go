package devices

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/vai-studio/pkg/core/audio"
)

func TestMicArgs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		goos  string
		input []string
	}{
		{goos: "darwin", input: []string{"-f", "avfoundation", "-i", ":0"}},
		{goos: "linux", input: []string{"-f", "pulse", "-i", "default"}},
	}
	for _, tt := range tests {
		args, err := MicArgs(tt.goos, 16000)
		if err != nil {
			t.Fatalf("MicArgs(%s) error = %v", tt.goos, err)
		}
		want := append([]string{"-hide_banner", "-loglevel", "error"}, tt.input...)
		want = append(want, "-ac", "1", "-ar", "16000", "-f", "s16le", "-")
		if !reflect.DeepEqual(args, want) {
			t.Fatalf("MicArgs(%s) = %v, want %v", tt.goos, args, want)
		}
	}
	if _, err := MicArgs("windows", 16000); err == nil {
		t.Fatal("expected unsupported platform error")
	}
}

func TestPlayerArgs(t *testing.T) {
	t.Parallel()
	want := []string{"-nodisp", "-autoexit", "-loglevel", "error", "-f", "s16le", "-ar", "24000", "-ac", "1", "-i", "pipe:0"}
	if got := PlayerArgs(24000); !reflect.DeepEqual(got, want) {
		t.Fatalf("PlayerArgs() = %v, want %v", got, want)
	}
}

func TestPCMFrameReader(t *testing.T) {
	t.Parallel()
	pcm := audio.Float32ToPCM16([]float32{0.5, -0.5, 0.25})
	r := newPCMFrameReader(bytes.NewReader(append(pcm, 0x01)))

	frame := make([]float32, 2)
	n, err := r.Read(frame)
	if err != nil || n != 2 || frame[0] != 0.5 || frame[1] != -0.5 {
		t.Fatalf("Read() = %d, %v, frame %v", n, err, frame)
	}
	n, err = r.Read(frame)
	if err != nil || n != 1 || frame[0] != 0.25 {
		t.Fatalf("short Read() = %d, %v, frame %v", n, err, frame)
	}
	if _, err := r.Read(frame); !errors.Is(err, io.EOF) {
		t.Fatalf("Read() at end error = %v, want EOF", err)
	}
}

type fakeWriter struct {
	bytes.Buffer
	closed bool
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakePlayers struct {
	mu      sync.Mutex
	players []*fakeWriter
}

func (f *fakePlayers) start() (player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWriter{}
	f.players = append(f.players, w)
	return player{stdin: w, stop: w.Close}, nil
}

func TestPipeSink_CancelRestartsOnce(t *testing.T) {
	t.Parallel()
	f := &fakePlayers{}
	sink, err := newPipeSink(f.start)
	if err != nil {
		t.Fatalf("newPipeSink() error = %v", err)
	}

	_ = sink.Play(0, []byte{1, 2}, 0)
	_ = sink.Play(1, []byte{3, 4}, 0)
	for _, id := range []uint64{1, 0} {
		if err := sink.Cancel(id); err != nil {
			t.Fatalf("Cancel(%d) error = %v", id, err)
		}
	}
	if len(f.players) != 2 {
		t.Fatalf("players = %d, want one restart", len(f.players))
	}
	if !f.players[0].closed || f.players[0].String() != "\x01\x02\x03\x04" {
		t.Fatalf("first player closed=%v data=%q", f.players[0].closed, f.players[0].String())
	}

	_ = sink.Play(2, []byte{5, 6}, 0)
	if got := f.players[1].Bytes(); !bytes.Equal(got, []byte{5, 6}) {
		t.Fatalf("second player data = %v", got)
	}
	if err := sink.Cancel(1); err != nil || len(f.players) != 2 {
		t.Fatalf("stale cancel restarted the player")
	}

	_ = sink.Close()
	if err := sink.Play(3, []byte{7}, 0); !errors.Is(err, errSinkClosed) {
		t.Fatalf("Play() after Close error = %v", err)
	}
}

func TestTimedOutputOverPipeSink(t *testing.T) {
	t.Parallel()
	f := &fakePlayers{}
	sink, _ := newPipeSink(f.start)
	out := audio.NewTimedOutput(sink)
	sched := audio.NewScheduler(out)

	buf := audio.Buffer{Samples: make([]float32, 24000), SampleRate: 24000, Channels: 1}
	if _, err := sched.Schedule(buf); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	sched.Interrupt()
	select {
	case <-sched.Drained():
	case <-time.After(time.Second):
		t.Fatal("not drained after interrupt")
	}
	if len(f.players) != 2 {
		t.Fatalf("players = %d, want a restart on interrupt", len(f.players))
	}
	_ = out.Close()
}
