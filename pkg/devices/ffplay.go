package devices

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// player is a running playback process.
type player struct {
	stdin io.WriteCloser
	stop  func() error
}

type startFunc func() (player, error)

// PipeSink implements audio.Sink by writing PCM to a player process in
// arrival order. Cancelling restarts the process, which drops whatever it had
// buffered; cancels of buffers written before the restart are no-ops.
type PipeSink struct {
	start startFunc

	mu      sync.Mutex
	cur     player
	epoch   uint64
	maxID   uint64
	written bool
	closed  bool
}

// NewFFplaySink starts ffplay reading mono s16le at rate from stdin.
func NewFFplaySink(path string, rate int) (*PipeSink, error) {
	if path == "" {
		path = "ffplay"
	}
	if _, err := exec.LookPath(path); err != nil {
		return nil, errors.New("ffplay is required for audio playback (install ffmpeg/ffplay and ensure it is in PATH)")
	}
	return newPipeSink(func() (player, error) {
		cmd := exec.Command(path, PlayerArgs(rate)...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return player{}, fmt.Errorf("open ffplay stdin: %w", err)
		}
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
		if err := cmd.Start(); err != nil {
			return player{}, fmt.Errorf("start ffplay: %w", err)
		}
		return player{stdin: stdin, stop: func() error {
			_ = stdin.Close()
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return nil
		}}, nil
	})
}

// PlayerArgs returns the ffplay arguments for mono s16le at rate on stdin.
func PlayerArgs(rate int) []string {
	return []string{
		"-nodisp",
		"-autoexit",
		"-loglevel", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(rate),
		"-ac", "1",
		"-i", "pipe:0",
	}
}

func newPipeSink(start startFunc) (*PipeSink, error) {
	cur, err := start()
	if err != nil {
		return nil, err
	}
	return &PipeSink{start: start, cur: cur}, nil
}

// Play implements audio.Sink. Buffers arrive back to back, so the player
// only needs them in order.
func (s *PipeSink) Play(id uint64, pcm []byte, at time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	if _, err := s.cur.stdin.Write(pcm); err != nil {
		return fmt.Errorf("write playback: %w", err)
	}
	if !s.written || id > s.maxID {
		s.maxID = id
	}
	s.written = true
	return nil
}

// Cancel implements audio.Sink.
func (s *PipeSink) Cancel(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.written || id < s.epoch {
		return nil
	}
	_ = s.cur.stop()
	next, err := s.start()
	if err != nil {
		s.closed = true
		return err
	}
	s.cur = next
	s.epoch = s.maxID + 1
	s.written = false
	return nil
}

// Close implements audio.Sink.
func (s *PipeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.cur.stop()
}

var errSinkClosed = errors.New("playback sink closed")
