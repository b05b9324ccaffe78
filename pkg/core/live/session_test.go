package live

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
)

type fakeConn struct {
	msgs chan *ServerMessage
	errs chan error

	mu     sync.Mutex
	sent   []audio.Blob
	closes int
	closed chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		msgs:   make(chan *ServerMessage, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) SendAudio(ctx context.Context, blob audio.Blob) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, blob)
	return nil
}

func (c *fakeConn) Receive(ctx context.Context) (*ServerMessage, error) {
	select {
	case msg, ok := <-c.msgs:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	case err := <-c.errs:
		return nil, err
	case <-c.closed:
		return nil, errors.New("use of closed connection")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if c.closes == 1 {
		close(c.closed)
	}
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeConn) sentBlobs() []audio.Blob {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audio.Blob(nil), c.sent...)
}

type fakeConnector struct {
	conn  *fakeConn
	err   error
	calls int
	cfg   ConnectConfig
}

func (f *fakeConnector) Connect(ctx context.Context, cfg ConnectConfig) (Conn, error) {
	f.calls++
	f.cfg = cfg
	if f.err != nil {
		return nil, f.err
	}
	return f.conn, nil
}

type fakeMic struct {
	frames chan []float32
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	closes int
}

func newFakeMic() *fakeMic {
	return &fakeMic{frames: make(chan []float32, 4), done: make(chan struct{})}
}

func (m *fakeMic) Read(frame []float32) (int, error) {
	select {
	case f := <-m.frames:
		return copy(frame, f), nil
	case <-m.done:
		return 0, errors.New("microphone closed")
	}
}

func (m *fakeMic) Close() error {
	m.mu.Lock()
	m.closes++
	m.mu.Unlock()
	m.once.Do(func() { close(m.done) })
	return nil
}

func (m *fakeMic) closeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

type fakeSource struct {
	at      time.Duration
	dur     time.Duration
	onEnded func()
	mu      *sync.Mutex
	stopped bool
}

func (s *fakeSource) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

type fakeOutput struct {
	mu      sync.Mutex
	started []*fakeSource
	closes  int
}

func (o *fakeOutput) CurrentTime() time.Duration { return 0 }

func (o *fakeOutput) Start(buf audio.Buffer, at time.Duration, onEnded func()) (audio.Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	src := &fakeSource{at: at, dur: buf.Duration(), onEnded: onEnded, mu: &o.mu}
	o.started = append(o.started, src)
	return src, nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closes++
	return nil
}

func (o *fakeOutput) closeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closes
}

func (o *fakeOutput) snapshot() []fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]fakeSource, len(o.started))
	for i, s := range o.started {
		out[i] = fakeSource{at: s.at, dur: s.dur, stopped: s.stopped}
	}
	return out
}

type fakeDevices struct {
	out    *fakeOutput
	mic    *fakeMic
	micErr error
	outErr error
	rates  []int
}

func (d *fakeDevices) OpenOutput(ctx context.Context, rate int) (OutputDevice, error) {
	d.rates = append(d.rates, rate)
	if d.outErr != nil {
		return nil, d.outErr
	}
	return d.out, nil
}

func (d *fakeDevices) OpenMicrophone(ctx context.Context, rate int) (Microphone, error) {
	d.rates = append(d.rates, rate)
	if d.micErr != nil {
		return nil, d.micErr
	}
	return d.mic, nil
}

type harness struct {
	ctl       *Controller
	conn      *fakeConn
	connector *fakeConnector
	devices   *fakeDevices
}

func newHarness() *harness {
	conn := newFakeConn()
	h := &harness{
		conn:      conn,
		connector: &fakeConnector{conn: conn},
		devices:   &fakeDevices{out: &fakeOutput{}, mic: newFakeMic()},
	}
	h.ctl = NewController(h.connector, h.devices)
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.ctl.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "connected", func() bool { return h.ctl.Status() == StatusConnected })
}

// pcmBlob encodes n samples at the output rate.
func pcmBlob(n int) audio.Blob {
	return audio.EncodeBlob(make([]float32, n), audio.OutputSampleRate)
}

func TestController_StartConnects(t *testing.T) {
	h := newHarness()
	h.start(t)
	defer h.ctl.Stop()

	if !h.ctl.Active() {
		t.Fatal("Active() = false after open")
	}
	if len(h.devices.rates) != 2 || h.devices.rates[0] != 24000 || h.devices.rates[1] != 16000 {
		t.Fatalf("device rates=%v, want [24000 16000]", h.devices.rates)
	}
	if h.connector.cfg.Model == "" || !h.connector.cfg.InputTranscription || !h.connector.cfg.OutputTranscription {
		t.Fatalf("connect config=%+v", h.connector.cfg)
	}
	if err := h.ctl.Start(context.Background()); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyActive", err)
	}
}

func TestController_CapturePump(t *testing.T) {
	h := newHarness()
	h.start(t)
	defer h.ctl.Stop()

	frame := make([]float32, audio.FrameSize)
	for i := range frame {
		frame[i] = 0.5
	}
	h.devices.mic.frames <- frame

	waitFor(t, "audio sent", func() bool { return len(h.conn.sentBlobs()) == 1 })
	blob := h.conn.sentBlobs()[0]
	if blob.MIMEType != "audio/pcm;rate=16000" {
		t.Fatalf("MIMEType=%q", blob.MIMEType)
	}
	buf, err := audio.DecodeBuffer(blob.Data, audio.InputSampleRate, 1)
	if err != nil || buf.Frames() != audio.FrameSize {
		t.Fatalf("decoded frames=%d err=%v", buf.Frames(), err)
	}

	waitFor(t, "level update", func() bool {
		for {
			select {
			case u := <-h.ctl.Updates():
				if lvl, ok := u.(*InputLevelUpdate); ok {
					return lvl.Level > 0.49 && lvl.Level < 0.51
				}
			default:
				return false
			}
		}
	})
}

func TestController_TranscriptsFlushOnTurnComplete(t *testing.T) {
	h := newHarness()
	h.start(t)
	defer h.ctl.Stop()

	h.conn.msgs <- &ServerMessage{InputTranscript: " Hello"}
	h.conn.msgs <- &ServerMessage{InputTranscript: " there ", OutputTranscript: "Hi!"}
	h.conn.msgs <- &ServerMessage{OutputTranscript: " How can I help?", TurnComplete: true}
	h.conn.msgs <- &ServerMessage{OutputTranscript: "   ", TurnComplete: true}

	waitFor(t, "transcripts", func() bool { return len(h.ctl.Transcripts()) == 2 })
	got := h.ctl.Transcripts()
	want := []Transcript{
		{Speaker: SpeakerUser, Text: "Hello there"},
		{Speaker: SpeakerModel, Text: "Hi! How can I help?"},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Transcripts()[%d]=%+v, want %+v", i, got[i], want[i])
		}
	}
	time.Sleep(10 * time.Millisecond)
	if len(h.ctl.Transcripts()) != 2 {
		t.Fatalf("whitespace-only turn produced a transcript: %+v", h.ctl.Transcripts())
	}
}

func TestController_AudioGaplessAndInterrupt(t *testing.T) {
	h := newHarness()
	h.start(t)
	defer h.ctl.Stop()

	h.conn.msgs <- &ServerMessage{Audio: []audio.Blob{pcmBlob(2400), pcmBlob(4800)}}
	h.conn.msgs <- &ServerMessage{Audio: []audio.Blob{pcmBlob(2400)}}

	waitFor(t, "three sources", func() bool { return len(h.devices.out.snapshot()) == 3 })
	srcs := h.devices.out.snapshot()
	if srcs[0].at != 0 || srcs[1].at != 100*time.Millisecond || srcs[2].at != 300*time.Millisecond {
		t.Fatalf("starts=%v %v %v, want 0 100ms 300ms", srcs[0].at, srcs[1].at, srcs[2].at)
	}

	h.conn.msgs <- &ServerMessage{Interrupted: true}
	waitFor(t, "sources stopped", func() bool {
		for _, s := range h.devices.out.snapshot() {
			if !s.stopped {
				return false
			}
		}
		return true
	})

	h.conn.msgs <- &ServerMessage{Audio: []audio.Blob{pcmBlob(2400)}}
	waitFor(t, "fourth source", func() bool { return len(h.devices.out.snapshot()) == 4 })
	if at := h.devices.out.snapshot()[3].at; at != 0 {
		t.Fatalf("post-interrupt start=%v, want 0", at)
	}
}

func TestController_StopIsIdempotent(t *testing.T) {
	h := newHarness()
	h.start(t)
	h.conn.msgs <- &ServerMessage{Audio: []audio.Blob{pcmBlob(2400)}}
	waitFor(t, "source", func() bool { return len(h.devices.out.snapshot()) == 1 })

	h.ctl.Stop()
	h.ctl.Stop()

	if h.ctl.Status() != StatusEnded {
		t.Fatalf("Status()=%s, want ended", h.ctl.Status())
	}
	if h.ctl.Active() {
		t.Fatal("Active() after Stop")
	}
	if h.conn.closeCount() != 1 || h.devices.mic.closeCount() != 1 || h.devices.out.closeCount() != 1 {
		t.Fatalf("closes conn=%d mic=%d out=%d, want 1 each", h.conn.closeCount(), h.devices.mic.closeCount(), h.devices.out.closeCount())
	}
	if !h.devices.out.snapshot()[0].stopped {
		t.Fatal("playback not stopped on teardown")
	}
}

func TestController_MicrophoneDenied(t *testing.T) {
	h := newHarness()
	h.devices.micErr = errors.New("permission denied")

	err := h.ctl.Start(context.Background())
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrDevice {
		t.Fatalf("Start() error = %v, want device error", err)
	}
	if h.ctl.Status() != StatusError || h.ctl.Err() == nil {
		t.Fatalf("Status()=%s Err()=%v", h.ctl.Status(), h.ctl.Err())
	}
	if h.connector.calls != 0 {
		t.Fatal("connected without a microphone")
	}
	if h.devices.out.closeCount() != 1 {
		t.Fatalf("output closes=%d, want 1", h.devices.out.closeCount())
	}

	// A new run can start after the failure.
	h.devices.micErr = nil
	h.start(t)
	h.ctl.Stop()
}

func TestController_ConnectFailure(t *testing.T) {
	h := newHarness()
	h.connector.err = errors.New("dial failed")
	if err := h.ctl.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail")
	}
	if h.ctl.Status() != StatusError {
		t.Fatalf("Status()=%s, want error", h.ctl.Status())
	}
	if h.devices.mic.closeCount() != 1 || h.devices.out.closeCount() != 1 {
		t.Fatalf("devices not released: mic=%d out=%d", h.devices.mic.closeCount(), h.devices.out.closeCount())
	}
}

func TestController_ServerErrorKeepsErrorStatus(t *testing.T) {
	h := newHarness()
	h.start(t)

	h.conn.errs <- errors.New("stream reset")
	waitFor(t, "teardown", func() bool { return h.conn.closeCount() == 1 && !h.ctl.Active() })
	waitFor(t, "error status", func() bool { return h.ctl.Status() == StatusError })
	if h.ctl.Err() == nil {
		t.Fatal("Err() = nil after server error")
	}
	h.ctl.Stop()
	if h.ctl.Status() != StatusError {
		t.Fatalf("Stop after error changed status to %s", h.ctl.Status())
	}
}

func TestController_ServerCloseEnds(t *testing.T) {
	h := newHarness()
	h.start(t)
	close(h.conn.msgs)
	waitFor(t, "ended", func() bool { return h.ctl.Status() == StatusEnded })
	if h.devices.mic.closeCount() != 1 {
		t.Fatalf("mic closes=%d, want 1", h.devices.mic.closeCount())
	}
}

func TestController_ContextCancelTearsDown(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	if err := h.ctl.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "connected", func() bool { return h.ctl.Status() == StatusConnected })
	cancel()
	waitFor(t, "ended", func() bool { return h.ctl.Status() == StatusEnded })
	if h.devices.out.closeCount() != 1 {
		t.Fatalf("output closes=%d, want 1", h.devices.out.closeCount())
	}
}

func TestController_Toggle(t *testing.T) {
	h := newHarness()
	if err := h.ctl.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle() start error = %v", err)
	}
	waitFor(t, "connected", func() bool { return h.ctl.Status() == StatusConnected })
	if err := h.ctl.Toggle(context.Background()); err != nil {
		t.Fatalf("Toggle() stop error = %v", err)
	}
	if h.ctl.Status() != StatusEnded {
		t.Fatalf("Status()=%s, want ended", h.ctl.Status())
	}
}
