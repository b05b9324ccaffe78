package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/audio"
)

// ErrAlreadyActive is returned by Start while a run is in progress.
var ErrAlreadyActive = errors.New("live conversation already active")

const (
	eventQueueSize  = 64
	updateQueueSize = 256
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConnectConfig overrides the streaming session configuration.
func WithConnectConfig(cfg ConnectConfig) Option {
	return func(c *Controller) {
		c.cfg = cfg
	}
}

// WithRecorder reports status changes and scheduled audio to r.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// Controller runs live conversations, one at a time.
type Controller struct {
	connector Connector
	devices   Devices
	cfg       ConnectConfig
	logger    *slog.Logger
	recorder  Recorder

	mu          sync.Mutex
	status      Status
	err         error
	transcripts []Transcript
	run         *run

	updates chan Update
}

// NewController creates an idle controller.
func NewController(connector Connector, devices Devices, opts ...Option) *Controller {
	c := &Controller{
		connector: connector,
		devices:   devices,
		cfg:       DefaultConnectConfig(),
		logger:    slog.Default(),
		updates:   make(chan Update, updateQueueSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// run is one live conversation from Start to teardown.
type run struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	conn  Conn
	mic   Microphone
	out   OutputDevice
	sched *audio.Scheduler

	events      chan event
	pumpStarted atomic.Bool
	pumpDone    chan struct{}
	once        sync.Once
	finished    chan struct{}

	// Touched only by the dispatcher.
	input  strings.Builder
	output strings.Builder
}

// Updates streams status, transcript, level and playback updates. The
// channel is shared by every run and never closed. Updates are dropped when
// the reader falls behind.
func (c *Controller) Updates() <-chan Update { return c.updates }

// Status returns the current status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the error of the last failed run.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Active reports whether a run is connected.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run != nil && c.status == StatusConnected
}

// Transcripts returns the transcripts of the current or last run.
func (c *Controller) Transcripts() []Transcript {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transcript(nil), c.transcripts...)
}

// Toggle stops a run in progress or starts a new one.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	running := c.run != nil
	c.mu.Unlock()
	if running {
		c.Stop()
		return nil
	}
	return c.Start(ctx)
}

// Start opens the devices, connects and begins streaming. It returns once the
// session is connected or has failed. Cancelling ctx ends the run.
func (c *Controller) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	r := &run{
		id:       id,
		ctx:      runCtx,
		cancel:   cancel,
		logger:   c.logger.With("run_id", id),
		events:   make(chan event, eventQueueSize),
		pumpDone: make(chan struct{}),
		finished: make(chan struct{}),
	}

	c.mu.Lock()
	if c.run != nil {
		c.mu.Unlock()
		cancel()
		return ErrAlreadyActive
	}
	c.run = r
	c.err = nil
	c.transcripts = nil
	c.mu.Unlock()
	c.setStatus(r, StatusConnecting, nil)

	out, err := c.devices.OpenOutput(runCtx, audio.OutputSampleRate)
	if err != nil {
		return c.fail(r, core.NewDeviceError("could not open audio output", err))
	}
	r.out = out
	r.sched = audio.NewScheduler(out)
	r.sched.OnDrained(func() { c.emit(&DrainedUpdate{}) })

	mic, err := c.devices.OpenMicrophone(runCtx, audio.InputSampleRate)
	if err != nil {
		return c.fail(r, core.NewDeviceError("could not access the microphone", err))
	}
	r.mic = mic

	conn, err := c.connector.Connect(runCtx, c.cfg)
	if err != nil {
		return c.fail(r, fmt.Errorf("connect live session: %w", err))
	}
	r.conn = conn

	go c.dispatch(r)
	go c.read(r)
	go func() {
		select {
		case <-runCtx.Done():
			c.teardown(r)
		case <-r.finished:
		}
	}()
	r.logger.Info("live session connecting", "model", c.cfg.Model)
	return nil
}

// Stop ends the current run. It is safe to call at any time and more than once.
func (c *Controller) Stop() {
	c.mu.Lock()
	r := c.run
	c.mu.Unlock()
	if r != nil {
		c.teardown(r)
	}
}

func (c *Controller) fail(r *run, err error) error {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	r.logger.Error("live session failed", "error", err)
	c.setStatus(r, StatusError, err)
	c.teardown(r)
	return err
}

// read pushes connection events onto the queue.
func (c *Controller) read(r *run) {
	if !r.push(openEvent{}) {
		return
	}
	for {
		msg, err := r.conn.Receive(r.ctx)
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				r.push(closeEvent{})
			} else {
				r.push(errorEvent{err: err})
			}
			return
		}
		if msg != nil && !r.push(messageEvent{msg: msg}) {
			return
		}
	}
}

func (r *run) push(ev event) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// dispatch is the single consumer of the event queue.
func (c *Controller) dispatch(r *run) {
	for {
		select {
		case <-r.ctx.Done():
			return
		case ev := <-r.events:
			switch ev := ev.(type) {
			case openEvent:
				if r.ctx.Err() != nil {
					return
				}
				r.pumpStarted.Store(true)
				go c.pump(r)
				c.setStatus(r, StatusConnected, nil)
				r.logger.Info("live session opened")
			case messageEvent:
				c.handleMessage(r, ev.msg)
			case errorEvent:
				err := fmt.Errorf("live session: %w", ev.err)
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
				r.logger.Error("live session error", "error", ev.err)
				c.setStatus(r, StatusError, err)
				c.teardown(r)
				return
			case closeEvent:
				r.logger.Info("live session closed by server")
				c.teardown(r)
				return
			}
		}
	}
}

// pump streams microphone frames upstream.
func (c *Controller) pump(r *run) {
	defer close(r.pumpDone)
	frame := make([]float32, audio.FrameSize)
	for {
		n, err := r.mic.Read(frame)
		if r.ctx.Err() != nil {
			return
		}
		if err != nil {
			r.push(errorEvent{err: core.NewDeviceError("microphone stopped", err)})
			return
		}
		if n == 0 {
			continue
		}
		samples := frame[:n]
		c.emit(&InputLevelUpdate{Level: audio.RMS(samples)})
		if err := r.conn.SendAudio(r.ctx, frameBlob(samples)); err != nil {
			if r.ctx.Err() != nil {
				return
			}
			r.push(errorEvent{err: fmt.Errorf("send audio: %w", err)})
			return
		}
	}
}

// teardown releases every resource of r exactly once. Errors are logged.
func (c *Controller) teardown(r *run) {
	r.once.Do(func() {
		r.cancel()
		var errs error
		if r.conn != nil {
			errs = multierr.Append(errs, r.conn.Close())
		}
		if r.mic != nil {
			errs = multierr.Append(errs, r.mic.Close())
		}
		if r.pumpStarted.Load() {
			<-r.pumpDone
		}
		if r.sched != nil {
			r.sched.Interrupt()
		}
		if r.out != nil {
			errs = multierr.Append(errs, r.out.Close())
		}
		close(r.finished)
		if errs != nil {
			r.logger.Warn("live teardown incomplete", "error", errs)
		}

		c.mu.Lock()
		owned := c.run == r
		final := StatusEnded
		if c.status == StatusError {
			final = StatusError
		}
		changed := owned && c.status != final
		if owned {
			c.run = nil
			c.status = final
		}
		c.mu.Unlock()
		if changed {
			c.statusChanged(r, final, nil)
		}
		r.logger.Info("live session ended", "status", final.String())
	})
}

func (c *Controller) setStatus(r *run, status Status, err error) {
	c.mu.Lock()
	if c.run != r {
		c.mu.Unlock()
		return
	}
	changed := c.status != status
	c.status = status
	c.mu.Unlock()
	if changed {
		c.statusChanged(r, status, err)
	}
}

func (c *Controller) statusChanged(r *run, status Status, err error) {
	if c.recorder != nil {
		c.recorder.LiveStatus(status.String())
	}
	u := &StatusUpdate{RunID: r.id, Status: status}
	if err != nil {
		u.Error = err.Error()
	}
	c.emit(u)
}

func (c *Controller) emit(u Update) {
	select {
	case c.updates <- u:
	default:
		c.logger.Debug("live update dropped", "type", u.UpdateType())
	}
}
