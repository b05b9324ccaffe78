package devices

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-studio/pkg/core/audio"
	"github.com/vango-go/vai-studio/pkg/core/live"
)

const (
	micQueueSize      = 64
	outboundQueueSize = 256
	priorityQueueSize = 16
	controlQueueSize  = 8
)

// ErrBackpressure is returned when the browser is not reading fast enough.
var ErrBackpressure = errors.New("bridge outbound backpressure")

// ErrBridgeClosed is returned once the websocket has gone away.
var ErrBridgeClosed = errors.New("bridge closed")

// BridgeConfig holds websocket timing and size limits.
type BridgeConfig struct {
	PingInterval  time.Duration
	WriteTimeout  time.Duration
	MaxFrameBytes int64
}

func (c BridgeConfig) withDefaults() BridgeConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = 20 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = 64 << 10
	}
	return c
}

var _ live.Devices = (*Bridge)(nil)

// Bridge exposes a browser's microphone and speaker over one websocket.
// Binary frames from the browser carry s16le microphone audio; text frames
// are control messages. Everything sent to the browser is JSON.
type Bridge struct {
	ws     *websocket.Conn
	cfg    BridgeConfig
	logger *slog.Logger

	mic      chan []byte
	controls chan ControlFrame
	normal   chan []byte
	priority chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

// NewBridge wraps an upgraded websocket.
func NewBridge(ws *websocket.Conn, cfg BridgeConfig, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		ws:       ws,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		mic:      make(chan []byte, micQueueSize),
		controls: make(chan ControlFrame, controlQueueSize),
		normal:   make(chan []byte, outboundQueueSize),
		priority: make(chan []byte, priorityQueueSize),
		done:     make(chan struct{}),
	}
}

// Controls delivers start and stop requests from the browser.
func (b *Bridge) Controls() <-chan ControlFrame { return b.controls }

// Done is closed once the bridge has shut down.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Run serves the websocket until ctx ends or the browser disconnects.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer b.shutdown()

	writerErr := make(chan error, 1)
	go func() { writerErr <- b.writeLoop(ctx) }()

	readErr := make(chan error, 1)
	go func() { readErr <- b.readLoop() }()

	select {
	case err := <-readErr:
		cancel()
		<-writerErr
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil
		}
		return err
	case err := <-writerErr:
		_ = b.ws.Close()
		<-readErr
		return err
	case <-ctx.Done():
		<-writerErr
		<-readErr
		return nil
	}
}

func (b *Bridge) shutdown() {
	b.closeOnce.Do(func() { close(b.done) })
}

func (b *Bridge) readLoop() error {
	b.ws.SetReadLimit(b.cfg.MaxFrameBytes)
	for {
		kind, data, err := b.ws.ReadMessage()
		if err != nil {
			return err
		}
		switch kind {
		case websocket.BinaryMessage:
			select {
			case b.mic <- data:
			default:
				b.logger.Debug("bridge mic frame dropped", "bytes", len(data))
			}
		case websocket.TextMessage:
			ctrl, err := DecodeControl(data)
			if err != nil {
				_ = b.SendPriority(ErrorFrame{Type: FrameError, Message: err.Error()})
				continue
			}
			select {
			case b.controls <- ctrl:
			default:
				b.logger.Debug("bridge control dropped", "type", ctrl.Type)
			}
		}
	}
}

// writeLoop is the only websocket writer. Priority frames go first.
func (b *Bridge) writeLoop(ctx context.Context) error {
	ping := time.NewTicker(b.cfg.PingInterval)
	defer ping.Stop()

	write := func(payload []byte) error {
		_ = b.ws.SetWriteDeadline(time.Now().Add(b.cfg.WriteTimeout))
		return b.ws.WriteMessage(websocket.TextMessage, payload)
	}
	for {
		select {
		case payload := <-b.priority:
			if err := write(payload); err != nil {
				return err
			}
			continue
		default:
		}

		select {
		case <-ctx.Done():
			deadline := time.Now().Add(b.cfg.WriteTimeout)
			_ = b.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = b.ws.Close()
			return nil
		case payload := <-b.priority:
			if err := write(payload); err != nil {
				return err
			}
		case payload := <-b.normal:
			if err := write(payload); err != nil {
				return err
			}
		case <-ping.C:
			if err := b.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(b.cfg.WriteTimeout)); err != nil {
				return err
			}
		}
	}
}

// Send queues a JSON frame.
func (b *Bridge) Send(v any) error {
	return b.enqueue(b.normal, v)
}

// SendPriority queues a JSON frame ahead of normal traffic.
func (b *Bridge) SendPriority(v any) error {
	return b.enqueue(b.priority, v)
}

func (b *Bridge) enqueue(ch chan []byte, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-b.done:
		return ErrBridgeClosed
	default:
	}
	select {
	case ch <- payload:
		return nil
	default:
		return ErrBackpressure
	}
}

// OpenMicrophone implements live.Devices. Audio captured before the call is discarded.
func (b *Bridge) OpenMicrophone(ctx context.Context, sampleRate int) (live.Microphone, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for drained := false; !drained; {
		select {
		case <-b.mic:
		default:
			drained = true
		}
	}
	return &bridgeMic{bridge: b, closed: make(chan struct{})}, nil
}

// OpenOutput implements live.Devices.
func (b *Bridge) OpenOutput(ctx context.Context, sampleRate int) (live.OutputDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	select {
	case <-b.done:
		return nil, ErrBridgeClosed
	default:
	}
	return audio.NewTimedOutput(&bridgeSink{bridge: b, rate: sampleRate}), nil
}

type bridgeMic struct {
	bridge  *Bridge
	pending []byte
	closed  chan struct{}
	once    sync.Once
}

// Read fills frame from browser audio, blocking until enough has arrived.
func (m *bridgeMic) Read(frame []float32) (int, error) {
	need := len(frame) * 2
	for len(m.pending) < need {
		select {
		case data := <-m.bridge.mic:
			m.pending = append(m.pending, data...)
		case <-m.closed:
			return 0, ErrBridgeClosed
		case <-m.bridge.done:
			return 0, ErrBridgeClosed
		}
	}
	n := copy(frame, audio.PCM16ToFloat32(m.pending[:need]))
	m.pending = append(m.pending[:0], m.pending[need:]...)
	return n, nil
}

func (m *bridgeMic) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

// bridgeSink forwards scheduled buffers to the browser, which plays them at
// the given start time on its own clock anchored at the first frame.
type bridgeSink struct {
	bridge *Bridge
	rate   int
}

func (s *bridgeSink) Play(id uint64, pcm []byte, at time.Duration) error {
	return s.bridge.Send(AudioFrame{
		Type:       FrameAudio,
		ID:         id,
		StartAtMS:  at.Milliseconds(),
		SampleRate: s.rate,
		Data:       base64.StdEncoding.EncodeToString(pcm),
	})
}

func (s *bridgeSink) Cancel(id uint64) error {
	err := s.bridge.SendPriority(StopFrame{Type: FrameStop, ID: id})
	if errors.Is(err, ErrBridgeClosed) {
		return nil
	}
	return err
}

func (s *bridgeSink) Close() error { return nil }
