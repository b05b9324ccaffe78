package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/vango-go/vai-studio/pkg/core/live"
	"github.com/vango-go/vai-studio/pkg/devices"
)

// handleLive upgrades to a websocket and runs one live conversation
// controller over the browser's microphone and speaker.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.live == nil {
		writeError(w, r, notFound("live conversations are not configured"))
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		s.logger.Warn("live upgrade failed", "error", err, "request_id", requestIDFrom(r.Context()))
		return
	}
	s.liveWG.Add(1)
	defer s.liveWG.Done()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stopOnShutdown := context.AfterFunc(s.closing, cancel)
	defer stopOnShutdown()

	logger := s.logger.With("request_id", requestIDFrom(r.Context()))
	bridge := devices.NewBridge(ws, devices.BridgeConfig{
		PingInterval:  s.cfg.LiveWSPingInterval,
		WriteTimeout:  s.cfg.LiveWSWriteTimeout,
		MaxFrameBytes: s.cfg.LiveMaxFrameBytes,
	}, logger)

	opts := []live.Option{live.WithLogger(logger)}
	if s.metrics != nil {
		opts = append(opts, live.WithRecorder(s.metrics))
	}
	ctrl := live.NewController(s.live, bridge, opts...)
	defer ctrl.Stop()

	go forwardUpdates(ctx, ctrl, bridge)
	go s.handleControls(ctx, ctrl, bridge)

	logger.Info("live bridge connected")
	if err := bridge.Run(ctx); err != nil {
		logger.Warn("live bridge closed", "error", err)
		return
	}
	logger.Info("live bridge closed")
}

func (s *Server) handleControls(ctx context.Context, ctrl *live.Controller, bridge *devices.Bridge) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-bridge.Done():
			return
		case c := <-bridge.Controls():
			switch c.Type {
			case devices.ControlStart:
				err := ctrl.Start(ctx)
				if errors.Is(err, live.ErrAlreadyActive) {
					_ = bridge.Send(devices.ErrorFrame{Type: devices.FrameError, Message: err.Error()})
				}
			case devices.ControlStop:
				ctrl.Stop()
			}
		}
	}
}

// forwardUpdates relays controller updates to the browser. Status and
// transcripts are never dropped behind audio.
func forwardUpdates(ctx context.Context, ctrl *live.Controller, bridge *devices.Bridge) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-bridge.Done():
			return
		case u := <-ctrl.Updates():
			frame, priority := updateFrame(u)
			if frame == nil {
				continue
			}
			if priority {
				_ = bridge.SendPriority(frame)
			} else {
				_ = bridge.Send(frame)
			}
		}
	}
}

func updateFrame(u live.Update) (any, bool) {
	switch u := u.(type) {
	case *live.StatusUpdate:
		return devices.StatusFrame{Type: devices.FrameStatus, RunID: u.RunID, Status: u.Status.String(), Error: u.Error}, true
	case *live.TranscriptUpdate:
		return devices.TranscriptFrame{Type: devices.FrameTranscript, Speaker: string(u.Transcript.Speaker), Text: u.Transcript.Text}, true
	case *live.InputLevelUpdate:
		return devices.LevelFrame{Type: devices.FrameLevel, Level: u.Level}, false
	case *live.DrainedUpdate:
		return devices.DrainedFrame{Type: devices.FrameDrained}, false
	default:
		// Interruptions reach the browser as stop frames from the sink.
		return nil, false
	}
}
