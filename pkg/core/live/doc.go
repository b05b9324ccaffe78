// Package live implements real-time bidirectional voice conversations.
//
// A Controller owns at most one live run at a time. A run opens the output
// context, acquires the microphone and connects a streaming session. From
// then on two goroutines do the work:
//
//   - the capture pump reads fixed-size microphone frames, encodes them as
//     16 kHz PCM16 blobs and sends them upstream;
//   - the dispatcher consumes one queue of typed events (open, message,
//     error, close) pushed by the connection reader.
//
// Server audio is decoded and handed to an audio.Scheduler, which keeps
// playback gapless and drops everything queued when the server reports an
// interruption (barge-in).
//
// # State Machine
//
//	IDLE → CONNECTING → CONNECTED → ENDED
//	           │            │
//	           └────────────┴──→ ERROR
//
// # Usage
//
//	ctl := live.NewController(connector, devices)
//	if err := ctl.Start(ctx); err != nil {
//	    return err
//	}
//	for u := range ctl.Updates() {
//	    switch u := u.(type) {
//	    case *live.TranscriptUpdate:
//	        fmt.Printf("%s: %s\n", u.Transcript.Speaker, u.Transcript.Text)
//	    case *live.StatusUpdate:
//	        if u.Status.Terminal() {
//	            return nil
//	        }
//	    }
//	}
package live
