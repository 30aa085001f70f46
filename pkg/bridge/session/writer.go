package session

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

type outboundFrame struct {
	payload []byte
}

// telephonyWriter serializes all writes to the telephony socket. Control
// frames (clear-on-barge-in, close) ride the priority channel and preempt
// queued media frames.
type telephonyWriter struct {
	ws       wsWriter
	ctx      context.Context
	priority <-chan outboundFrame
	normal   <-chan outboundFrame

	pingInterval time.Duration
	writeTimeout time.Duration
}

func (w *telephonyWriter) Run() error {
	if w == nil || w.ws == nil {
		return nil
	}

	pingInterval := w.pingInterval
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	writeTimeout := w.writeTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	var done <-chan struct{}
	if w.ctx != nil {
		done = w.ctx.Done()
	}

	shutdown := func() {
		w.drainPriority(writeTimeout)
		_ = w.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
	}

	for {
		select {
		case <-done:
			shutdown()
			return nil
		default:
		}

		// Hard priority: anything queued there goes out before media.
		select {
		case frame, ok := <-w.priority:
			if !ok {
				w.priority = nil
				continue
			}
			if err := w.writeFrame(frame, writeTimeout); err != nil {
				return err
			}
			continue
		default:
		}

		if w.priority == nil && w.normal == nil {
			return nil
		}

		select {
		case <-done:
			shutdown()
			return nil
		case <-pingTicker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := w.ws.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return err
			}
		case frame, ok := <-w.priority:
			if !ok {
				w.priority = nil
				continue
			}
			if err := w.writeFrame(frame, writeTimeout); err != nil {
				return err
			}
		case frame, ok := <-w.normal:
			if !ok {
				w.normal = nil
				continue
			}
			if err := w.writeFrame(frame, writeTimeout); err != nil {
				return err
			}
		}
	}
}

// drainPriority flushes briefly on shutdown so a final clear or padded frame
// is not lost at the cut point.
func (w *telephonyWriter) drainPriority(writeTimeout time.Duration) {
	if w.priority == nil {
		return
	}
	deadline := time.Now().Add(100 * time.Millisecond)
	for i := 0; i < 8 && time.Now().Before(deadline); i++ {
		select {
		case frame, ok := <-w.priority:
			if !ok {
				return
			}
			_ = w.writeFrame(frame, writeTimeout)
		default:
			return
		}
	}
}

func (w *telephonyWriter) writeFrame(frame outboundFrame, writeTimeout time.Duration) error {
	if len(frame.payload) == 0 {
		return nil
	}
	if err := w.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return w.ws.WriteMessage(websocket.TextMessage, frame.payload)
}
