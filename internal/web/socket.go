package web

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"DocChat/internal/chatclient"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Frame types exchanged with the page.
const (
	frameAsk     = "ask"
	frameUpload  = "upload"
	frameDraft   = "draft"
	frameSession = "session"
	frameMessage = "message"
	frameState   = "state"
	frameNotice  = "notice"
)

type inboundFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// handleWebSocket gives the connecting page its own chat client.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	client := chatclient.New(s.backend, s.logger)
	dir, err := os.MkdirTemp("", "docchat-"+client.Session().ID+"-")
	if err != nil {
		s.logger.Error("failed to create tab upload dir", "error", err)
		return
	}
	sessionID := s.register(&tab{client: client, dir: dir})
	defer s.unregister(sessionID)

	logger := s.logger.With("session_id", sessionID)
	logger.Info("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// gorilla allows one concurrent writer; every frame goes through out.
	out := make(chan outgoingFrame, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, conn, out)
	}()

	send := func(frameType string, data any) {
		frame := outgoingFrame{
			Type:      frameType,
			SessionID: sessionID,
			Data:      data,
			Timestamp: time.Now().Unix(),
		}
		select {
		case out <- frame:
		case <-ctx.Done():
		}
	}

	client.OnChange(func(ev chatclient.Event) {
		switch ev.Kind {
		case chatclient.MessageAppended:
			send(frameMessage, ev.Message)
		case chatclient.LoadingChanged:
			send(frameState, map[string]bool{"loading": ev.Loading})
		}
	})

	send(frameSession, map[string]string{"id": sessionID})

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// inFlight is claimed on the read loop so frames are served in arrival
	// order; a frame that finds it taken gets the busy notice.
	var inFlight atomic.Bool
	dispatch := func(action func() error) {
		if !inFlight.CompareAndSwap(false, true) {
			send(frameNotice, map[string]string{"text": noticeText(chatclient.ErrBusy)})
			return
		}
		go func() {
			defer inFlight.Store(false)
			if err := action(); err != nil {
				send(frameNotice, map[string]string{"text": noticeText(err)})
			}
		}()
	}

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", "error", err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		switch frame.Type {
		case frameAsk:
			text := frame.Text
			dispatch(func() error { return client.SubmitQuestion(ctx, text) })
		case frameUpload:
			dispatch(func() error { return client.Upload(ctx) })
		case frameDraft:
			client.SetDraft(frame.Text)
		default:
			send(frameNotice, map[string]string{"text": "unknown frame type: " + frame.Type})
		}
	}

	cancel()
	<-writerDone
	logger.Info("websocket closed")
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan outgoingFrame) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case frame := <-out:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame); err != nil {
				s.logger.Warn("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func noticeText(err error) string {
	switch {
	case errors.Is(err, chatclient.ErrNoFileSelected):
		return "Please select a file!"
	case errors.Is(err, chatclient.ErrBusy):
		return "Please wait for the current request to finish."
	default:
		return err.Error()
	}
}
