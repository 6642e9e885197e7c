package server

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	wsPingInterval = 20 * time.Second
	wsWriteTimeout = 5 * time.Second
	wsBuffer       = 256
)

// handleEvents streams batch events to a websocket client until it
// disconnects or falls too far behind.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Warnf("websocket accept failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected exit")

	events, unsubscribe := s.svc.Subscribe(wsBuffer)
	defer unsubscribe()

	// Clients only listen; CloseRead handles their close frame.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		case e, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusTryAgainLater, "event subscriber dropped")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, conn, e)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
