package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"spotd/internal/broadcast"
	"spotd/pkg/types"
)

// keepaliveInterval paces SSE comments and WebSocket pings so idle
// connections survive intermediaries.
const keepaliveInterval = 25 * time.Second

// socketWriteTimeout bounds each push to a WebSocket client. A client that
// cannot take a frame within it is treated as disconnected.
const socketWriteTimeout = 5 * time.Second

// handleStream godoc
// @Summary  Server-sent status updates
// @Produce  text/event-stream
// @Success  200 {object} types.StatusResponse
// @Router   /api/stream [get]
func handleStream(svc Service, hub *broadcast.Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		sub := hub.Subscribe()
		defer hub.Unsubscribe(sub)
		subscriberConnected()
		defer subscriberDisconnected()

		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()

		// Current snapshot first so a reconnecting client catches up
		// immediately.
		if err := writeSSE(w, svc.Status()); err != nil {
			return
		}
		flusher.Flush()

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case st, open := <-sub.Updates():
				if !open {
					return
				}
				if err := writeSSE(w, st); err != nil {
					return
				}
				flusher.Flush()
			case <-keepalive.C:
				if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

func writeSSE(w http.ResponseWriter, st types.StatusResponse) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleSocket godoc
// @Summary  WebSocket status updates
// @Success  101
// @Router   /api/ws [get]
func handleSocket(svc Service, hub *broadcast.Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logError("websocket upgrade", err)
			return
		}
		defer ws.Close()

		sub := hub.Subscribe()
		defer hub.Unsubscribe(sub)
		subscriberConnected()
		defer subscriberDisconnected()

		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()

		// Reader goroutine: the feed is one-way, but draining control frames
		// is how a client close is noticed.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		if pushSocket(ws, svc.Status()) != nil {
			return
		}

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-closed:
				return
			case st, open := <-sub.Updates():
				if !open {
					return
				}
				if pushSocket(ws, st) != nil {
					return
				}
			case <-keepalive.C:
				_ = ws.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
				if ws.WriteMessage(websocket.PingMessage, nil) != nil {
					return
				}
			}
		}
	}
}

func pushSocket(ws *websocket.Conn, st types.StatusResponse) error {
	_ = ws.SetWriteDeadline(time.Now().Add(socketWriteTimeout))
	return ws.WriteJSON(st)
}
