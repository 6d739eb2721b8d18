package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"github.com/cellarsync/cellarsync/internal/syncmgr"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsShutdownReason = "shutdown"
)

// Watch streams status events over a WebSocket, starting with the current
// status. Messages from the client are ignored.
func (h *SyncHandler) Watch(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// origins are open like CORS; the token guards access
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Warn("websocket accept", "error", err)
		return
	}
	defer conn.CloseNow() //nolint:errcheck

	events := h.mgr.Subscribe()
	defer h.mgr.Unsubscribe(events)

	ctx := conn.CloseRead(c.Request.Context())
	if err := writeEvent(ctx, conn, h.mgr.Status(ctx)); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, wsShutdownReason) //nolint:errcheck
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				if websocket.CloseStatus(err) == -1 {
					slog.Debug("websocket write", "error", err)
				}
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev syncmgr.Event) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
