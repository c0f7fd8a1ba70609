package handler

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"linechat/internal/pkg/errs"
	"linechat/internal/pkg/limiter"
	"linechat/internal/pkg/logx"
	"linechat/internal/pkg/resp"

	"linechat/internal/app/chat"
)

const wsWriteTimeout = 10 * time.Second

// wsConn adapts a WebSocket connection to the chat server's packet framing:
// one packet per text frame.
type wsConn struct {
	conn *websocket.Conn
}

var _ chat.Conn = (*wsConn)(nil)

func (c *wsConn) ReadPacket() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WritePacket(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error { return c.conn.Close() }

func (c *wsConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// HandleWebSocket creates an HTTP HandlerFunc that upgrades the request and
// attaches the resulting connection to the chat server.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		logx.Info("WebSocket connection established", "remote_addr", conn.RemoteAddr().String())

		deps.Server.AttachConn(&wsConn{conn: conn})
	}
}
