package views

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GrainArc/GlebaMap/editor"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

// ChangeHub 记录变更后通知所有已连接的客户端重新加载
type ChangeHub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	log   *slog.Logger
}

func NewChangeHub(log *slog.Logger) *ChangeHub {
	return &ChangeHub{conns: make(map[*websocket.Conn]struct{}), log: log}
}

func (h *ChangeHub) add(conn *websocket.Conn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(editor.ChangeEvent{Type: "ready"}); err != nil {
		return err
	}
	h.conns[conn] = struct{}{}
	return nil
}

func (h *ChangeHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

// Broadcast 写失败的连接直接关闭
func (h *ChangeHub) Broadcast(op string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(editor.ChangeEvent{Type: "changed", Op: op}); err != nil {
			h.log.Warn("ws_broadcast_failed", "err", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (h *ChangeHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Watch GET /ws/changes 升级为 WebSocket，只推送不接收
func (uc *GlebaController) Watch(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		uc.log.Warn("ws_upgrade_failed", "err", err)
		return
	}
	if err := uc.hub.add(conn); err != nil {
		conn.Close()
		return
	}
	defer uc.hub.remove(conn)

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				uc.log.Debug("ws_closed", "err", err)
			}
			return
		}
	}
}
