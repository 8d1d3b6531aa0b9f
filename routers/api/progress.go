package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// 会话进度 WebSocket 推送：先推当前状态，之后每秒比对并在变化时推送。
// 外部调用的进度由编排器写入会话state，这里只订阅并转发。
// 会话没有终态，退出条件是对端断开或会话被删除。
func (h *Handler) RunProgressWebSocket(c *gin.Context) {
	runID := c.Param("run_id")
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "WebSocket升级失败"})
		return
	}
	defer conn.Close()

	o, ok := h.Sessions.Get(runID)
	if !ok {
		conn.WriteJSON(map[string]interface{}{"error": "run not found: " + runID})
		return
	}

	// 读协程只负责发现对端断开；状态长期不变时写侧看不到连接错误
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	prev := o.State()
	_ = conn.WriteJSON(prev)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if _, ok := h.Sessions.Get(runID); !ok {
				return
			}
			cur := o.State()
			if cur.Status != prev.Status ||
				cur.Progress != prev.Progress ||
				cur.LastError != prev.LastError ||
				cur.PackageUrl != prev.PackageUrl {
				if err := conn.WriteJSON(cur); err != nil {
					return
				}
				prev = cur
			}
		}
	}
}
