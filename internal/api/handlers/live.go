package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/speedgazer/pkg/ws"
)

// HandleWebSocket 实时推送，管理端 key 可通过请求头或 api_key 参数传入
func (h *Handler) HandleWebSocket(c *gin.Context) {
	key := c.GetHeader(apiKeyHeader)
	if key == "" {
		key = c.Query("api_key")
	}
	if !h.isAdminKey(key) {
		fail(c, http.StatusForbidden, "Forbidden")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn, c.Query("device_id"))
	if !client.Register(c.Request.Context()) {
		_ = conn.Close()
		return
	}

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}
