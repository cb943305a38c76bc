package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	ws "github.com/vendops/vendwatch/internal/websocket"
	"go.uber.org/zap"
)

// NotificationWSHandler 站内通知的 WebSocket 接入
type NotificationWSHandler struct {
	logger    *zap.Logger
	wsManager *ws.Manager
	upgrader  websocket.Upgrader
}

func NewNotificationWSHandler(logger *zap.Logger, wsManager *ws.Manager) *NotificationWSHandler {
	return &NotificationWSHandler{
		logger:    logger,
		wsManager: wsManager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket 建立站内通知连接
func (h *NotificationWSHandler) HandleWebSocket(c echo.Context) error {
	userID := c.QueryParam("userId")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "缺少 userId 参数")
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("failed to upgrade websocket", zap.Error(err))
		return err
	}

	client := ws.NewClient(userID, conn, h.wsManager)
	h.wsManager.Register(client)

	go client.WritePump()
	client.ReadPump(c.Request().Context())
	return nil
}
