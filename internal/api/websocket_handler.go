package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/wfunc/hokm-game/internal/middleware"
	ws "github.com/wfunc/hokm-game/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler WebSocket连接处理器
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(hub *ws.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// 客户端来源不固定，握手靠令牌鉴权
				return true
			},
		},
		logger: logger,
	}
}

// HandleConnection 升级连接并接入Hub
// 令牌在握手query里携带，房间必须与令牌签发的房间一致
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	roomID, _ := middleware.GetRoomID(c)
	playerID, _ := middleware.GetPlayerID(c)
	name, _ := middleware.GetPlayerName(c)

	if roomID == "" || playerID == "" {
		c.JSON(401, gin.H{
			"code":    "INVALID_TOKEN",
			"message": "会话无效",
		})
		return
	}

	if c.Param("room_id") != roomID {
		c.JSON(403, gin.H{
			"code":    "ROOM_MISMATCH",
			"message": "令牌与房间不匹配",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket升级失败",
			zap.String("room_id", roomID),
			zap.Error(err))
		return
	}

	client := ws.NewClient(h.hub, conn, roomID, playerID, name, h.logger)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}
