package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// 写超时
	writeWait = 10 * time.Second

	// Pong等待时间
	pongWait = 60 * time.Second

	// Ping间隔，必须小于pongWait
	pingPeriod = (pongWait * 9) / 10

	// 最大消息大小
	maxMessageSize = 4096

	// 发送缓冲区大小
	sendBufferSize = 64
)

// Client WebSocket客户端连接
type Client struct {
	RoomID   string
	PlayerID string
	Name     string

	hub    *Hub
	conn   *websocket.Conn
	logger *zap.Logger

	// Send 出站消息缓冲
	Send chan []byte
}

// NewClient 创建客户端
func NewClient(hub *Hub, conn *websocket.Conn, roomID, playerID, name string, logger *zap.Logger) *Client {
	return &Client{
		RoomID:   roomID,
		PlayerID: playerID,
		Name:     name,
		hub:      hub,
		conn:     conn,
		logger:   logger,
		Send:     make(chan []byte, sendBufferSize),
	}
}

// ReadPump 读取循环
// 游戏操作走HTTP接口，连接上只处理ping/pong心跳
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("WebSocket异常断开",
					zap.String("player_id", c.PlayerID),
					zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("消息格式错误")
			continue
		}

		switch msg.Type {
		case MessageTypePing:
			c.sendMessage(&Message{
				Type:      MessageTypePong,
				Timestamp: time.Now().Unix(),
			})
		case MessageTypePong:
			// 忽略
		default:
			c.sendError("不支持的消息类型: " + msg.Type)
		}
	}
}

// WritePump 写入循环
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// 合并积压的消息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendMessage 发送消息
func (c *Client) sendMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// sendError 发送错误消息
func (c *Client) sendError(text string) {
	data, err := json.Marshal(text)
	if err != nil {
		return
	}
	c.sendMessage(&Message{
		Type:      MessageTypeError,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}
