package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/wfunc/hokm-game/internal/store"
	"go.uber.org/zap"
)

// Hub WebSocket连接管理中心，按房间组织
// 每个房间第一个连接到来时订阅其文档变更，向房间内所有成员推送；
// 最后一个连接断开时退订
type Hub struct {
	// roomID → playerID → 客户端
	rooms   map[string]map[string]*Client
	roomsMu sync.RWMutex

	// 每个房间的文档订阅取消函数
	unsubs map[string]func()

	register   chan *Client
	unregister chan *Client

	docs     store.DocumentStore
	presence PresenceNotifier
	logger   *zap.Logger
}

// PresenceNotifier 房间成员变化回调
// selfID是触发变化时确定在线的成员，online是当前完整在线集合
type PresenceNotifier interface {
	OnSyncSnapshot(roomID, selfID string, online map[string]bool)
}

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	Seq       uint64          `json:"seq,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// 消息类型
const (
	MessageTypeConnected   = "connected"    // 连接确认
	MessageTypeSync        = "sync"         // 文档更新推送
	MessageTypeRoomDeleted = "room_deleted" // 房间已删除
	MessageTypePresence    = "presence"     // 在线集合快照
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// NewHub 创建Hub
func NewHub(docs store.DocumentStore, presence PresenceNotifier, logger *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[string]*Client),
		unsubs:     make(map[string]func()),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		docs:       docs,
		presence:   presence,
		logger:     logger,
	}
}

// Run 运行Hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.attach(client)
		case client := <-h.unregister:
			h.detach(client)
		}
	}
}

// attach 客户端接入房间
func (h *Hub) attach(client *Client) {
	h.roomsMu.Lock()
	if h.rooms[client.RoomID] == nil {
		h.rooms[client.RoomID] = make(map[string]*Client)
		h.unsubs[client.RoomID] = h.subscribeRoom(client.RoomID)
	}
	// 同一玩家重连时顶掉旧连接
	if old, ok := h.rooms[client.RoomID][client.PlayerID]; ok {
		close(old.Send)
	}
	h.rooms[client.RoomID][client.PlayerID] = client
	h.roomsMu.Unlock()

	h.logger.Info("WebSocket客户端接入",
		zap.String("room_id", client.RoomID),
		zap.String("player_id", client.PlayerID))

	h.send(client, &Message{
		Type:      MessageTypeConnected,
		RoomID:    client.RoomID,
		Timestamp: time.Now().Unix(),
	})

	h.notifyPresence(client.RoomID, client.PlayerID)
}

// detach 客户端离开房间
func (h *Hub) detach(client *Client) {
	h.roomsMu.Lock()
	room, ok := h.rooms[client.RoomID]
	if !ok || room[client.PlayerID] != client {
		h.roomsMu.Unlock()
		return
	}
	delete(room, client.PlayerID)
	close(client.Send)

	var selfID string
	for playerID := range room {
		selfID = playerID
		break
	}
	if len(room) == 0 {
		delete(h.rooms, client.RoomID)
		if unsub := h.unsubs[client.RoomID]; unsub != nil {
			unsub()
		}
		delete(h.unsubs, client.RoomID)
	}
	h.roomsMu.Unlock()

	h.logger.Info("WebSocket客户端断开",
		zap.String("room_id", client.RoomID),
		zap.String("player_id", client.PlayerID))

	// 在线状态的修正只能由仍然在线的成员触发
	if selfID != "" {
		h.notifyPresence(client.RoomID, selfID)
	}
}

// subscribeRoom 订阅房间文档并把变更推给所有成员
// 调用方持有roomsMu
func (h *Hub) subscribeRoom(roomID string) func() {
	return h.docs.Subscribe(roomID,
		func(doc store.Document) {
			h.BroadcastToRoom(roomID, &Message{
				Type:      MessageTypeSync,
				RoomID:    roomID,
				Seq:       doc.Seq,
				Data:      json.RawMessage(doc.State),
				Timestamp: time.Now().Unix(),
			})
		},
		func(roomID string) {
			h.BroadcastToRoom(roomID, &Message{
				Type:      MessageTypeRoomDeleted,
				RoomID:    roomID,
				Timestamp: time.Now().Unix(),
			})
		},
	)
}

// notifyPresence 上报当前在线集合并广播快照
func (h *Hub) notifyPresence(roomID, selfID string) {
	online := h.OnlineInRoom(roomID)

	// 同步修正会做存储读写，不能阻塞注册循环
	if h.presence != nil {
		go h.presence.OnSyncSnapshot(roomID, selfID, online)
	}

	snapshot, err := json.Marshal(online)
	if err != nil {
		return
	}
	h.BroadcastToRoom(roomID, &Message{
		Type:      MessageTypePresence,
		RoomID:    roomID,
		Data:      snapshot,
		Timestamp: time.Now().Unix(),
	})
}

// OnlineInRoom 房间当前在线的玩家集合
func (h *Hub) OnlineInRoom(roomID string) map[string]bool {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()

	online := make(map[string]bool, len(h.rooms[roomID]))
	for playerID := range h.rooms[roomID] {
		online[playerID] = true
	}
	return online
}

// BroadcastToRoom 向房间所有成员推送消息
func (h *Hub) BroadcastToRoom(roomID string, message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return
	}

	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()

	for _, client := range h.rooms[roomID] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("客户端发送缓冲区满",
				zap.String("room_id", roomID),
				zap.String("player_id", client.PlayerID))
		}
	}
}

// send 给单个客户端发消息
func (h *Hub) send(client *Client, message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

// OnlineCount 总在线连接数
func (h *Hub) OnlineCount() int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()

	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}
