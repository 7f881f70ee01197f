// Package store 提供按版本号做乐观并发控制的房间文档存储
package store

import (
	"context"
	"sync"
)

// Document 一份带版本号的房间文档
type Document struct {
	RoomID string
	Seq    uint64
	State  []byte
}

// UpdateFunc 文档更新回调
type UpdateFunc func(doc Document)

// DeleteFunc 文档删除回调
type DeleteFunc func(roomID string)

// DocumentStore 房间文档存储接口
type DocumentStore interface {
	// Get 读取当前文档，不存在返回ErrRoomNotFound
	Get(ctx context.Context, roomID string) (*Document, error)
	// Put 条件写入：仅当当前版本等于expectedSeq时落盘并返回新版本号，
	// 否则返回ErrStaleWrite；expectedSeq为0且文档不存在时创建
	Put(ctx context.Context, roomID string, state []byte, expectedSeq uint64) (uint64, error)
	// Force 无条件覆盖，版本号照常递增
	Force(ctx context.Context, roomID string, state []byte) (uint64, error)
	// Delete 删除文档并通知订阅者
	Delete(ctx context.Context, roomID string) error
	// List 列出全部文档（进程启动恢复用）
	List(ctx context.Context) ([]*Document, error)
	// Subscribe 订阅指定房间的更新和删除，返回取消函数
	Subscribe(roomID string, onUpdate UpdateFunc, onDelete DeleteFunc) func()
	// Close 停止后台轮询并释放订阅
	Close()
}

// subscriber 单个订阅者
type subscriber struct {
	onUpdate UpdateFunc
	onDelete DeleteFunc
}

// notifier 按房间分发文档事件
// 回调在独立goroutine中执行，订阅者的处理不会阻塞写入方
type notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]*subscriber
}

func newNotifier() *notifier {
	return &notifier{
		subs: make(map[string]map[int]*subscriber),
	}
}

func (n *notifier) subscribe(roomID string, onUpdate UpdateFunc, onDelete DeleteFunc) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs[roomID] == nil {
		n.subs[roomID] = make(map[int]*subscriber)
	}
	id := n.nextID
	n.nextID++
	n.subs[roomID][id] = &subscriber{onUpdate: onUpdate, onDelete: onDelete}

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs[roomID], id)
		if len(n.subs[roomID]) == 0 {
			delete(n.subs, roomID)
		}
	}
}

func (n *notifier) notifyUpdate(doc Document) {
	for _, sub := range n.snapshot(doc.RoomID) {
		if sub.onUpdate != nil {
			go sub.onUpdate(doc)
		}
	}
}

func (n *notifier) notifyDelete(roomID string) {
	for _, sub := range n.snapshot(roomID) {
		if sub.onDelete != nil {
			go sub.onDelete(roomID)
		}
	}
}

// rooms 当前有订阅者的房间
func (n *notifier) rooms() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]string, 0, len(n.subs))
	for roomID := range n.subs {
		ids = append(ids, roomID)
	}
	return ids
}

func (n *notifier) snapshot(roomID string) []*subscriber {
	n.mu.Lock()
	defer n.mu.Unlock()
	subs := make([]*subscriber, 0, len(n.subs[roomID]))
	for _, sub := range n.subs[roomID] {
		subs = append(subs, sub)
	}
	return subs
}

// clone 复制文档内容，订阅者拿到的永远是独立副本
func clone(doc Document) Document {
	state := make([]byte, len(doc.State))
	copy(state, doc.State)
	doc.State = state
	return doc
}
