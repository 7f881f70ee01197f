package store

import (
	"context"
	"sync"

	"github.com/wfunc/hokm-game/internal/errors"
)

// MemoryStore 内存文档存储，测试和单机运行用
type MemoryStore struct {
	mu       sync.RWMutex
	docs     map[string]*Document
	notifier *notifier
}

// NewMemoryStore 创建内存文档存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[string]*Document),
		notifier: newNotifier(),
	}
}

// Get 读取当前文档
func (s *MemoryStore) Get(ctx context.Context, roomID string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[roomID]
	if !ok {
		return nil, errors.New(errors.ErrRoomNotFound)
	}
	copied := clone(*doc)
	return &copied, nil
}

// Put 条件写入
func (s *MemoryStore) Put(ctx context.Context, roomID string, state []byte, expectedSeq uint64) (uint64, error) {
	s.mu.Lock()

	doc, ok := s.docs[roomID]
	if !ok {
		if expectedSeq != 0 {
			s.mu.Unlock()
			return 0, errors.New(errors.ErrRoomNotFound)
		}
		doc = &Document{RoomID: roomID}
		s.docs[roomID] = doc
	} else if doc.Seq != expectedSeq {
		s.mu.Unlock()
		return 0, errors.Newf(errors.ErrStaleWrite, "版本已过期（期望 %d，当前 %d）", expectedSeq, doc.Seq)
	}

	doc.Seq++
	doc.State = append([]byte(nil), state...)
	copied := clone(*doc)
	s.mu.Unlock()

	s.notifier.notifyUpdate(copied)
	return copied.Seq, nil
}

// Force 无条件覆盖
func (s *MemoryStore) Force(ctx context.Context, roomID string, state []byte) (uint64, error) {
	s.mu.Lock()

	doc, ok := s.docs[roomID]
	if !ok {
		s.mu.Unlock()
		return 0, errors.New(errors.ErrRoomNotFound)
	}

	doc.Seq++
	doc.State = append([]byte(nil), state...)
	copied := clone(*doc)
	s.mu.Unlock()

	s.notifier.notifyUpdate(copied)
	return copied.Seq, nil
}

// Delete 删除文档
func (s *MemoryStore) Delete(ctx context.Context, roomID string) error {
	s.mu.Lock()
	_, ok := s.docs[roomID]
	delete(s.docs, roomID)
	s.mu.Unlock()

	if ok {
		s.notifier.notifyDelete(roomID)
	}
	return nil
}

// List 列出全部文档
func (s *MemoryStore) List(ctx context.Context) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		copied := clone(*doc)
		docs = append(docs, &copied)
	}
	return docs, nil
}

// Subscribe 订阅房间事件
func (s *MemoryStore) Subscribe(roomID string, onUpdate UpdateFunc, onDelete DeleteFunc) func() {
	return s.notifier.subscribe(roomID, onUpdate, onDelete)
}

// Close 内存存储无后台任务
func (s *MemoryStore) Close() {}
