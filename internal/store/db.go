package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/wfunc/hokm-game/internal/errors"
	"github.com/wfunc/hokm-game/internal/logger"
	"github.com/wfunc/hokm-game/internal/models"
	"github.com/wfunc/hokm-game/internal/repository"
	"go.uber.org/zap"
)

// DBStore 数据库文档存储
// 同进程写入即时推送，后台轮询兜底外部写入（如另一实例共用同一库）
type DBStore struct {
	repo     repository.RoomRepository
	notifier *notifier
	interval time.Duration

	mu       sync.Mutex
	lastSeen map[string]uint64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDBStore 创建数据库文档存储并启动轮询
func NewDBStore(repo repository.RoomRepository, pollInterval time.Duration) *DBStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &DBStore{
		repo:     repo,
		notifier: newNotifier(),
		interval: pollInterval,
		lastSeen: make(map[string]uint64),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go s.pollLoop(ctx)
	return s
}

// Get 读取当前文档
func (s *DBStore) Get(ctx context.Context, roomID string) (*Document, error) {
	row, err := s.repo.FindByRoomID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &Document{
		RoomID: row.RoomID,
		Seq:    row.Seq,
		State:  []byte(row.State),
	}, nil
}

// Put 条件写入
func (s *DBStore) Put(ctx context.Context, roomID string, state []byte, expectedSeq uint64) (uint64, error) {
	phase := extractPhase(state)

	if expectedSeq == 0 {
		// 文档不存在时创建，存在时走正常的条件更新
		if _, err := s.repo.FindByRoomID(ctx, roomID); errors.Is(err, errors.ErrRoomNotFound) {
			doc := &models.RoomDocument{
				RoomID: roomID,
				Seq:    1,
				Phase:  phase,
				State:  string(state),
			}
			if err := s.repo.Create(ctx, doc); err != nil {
				if errors.Is(err, errors.ErrAlreadyExists) {
					// 并发创建输给了别人
					return 0, errors.New(errors.ErrStaleWrite, "文档已被并发创建")
				}
				return 0, err
			}
			s.emit(Document{RoomID: roomID, Seq: 1, State: append([]byte(nil), state...)})
			return 1, nil
		} else if err != nil {
			return 0, err
		}
	}

	newSeq, err := s.repo.UpdateWithSeq(ctx, roomID, expectedSeq, phase, string(state))
	if err != nil {
		return 0, err
	}
	s.emit(Document{RoomID: roomID, Seq: newSeq, State: append([]byte(nil), state...)})
	return newSeq, nil
}

// Force 无条件覆盖
func (s *DBStore) Force(ctx context.Context, roomID string, state []byte) (uint64, error) {
	newSeq, err := s.repo.ForceUpdate(ctx, roomID, extractPhase(state), string(state))
	if err != nil {
		return 0, err
	}
	s.emit(Document{RoomID: roomID, Seq: newSeq, State: append([]byte(nil), state...)})
	return newSeq, nil
}

// Delete 删除文档
func (s *DBStore) Delete(ctx context.Context, roomID string) error {
	if err := s.repo.Delete(ctx, roomID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.lastSeen, roomID)
	s.mu.Unlock()
	s.notifier.notifyDelete(roomID)
	return nil
}

// List 列出全部文档
func (s *DBStore) List(ctx context.Context) ([]*Document, error) {
	rows, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, &Document{
			RoomID: row.RoomID,
			Seq:    row.Seq,
			State:  []byte(row.State),
		})
	}
	return docs, nil
}

// Subscribe 订阅房间事件
func (s *DBStore) Subscribe(roomID string, onUpdate UpdateFunc, onDelete DeleteFunc) func() {
	return s.notifier.subscribe(roomID, onUpdate, onDelete)
}

// Close 停止轮询
func (s *DBStore) Close() {
	s.cancel()
	<-s.done
}

// emit 推送更新并记录已见版本，轮询据此去重
func (s *DBStore) emit(doc Document) {
	s.mu.Lock()
	s.lastSeen[doc.RoomID] = doc.Seq
	s.mu.Unlock()
	s.notifier.notifyUpdate(doc)
}

// pollLoop 轮询兜底：推送不可靠时订阅者仍能拿到最新文档
func (s *DBStore) pollLoop(ctx context.Context) {
	defer close(s.done)

	if s.interval <= 0 {
		s.interval = 3 * time.Second
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

func (s *DBStore) pollOnce(ctx context.Context) {
	for _, roomID := range s.notifier.rooms() {
		doc, err := s.Get(ctx, roomID)
		if errors.Is(err, errors.ErrRoomNotFound) {
			s.mu.Lock()
			_, seen := s.lastSeen[roomID]
			delete(s.lastSeen, roomID)
			s.mu.Unlock()
			if seen {
				s.notifier.notifyDelete(roomID)
			}
			continue
		}
		if err != nil {
			logger.Warn("轮询房间文档失败", zap.String("room_id", roomID), zap.Error(err))
			continue
		}

		s.mu.Lock()
		stale := doc.Seq > s.lastSeen[roomID]
		if stale {
			s.lastSeen[roomID] = doc.Seq
		}
		s.mu.Unlock()
		if stale {
			s.notifier.notifyUpdate(*doc)
		}
	}
}

// extractPhase 从状态JSON中取出阶段字段，供数据库索引列使用
func extractPhase(state []byte) string {
	var probe struct {
		Phase string `json:"phase"`
	}
	if err := json.Unmarshal(state, &probe); err != nil {
		return ""
	}
	return probe.Phase
}
