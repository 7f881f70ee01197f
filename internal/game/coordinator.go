package game

import (
	"context"
	"encoding/json"

	"github.com/wfunc/hokm-game/internal/errors"
	"github.com/wfunc/hokm-game/internal/game/hokm"
	"github.com/wfunc/hokm-game/internal/logger"
	"github.com/wfunc/hokm-game/internal/store"
	"go.uber.org/zap"
)

// Modifier 对房间文档的一次纯修改
// 返回错误则整个事务中止，文档一个字节都不会变
type Modifier func(st *hokm.GameState) error

// Coordinator 乐观并发协调器
// 所有对房间文档的修改都走读-改-写事务：读出{状态,版本}，在副本上
// 应用修改，再以读出的版本做条件写入；版本冲突则重读重放，有限次重试
type Coordinator struct {
	docs       store.DocumentStore
	maxRetries int
	logger     *zap.Logger
}

// NewCoordinator 创建协调器
func NewCoordinator(docs store.DocumentStore, maxRetries int) *Coordinator {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Coordinator{
		docs:       docs,
		maxRetries: maxRetries,
		logger:     logger.GetLogger().Named("coordinator"),
	}
}

// Create 创建房间文档，房间号已存在返回ErrAlreadyExists
func (c *Coordinator) Create(ctx context.Context, st *hokm.GameState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return errors.Wrap(err, errors.ErrUnknown, "序列化房间文档失败")
	}
	if _, err := c.docs.Put(ctx, st.RoomID, data, 0); err != nil {
		if errors.Is(err, errors.ErrStaleWrite) {
			return errors.New(errors.ErrAlreadyExists, "房间已存在")
		}
		return err
	}
	return nil
}

// Get 读取房间当前状态
func (c *Coordinator) Get(ctx context.Context, roomID string) (*hokm.GameState, uint64, error) {
	doc, err := c.docs.Get(ctx, roomID)
	if err != nil {
		return nil, 0, err
	}
	st, err := decodeState(doc.State)
	if err != nil {
		return nil, 0, err
	}
	return st, doc.Seq, nil
}

// Perform 执行一次读-改-写事务并返回写入后的状态
func (c *Coordinator) Perform(ctx context.Context, roomID string, modifier Modifier) (*hokm.GameState, error) {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		doc, err := c.docs.Get(ctx, roomID)
		if err != nil {
			return nil, err
		}
		st, err := decodeState(doc.State)
		if err != nil {
			return nil, err
		}

		// 修改失败即中止，不产生任何写入
		if err := modifier(st); err != nil {
			return nil, err
		}

		data, err := json.Marshal(st)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrUnknown, "序列化房间文档失败")
		}

		_, err = c.docs.Put(ctx, roomID, data, doc.Seq)
		if err == nil {
			return st, nil
		}
		if !errors.Is(err, errors.ErrStaleWrite) {
			return nil, err
		}

		c.logger.Debug("版本冲突，重试事务",
			zap.String("room_id", roomID),
			zap.Uint64("seq", doc.Seq),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, errors.Newf(errors.ErrConflict, "并发冲突，%d次重试后放弃", c.maxRetries)
}

// Broadcast 低风险无版本写入路径，用于在线状态修正这类丢了也无妨的更新
func (c *Coordinator) Broadcast(ctx context.Context, roomID string, modifier Modifier) (*hokm.GameState, error) {
	doc, err := c.docs.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}
	st, err := decodeState(doc.State)
	if err != nil {
		return nil, err
	}
	if err := modifier(st); err != nil {
		return nil, err
	}

	data, err := json.Marshal(st)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnknown, "序列化房间文档失败")
	}
	if _, err := c.docs.Force(ctx, roomID, data); err != nil {
		return nil, err
	}
	return st, nil
}

// Delete 删除房间文档
func (c *Coordinator) Delete(ctx context.Context, roomID string) error {
	return c.docs.Delete(ctx, roomID)
}

// Store 底层文档存储（订阅和恢复扫描用）
func (c *Coordinator) Store() store.DocumentStore {
	return c.docs
}

func decodeState(data []byte) (*hokm.GameState, error) {
	var st hokm.GameState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrap(err, errors.ErrDataIntegrity, "房间文档损坏")
	}
	return &st, nil
}
