package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/hokm-game/internal/auth"
	"github.com/wfunc/hokm-game/internal/config"
	"github.com/wfunc/hokm-game/internal/errors"
	"github.com/wfunc/hokm-game/internal/game/hokm"
	"github.com/wfunc/hokm-game/internal/logger"
	"go.uber.org/zap"
)

// RoomService 房间动作入口
// 每个动作都是协调器上的一次事务，规则校验由hokm包的纯函数完成
type RoomService struct {
	coord   *Coordinator
	runners *RunnerManager
	tokens  *auth.TokenManager
	cfg     config.GameConfig
	logger  *zap.Logger
}

// NewRoomService 创建房间服务
func NewRoomService(coord *Coordinator, runners *RunnerManager, tokens *auth.TokenManager, cfg config.GameConfig) *RoomService {
	return &RoomService{
		coord:   coord,
		runners: runners,
		tokens:  tokens,
		cfg:     cfg,
		logger:  logger.GetLogger().Named("room-service"),
	}
}

// JoinResult 入座结果
type JoinResult struct {
	PlayerID string          `json:"player_id"`
	Seat     int             `json:"seat"`
	Token    string          `json:"token"`
	State    *hokm.GameState `json:"state"`
}

// CreateRoom 创建房间并启动驱动器
func (s *RoomService) CreateRoom(ctx context.Context, mode hokm.Mode) (string, error) {
	if !mode.IsValid() {
		return "", errors.Newf(errors.ErrInvalidMode, "未知模式 %q", mode)
	}

	if s.cfg.Room.MaxRooms > 0 {
		docs, err := s.coord.Store().List(ctx)
		if err != nil {
			return "", err
		}
		if len(docs) >= s.cfg.Room.MaxRooms {
			return "", errors.Newf(errors.ErrRoomFull, "活跃房间已达上限 %d", s.cfg.Room.MaxRooms)
		}
	}

	roomID := uuid.New().String()
	st := hokm.NewGameState(roomID, mode)
	if err := s.coord.Create(ctx, st); err != nil {
		return "", err
	}
	s.runners.Start(roomID)

	s.logger.Info("房间已创建",
		zap.String("room_id", roomID),
		zap.String("mode", string(mode)),
	)
	return roomID, nil
}

// JoinRoom 占据第一个空座并签发会话令牌
func (s *RoomService) JoinRoom(ctx context.Context, roomID, name string) (*JoinResult, error) {
	if name == "" {
		return nil, errors.New(errors.ErrInvalidParam, "昵称不能为空")
	}

	playerID := uuid.New().String()
	var seat int
	st, err := s.perform(ctx, roomID, func(st *hokm.GameState) error {
		idx, err := st.Join(playerID, name)
		if err != nil {
			return err
		}
		seat = idx
		return nil
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(roomID, playerID, name)
	if err != nil {
		return nil, err
	}

	s.logger.Info("玩家入座",
		zap.String("room_id", roomID),
		zap.String("player_id", playerID),
		zap.Int("seat", seat),
	)
	return &JoinResult{
		PlayerID: playerID,
		Seat:     seat,
		Token:    token,
		State:    st,
	}, nil
}

// SwitchSeat 大厅内换座
func (s *RoomService) SwitchSeat(ctx context.Context, roomID, playerID string, target int) (*hokm.GameState, error) {
	return s.perform(ctx, roomID, func(st *hokm.GameState) error {
		return st.SwitchSeat(playerID, target)
	})
}

// SetHokm Hakim选定主花色
func (s *RoomService) SetHokm(ctx context.Context, roomID, playerID string, suit hokm.Suit) (*hokm.GameState, error) {
	return s.perform(ctx, roomID, func(st *hokm.GameState) error {
		return st.SetHokm(playerID, suit)
	})
}

// PlayCard 出一张牌
func (s *RoomService) PlayCard(ctx context.Context, roomID, playerID, cardID string) (*hokm.GameState, error) {
	return s.perform(ctx, roomID, func(st *hokm.GameState) error {
		return st.PlayCard(playerID, cardID)
	})
}

// LeaveRoom 离开房间
// 大厅内清空座位，空房直接删除；对局中只标记离线，座位保留
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	st, err := s.perform(ctx, roomID, func(st *hokm.GameState) error {
		return st.Leave(playerID)
	})
	if err != nil {
		return err
	}

	if st.Phase == hokm.PhaseLobby && st.OccupiedCount() == 0 {
		s.runners.Stop(roomID)
		if err := s.coord.Delete(ctx, roomID); err != nil {
			return err
		}
		s.logger.Info("空房间已删除", zap.String("room_id", roomID))
	}
	return nil
}

// GetState 读取房间当前状态和版本号
func (s *RoomService) GetState(ctx context.Context, roomID string) (*hokm.GameState, uint64, error) {
	return s.coord.Get(ctx, roomID)
}

// SyncPresence 根据实时在线集合修正文档里的在线标志
// 只在selfID自身在线时调用。普通修正走无版本广播路径；大厅内的
// 离线玩家按离开处理，清座走事务路径
func (s *RoomService) SyncPresence(ctx context.Context, roomID, selfID string, online map[string]bool) error {
	st, _, err := s.coord.Get(ctx, roomID)
	if err != nil {
		return err
	}

	corrections := ReconcilePresence(selfID, online, st)
	if len(corrections) == 0 {
		return nil
	}

	if st.Phase == hokm.PhaseLobby {
		for _, c := range corrections {
			if c.Online {
				continue
			}
			playerID := c.PlayerID
			if err := s.LeaveRoom(ctx, roomID, playerID); err != nil {
				if errors.Is(err, errors.ErrRoomNotFound) || errors.Is(err, errors.ErrNotFound) {
					continue
				}
				return err
			}
		}
		return nil
	}

	_, err = s.coord.Broadcast(ctx, roomID, func(st *hokm.GameState) error {
		if !ApplyPresence(st, ReconcilePresence(selfID, online, st)) {
			return errors.New(errors.ErrConflict, "在线标志已一致")
		}
		st.TrimLogs(s.cfg.Hokm.ActionLogMaxEntries)
		return nil
	})
	if errors.Is(err, errors.ErrConflict) {
		return nil
	}
	return err
}

// OnSyncSnapshot 在线集合变化回调，连接层断连不阻塞在这里
func (s *RoomService) OnSyncSnapshot(roomID, selfID string, online map[string]bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.SyncPresence(ctx, roomID, selfID, online); err != nil {
		if errors.Is(err, errors.ErrRoomNotFound) {
			return
		}
		s.logger.Warn("在线状态同步失败",
			zap.String("room_id", roomID),
			zap.Error(err),
		)
	}
}

// perform 包一层日志裁剪的事务
func (s *RoomService) perform(ctx context.Context, roomID string, modifier Modifier) (*hokm.GameState, error) {
	return s.coord.Perform(ctx, roomID, func(st *hokm.GameState) error {
		if err := modifier(st); err != nil {
			return err
		}
		st.TrimLogs(s.cfg.Hokm.ActionLogMaxEntries)
		return nil
	})
}
