package game

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/wfunc/hokm-game/internal/config"
	"github.com/wfunc/hokm-game/internal/errors"
	"github.com/wfunc/hokm-game/internal/game/hokm"
	"github.com/wfunc/hokm-game/internal/logger"
	"github.com/wfunc/hokm-game/internal/models"
	"github.com/wfunc/hokm-game/internal/repository"
	"github.com/wfunc/hokm-game/internal/store"
	"go.uber.org/zap"
)

// Runner 房间驱动器
// 每个活跃房间一个goroutine，负责所有定时推进：翻牌节奏、Hakim展示
// 停顿、发牌、满墩结算。每一步都带阶段前置条件且幂等，崩溃重启后的
// 驱动器（甚至并存的重复驱动器）都不会破坏状态
type Runner struct {
	roomID  string
	coord   *Coordinator
	cfg     config.HokmConfig
	records repository.MatchRecordRepository
	logger  *zap.Logger
	rng     *rand.Rand

	updates chan store.Document
	deleted chan struct{}
	stopCh  chan struct{}
	done    chan struct{}

	revealDeck []hokm.Card
	recorded   bool
	startedAt  time.Time
}

// NewRunner 创建房间驱动器（不启动）
func NewRunner(roomID string, coord *Coordinator, cfg config.HokmConfig, records repository.MatchRecordRepository) *Runner {
	return &Runner{
		roomID:    roomID,
		coord:     coord,
		cfg:       cfg,
		records:   records,
		logger:    logger.GetLogger().Named("runner").With(zap.String("room_id", roomID)),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		updates:   make(chan store.Document, 16),
		deleted:   make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
}

// Start 启动驱动循环
func (r *Runner) Start() {
	go r.run()
}

// Stop 停止驱动循环并等待退出
func (r *Runner) Stop() {
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
	<-r.done
}

func (r *Runner) run() {
	defer close(r.done)

	unsub := r.coord.Store().Subscribe(r.roomID,
		func(doc store.Document) {
			select {
			case r.updates <- doc:
			default:
				// 队列满了就丢，下一次更新会带来更新的文档
			}
		},
		func(string) {
			select {
			case r.deleted <- struct{}{}:
			default:
			}
		},
	)
	defer unsub()

	ctx := context.Background()

	// 启动即推进一次，恢复场景下房间可能正停在某个定时阶段
	st, _, err := r.coord.Get(ctx, r.roomID)
	if err != nil {
		if !errors.Is(err, errors.ErrRoomNotFound) {
			r.logger.Error("读取房间失败，驱动器退出", zap.Error(err))
		}
		return
	}
	if !r.step(ctx, st) {
		return
	}

	for {
		select {
		case <-r.stopCh:
			return
		case <-r.deleted:
			r.logger.Info("房间已删除，驱动器退出")
			return
		case <-r.updates:
			st, _, err := r.coord.Get(ctx, r.roomID)
			if err != nil {
				if errors.Is(err, errors.ErrRoomNotFound) {
					return
				}
				r.logger.Warn("读取房间失败", zap.Error(err))
				continue
			}
			if !r.step(ctx, st) {
				return
			}
		}
	}
}

// step 根据当前阶段推进一步，返回false表示驱动器应当退出
func (r *Runner) step(ctx context.Context, st *hokm.GameState) bool {
	switch st.Phase {
	case hokm.PhaseLobby:
		// 等人，无事可做

	case hokm.PhaseDetermining:
		if st.HakimID == "" {
			return r.revealNext(ctx)
		}
		return r.advanceAfterDetermination(ctx)

	case hokm.PhaseDealingInitial:
		return r.dealInitial(ctx)

	case hokm.PhaseChoosingHokm:
		// 等Hakim选主

	case hokm.PhaseDealingRemainder:
		return r.dealRemainder(ctx)

	case hokm.PhasePlaying:
		if len(st.TableCards) == st.PlayerCount() {
			return r.resolveTrick(ctx)
		}

	case hokm.PhaseMatchEnd:
		r.recordMatch(ctx, st)
		r.logger.Info("比赛结束，驱动器退出")
		return false
	}
	return true
}

// revealNext 按节奏翻下一张判定牌
func (r *Runner) revealNext(ctx context.Context) bool {
	if r.revealDeck == nil {
		r.revealDeck = hokm.NewDeck(r.rng)
	}
	if !r.sleep(r.cfg.RevealTick) {
		return false
	}

	_, err := r.coord.Perform(ctx, r.roomID, func(st *hokm.GameState) error {
		idx := len(st.HakimDeterminationCards)
		if idx >= len(r.revealDeck) {
			return errors.New(errors.ErrConflict, "判定牌已翻完")
		}
		_, err := st.RevealCard(r.revealDeck[idx])
		return err
	})
	return r.tolerate(err, "翻判定牌")
}

// advanceAfterDetermination 展示停顿后进入首发发牌
func (r *Runner) advanceAfterDetermination(ctx context.Context) bool {
	if !r.sleep(r.cfg.HakimDisplayDelay) {
		return false
	}
	_, err := r.coord.Perform(ctx, r.roomID, func(st *hokm.GameState) error {
		return st.AdvanceAfterDetermination()
	})
	return r.tolerate(err, "进入发牌阶段")
}

// dealInitial 给Hakim发前5张
func (r *Runner) dealInitial(ctx context.Context) bool {
	deck := hokm.NewDeck(r.rng)
	_, err := r.coord.Perform(ctx, r.roomID, func(st *hokm.GameState) error {
		return st.DealInitial(deck)
	})
	return r.tolerate(err, "发前5张")
}

// dealRemainder 停顿后发剩余手牌
func (r *Runner) dealRemainder(ctx context.Context) bool {
	if !r.sleep(r.cfg.PostDealDelay) {
		return false
	}
	_, err := r.coord.Perform(ctx, r.roomID, func(st *hokm.GameState) error {
		return st.DealRemainder()
	})
	return r.tolerate(err, "发剩余手牌")
}

// resolveTrick 满墩停顿后结算
func (r *Runner) resolveTrick(ctx context.Context) bool {
	if !r.sleep(r.cfg.TrickResolveDelay) {
		return false
	}
	_, err := r.coord.Perform(ctx, r.roomID, func(st *hokm.GameState) error {
		return st.ResolveTrick()
	})
	return r.tolerate(err, "结算本墩")
}

// recordMatch 终局归档比赛记录，只写一次
func (r *Runner) recordMatch(ctx context.Context, st *hokm.GameState) {
	if r.recorded || r.records == nil {
		return
	}
	r.recorded = true

	winner := hokm.Team1
	if st.Scores[hokm.Team2] > st.Scores[hokm.Team1] {
		winner = hokm.Team2
	}
	record := &models.MatchRecord{
		RoomID:     st.RoomID,
		Mode:       string(st.Mode),
		WinnerTeam: int(winner),
		Team1Score: st.Scores[hokm.Team1],
		Team2Score: st.Scores[hokm.Team2],
		HakimID:    st.HakimID,
		StartedAt:  r.startedAt,
		EndedAt:    time.Now(),
	}
	if err := r.records.Create(ctx, record); err != nil {
		r.logger.Error("归档比赛记录失败", zap.Error(err))
		return
	}
	r.logger.Info("比赛记录已归档",
		zap.Int("winner_team", record.WinnerTeam),
		zap.Int("team1", record.Team1Score),
		zap.Int("team2", record.Team2Score),
	)
}

// tolerate 幂等推进的预期失败（别的驱动器抢先做了）降级为调试日志
func (r *Runner) tolerate(err error, action string) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, errors.ErrRoomNotFound) {
		return false
	}
	if errors.Is(err, errors.ErrConflict) || errors.Is(err, errors.ErrWrongPhase) {
		r.logger.Debug("推进已被抢先完成", zap.String("action", action), zap.Error(err))
		return true
	}
	r.logger.Warn("推进失败", zap.String("action", action), zap.Error(err))
	return true
}

// sleep 可中断的停顿，返回false表示驱动器被要求退出
func (r *Runner) sleep(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-r.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// RunnerManager 管理所有房间驱动器的生命周期
type RunnerManager struct {
	coord   *Coordinator
	cfg     config.GameConfig
	records repository.MatchRecordRepository
	logger  *zap.Logger

	mu      sync.Mutex
	runners map[string]*Runner
}

// NewRunnerManager 创建驱动器管理器
func NewRunnerManager(coord *Coordinator, cfg config.GameConfig, records repository.MatchRecordRepository) *RunnerManager {
	return &RunnerManager{
		coord:   coord,
		cfg:     cfg,
		records: records,
		logger:  logger.GetLogger().Named("runner-manager"),
		runners: make(map[string]*Runner),
	}
}

// Start 为房间启动驱动器，已有驱动器则忽略
func (m *RunnerManager) Start(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runners[roomID]; ok {
		return
	}
	r := NewRunner(roomID, m.coord, m.cfg.Hokm, m.records)
	m.runners[roomID] = r
	r.Start()

	// 驱动器自然退出后清理注册表
	go func() {
		<-r.done
		m.mu.Lock()
		if m.runners[roomID] == r {
			delete(m.runners, roomID)
		}
		m.mu.Unlock()
	}()
}

// Stop 停止指定房间的驱动器
func (m *RunnerManager) Stop(roomID string) {
	m.mu.Lock()
	r, ok := m.runners[roomID]
	delete(m.runners, roomID)
	m.mu.Unlock()

	if ok {
		r.Stop()
	}
}

// StopAll 停止全部驱动器（进程退出用）
func (m *RunnerManager) StopAll() {
	m.mu.Lock()
	runners := make([]*Runner, 0, len(m.runners))
	for _, r := range m.runners {
		runners = append(runners, r)
	}
	m.runners = make(map[string]*Runner)
	m.mu.Unlock()

	for _, r := range runners {
		r.Stop()
	}
}

// Count 当前活跃驱动器数量
func (m *RunnerManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.runners)
}

// Recover 进程启动时扫描存储，为未终局的房间重启驱动器
func (m *RunnerManager) Recover(ctx context.Context) error {
	docs, err := m.coord.Store().List(ctx)
	if err != nil {
		return errors.Wrap(err, errors.ErrTransport, "扫描房间文档失败")
	}

	recovered := 0
	for _, doc := range docs {
		st, err := decodeState(doc.State)
		if err != nil {
			m.logger.Error("房间文档损坏，跳过恢复",
				zap.String("room_id", doc.RoomID),
				zap.Error(err))
			continue
		}
		if st.Phase == hokm.PhaseMatchEnd {
			continue
		}

		// 超过闲置阈值的房间直接回收
		if m.cfg.Room.IdleTimeout > 0 && time.Since(st.LastActionAt) > m.cfg.Room.IdleTimeout {
			m.logger.Info("房间闲置超时，回收",
				zap.String("room_id", st.RoomID),
				zap.Time("last_action_at", st.LastActionAt))
			if err := m.coord.Delete(ctx, st.RoomID); err != nil {
				m.logger.Error("回收闲置房间失败", zap.Error(err))
			}
			continue
		}

		m.Start(st.RoomID)
		recovered++
	}

	m.logger.Info("房间恢复完成", zap.Int("recovered", recovered))
	return nil
}
