package game

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/hokm-game/internal/auth"
	"github.com/wfunc/hokm-game/internal/config"
	apperrors "github.com/wfunc/hokm-game/internal/errors"
	"github.com/wfunc/hokm-game/internal/game/hokm"
	"github.com/wfunc/hokm-game/internal/store"
)

// testGameConfig 把所有演出延迟压到最短，测试里没人看动画
func testGameConfig() config.GameConfig {
	return config.GameConfig{
		Hokm: config.HokmConfig{
			RevealTick:          time.Millisecond,
			HakimDisplayDelay:   0,
			TrickResolveDelay:   time.Millisecond,
			PostDealDelay:       0,
			PerformMaxRetries:   5,
			ActionLogMaxEntries: 100,
		},
		Room: config.RoomConfig{
			MaxRooms: 8,
		},
	}
}

// setupService 内存存储上的完整服务栈
func setupService(t *testing.T) *RoomService {
	t.Helper()
	coord := NewCoordinator(store.NewMemoryStore(), 5)
	cfg := testGameConfig()
	runners := NewRunnerManager(coord, cfg, nil)
	t.Cleanup(runners.StopAll)
	tokens := auth.NewTokenManager("test-secret", 1)
	return NewRoomService(coord, runners, tokens, cfg)
}

// joinAll 四名玩家依次入座，返回playerID列表
func joinAll(t *testing.T, svc *RoomService, roomID string, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		res, err := svc.JoinRoom(context.Background(), roomID, fmt.Sprintf("玩家%d", i+1))
		require.NoError(t, err)
		require.NotEmpty(t, res.Token)
		require.Equal(t, i, res.Seat)
		ids = append(ids, res.PlayerID)
	}
	return ids
}

// waitPhase 等房间被驱动器推进到指定阶段
func waitPhase(t *testing.T, svc *RoomService, roomID string, phase hokm.Phase) *hokm.GameState {
	t.Helper()
	var st *hokm.GameState
	require.Eventually(t, func() bool {
		var err error
		st, _, err = svc.GetState(context.Background(), roomID)
		return err == nil && st.Phase == phase
	}, 5*time.Second, 5*time.Millisecond, "等待阶段 %s 超时", phase)
	return st
}

func TestRoomService_CreateRoom(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	roomID, err := svc.CreateRoom(ctx, hokm.Mode4P)
	require.NoError(t, err)
	require.NotEmpty(t, roomID)

	st, seq, err := svc.GetState(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, hokm.PhaseLobby, st.Phase)
	assert.Equal(t, uint64(1), seq)
}

func TestRoomService_CreateRoom_InvalidMode(t *testing.T) {
	svc := setupService(t)

	_, err := svc.CreateRoom(context.Background(), hokm.Mode("3p"))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidMode))
}

func TestRoomService_CreateRoom_MaxRooms(t *testing.T) {
	svc := setupService(t)
	svc.cfg.Room.MaxRooms = 2
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.CreateRoom(ctx, hokm.Mode4P)
		require.NoError(t, err)
	}

	_, err := svc.CreateRoom(ctx, hokm.Mode4P)
	assert.True(t, apperrors.Is(err, apperrors.ErrRoomFull))
}

func TestRoomService_JoinRoom_NotFound(t *testing.T) {
	svc := setupService(t)

	_, err := svc.JoinRoom(context.Background(), "missing", "玩家1")
	assert.True(t, apperrors.Is(err, apperrors.ErrRoomNotFound))
}

func TestRoomService_JoinRoom_AfterStart(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	roomID, err := svc.CreateRoom(ctx, hokm.Mode2P)
	require.NoError(t, err)
	joinAll(t, svc, roomID, 2)

	// 满座即开局，晚到的进不来
	_, err = svc.JoinRoom(ctx, roomID, "玩家3")
	assert.True(t, apperrors.Is(err, apperrors.ErrRoomClosed))
}

func TestRoomService_SwitchSeat(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	roomID, err := svc.CreateRoom(ctx, hokm.Mode4P)
	require.NoError(t, err)
	res, err := svc.JoinRoom(ctx, roomID, "玩家1")
	require.NoError(t, err)

	st, err := svc.SwitchSeat(ctx, roomID, res.PlayerID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, st.SeatIndexOf(res.PlayerID))
	assert.Equal(t, hokm.Team2, st.TeamOf(res.PlayerID))
}

func TestRoomService_LeaveRoom_LobbyDeletesEmptyRoom(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	roomID, err := svc.CreateRoom(ctx, hokm.Mode4P)
	require.NoError(t, err)
	res, err := svc.JoinRoom(ctx, roomID, "玩家1")
	require.NoError(t, err)

	require.NoError(t, svc.LeaveRoom(ctx, roomID, res.PlayerID))

	_, _, err = svc.GetState(ctx, roomID)
	assert.True(t, apperrors.Is(err, apperrors.ErrRoomNotFound))
}

func TestRoomService_FullFlow4P(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	roomID, err := svc.CreateRoom(ctx, hokm.Mode4P)
	require.NoError(t, err)
	joinAll(t, svc, roomID, 4)

	// 驱动器翻牌定Hakim，随后给Hakim发前5张
	st := waitPhase(t, svc, roomID, hokm.PhaseChoosingHokm)
	require.NotEmpty(t, st.HakimID)
	assert.Len(t, st.PlayerByID(st.HakimID).Hand, 5)
	assert.Len(t, st.Deck, 47)

	// 翻牌记录里最后一张是A，且归属推得出Hakim
	last := st.HakimDeterminationCards[len(st.HakimDeterminationCards)-1]
	assert.Equal(t, hokm.RankAce, last.Rank)
	seat := hokm.DeterminationSeat(len(st.HakimDeterminationCards), 4)
	assert.Equal(t, st.PlayerAt(seat).ID, st.HakimID)

	// 非Hakim选主被拒
	var other string
	for i := 0; i < 4; i++ {
		if p := st.PlayerAt(i); p.ID != st.HakimID {
			other = p.ID
			break
		}
	}
	_, err = svc.SetHokm(ctx, roomID, other, hokm.SuitHearts)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotHakim))

	// Hakim选主后驱动器发完剩余手牌
	_, err = svc.SetHokm(ctx, roomID, st.HakimID, hokm.SuitHearts)
	require.NoError(t, err)

	st = waitPhase(t, svc, roomID, hokm.PhasePlaying)
	for i := 0; i < 4; i++ {
		assert.Len(t, st.PlayerAt(i).Hand, 13)
	}
	assert.Empty(t, st.Deck)
	assert.Equal(t, st.HakimID, st.CurrentTurnPlayerID)

	// 打满一墩，驱动器自动结算
	playOneTrick(t, svc, roomID)

	require.Eventually(t, func() bool {
		st, _, err := svc.GetState(ctx, roomID)
		if err != nil {
			return false
		}
		tricks := st.CurrentRoundTricks[hokm.Team1] + st.CurrentRoundTricks[hokm.Team2]
		return tricks == 1 && len(st.TableCards) == 0
	}, 5*time.Second, 5*time.Millisecond)

	st, _, err = svc.GetState(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, st.LastWinnerID, st.CurrentTurnPlayerID)
	for i := 0; i < 4; i++ {
		assert.Len(t, st.PlayerAt(i).Hand, 12)
	}
}

// playOneTrick 按回合顺序打出一墩合法牌
func playOneTrick(t *testing.T, svc *RoomService, roomID string) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		st, _, err := svc.GetState(ctx, roomID)
		require.NoError(t, err)
		p := st.PlayerByID(st.CurrentTurnPlayerID)
		require.NotNil(t, p)

		_, err = svc.PlayCard(ctx, roomID, p.ID, legalCard(st, p).ID)
		require.NoError(t, err)
	}
}

// legalCard 挑一张当前规则下合法的牌：能跟牌就跟牌
func legalCard(st *hokm.GameState, p *hokm.Player) hokm.Card {
	lead := st.LeadSuit()
	if lead != "" {
		for _, c := range p.Hand {
			if c.Suit == lead {
				return c
			}
		}
	}
	return p.Hand[0]
}

func TestRoomService_FullFlow2P(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	roomID, err := svc.CreateRoom(ctx, hokm.Mode2P)
	require.NoError(t, err)
	joinAll(t, svc, roomID, 2)

	st := waitPhase(t, svc, roomID, hokm.PhaseChoosingHokm)
	_, err = svc.SetHokm(ctx, roomID, st.HakimID, hokm.SuitClubs)
	require.NoError(t, err)

	st = waitPhase(t, svc, roomID, hokm.PhasePlaying)
	for i := 0; i < 2; i++ {
		assert.Len(t, st.PlayerAt(i).Hand, 13)
	}
	assert.Empty(t, st.Deck)
}

func TestRoomService_SyncPresence_InHand(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	roomID, err := svc.CreateRoom(ctx, hokm.Mode4P)
	require.NoError(t, err)
	ids := joinAll(t, svc, roomID, 4)

	// p4掉线，p1作为在线者定期上报在线集合
	online := map[string]bool{ids[0]: true, ids[1]: true, ids[2]: true}
	require.Eventually(t, func() bool {
		require.NoError(t, svc.SyncPresence(ctx, roomID, ids[0], online))
		st, _, err := svc.GetState(ctx, roomID)
		return err == nil && !st.PlayerByID(ids[3]).IsConnected
	}, 5*time.Second, 10*time.Millisecond)

	// 座位保留，人还在名单里
	st, _, err := svc.GetState(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, 4, st.OccupiedCount())
}

func TestRoomService_SyncPresence_LobbyClearsSeat(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	roomID, err := svc.CreateRoom(ctx, hokm.Mode4P)
	require.NoError(t, err)
	res1, err := svc.JoinRoom(ctx, roomID, "玩家1")
	require.NoError(t, err)
	res2, err := svc.JoinRoom(ctx, roomID, "玩家2")
	require.NoError(t, err)

	// 大厅内掉线按离开处理，座位清空
	require.NoError(t, svc.SyncPresence(ctx, roomID, res1.PlayerID, map[string]bool{res1.PlayerID: true}))

	st, _, err := svc.GetState(ctx, roomID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.OccupiedCount())
	assert.Equal(t, -1, st.SeatIndexOf(res2.PlayerID))
}
