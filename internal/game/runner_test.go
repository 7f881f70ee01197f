package game

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/hokm-game/internal/game/hokm"
	"github.com/wfunc/hokm-game/internal/repository"
	"github.com/wfunc/hokm-game/internal/store"
)

func TestRunnerManager_StartStop(t *testing.T) {
	coord := NewCoordinator(store.NewMemoryStore(), 3)
	require.NoError(t, coord.Create(context.Background(), hokm.NewGameState("room-1", hokm.Mode4P)))

	m := NewRunnerManager(coord, testGameConfig(), nil)
	m.Start("room-1")
	m.Start("room-1") // 重复启动是空操作
	assert.Equal(t, 1, m.Count())

	m.Stop("room-1")
	assert.Equal(t, 0, m.Count())

	m.StopAll()
}

func TestRunnerManager_RunnerExitsOnDelete(t *testing.T) {
	coord := NewCoordinator(store.NewMemoryStore(), 3)
	ctx := context.Background()
	require.NoError(t, coord.Create(ctx, hokm.NewGameState("room-1", hokm.Mode4P)))

	m := NewRunnerManager(coord, testGameConfig(), nil)
	m.Start("room-1")
	defer m.StopAll()

	require.NoError(t, coord.Delete(ctx, "room-1"))

	require.Eventually(t, func() bool {
		return m.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunner_RecordsMatchOnEnd(t *testing.T) {
	db := repository.SetupTestDB()
	defer repository.CleanupTestDB(db)
	records := repository.NewMatchRecordRepository(db)

	coord := NewCoordinator(store.NewMemoryStore(), 3)
	ctx := context.Background()

	st := hokm.NewGameState("room-1", hokm.Mode4P)
	st.Phase = hokm.PhaseMatchEnd
	st.Scores[hokm.Team1] = 7
	st.Scores[hokm.Team2] = 3
	st.HakimID = "p1"
	require.NoError(t, coord.Create(ctx, st))

	m := NewRunnerManager(coord, testGameConfig(), records)
	m.Start("room-1")
	defer m.StopAll()

	require.Eventually(t, func() bool {
		rows, err := records.FindByRoomID(ctx, "room-1")
		return err == nil && len(rows) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rows, err := records.FindByRoomID(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rows[0].WinnerTeam)
	assert.Equal(t, 7, rows[0].Team1Score)
	assert.Equal(t, 3, rows[0].Team2Score)
	assert.Equal(t, "4p", rows[0].Mode)
}

func TestRunnerManager_Recover(t *testing.T) {
	coord := NewCoordinator(store.NewMemoryStore(), 3)
	ctx := context.Background()

	// 大厅房间要恢复，终局房间不用
	require.NoError(t, coord.Create(ctx, hokm.NewGameState("room-lobby", hokm.Mode4P)))
	ended := hokm.NewGameState("room-ended", hokm.Mode4P)
	ended.Phase = hokm.PhaseMatchEnd
	require.NoError(t, coord.Create(ctx, ended))

	m := NewRunnerManager(coord, testGameConfig(), nil)
	defer m.StopAll()
	require.NoError(t, m.Recover(ctx))

	assert.Equal(t, 1, m.Count())
}

func TestRunnerManager_Recover_RecyclesIdleRooms(t *testing.T) {
	coord := NewCoordinator(store.NewMemoryStore(), 3)
	ctx := context.Background()

	stale := hokm.NewGameState("room-stale", hokm.Mode4P)
	stale.LastActionAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, coord.Create(ctx, stale))

	cfg := testGameConfig()
	cfg.Room.IdleTimeout = time.Hour
	m := NewRunnerManager(coord, cfg, nil)
	defer m.StopAll()
	require.NoError(t, m.Recover(ctx))

	assert.Equal(t, 0, m.Count())
	_, _, err := coord.Get(ctx, "room-stale")
	assert.Error(t, err)
}

func TestRunner_DrivesDeterminationToChoosing(t *testing.T) {
	coord := NewCoordinator(store.NewMemoryStore(), 5)
	ctx := context.Background()

	st := hokm.NewGameState("room-1", hokm.Mode4P)
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		_, err := st.Join(id, "玩家"+id)
		require.NoError(t, err)
	}
	require.Equal(t, hokm.PhaseDetermining, st.Phase)
	require.NoError(t, coord.Create(ctx, st))

	// 模拟崩溃后恢复：房间已停在判定阶段，驱动器接着翻
	m := NewRunnerManager(coord, testGameConfig(), nil)
	m.Start("room-1")
	defer m.StopAll()

	require.Eventually(t, func() bool {
		cur, _, err := coord.Get(ctx, "room-1")
		return err == nil && cur.Phase == hokm.PhaseChoosingHokm
	}, 5*time.Second, 5*time.Millisecond)
}
