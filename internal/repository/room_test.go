package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/hokm-game/internal/errors"
	"github.com/wfunc/hokm-game/internal/models"
)

// createTestRoom 创建测试房间文档
func createTestRoom(roomID string) *models.RoomDocument {
	return &models.RoomDocument{
		RoomID: roomID,
		Seq:    0,
		Phase:  "lobby",
		State:  `{"room_id":"` + roomID + `"}`,
	}
}

func TestRoomRepository_Create(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewRoomRepository(db)
	ctx := context.Background()

	doc := createTestRoom("room-1")
	err := repo.Create(ctx, doc)
	require.NoError(t, err)
	assert.NotZero(t, doc.ID)

	found, err := repo.FindByRoomID(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), found.Seq)
	assert.Equal(t, "lobby", found.Phase)
}

func TestRoomRepository_Create_Duplicate(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewRoomRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, createTestRoom("room-1")))

	err := repo.Create(ctx, createTestRoom("room-1"))
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyExists))
}

func TestRoomRepository_FindByRoomID_NotFound(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewRoomRepository(db)

	_, err := repo.FindByRoomID(context.Background(), "missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrRoomNotFound))
}

func TestRoomRepository_UpdateWithSeq(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewRoomRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, createTestRoom("room-1")))

	newSeq, err := repo.UpdateWithSeq(ctx, "room-1", 0, "determining", `{"phase":"determining"}`)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), newSeq)

	found, err := repo.FindByRoomID(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), found.Seq)
	assert.Equal(t, "determining", found.Phase)
}

func TestRoomRepository_UpdateWithSeq_Stale(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewRoomRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, createTestRoom("room-1")))
	_, err := repo.UpdateWithSeq(ctx, "room-1", 0, "determining", `{"v":1}`)
	require.NoError(t, err)

	// 基于过期版本写入必须整体失败，文档保持原样
	_, err = repo.UpdateWithSeq(ctx, "room-1", 0, "playing", `{"v":2}`)
	assert.True(t, apperrors.Is(err, apperrors.ErrStaleWrite))

	found, err := repo.FindByRoomID(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), found.Seq)
	assert.Equal(t, "determining", found.Phase)
	assert.Equal(t, `{"v":1}`, found.State)
}

func TestRoomRepository_UpdateWithSeq_NotFound(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewRoomRepository(db)

	_, err := repo.UpdateWithSeq(context.Background(), "missing", 0, "lobby", "{}")
	assert.True(t, apperrors.Is(err, apperrors.ErrRoomNotFound))
}

func TestRoomRepository_ForceUpdate(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewRoomRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, createTestRoom("room-1")))
	_, err := repo.UpdateWithSeq(ctx, "room-1", 0, "playing", `{"v":1}`)
	require.NoError(t, err)

	// 强制写入不看版本号，但Seq照常递增
	newSeq, err := repo.ForceUpdate(ctx, "room-1", "playing", `{"v":2}`)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), newSeq)

	found, err := repo.FindByRoomID(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, found.State)
}

func TestRoomRepository_Delete(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewRoomRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, createTestRoom("room-1")))
	require.NoError(t, repo.Delete(ctx, "room-1"))

	_, err := repo.FindByRoomID(ctx, "room-1")
	assert.True(t, apperrors.Is(err, apperrors.ErrRoomNotFound))

	// 删除不存在的房间不算错误
	assert.NoError(t, repo.Delete(ctx, "missing"))
}

func TestRoomRepository_FindActive(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewRoomRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, createTestRoom("room-1")))

	ended := createTestRoom("room-2")
	ended.Phase = "match_end"
	require.NoError(t, repo.Create(ctx, ended))

	active, err := repo.FindActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "room-1", active[0].RoomID)
}

func TestRoomRepository_FindIdleBefore(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewRoomRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, createTestRoom("room-1")))

	idle, err := repo.FindIdleBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, idle)

	idle, err = repo.FindIdleBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, idle, 1)
}

func TestRoomRepository_Count(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewRoomRepository(db)
	ctx := context.Background()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, repo.Create(ctx, createTestRoom("room-1")))
	require.NoError(t, repo.Create(ctx, createTestRoom("room-2")))

	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
