package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/hokm-game/internal/models"
)

// createTestMatchRecord 创建测试比赛记录
func createTestMatchRecord(roomID string, winnerTeam int) *models.MatchRecord {
	now := time.Now()
	return &models.MatchRecord{
		RoomID:     roomID,
		Mode:       "4p",
		WinnerTeam: winnerTeam,
		Team1Score: 7,
		Team2Score: 3,
		HakimID:    "p1",
		StartedAt:  now.Add(-30 * time.Minute),
		EndedAt:    now,
	}
}

func TestMatchRecordRepository_Create(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewMatchRecordRepository(db)
	ctx := context.Background()

	record := createTestMatchRecord("room-1", 1)
	err := repo.Create(ctx, record)
	require.NoError(t, err)
	assert.NotZero(t, record.ID)
}

func TestMatchRecordRepository_FindByRoomID(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewMatchRecordRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, createTestMatchRecord("room-1", 1)))
	require.NoError(t, repo.Create(ctx, createTestMatchRecord("room-1", 2)))
	require.NoError(t, repo.Create(ctx, createTestMatchRecord("room-2", 1)))

	records, err := repo.FindByRoomID(ctx, "room-1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "room-1", r.RoomID)
	}
}

func TestMatchRecordRepository_List(t *testing.T) {
	db := SetupTestDB()
	defer CleanupTestDB(db)
	repo := NewMatchRecordRepository(db)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		require.NoError(t, repo.Create(ctx, createTestMatchRecord("room-1", 1)))
	}

	p := NewPagination(1, 10)
	records, err := repo.List(ctx, p)
	require.NoError(t, err)
	assert.Len(t, records, 10)
	assert.Equal(t, int64(15), p.Total)

	p = NewPagination(2, 10)
	records, err = repo.List(ctx, p)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}
