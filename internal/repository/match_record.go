package repository

import (
	"context"

	"github.com/wfunc/hokm-game/internal/models"
	"gorm.io/gorm"
)

// MatchRecordRepository 比赛记录仓储接口
type MatchRecordRepository interface {
	BaseRepository
	Create(ctx context.Context, record *models.MatchRecord) error
	FindByRoomID(ctx context.Context, roomID string) ([]*models.MatchRecord, error)
	List(ctx context.Context, p *Pagination) ([]*models.MatchRecord, error)
}

// matchRecordRepo 比赛记录仓储实现
type matchRecordRepo struct {
	*BaseRepo
}

// NewMatchRecordRepository 创建比赛记录仓储
func NewMatchRecordRepository(db *gorm.DB) MatchRecordRepository {
	return &matchRecordRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 写入比赛记录
func (r *matchRecordRepo) Create(ctx context.Context, record *models.MatchRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// FindByRoomID 查找房间的历史比赛
func (r *matchRecordRepo) FindByRoomID(ctx context.Context, roomID string) ([]*models.MatchRecord, error) {
	var records []*models.MatchRecord
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("ended_at desc").
		Find(&records).Error
	return records, err
}

// List 分页列出比赛记录
func (r *matchRecordRepo) List(ctx context.Context, p *Pagination) ([]*models.MatchRecord, error) {
	var records []*models.MatchRecord

	r.db.WithContext(ctx).
		Model(&models.MatchRecord{}).
		Count(&p.Total)

	err := r.db.WithContext(ctx).
		Order("ended_at desc").
		Scopes(Paginate(p)).
		Find(&records).Error

	return records, err
}

// WithTx 使用事务
func (r *matchRecordRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &matchRecordRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
