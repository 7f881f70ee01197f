package repository

import (
	"context"
	"time"

	"github.com/wfunc/hokm-game/internal/errors"
	"github.com/wfunc/hokm-game/internal/models"
	"gorm.io/gorm"
)

// RoomRepository 房间文档仓储接口
// 写入以Seq为比较基准做乐观并发控制
type RoomRepository interface {
	BaseRepository
	Create(ctx context.Context, doc *models.RoomDocument) error
	FindByRoomID(ctx context.Context, roomID string) (*models.RoomDocument, error)
	// UpdateWithSeq 仅当数据库中Seq等于expectedSeq时写入并把Seq加一
	UpdateWithSeq(ctx context.Context, roomID string, expectedSeq uint64, phase, state string) (uint64, error)
	// ForceUpdate 无条件覆盖，Seq照常递增
	ForceUpdate(ctx context.Context, roomID string, phase, state string) (uint64, error)
	Delete(ctx context.Context, roomID string) error
	FindAll(ctx context.Context) ([]*models.RoomDocument, error)
	FindActive(ctx context.Context) ([]*models.RoomDocument, error)
	FindIdleBefore(ctx context.Context, before time.Time) ([]*models.RoomDocument, error)
	Count(ctx context.Context) (int64, error)
}

// roomRepo 房间文档仓储实现
type roomRepo struct {
	*BaseRepo
}

// NewRoomRepository 创建房间文档仓储
func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

// Create 创建房间文档，房间号冲突返回ErrAlreadyExists
func (r *roomRepo) Create(ctx context.Context, doc *models.RoomDocument) error {
	err := r.db.WithContext(ctx).Create(doc).Error
	if err != nil && isDuplicateKey(err) {
		return errors.Wrap(err, errors.ErrAlreadyExists, "房间已存在")
	}
	return err
}

// FindByRoomID 根据房间号查找
func (r *roomRepo) FindByRoomID(ctx context.Context, roomID string) (*models.RoomDocument, error) {
	var doc models.RoomDocument
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		First(&doc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrRoomNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateWithSeq 比较并交换：Seq不匹配时不落任何修改
func (r *roomRepo) UpdateWithSeq(ctx context.Context, roomID string, expectedSeq uint64, phase, state string) (uint64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.RoomDocument{}).
		Where("room_id = ? AND seq = ?", roomID, expectedSeq).
		Updates(map[string]interface{}{
			"seq":   expectedSeq + 1,
			"phase": phase,
			"state": state,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		// 区分房间不存在和版本过期
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&models.RoomDocument{}).
			Where("room_id = ?", roomID).
			Count(&count).Error; err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, errors.New(errors.ErrRoomNotFound)
		}
		return 0, errors.Newf(errors.ErrStaleWrite, "版本已过期（期望 %d）", expectedSeq)
	}
	return expectedSeq + 1, nil
}

// ForceUpdate 无条件覆盖当前文档
func (r *roomRepo) ForceUpdate(ctx context.Context, roomID string, phase, state string) (uint64, error) {
	var newSeq uint64
	err := r.Transaction(ctx, func(tx *gorm.DB) error {
		var doc models.RoomDocument
		if err := tx.Where("room_id = ?", roomID).First(&doc).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.New(errors.ErrRoomNotFound)
			}
			return err
		}
		newSeq = doc.Seq + 1
		return tx.Model(&models.RoomDocument{}).
			Where("room_id = ?", roomID).
			Updates(map[string]interface{}{
				"seq":   newSeq,
				"phase": phase,
				"state": state,
			}).Error
	})
	return newSeq, err
}

// Delete 删除房间文档
func (r *roomRepo) Delete(ctx context.Context, roomID string) error {
	return r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Delete(&models.RoomDocument{}).Error
}

// FindAll 列出全部房间文档
func (r *roomRepo) FindAll(ctx context.Context) ([]*models.RoomDocument, error) {
	var docs []*models.RoomDocument
	err := r.db.WithContext(ctx).
		Order("updated_at asc").
		Find(&docs).Error
	return docs, err
}

// FindActive 查找所有未终局的房间（进程重启恢复用）
func (r *roomRepo) FindActive(ctx context.Context) ([]*models.RoomDocument, error) {
	var docs []*models.RoomDocument
	err := r.db.WithContext(ctx).
		Where("phase <> ?", "match_end").
		Order("updated_at asc").
		Find(&docs).Error
	return docs, err
}

// FindIdleBefore 查找在指定时间前就没有更新过的房间
func (r *roomRepo) FindIdleBefore(ctx context.Context, before time.Time) ([]*models.RoomDocument, error) {
	var docs []*models.RoomDocument
	err := r.db.WithContext(ctx).
		Where("updated_at < ?", before).
		Find(&docs).Error
	return docs, err
}

// Count 统计房间总数
func (r *roomRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RoomDocument{}).
		Count(&count).Error
	return count, err
}

// WithTx 使用事务
func (r *roomRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &roomRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
