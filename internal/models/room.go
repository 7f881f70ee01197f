package models

import (
	"time"
)

// RoomDocument 房间文档模型（每个房间一份完整状态快照）
// Seq为单调递增版本号，乐观并发控制的比较基准
type RoomDocument struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    string    `gorm:"uniqueIndex;size:64;not null" json:"room_id"`
	Seq       uint64    `gorm:"not null;default:0" json:"seq"`
	Phase     string    `gorm:"index;size:32;not null" json:"phase"`
	State     string    `gorm:"type:text" json:"state"` // JSON格式的房间状态
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (RoomDocument) TableName() string {
	return "room_documents"
}
