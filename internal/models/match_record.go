package models

import (
	"time"
)

// MatchRecord 比赛记录（终局归档，房间文档删除后仍可追溯）
type MatchRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RoomID     string    `gorm:"index;size:64;not null" json:"room_id"`
	Mode       string    `gorm:"size:8;not null" json:"mode"`
	WinnerTeam int       `gorm:"not null" json:"winner_team"`
	Team1Score int       `gorm:"not null" json:"team1_score"`
	Team2Score int       `gorm:"not null" json:"team2_score"`
	HakimID    string    `gorm:"size:64" json:"hakim_id"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName 指定表名
func (MatchRecord) TableName() string {
	return "match_records"
}
