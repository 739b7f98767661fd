package model

import (
	"time"

	"gorm.io/gorm"
)

// CompletionRecord 一次任务完成的终态记录，(user_id, quest_id)全局唯一。
// 只追加不修改：重复提交由唯一索引拒绝，不会二次发放经验。
// swagger:model CompletionRecord
type CompletionRecord struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint           `gorm:"not null;uniqueIndex:idx_user_quest" json:"userId"`
	QuestID     string         `gorm:"size:191;not null;uniqueIndex:idx_user_quest" json:"questId"`
	Score       int            `gorm:"not null" json:"score"`
	Total       int            `gorm:"not null" json:"total"`
	XPAwarded   int            `gorm:"not null" json:"xpAwarded"`
	CompletedAt time.Time      `gorm:"not null;index" json:"completedAt"`
	CreatedAt   time.Time      `json:"-"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (CompletionRecord) TableName() string {
	return "completion_records"
}
