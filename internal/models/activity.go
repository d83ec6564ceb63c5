package models

import (
	"time"
)

// ActivityRecord is one append-only ledger entry. Points, CO2Saved and
// Quantity snapshot what the entry earned when it was recorded.
type ActivityRecord struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"not null;index:idx_activity_user_time" json:"user_id"`
	TaskID      uint           `gorm:"not null;index" json:"task_id"`
	Task        TaskDefinition `gorm:"foreignKey:TaskID" json:"task"`
	Points      int            `gorm:"not null" json:"points"`
	CO2Saved    float64        `gorm:"column:co2_saved;not null" json:"co2_saved"`
	Quantity    int            `gorm:"default:1;not null" json:"quantity"`
	CompletedAt time.Time      `gorm:"not null;index:idx_activity_user_time;index" json:"completed_at"`
}
