package models

import (
	"time"

	"gorm.io/gorm"
)

// UserProgress holds per-user activity counters (denormalized, recomputed after each activity)
type UserProgress struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	// Activity counters
	TotalParticipations int64 `json:"total_participations" gorm:"default:0"`
	TotalContribution   int64 `json:"total_contribution" gorm:"default:0"`
	TotalHosted         int64 `json:"total_hosted" gorm:"default:0"`
	TotalInvited        int64 `json:"total_invited" gorm:"default:0"` // confirmed invitation uses

	// Streaks are counted in calendar days (Asia/Tokyo)
	CurrentStreak      int        `json:"current_streak" gorm:"default:0"`
	LongestStreak      int        `json:"longest_streak" gorm:"default:0"`
	LastParticipatedAt *time.Time `json:"last_participated_at,omitempty"`

	// Sum of points of completed achievements
	Points int64 `json:"points" gorm:"default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
