package models

import (
	"time"

	"gorm.io/datatypes"
)

type GoalType string

const (
	GoalAttendance GoalType = "attendance"
	GoalFollowers  GoalType = "followers"
	GoalViewers    GoalType = "viewers"
	GoalPoints     GoalType = "points"
	GoalCustom     GoalType = "custom"
)

func (g GoalType) Valid() bool {
	switch g {
	case GoalAttendance, GoalFollowers, GoalViewers, GoalPoints, GoalCustom:
		return true
	}
	return false
}

type EventType string

const (
	EventSolo  EventType = "solo"
	EventGroup EventType = "group"
)

func (e EventType) Valid() bool {
	return e == EventSolo || e == EventGroup
}

type ChallengeStatus string

const (
	ChallengeUpcoming ChallengeStatus = "upcoming"
	ChallengeActive   ChallengeStatus = "active"
	ChallengeEnded    ChallengeStatus = "ended"
)

const (
	DefaultGoalValue = 100
	DefaultGoalUnit  = "人"
)

// Challenge is a fan mobilization campaign with a numeric goal tied to an event.
type Challenge struct {
	ID   string `gorm:"primaryKey;type:uuid" json:"id"`
	Slug string `gorm:"index" json:"slug"`

	// Host
	HostUserID         string `gorm:"type:uuid;index;not null" json:"host_user_id"`
	HostTwitterID      string `json:"host_twitter_id,omitempty"`
	HostName           string `gorm:"not null" json:"host_name"`
	HostUsername       string `json:"host_username,omitempty"`
	HostProfileImage   string `gorm:"type:text" json:"host_profile_image,omitempty"`
	HostFollowersCount int    `json:"host_followers_count"`
	HostDescription    string `gorm:"type:text" json:"host_description,omitempty"`

	Title       string `gorm:"type:varchar(255);not null" json:"title"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	// Goal
	GoalType     GoalType `gorm:"type:varchar(16);not null;default:'attendance'" json:"goal_type"`
	GoalValue    int      `gorm:"not null;default:100" json:"goal_value"`
	GoalUnit     string   `gorm:"type:varchar(32);not null;default:'人'" json:"goal_unit"`
	CurrentValue int      `gorm:"not null;default:0" json:"current_value"`

	EventType  EventType `gorm:"type:varchar(8);not null;default:'solo'" json:"event_type"`
	CategoryID *string   `gorm:"type:uuid;index" json:"category_id,omitempty"`
	EventDate  time.Time `gorm:"index;not null" json:"event_date"`
	Venue      string    `json:"venue,omitempty"`
	Prefecture string    `json:"prefecture,omitempty"`

	// Tickets
	TicketPresale   *int       `json:"ticket_presale,omitempty"`
	TicketDoor      *int       `json:"ticket_door,omitempty"`
	TicketSaleStart *time.Time `json:"ticket_sale_start,omitempty"`
	TicketURL       string     `gorm:"type:text" json:"ticket_url,omitempty"`
	ExternalURL     string     `gorm:"type:text" json:"external_url,omitempty"`
	CoverImageURL   string     `gorm:"type:text" json:"cover_image_url,omitempty"`

	Status   ChallengeStatus `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	IsPublic bool            `gorm:"not null;index" json:"is_public"`

	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`

	Timestamps
}

// Progress is currentValue/goalValue clamped to [0,1], with the goal floored at 1.
func (c *Challenge) Progress() float64 {
	goal := c.GoalValue
	if goal < 1 {
		goal = 1
	}
	p := float64(c.CurrentValue) / float64(goal)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func (c *Challenge) GoalReached() bool {
	return c.GoalValue > 0 && c.CurrentValue >= c.GoalValue
}

type Category struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Name        string `gorm:"type:varchar(100);not null" json:"name"`
	Slug        string `gorm:"type:varchar(100);uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description,omitempty"`
	Icon        string `gorm:"type:varchar(16);default:'🎤'" json:"icon"`
	Color       string `gorm:"type:varchar(16);default:'#EC4899'" json:"color"`
	SortOrder   int    `gorm:"default:0" json:"sort_order"`
	IsActive    bool   `gorm:"not null;index" json:"is_active"`
	Timestamps
}

// ChallengeTemplate stores reusable challenge settings.
type ChallengeTemplate struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string    `gorm:"type:uuid;index;not null" json:"user_id"`
	Name          string    `gorm:"type:varchar(100);not null" json:"name"`
	Description   string    `gorm:"type:text" json:"description,omitempty"`
	GoalType      GoalType  `gorm:"type:varchar(16);not null" json:"goal_type"`
	GoalValue     int       `gorm:"not null" json:"goal_value"`
	GoalUnit      string    `gorm:"type:varchar(32);not null" json:"goal_unit"`
	EventType     EventType `gorm:"type:varchar(8);not null" json:"event_type"`
	TicketPresale *int      `json:"ticket_presale,omitempty"`
	TicketDoor    *int      `json:"ticket_door,omitempty"`
	IsPublic      bool      `gorm:"not null;index" json:"is_public"`
	UseCount      int       `gorm:"default:0" json:"use_count"`
	Timestamps
}

// ChallengeStats is an hourly snapshot of a challenge's participation.
type ChallengeStats struct {
	ID                string         `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID       string         `gorm:"type:uuid;index:idx_challenge_stats_snapshot;not null" json:"challenge_id"`
	SnapshotAt        time.Time      `gorm:"index:idx_challenge_stats_snapshot;not null" json:"snapshot_at"`
	ParticipantCount  int64          `json:"participant_count"`
	TotalContribution int64          `json:"total_contribution"`
	NewParticipants   int64          `json:"new_participants"`
	CurrentValue      int            `json:"current_value"`
	PrefectureData    datatypes.JSON `json:"prefecture_data"` // {"東京都": 12, ...}
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
