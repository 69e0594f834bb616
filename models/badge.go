package models

import (
	"time"
)

type BadgeKind string

const (
	BadgeParticipation BadgeKind = "participation"
	BadgeAchievement   BadgeKind = "achievement"
	BadgeMilestone     BadgeKind = "milestone"
	BadgeSpecial       BadgeKind = "special"
)

type BadgeCondition string

const (
	ConditionFirstParticipation BadgeCondition = "first_participation"
	ConditionGoalReached        BadgeCondition = "goal_reached"
	ConditionMilestone25        BadgeCondition = "milestone_25"
	ConditionMilestone50        BadgeCondition = "milestone_50"
	ConditionMilestone75        BadgeCondition = "milestone_75"
	ConditionContribution5      BadgeCondition = "contribution_5"
	ConditionContribution10     BadgeCondition = "contribution_10"
	ConditionContribution20     BadgeCondition = "contribution_20"
	ConditionHostChallenge      BadgeCondition = "host_challenge"
	ConditionSpecial            BadgeCondition = "special"
	ConditionFollowerBadge      BadgeCondition = "follower_badge"
)

// Badge: static catalog entry
type Badge struct {
	ID            string         `gorm:"primaryKey;type:uuid" json:"id"`
	Name          string         `gorm:"not null" json:"name"`
	Description   string         `json:"description,omitempty"`
	IconURL       string         `gorm:"type:text" json:"icon_url,omitempty"`
	Type          BadgeKind      `gorm:"type:varchar(16);not null" json:"type"`
	ConditionType BadgeCondition `gorm:"type:varchar(32);uniqueIndex;not null" json:"condition_type"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// UserBadge: awarded instance, at most one per (user, badge)
type UserBadge struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string    `gorm:"type:uuid;uniqueIndex:idx_user_badge;not null" json:"user_id"`
	BadgeID     string    `gorm:"type:uuid;uniqueIndex:idx_user_badge;not null" json:"badge_id"`
	ChallengeID *string   `gorm:"type:uuid" json:"challenge_id,omitempty"`
	AwardedAt   time.Time `gorm:"autoCreateTime" json:"awarded_at"`

	Badge *Badge `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
}

// BadgeCatalog is seeded into the badges table.
var BadgeCatalog = []Badge{
	{Name: "はじめての参加", Description: "初めてチャレンジに参加した", Type: BadgeParticipation, ConditionType: ConditionFirstParticipation},
	{Name: "目標達成", Description: "参加したチャレンジが目標を達成した", Type: BadgeAchievement, ConditionType: ConditionGoalReached},
	{Name: "25%到達", Description: "チャレンジが目標の25%に到達した", Type: BadgeMilestone, ConditionType: ConditionMilestone25},
	{Name: "50%到達", Description: "チャレンジが目標の50%に到達した", Type: BadgeMilestone, ConditionType: ConditionMilestone50},
	{Name: "75%到達", Description: "チャレンジが目標の75%に到達した", Type: BadgeMilestone, ConditionType: ConditionMilestone75},
	{Name: "5人動員", Description: "1回の参加で5人以上を動員した", Type: BadgeParticipation, ConditionType: ConditionContribution5},
	{Name: "10人動員", Description: "1回の参加で10人以上を動員した", Type: BadgeParticipation, ConditionType: ConditionContribution10},
	{Name: "20人動員", Description: "1回の参加で20人以上を動員した", Type: BadgeParticipation, ConditionType: ConditionContribution20},
	{Name: "ホストデビュー", Description: "チャレンジを開催した", Type: BadgeAchievement, ConditionType: ConditionHostChallenge},
	{Name: "スペシャル", Description: "運営から贈られる特別なバッジ", Type: BadgeSpecial, ConditionType: ConditionSpecial},
	{Name: "フォロワー", Description: "ホストをフォローしている", Type: BadgeSpecial, ConditionType: ConditionFollowerBadge},
}
