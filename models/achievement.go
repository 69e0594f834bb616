package models

import "time"

type AchievementKind string

const (
	AchievementParticipation AchievementKind = "participation"
	AchievementHosting       AchievementKind = "hosting"
	AchievementInvitation    AchievementKind = "invitation"
	AchievementContribution  AchievementKind = "contribution"
	AchievementStreak        AchievementKind = "streak"
	AchievementSpecial       AchievementKind = "special"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// Achievement: unlockable condition in the catalog
type Achievement struct {
	ID             string          `gorm:"primaryKey;type:uuid" json:"id"`
	Name           string          `gorm:"not null" json:"name"`
	Description    string          `json:"description,omitempty"`
	Icon           string          `gorm:"type:varchar(16)" json:"icon,omitempty"`
	Type           AchievementKind `gorm:"type:varchar(16);not null" json:"type"`
	ConditionType  string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"condition_type"` // e.g. participate_5, streak_7
	ConditionValue int64           `gorm:"not null" json:"condition_value"`
	Points         int             `gorm:"not null;default:10" json:"points"`
	Rarity         Rarity          `gorm:"type:varchar(16);not null;default:'common'" json:"rarity"`
	IsActive       bool            `gorm:"not null" json:"is_active"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type UserAchievement struct {
	ID            string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string     `gorm:"type:uuid;uniqueIndex:idx_user_achievement;not null" json:"user_id"`
	AchievementID string     `gorm:"type:uuid;uniqueIndex:idx_user_achievement;not null" json:"achievement_id"`
	Progress      int64      `gorm:"not null;default:0" json:"progress"`
	IsCompleted   bool       `gorm:"not null" json:"is_completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Timestamps

	Achievement *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
}

// AchievementPage celebrates a challenge that reached its goal. One per challenge.
type AchievementPage struct {
	ID                string    `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID       string    `gorm:"type:uuid;uniqueIndex;not null" json:"challenge_id"`
	AchievedAt        time.Time `gorm:"not null" json:"achieved_at"`
	FinalValue        int       `gorm:"not null" json:"final_value"`
	GoalValue         int       `gorm:"not null" json:"goal_value"`
	TotalParticipants int64     `gorm:"not null" json:"total_participants"`
	Title             string    `gorm:"not null" json:"title"`
	Message           string    `gorm:"type:text" json:"message,omitempty"`
	ImageURL          string    `gorm:"type:text" json:"image_url,omitempty"`
	IsPublic          bool      `gorm:"not null;index" json:"is_public"`
	Timestamps
}

// AchievementCatalog is seeded into the achievements table.
var AchievementCatalog = []Achievement{
	{Name: "参加デビュー", Icon: "🎉", Type: AchievementParticipation, ConditionType: "participate_1", ConditionValue: 1, Points: 10, Rarity: RarityCommon},
	{Name: "常連さん", Icon: "🎫", Type: AchievementParticipation, ConditionType: "participate_5", ConditionValue: 5, Points: 20, Rarity: RarityCommon},
	{Name: "推し活マスター", Icon: "🌟", Type: AchievementParticipation, ConditionType: "participate_10", ConditionValue: 10, Points: 50, Rarity: RarityUncommon},
	{Name: "皆勤賞", Icon: "🏅", Type: AchievementParticipation, ConditionType: "participate_25", ConditionValue: 25, Points: 100, Rarity: RarityRare},
	{Name: "伝説のファン", Icon: "👑", Type: AchievementParticipation, ConditionType: "participate_50", ConditionValue: 50, Points: 250, Rarity: RarityLegendary},
	{Name: "はじめての主催", Icon: "📣", Type: AchievementHosting, ConditionType: "first_host", ConditionValue: 1, Points: 20, Rarity: RarityCommon},
	{Name: "人気ホスト", Icon: "🎤", Type: AchievementHosting, ConditionType: "host_5", ConditionValue: 5, Points: 75, Rarity: RarityRare},
	{Name: "カリスマホスト", Icon: "💫", Type: AchievementHosting, ConditionType: "host_10", ConditionValue: 10, Points: 150, Rarity: RarityEpic},
	{Name: "はじめての招待", Icon: "💌", Type: AchievementInvitation, ConditionType: "invite_1", ConditionValue: 1, Points: 10, Rarity: RarityCommon},
	{Name: "仲間づくり", Icon: "🤝", Type: AchievementInvitation, ConditionType: "invite_5", ConditionValue: 5, Points: 30, Rarity: RarityUncommon},
	{Name: "インフルエンサー", Icon: "📢", Type: AchievementInvitation, ConditionType: "invite_10", ConditionValue: 10, Points: 75, Rarity: RarityRare},
	{Name: "動員の達人", Icon: "🚀", Type: AchievementInvitation, ConditionType: "invite_25", ConditionValue: 25, Points: 200, Rarity: RarityEpic},
	{Name: "貢献者", Icon: "💪", Type: AchievementContribution, ConditionType: "contribution_10", ConditionValue: 10, Points: 20, Rarity: RarityCommon},
	{Name: "大貢献者", Icon: "🔥", Type: AchievementContribution, ConditionType: "contribution_50", ConditionValue: 50, Points: 75, Rarity: RarityRare},
	{Name: "動員王", Icon: "🏆", Type: AchievementContribution, ConditionType: "contribution_100", ConditionValue: 100, Points: 200, Rarity: RarityEpic},
	{Name: "3日連続", Icon: "📅", Type: AchievementStreak, ConditionType: "streak_3", ConditionValue: 3, Points: 15, Rarity: RarityCommon},
	{Name: "1週間連続", Icon: "🗓️", Type: AchievementStreak, ConditionType: "streak_7", ConditionValue: 7, Points: 50, Rarity: RarityUncommon},
	{Name: "1ヶ月連続", Icon: "⏳", Type: AchievementStreak, ConditionType: "streak_30", ConditionValue: 30, Points: 300, Rarity: RarityLegendary},
	{Name: "目標達成に貢献", Icon: "🎯", Type: AchievementSpecial, ConditionType: "goal_reached", ConditionValue: 1, Points: 50, Rarity: RarityRare},
}
