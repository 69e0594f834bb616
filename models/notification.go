package models

import "time"

type NotificationType string

const (
	NotifyGoalReached     NotificationType = "goal_reached"
	NotifyMilestone25     NotificationType = "milestone_25"
	NotifyMilestone50     NotificationType = "milestone_50"
	NotifyMilestone75     NotificationType = "milestone_75"
	NotifyNewParticipant  NotificationType = "new_participant"
	NotifyTicketAvailable NotificationType = "ticket_available"
)

// NotificationSetting: one row per (user, challenge)
type NotificationSetting struct {
	ID               string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID           string `gorm:"type:uuid;uniqueIndex:idx_notification_setting;not null" json:"user_id"`
	ChallengeID      string `gorm:"type:uuid;uniqueIndex:idx_notification_setting;not null" json:"challenge_id"`
	OnGoalReached    bool   `gorm:"not null" json:"on_goal_reached"`
	OnMilestone25    bool   `gorm:"not null" json:"on_milestone_25"`
	OnMilestone50    bool   `gorm:"not null" json:"on_milestone_50"`
	OnMilestone75    bool   `gorm:"not null" json:"on_milestone_75"`
	OnNewParticipant bool   `gorm:"not null" json:"on_new_participant"`
	ExpoPushToken    string `json:"expo_push_token,omitempty"`
	Timestamps
}

// DefaultNotificationSetting mirrors what a user gets before touching settings.
func DefaultNotificationSetting(userID, challengeID string) NotificationSetting {
	return NotificationSetting{
		UserID:        userID,
		ChallengeID:   challengeID,
		OnGoalReached: true,
		OnMilestone25: false,
		OnMilestone50: true,
		OnMilestone75: false,
	}
}

// Wants reports whether the setting opts into a notification type.
func (s *NotificationSetting) Wants(t NotificationType) bool {
	switch t {
	case NotifyGoalReached:
		return s.OnGoalReached
	case NotifyMilestone25:
		return s.OnMilestone25
	case NotifyMilestone50:
		return s.OnMilestone50
	case NotifyMilestone75:
		return s.OnMilestone75
	case NotifyNewParticipant:
		return s.OnNewParticipant
	}
	return true
}

type Notification struct {
	ID          string           `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string           `gorm:"type:uuid;index:idx_notification_user_created;not null" json:"user_id"`
	ChallengeID *string          `gorm:"type:uuid;index" json:"challenge_id,omitempty"`
	Type        NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Title       string           `gorm:"not null" json:"title"`
	Body        string           `gorm:"type:text" json:"body,omitempty"`
	IsRead      bool             `gorm:"not null;index" json:"is_read"`
	SentAt      *time.Time       `gorm:"index" json:"sent_at,omitempty"` // push delivery
	CreatedAt   time.Time        `gorm:"autoCreateTime;index:idx_notification_user_created" json:"created_at"`
}
