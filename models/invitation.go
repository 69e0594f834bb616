package models

import "time"

// Invitation is a shareable code tied to a challenge and its inviter.
// MaxUses of 0 means unlimited.
type Invitation struct {
	ID            string     `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID   string     `gorm:"type:uuid;index;not null" json:"challenge_id"`
	InviterID     string     `gorm:"type:uuid;index;not null" json:"inviter_id"`
	Code          string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	MaxUses       int        `gorm:"not null;default:0" json:"max_uses"`
	UseCount      int        `gorm:"not null;default:0" json:"use_count"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	IsActive      bool       `gorm:"not null" json:"is_active"`
	CustomTitle   string     `json:"custom_title,omitempty"`
	CustomMessage string     `gorm:"type:text" json:"custom_message,omitempty"`
	Timestamps
}

func (i *Invitation) Exhausted() bool {
	return i.MaxUses > 0 && i.UseCount >= i.MaxUses
}

func (i *Invitation) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && i.ExpiresAt.Before(now)
}

// InvitationUse records one redemption.
type InvitationUse struct {
	ID              string    `gorm:"primaryKey;type:uuid" json:"id"`
	InvitationID    string    `gorm:"type:uuid;index;not null" json:"invitation_id"`
	UserID          *string   `gorm:"type:uuid;index" json:"user_id,omitempty"`
	ParticipationID *string   `gorm:"type:uuid;index" json:"participation_id,omitempty"`
	DisplayName     string    `json:"display_name,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
