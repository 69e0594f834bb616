package models

import "time"

// Participation links a fan (or an anonymous entry) to a challenge.
// Removal is a soft delete; DeletedBy records who removed it.
type Participation struct {
	ID          string  `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID string  `gorm:"type:uuid;index;not null" json:"challenge_id"`
	UserID      *string `gorm:"type:uuid;index" json:"user_id,omitempty"`

	TwitterID      string `json:"twitter_id,omitempty"`
	DisplayName    string `gorm:"not null" json:"display_name"`
	Username       string `json:"username,omitempty"`
	ProfileImage   string `gorm:"type:text" json:"profile_image,omitempty"`
	FollowersCount int    `json:"followers_count"`

	Message        string `gorm:"type:text" json:"message,omitempty"`
	CompanionCount int    `gorm:"not null;default:0" json:"companion_count"`
	Contribution   int    `gorm:"not null;default:1" json:"contribution"`
	Prefecture     string `gorm:"index" json:"prefecture,omitempty"`
	Gender         Gender `gorm:"type:varchar(16);default:'unspecified'" json:"gender"`
	IsAnonymous    bool   `gorm:"not null" json:"is_anonymous"`

	InvitationID *string `gorm:"type:uuid;index" json:"invitation_id,omitempty"`
	DeletedBy    *string `gorm:"type:uuid" json:"deleted_by,omitempty"`

	Companions []ParticipationCompanion `gorm:"foreignKey:ParticipationID" json:"companions,omitempty"`

	Timestamps
}

// Amount is what this participation adds to the challenge's current value.
func (p *Participation) Amount() int {
	contribution := p.Contribution
	if contribution < 1 {
		contribution = 1
	}
	companions := p.CompanionCount
	if companions < 0 {
		companions = 0
	}
	return contribution + companions
}

// ParticipationCompanion is a named friend attending with a participant.
type ParticipationCompanion struct {
	ID              string    `gorm:"primaryKey;type:uuid" json:"id"`
	ParticipationID string    `gorm:"type:uuid;index;not null" json:"participation_id"`
	ChallengeID     string    `gorm:"type:uuid;index;not null" json:"challenge_id"`
	DisplayName     string    `gorm:"not null" json:"display_name"`
	TwitterUsername string    `json:"twitter_username,omitempty"`
	TwitterID       string    `json:"twitter_id,omitempty"`
	ProfileImage    string    `gorm:"type:text" json:"profile_image,omitempty"`
	InvitedByUserID *string   `gorm:"type:uuid;index" json:"invited_by_user_id,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}
