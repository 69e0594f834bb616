package models

import "time"

type CollaboratorRole string

const (
	RoleOwner     CollaboratorRole = "owner"
	RoleCoHost    CollaboratorRole = "co-host"
	RoleModerator CollaboratorRole = "moderator"
)

type CollaboratorStatus string

const (
	CollaboratorPending  CollaboratorStatus = "pending"
	CollaboratorAccepted CollaboratorStatus = "accepted"
	CollaboratorDeclined CollaboratorStatus = "declined"
	CollaboratorExpired  CollaboratorStatus = "expired" // invitations only
)

type Collaborator struct {
	ID                    string             `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID           string             `gorm:"type:uuid;uniqueIndex:idx_collaborator_challenge_user;not null" json:"challenge_id"`
	UserID                string             `gorm:"type:uuid;uniqueIndex:idx_collaborator_challenge_user;not null" json:"user_id"`
	UserName              string             `json:"user_name,omitempty"`
	UserImage             string             `gorm:"type:text" json:"user_image,omitempty"`
	Role                  CollaboratorRole   `gorm:"type:varchar(16);not null" json:"role"`
	CanEdit               bool               `gorm:"not null" json:"can_edit"`
	CanManageParticipants bool               `gorm:"not null" json:"can_manage_participants"`
	CanInvite             bool               `gorm:"not null" json:"can_invite"`
	Status                CollaboratorStatus `gorm:"type:varchar(16);not null" json:"status"`
	InvitedBy             string             `gorm:"type:uuid" json:"invited_by,omitempty"`
	AcceptedAt            *time.Time         `json:"accepted_at,omitempty"`
	Timestamps
}

// ApplyRolePermissions sets the permission flags a role grants.
func (c *Collaborator) ApplyRolePermissions() {
	switch c.Role {
	case RoleOwner, RoleCoHost:
		c.CanEdit, c.CanManageParticipants, c.CanInvite = true, true, true
	case RoleModerator:
		c.CanEdit, c.CanManageParticipants, c.CanInvite = false, true, false
	}
}

type CollaboratorInvitation struct {
	ID          string             `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID string             `gorm:"type:uuid;index;not null" json:"challenge_id"`
	InviterID   string             `gorm:"type:uuid;not null" json:"inviter_id"`
	Code        string             `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"`
	Role        CollaboratorRole   `gorm:"type:varchar(16);not null" json:"role"`
	Status      CollaboratorStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	ExpiresAt   time.Time          `gorm:"not null" json:"expires_at"`
	RespondedBy *string            `gorm:"type:uuid" json:"responded_by,omitempty"`
	RespondedAt *time.Time         `json:"responded_at,omitempty"`
	Timestamps
}
