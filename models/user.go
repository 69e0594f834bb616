package models

import (
	"time"
)

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderUnspecified Gender = "unspecified"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderUnspecified:
		return true
	}
	return false
}

// User is created on first login and never hard-deleted.
type User struct {
	ID             string     `gorm:"primaryKey;type:uuid" json:"id"`
	OpenID         string     `gorm:"uniqueIndex;not null" json:"open_id"` // identity provider subject
	TwitterID      string     `gorm:"index" json:"twitter_id,omitempty"`
	Name           string     `json:"name"`
	Username       string     `gorm:"index" json:"username,omitempty"`
	ProfileImage   string     `gorm:"type:text" json:"profile_image,omitempty"`
	FollowersCount int        `json:"followers_count" gorm:"default:0"`
	Description    string     `gorm:"type:text" json:"description,omitempty"`
	LoginMethod    string     `gorm:"type:varchar(32)" json:"login_method,omitempty"`
	Role           UserRole   `gorm:"type:varchar(16);not null;default:'user'" json:"role"`
	Prefecture     string     `json:"prefecture,omitempty"`
	Gender         Gender     `gorm:"type:varchar(16);default:'unspecified'" json:"gender"`
	LastSignedIn   *time.Time `json:"last_signed_in,omitempty"`

	Timestamps
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName falls back to the username, then to 匿名.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return u.Username
	}
	return "匿名"
}
