package models

type TicketPriceType string

const (
	PriceFaceValue  TicketPriceType = "face_value"
	PriceNegotiable TicketPriceType = "negotiable"
	PriceFree       TicketPriceType = "free"
)

func (p TicketPriceType) Valid() bool {
	switch p {
	case PriceFaceValue, PriceNegotiable, PriceFree:
		return true
	}
	return false
}

type TicketTransferStatus string

const (
	TransferAvailable TicketTransferStatus = "available"
	TransferReserved  TicketTransferStatus = "reserved"
	TransferCompleted TicketTransferStatus = "completed"
	TransferCancelled TicketTransferStatus = "cancelled"
)

func (s TicketTransferStatus) Valid() bool {
	switch s {
	case TransferAvailable, TransferReserved, TransferCompleted, TransferCancelled:
		return true
	}
	return false
}

// TicketTransfer is a peer-to-peer resale post scoped to a challenge.
type TicketTransfer struct {
	ID           string               `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID  string               `gorm:"type:uuid;index;not null" json:"challenge_id"`
	UserID       string               `gorm:"type:uuid;index;not null" json:"user_id"`
	UserName     string               `json:"user_name"`
	UserUsername string               `json:"user_username,omitempty"` // for DMs on X
	UserImage    string               `gorm:"type:text" json:"user_image,omitempty"`
	TicketCount  int                  `gorm:"not null;default:1" json:"ticket_count"`
	PriceType    TicketPriceType      `gorm:"type:varchar(16);not null" json:"price_type"`
	Comment      string               `gorm:"type:varchar(500)" json:"comment,omitempty"`
	Status       TicketTransferStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Timestamps
}

// TicketWaitlist: one entry per (challenge, user)
type TicketWaitlist struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	ChallengeID  string `gorm:"type:uuid;uniqueIndex:idx_waitlist_challenge_user;not null" json:"challenge_id"`
	UserID       string `gorm:"type:uuid;uniqueIndex:idx_waitlist_challenge_user;not null" json:"user_id"`
	UserName     string `json:"user_name"`
	UserUsername string `json:"user_username,omitempty"`
	UserImage    string `gorm:"type:text" json:"user_image,omitempty"`
	DesiredCount int    `gorm:"not null;default:1" json:"desired_count"`
	IsActive     bool   `gorm:"not null;index" json:"is_active"`
	NotifyOnNew  bool   `gorm:"not null" json:"notify_on_new"`
	Timestamps
}
