package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditEdit        AuditAction = "EDIT"
	AuditDelete      AuditAction = "DELETE"
	AuditRestore     AuditAction = "RESTORE"
	AuditBulkDelete  AuditAction = "BULK_DELETE"
	AuditBulkRestore AuditAction = "BULK_RESTORE"
	AuditRoleChange  AuditAction = "ROLE_CHANGE"
	AuditRecalculate AuditAction = "RECALCULATE"
)

// AuditLog records administrative actions with before/after snapshots.
// Actors are not foreign keys so logs outlive the rows they describe.
type AuditLog struct {
	ID         string         `gorm:"primaryKey;type:uuid" json:"id"`
	RequestID  string         `gorm:"type:varchar(64);index" json:"request_id"`
	Action     AuditAction    `gorm:"type:varchar(32);not null;index" json:"action"`
	EntityType string         `gorm:"type:varchar(64);not null;index" json:"entity_type"`
	TargetID   string         `gorm:"type:varchar(64);index" json:"target_id,omitempty"`
	ActorID    string         `gorm:"type:varchar(64);index" json:"actor_id"`
	ActorName  string         `json:"actor_name,omitempty"`
	ActorRole  string         `gorm:"type:varchar(16)" json:"actor_role,omitempty"`
	BeforeData datatypes.JSON `json:"before_data,omitempty"`
	AfterData  datatypes.JSON `json:"after_data,omitempty"`
	Reason     string         `gorm:"type:text" json:"reason,omitempty"`
	IPAddress  string         `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	UserAgent  string         `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}
