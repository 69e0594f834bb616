package services

import (
	"encoding/json"
	"time"

	"doin-challenge/logger"
	"doin-challenge/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditService struct {
	DB *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{DB: db}
}

// AuditEntry describes one administrative action.
type AuditEntry struct {
	Action     models.AuditAction
	EntityType string
	TargetID   string
	Before     interface{}
	After      interface{}
	Reason     string
}

// Record writes an audit log row. Failures are logged and never returned to the caller.
func (s *AuditService) Record(actor Actor, entry AuditEntry) {
	row := models.AuditLog{
		RequestID:  actor.RequestID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		TargetID:   entry.TargetID,
		ActorID:    actor.UserID,
		ActorRole:  string(actor.Role),
		BeforeData: toJSON(entry.Before),
		AfterData:  toJSON(entry.After),
		Reason:     entry.Reason,
		IPAddress:  actor.IPAddress,
		UserAgent:  actor.UserAgent,
	}

	var user models.User
	if actor.UserID != "" && s.DB.Select("name", "username").Where("id = ?", actor.UserID).First(&user).Error == nil {
		row.ActorName = user.DisplayName()
	}

	if err := s.DB.Create(&row).Error; err != nil {
		logger.Warn("[AUDIT] failed to record audit log",
			zap.String("action", string(entry.Action)),
			zap.String("entity", entry.EntityType),
			zap.String("target", entry.TargetID),
			zap.String("request_id", actor.RequestID),
			zap.Error(err),
		)
	}
}

func toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

type AuditQuery struct {
	EntityType string
	TargetID   string
	ActorID    string
	Action     string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

type AuditPage struct {
	Items      []models.AuditLog `json:"items"`
	TotalCount int64             `json:"total_count"`
}

func (s *AuditService) Query(q AuditQuery) (*AuditPage, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	db := s.DB.Model(&models.AuditLog{})
	if q.EntityType != "" {
		db = db.Where("entity_type = ?", q.EntityType)
	}
	if q.TargetID != "" {
		db = db.Where("target_id = ?", q.TargetID)
	}
	if q.ActorID != "" {
		db = db.Where("actor_id = ?", q.ActorID)
	}
	if q.Action != "" {
		db = db.Where("action = ?", q.Action)
	}
	if q.From != nil {
		db = db.Where("created_at >= ?", q.From.UTC())
	}
	if q.To != nil {
		db = db.Where("created_at <= ?", q.To.UTC())
	}

	db = db.Session(&gorm.Session{})
	page := &AuditPage{}
	if err := db.Count(&page.TotalCount).Error; err != nil {
		return nil, err
	}
	if err := db.Order("created_at DESC").Limit(q.Limit).Offset(q.Offset).Find(&page.Items).Error; err != nil {
		return nil, err
	}
	return page, nil
}
