package services

import (
	"strings"

	"doin-challenge/models"

	"gorm.io/gorm"
)

type TemplateService struct {
	DB *gorm.DB
}

func NewTemplateService(db *gorm.DB) *TemplateService {
	return &TemplateService{DB: db}
}

type TemplateInput struct {
	Name          *string           `json:"name"`
	Description   *string           `json:"description"`
	GoalType      *models.GoalType  `json:"goal_type"`
	GoalValue     *int              `json:"goal_value"`
	GoalUnit      *string           `json:"goal_unit"`
	EventType     *models.EventType `json:"event_type"`
	TicketPresale *int              `json:"ticket_presale"`
	TicketDoor    *int              `json:"ticket_door"`
	IsPublic      *bool             `json:"is_public"`
}

func applyTemplate(t *models.ChallengeTemplate, in TemplateInput) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if n := len([]rune(name)); n < 1 || n > 100 {
			return invalidf("name must be 1..100 characters")
		}
		t.Name = name
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.GoalType != nil {
		if !in.GoalType.Valid() {
			return invalidf("unknown goal_type %q", *in.GoalType)
		}
		t.GoalType = *in.GoalType
	}
	if in.GoalValue != nil {
		if *in.GoalValue < 1 {
			return invalidf("goal_value must be at least 1")
		}
		t.GoalValue = *in.GoalValue
	}
	if in.GoalUnit != nil && strings.TrimSpace(*in.GoalUnit) != "" {
		t.GoalUnit = strings.TrimSpace(*in.GoalUnit)
	}
	if in.EventType != nil {
		if !in.EventType.Valid() {
			return invalidf("unknown event_type %q", *in.EventType)
		}
		t.EventType = *in.EventType
	}
	if in.TicketPresale != nil {
		t.TicketPresale = in.TicketPresale
	}
	if in.TicketDoor != nil {
		t.TicketDoor = in.TicketDoor
	}
	if in.IsPublic != nil {
		t.IsPublic = *in.IsPublic
	}
	return nil
}

func (s *TemplateService) Create(actor Actor, in TemplateInput) (*models.ChallengeTemplate, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	if in.Name == nil {
		return nil, invalidf("name is required")
	}
	t := models.ChallengeTemplate{
		UserID:    actor.UserID,
		GoalType:  models.GoalAttendance,
		GoalValue: models.DefaultGoalValue,
		GoalUnit:  models.DefaultGoalUnit,
		EventType: models.EventSolo,
	}
	if err := applyTemplate(&t, in); err != nil {
		return nil, err
	}
	if err := s.DB.Create(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TemplateService) ListMine(userID string) ([]models.ChallengeTemplate, error) {
	var templates []models.ChallengeTemplate
	err := s.DB.Where("user_id = ?", userID).Order("updated_at DESC").Find(&templates).Error
	return templates, err
}

func (s *TemplateService) ListPublic(limit int) ([]models.ChallengeTemplate, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var templates []models.ChallengeTemplate
	err := s.DB.Where("is_public = ?", true).Order("use_count DESC").Order("created_at DESC").Limit(limit).Find(&templates).Error
	return templates, err
}

// Get returns a public template, or a private one to its owner.
func (s *TemplateService) Get(actor Actor, id string) (*models.ChallengeTemplate, error) {
	var t models.ChallengeTemplate
	if err := s.DB.Where("id = ?", id).First(&t).Error; err != nil {
		return nil, notFound("template", err)
	}
	if !t.IsPublic && t.UserID != actor.UserID {
		return nil, fmtNotFound("template")
	}
	return &t, nil
}

func (s *TemplateService) owned(actor Actor, id string) (*models.ChallengeTemplate, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	var t models.ChallengeTemplate
	if err := s.DB.Where("id = ?", id).First(&t).Error; err != nil {
		return nil, notFound("template", err)
	}
	if t.UserID != actor.UserID {
		return nil, forbiddenf("template belongs to another user")
	}
	return &t, nil
}

func (s *TemplateService) Update(actor Actor, id string, in TemplateInput) (*models.ChallengeTemplate, error) {
	t, err := s.owned(actor, id)
	if err != nil {
		return nil, err
	}
	if err := applyTemplate(t, in); err != nil {
		return nil, err
	}
	if err := s.DB.Save(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TemplateService) Delete(actor Actor, id string) error {
	t, err := s.owned(actor, id)
	if err != nil {
		return err
	}
	return s.DB.Delete(t).Error
}

func (s *TemplateService) IncrementUseCount(id string) error {
	res := s.DB.Model(&models.ChallengeTemplate{}).Where("id = ?", id).UpdateColumn("use_count", gorm.Expr("use_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmtNotFound("template")
	}
	return nil
}
