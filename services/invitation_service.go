package services

import (
	"strings"
	"time"

	"doin-challenge/logger"
	"doin-challenge/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InvitationService struct {
	DB *gorm.DB
}

func NewInvitationService(db *gorm.DB) *InvitationService {
	return &InvitationService{DB: db}
}

type InvitationInput struct {
	ChallengeID   string     `json:"challenge_id"`
	MaxUses       int        `json:"max_uses"`
	ExpiresAt     *time.Time `json:"expires_at"`
	CustomTitle   string     `json:"custom_title"`
	CustomMessage string     `json:"custom_message"`
}

func (s *InvitationService) Create(actor Actor, in InvitationInput) (*models.Invitation, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	if in.MaxUses < 0 {
		return nil, invalidf("max_uses must be 0 (unlimited) or more")
	}
	if in.ExpiresAt != nil && in.ExpiresAt.Before(time.Now()) {
		return nil, invalidf("expires_at is in the past")
	}
	var ch models.Challenge
	if err := s.DB.Select("id").Where("id = ?", in.ChallengeID).First(&ch).Error; err != nil {
		return nil, notFound("challenge", err)
	}

	inv := models.Invitation{
		ChallengeID:   in.ChallengeID,
		InviterID:     actor.UserID,
		MaxUses:       in.MaxUses,
		IsActive:      true,
		CustomTitle:   in.CustomTitle,
		CustomMessage: in.CustomMessage,
	}
	if in.ExpiresAt != nil {
		t := in.ExpiresAt.UTC()
		inv.ExpiresAt = &t
	}

	// codes are random; retry the rare collision
	var err error
	for attempt := 0; attempt < 5; attempt++ {
		if inv.Code, err = newCode(); err != nil {
			return nil, err
		}
		var taken int64
		if err = s.DB.Model(&models.Invitation{}).Unscoped().Where("code = ?", inv.Code).Count(&taken).Error; err != nil {
			return nil, err
		}
		if taken == 0 {
			break
		}
	}
	if err := s.DB.Create(&inv).Error; err != nil {
		return nil, err
	}
	logger.Info("[INVITE] invitation created", zap.String("code", inv.Code), zap.String("challenge_id", inv.ChallengeID))
	return &inv, nil
}

// InvitationDetail is the public view of a code with the challenge it leads to.
type InvitationDetail struct {
	models.Invitation
	Challenge   *models.Challenge `json:"challenge,omitempty"`
	InviterName string            `json:"inviter_name,omitempty"`
}

func (s *InvitationService) GetByCode(code string) (*InvitationDetail, error) {
	var inv models.Invitation
	if err := s.DB.Where("code = ?", normalizeCode(code)).First(&inv).Error; err != nil {
		return nil, notFound("invitation", err)
	}
	detail := &InvitationDetail{Invitation: inv}

	var ch models.Challenge
	if err := s.DB.Where("id = ?", inv.ChallengeID).First(&ch).Error; err == nil {
		detail.Challenge = &ch
	}
	var inviter models.User
	if err := s.DB.Select("name", "username").Where("id = ?", inv.InviterID).First(&inviter).Error; err == nil {
		detail.InviterName = inviter.DisplayName()
	}
	return detail, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *InvitationService) ListForChallenge(challengeID string) ([]models.Invitation, error) {
	var invs []models.Invitation
	err := s.DB.Where("challenge_id = ?", challengeID).Order("created_at DESC").Find(&invs).Error
	return invs, err
}

func (s *InvitationService) ListMine(userID string) ([]models.Invitation, error) {
	var invs []models.Invitation
	err := s.DB.Where("inviter_id = ?", userID).Order("created_at DESC").Find(&invs).Error
	return invs, err
}

type UseInput struct {
	UserID          *string
	ParticipationID *string
	DisplayName     string
}

// Use redeems a code once.
func (s *InvitationService) Use(code string, in UseInput) (*models.Invitation, error) {
	var inv *models.Invitation
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		inv, err = redeemInvitation(tx, code, in)
		return err
	})
	return inv, err
}

// redeemInvitation checks, in order, existence, active flag, remaining uses and expiry,
// then counts the use and records it. The row stays locked for the rest of tx.
func redeemInvitation(tx *gorm.DB, code string, in UseInput) (*models.Invitation, error) {
	var inv models.Invitation
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("code = ?", normalizeCode(code)).
		First(&inv).Error; err != nil {
		return nil, notFound("invitation", err)
	}
	if !inv.IsActive {
		return nil, ErrInvitationInactive
	}
	if inv.Exhausted() {
		return nil, ErrInvitationExhausted
	}
	if inv.Expired(time.Now()) {
		return nil, ErrInvitationExpired
	}

	if err := tx.Model(&inv).UpdateColumn("use_count", gorm.Expr("use_count + ?", 1)).Error; err != nil {
		return nil, err
	}
	inv.UseCount++

	use := models.InvitationUse{
		InvitationID:    inv.ID,
		UserID:          in.UserID,
		ParticipationID: in.ParticipationID,
		DisplayName:     in.DisplayName,
	}
	if err := tx.Create(&use).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *InvitationService) Deactivate(actor Actor, id string) error {
	if err := actor.requireUser(); err != nil {
		return err
	}
	var inv models.Invitation
	if err := s.DB.Where("id = ?", id).First(&inv).Error; err != nil {
		return notFound("invitation", err)
	}
	if inv.InviterID != actor.UserID && !actor.IsAdmin() {
		return forbiddenf("only the inviter can deactivate this invitation")
	}
	return s.DB.Model(&inv).Update("is_active", false).Error
}

type InvitationStats struct {
	UseCount           int   `json:"use_count"`
	ParticipationCount int64 `json:"participation_count"`
}

func (s *InvitationService) Stats(id string) (*InvitationStats, error) {
	var inv models.Invitation
	if err := s.DB.Where("id = ?", id).First(&inv).Error; err != nil {
		return nil, notFound("invitation", err)
	}
	stats := &InvitationStats{UseCount: inv.UseCount}
	if err := s.DB.Model(&models.InvitationUse{}).
		Where("invitation_id = ? AND participation_id IS NOT NULL", id).
		Count(&stats.ParticipationCount).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

type MyInvitationStats struct {
	InvitationCount int64 `json:"invitation_count"`
	TotalInvited    int64 `json:"total_invited"`
	Confirmed       int64 `json:"confirmed"`
}

func (s *InvitationService) MyStats(userID string) (*MyInvitationStats, error) {
	stats := &MyInvitationStats{}
	if err := s.DB.Model(&models.Invitation{}).Where("inviter_id = ?", userID).Count(&stats.InvitationCount).Error; err != nil {
		return nil, err
	}
	uses := s.DB.Model(&models.InvitationUse{}).
		Joins("JOIN invitations ON invitations.id = invitation_uses.invitation_id").
		Where("invitations.inviter_id = ?", userID).
		Session(&gorm.Session{})
	if err := uses.Count(&stats.TotalInvited).Error; err != nil {
		return nil, err
	}
	if err := uses.Where("invitation_uses.participation_id IS NOT NULL").Count(&stats.Confirmed).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

// InvitedParticipants lists live participations that came in through the invitation.
func (s *InvitationService) InvitedParticipants(actor Actor, id string) ([]models.Participation, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	var inv models.Invitation
	if err := s.DB.Where("id = ?", id).First(&inv).Error; err != nil {
		return nil, notFound("invitation", err)
	}
	if inv.InviterID != actor.UserID && !actor.IsAdmin() {
		return nil, forbiddenf("only the inviter can see invited participants")
	}
	var parts []models.Participation
	err := s.DB.Where("invitation_id = ?", id).Order("created_at DESC").Find(&parts).Error
	return parts, err
}

// ExpireInvitations deactivates invitations past their expiry.
func (s *InvitationService) ExpireInvitations(now time.Time) (int64, error) {
	res := s.DB.Model(&models.Invitation{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now.UTC()).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}
