package services

import (
	"doin-challenge/logger"
	"doin-challenge/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeService struct {
	DB *gorm.DB
}

func NewBadgeService(db *gorm.DB) *BadgeService {
	return &BadgeService{DB: db}
}

// contributionBadges are awarded when a single participation brings at least that many people.
var contributionBadges = []struct {
	Condition models.BadgeCondition
	Threshold int
}{
	{models.ConditionContribution5, 5},
	{models.ConditionContribution10, 10},
	{models.ConditionContribution20, 20},
}

func (s *BadgeService) List() ([]models.Badge, error) {
	var badges []models.Badge
	err := s.DB.Order("created_at ASC").Find(&badges).Error
	return badges, err
}

func (s *BadgeService) Mine(userID string) ([]models.UserBadge, error) {
	var badges []models.UserBadge
	err := s.DB.Preload("Badge").Where("user_id = ?", userID).Order("awarded_at DESC").Find(&badges).Error
	return badges, err
}

// Award grants a badge once. It reports whether a new row was created.
func (s *BadgeService) Award(userID, badgeID string, challengeID *string) (bool, error) {
	var badge models.Badge
	if err := s.DB.Where("id = ?", badgeID).First(&badge).Error; err != nil {
		return false, notFound("badge", err)
	}
	var user models.User
	if err := s.DB.Select("id").Where("id = ?", userID).First(&user).Error; err != nil {
		return false, notFound("user", err)
	}
	return s.award(userID, &badge, challengeID)
}

func (s *BadgeService) award(userID string, badge *models.Badge, challengeID *string) (bool, error) {
	ub := models.UserBadge{UserID: userID, BadgeID: badge.ID, ChallengeID: challengeID}
	res := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
		DoNothing: true,
	}).Create(&ub)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	logger.Info("🎖️ [BADGE] badge awarded",
		zap.String("badge", badge.Name),
		zap.String("condition", string(badge.ConditionType)),
		zap.String("user_id", userID),
	)
	return true, nil
}

func (s *BadgeService) awardCondition(userID string, cond models.BadgeCondition, challengeID *string) (bool, error) {
	var badge models.Badge
	if err := s.DB.Where("condition_type = ?", cond).First(&badge).Error; err != nil {
		// catalog not seeded
		return false, notFound("badge "+string(cond), err)
	}
	return s.award(userID, &badge, challengeID)
}

// AfterParticipation checks participation-driven badges for the participant.
func (s *BadgeService) AfterParticipation(userID string, p *models.Participation) ([]models.BadgeCondition, error) {
	var awarded []models.BadgeCondition

	var count int64
	if err := s.DB.Model(&models.Participation{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, err
	}

	var triggers []models.BadgeCondition
	if count == 1 {
		triggers = append(triggers, models.ConditionFirstParticipation)
	}
	for _, b := range contributionBadges {
		if p.Contribution >= b.Threshold {
			triggers = append(triggers, b.Condition)
		}
	}

	for _, cond := range triggers {
		ok, err := s.awardCondition(userID, cond, &p.ChallengeID)
		if err != nil {
			return awarded, err
		}
		if ok {
			awarded = append(awarded, cond)
		}
	}
	return awarded, nil
}

func (s *BadgeService) AfterHosting(userID, challengeID string) error {
	_, err := s.awardCondition(userID, models.ConditionHostChallenge, &challengeID)
	return err
}

// AfterMilestone gives the host the badge for a 25/50/75 percent milestone.
func (s *BadgeService) AfterMilestone(hostUserID, challengeID string, percent int) error {
	var cond models.BadgeCondition
	switch percent {
	case 25:
		cond = models.ConditionMilestone25
	case 50:
		cond = models.ConditionMilestone50
	case 75:
		cond = models.ConditionMilestone75
	default:
		return nil
	}
	_, err := s.awardCondition(hostUserID, cond, &challengeID)
	return err
}

// AwardGoalReached gives goal_reached to every registered participant of the challenge.
func (s *BadgeService) AwardGoalReached(challengeID string) (int, error) {
	var userIDs []string
	if err := s.DB.Model(&models.Participation{}).
		Where("challenge_id = ? AND user_id IS NOT NULL", challengeID).
		Distinct().
		Pluck("user_id", &userIDs).Error; err != nil {
		return 0, err
	}

	var awarded int
	for _, uid := range userIDs {
		ok, err := s.awardCondition(uid, models.ConditionGoalReached, &challengeID)
		if err != nil {
			return awarded, err
		}
		if ok {
			awarded++
		}
	}
	return awarded, nil
}
