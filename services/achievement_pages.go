package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"doin-challenge/models"

	"gorm.io/gorm"
)

type AchievementPageService struct {
	DB       *gorm.DB
	Uploader Uploader
}

func NewAchievementPageService(db *gorm.DB) *AchievementPageService {
	return &AchievementPageService{DB: db}
}

type AchievementPageInput struct {
	Title    *string `json:"title"`
	Message  *string `json:"message"`
	IsPublic *bool   `json:"is_public"`
}

func (s *AchievementPageService) manageable(actor Actor, challengeID string) (*models.Challenge, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	var ch models.Challenge
	if err := s.DB.Where("id = ?", challengeID).First(&ch).Error; err != nil {
		return nil, notFound("challenge", err)
	}
	if ch.HostUserID != actor.UserID && !actor.IsAdmin() {
		return nil, forbiddenf("only the host can manage the achievement page")
	}
	return &ch, nil
}

// Create snapshots a challenge that has reached its goal. A challenge has at most one page.
func (s *AchievementPageService) Create(actor Actor, challengeID string, in AchievementPageInput) (*models.AchievementPage, error) {
	ch, err := s.manageable(actor, challengeID)
	if err != nil {
		return nil, err
	}
	if !ch.GoalReached() {
		return nil, invalidf("challenge has not reached its goal yet")
	}

	var existing int64
	if err := s.DB.Model(&models.AchievementPage{}).Unscoped().Where("challenge_id = ?", ch.ID).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, conflictf("achievement page already exists")
	}

	page := models.AchievementPage{
		ChallengeID: ch.ID,
		AchievedAt:  time.Now().UTC(),
		FinalValue:  ch.CurrentValue,
		GoalValue:   ch.GoalValue,
		Title:       fmt.Sprintf("「%s」目標達成！", ch.Title),
		IsPublic:    true,
	}
	if err := s.DB.Model(&models.Participation{}).Where("challenge_id = ?", ch.ID).Count(&page.TotalParticipants).Error; err != nil {
		return nil, err
	}
	if err := applyPage(&page, in); err != nil {
		return nil, err
	}
	if err := s.DB.Create(&page).Error; err != nil {
		return nil, err
	}
	return &page, nil
}

func applyPage(page *models.AchievementPage, in AchievementPageInput) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if n := len([]rune(title)); n < 1 || n > 255 {
			return invalidf("title must be 1..255 characters")
		}
		page.Title = title
	}
	if in.Message != nil {
		page.Message = *in.Message
	}
	if in.IsPublic != nil {
		page.IsPublic = *in.IsPublic
	}
	return nil
}

// Get returns a challenge's page. Private pages are only shown to the host and admins.
func (s *AchievementPageService) Get(actor Actor, challengeID string) (*models.AchievementPage, error) {
	var page models.AchievementPage
	if err := s.DB.Where("challenge_id = ?", challengeID).First(&page).Error; err != nil {
		return nil, notFound("achievement page", err)
	}
	if page.IsPublic || actor.IsAdmin() {
		return &page, nil
	}
	var ch models.Challenge
	err := s.DB.Select("host_user_id").Where("id = ?", challengeID).First(&ch).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if ch.HostUserID == "" || ch.HostUserID != actor.UserID {
		return nil, fmtNotFound("achievement page")
	}
	return &page, nil
}

func (s *AchievementPageService) Update(actor Actor, challengeID string, in AchievementPageInput) (*models.AchievementPage, error) {
	if _, err := s.manageable(actor, challengeID); err != nil {
		return nil, err
	}
	var page models.AchievementPage
	if err := s.DB.Where("challenge_id = ?", challengeID).First(&page).Error; err != nil {
		return nil, notFound("achievement page", err)
	}
	if err := applyPage(&page, in); err != nil {
		return nil, err
	}
	if err := s.DB.Save(&page).Error; err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *AchievementPageService) ListPublic(limit int) ([]models.AchievementPage, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	pages := []models.AchievementPage{}
	err := s.DB.Where("is_public = ?", true).Order("achieved_at DESC").Limit(limit).Find(&pages).Error
	return pages, err
}

func (s *AchievementPageService) UploadImage(ctx context.Context, actor Actor, challengeID string, fh *multipart.FileHeader) (string, error) {
	if s.Uploader == nil {
		return "", ErrUploadsDisabled
	}
	if _, err := s.manageable(actor, challengeID); err != nil {
		return "", err
	}
	var page models.AchievementPage
	if err := s.DB.Where("challenge_id = ?", challengeID).First(&page).Error; err != nil {
		return "", notFound("achievement page", err)
	}
	key, err := imageKey("achievements", challengeID, "image", fh)
	if err != nil {
		return "", err
	}
	url, err := s.Uploader.UploadFormFile(ctx, fh, key)
	if err != nil {
		return "", err
	}
	if err := s.DB.Model(&page).Update("image_url", url).Error; err != nil {
		return "", err
	}
	return url, nil
}
