package services

import (
	"errors"
	"fmt"
	"strings"

	"doin-challenge/logger"
	"doin-challenge/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxTicketCount       = 10
	maxTransferComment   = 500
	cancelTransferReason = "参加キャンセルのため譲渡します"
)

type TicketService struct {
	DB            *gorm.DB
	Notifications *NotificationService
}

func NewTicketService(db *gorm.DB, notifications *NotificationService) *TicketService {
	return &TicketService{DB: db, Notifications: notifications}
}

type TransferInput struct {
	ChallengeID string                 `json:"challenge_id"`
	TicketCount int                    `json:"ticket_count"`
	PriceType   models.TicketPriceType `json:"price_type"`
	Comment     string                 `json:"comment"`
}

type TransferResult struct {
	Transfer      *models.TicketTransfer `json:"transfer"`
	NotifiedCount int                    `json:"notified_count"`
}

func (s *TicketService) CreateTransfer(actor Actor, in TransferInput) (*TransferResult, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	var transfer *models.TicketTransfer
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		transfer, err = createTransfer(tx, actor.UserID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &TransferResult{Transfer: transfer, NotifiedCount: s.notifyWaitlist(transfer)}, nil
}

func createTransfer(tx *gorm.DB, userID string, in TransferInput) (*models.TicketTransfer, error) {
	if in.TicketCount == 0 {
		in.TicketCount = 1
	}
	if in.TicketCount < 1 || in.TicketCount > maxTicketCount {
		return nil, invalidf("ticket_count must be 1..%d", maxTicketCount)
	}
	if in.PriceType == "" {
		in.PriceType = models.PriceFaceValue
	}
	if !in.PriceType.Valid() {
		return nil, invalidf("unknown price_type %q", in.PriceType)
	}
	in.Comment = strings.TrimSpace(in.Comment)
	if len([]rune(in.Comment)) > maxTransferComment {
		return nil, invalidf("comment must be at most %d characters", maxTransferComment)
	}

	var ch models.Challenge
	if err := tx.Select("id").Where("id = ?", in.ChallengeID).First(&ch).Error; err != nil {
		return nil, notFound("challenge", err)
	}
	var user models.User
	if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, notFound("user", err)
	}

	t := models.TicketTransfer{
		ChallengeID:  in.ChallengeID,
		UserID:       userID,
		UserName:     user.DisplayName(),
		UserUsername: user.Username,
		UserImage:    user.ProfileImage,
		TicketCount:  in.TicketCount,
		PriceType:    in.PriceType,
		Comment:      in.Comment,
		Status:       models.TransferAvailable,
	}
	if err := tx.Create(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// notifyWaitlist tells active waitlisted users about a new transfer and returns how many were told.
func (s *TicketService) notifyWaitlist(t *models.TicketTransfer) int {
	var entries []models.TicketWaitlist
	if err := s.DB.Where("challenge_id = ? AND is_active = ? AND notify_on_new = ? AND user_id <> ?",
		t.ChallengeID, true, true, t.UserID).Find(&entries).Error; err != nil {
		logger.Warn("[TICKET] waitlist lookup failed", zap.String("challenge_id", t.ChallengeID), zap.Error(err))
		return 0
	}
	if s.Notifications == nil {
		return 0
	}

	title := "チケット譲渡の新着があります"
	body := fmt.Sprintf("%sさんが%d枚のチケットを譲渡しています", t.UserName, t.TicketCount)
	notified := 0
	for _, e := range entries {
		if _, err := s.Notifications.Notify(e.UserID, &t.ChallengeID, models.NotifyTicketAvailable, title, body); err != nil {
			logger.Warn("[TICKET] waitlist notification failed", zap.String("user_id", e.UserID), zap.Error(err))
			continue
		}
		notified++
	}
	return notified
}

func (s *TicketService) ListByChallenge(challengeID string) ([]models.TicketTransfer, error) {
	var transfers []models.TicketTransfer
	err := s.DB.Where("challenge_id = ? AND status = ?", challengeID, models.TransferAvailable).
		Order("created_at DESC").
		Find(&transfers).Error
	return transfers, err
}

func (s *TicketService) Mine(userID string) ([]models.TicketTransfer, error) {
	var transfers []models.TicketTransfer
	err := s.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&transfers).Error
	return transfers, err
}

func (s *TicketService) UpdateStatus(actor Actor, id string, status models.TicketTransferStatus) (*models.TicketTransfer, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalidf("unknown status %q", status)
	}
	var t models.TicketTransfer
	if err := s.DB.Where("id = ?", id).First(&t).Error; err != nil {
		return nil, notFound("ticket transfer", err)
	}
	if t.UserID != actor.UserID {
		return nil, forbiddenf("only the poster can change this transfer")
	}
	if t.Status == models.TransferCancelled || t.Status == models.TransferCompleted {
		return nil, conflictf("transfer is already %s", t.Status)
	}
	if err := s.DB.Model(&t).Update("status", status).Error; err != nil {
		return nil, err
	}
	t.Status = status
	return &t, nil
}

func (s *TicketService) Cancel(actor Actor, id string) (*models.TicketTransfer, error) {
	return s.UpdateStatus(actor, id, models.TransferCancelled)
}

type WaitlistInput struct {
	ChallengeID  string `json:"challenge_id"`
	DesiredCount int    `json:"desired_count"`
	NotifyOnNew  *bool  `json:"notify_on_new"`
}

// AddToWaitlist creates or reactivates the caller's entry for the challenge.
func (s *TicketService) AddToWaitlist(actor Actor, in WaitlistInput) (*models.TicketWaitlist, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	if in.DesiredCount == 0 {
		in.DesiredCount = 1
	}
	if in.DesiredCount < 1 || in.DesiredCount > maxTicketCount {
		return nil, invalidf("desired_count must be 1..%d", maxTicketCount)
	}
	notify := true
	if in.NotifyOnNew != nil {
		notify = *in.NotifyOnNew
	}

	var entry models.TicketWaitlist
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var ch models.Challenge
		if err := tx.Select("id").Where("id = ?", in.ChallengeID).First(&ch).Error; err != nil {
			return notFound("challenge", err)
		}
		var user models.User
		if err := tx.Where("id = ?", actor.UserID).First(&user).Error; err != nil {
			return notFound("user", err)
		}

		err := tx.Unscoped().Where("challenge_id = ? AND user_id = ?", in.ChallengeID, actor.UserID).First(&entry).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			entry = models.TicketWaitlist{ChallengeID: in.ChallengeID, UserID: actor.UserID}
		} else if err != nil {
			return err
		}
		entry.UserName = user.DisplayName()
		entry.UserUsername = user.Username
		entry.UserImage = user.ProfileImage
		entry.DesiredCount = in.DesiredCount
		entry.NotifyOnNew = notify
		entry.IsActive = true
		entry.DeletedAt = gorm.DeletedAt{}
		return tx.Unscoped().Save(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *TicketService) RemoveFromWaitlist(actor Actor, challengeID string) error {
	if err := actor.requireUser(); err != nil {
		return err
	}
	res := s.DB.Model(&models.TicketWaitlist{}).
		Where("challenge_id = ? AND user_id = ? AND is_active = ?", challengeID, actor.UserID, true).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmtNotFound("waitlist entry")
	}
	return nil
}

func (s *TicketService) Waitlist(challengeID string) ([]models.TicketWaitlist, error) {
	var entries []models.TicketWaitlist
	err := s.DB.Where("challenge_id = ? AND is_active = ?", challengeID, true).Order("created_at ASC").Find(&entries).Error
	return entries, err
}

func (s *TicketService) MyWaitlist(userID string) ([]models.TicketWaitlist, error) {
	var entries []models.TicketWaitlist
	err := s.DB.Where("user_id = ? AND is_active = ?", userID, true).Order("created_at DESC").Find(&entries).Error
	return entries, err
}

func (s *TicketService) IsOnWaitlist(userID, challengeID string) (bool, error) {
	var n int64
	err := s.DB.Model(&models.TicketWaitlist{}).
		Where("challenge_id = ? AND user_id = ? AND is_active = ?", challengeID, userID, true).
		Count(&n).Error
	return n > 0, err
}
