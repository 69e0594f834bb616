package services

import (
	"errors"
	"fmt"
	"time"

	"doin-challenge/logger"
	"doin-challenge/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Milestones are the goal percentages that trigger notifications.
var Milestones = []int{25, 50, 75, 100}

type NotificationService struct {
	DB     *gorm.DB
	Badges *BadgeService
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

type SettingsInput struct {
	OnGoalReached    *bool   `json:"on_goal_reached"`
	OnMilestone25    *bool   `json:"on_milestone_25"`
	OnMilestone50    *bool   `json:"on_milestone_50"`
	OnMilestone75    *bool   `json:"on_milestone_75"`
	OnNewParticipant *bool   `json:"on_new_participant"`
	ExpoPushToken    *string `json:"expo_push_token"`
}

// Settings returns the stored setting or the defaults when the user never saved one.
func (s *NotificationService) Settings(userID, challengeID string) (*models.NotificationSetting, error) {
	var setting models.NotificationSetting
	err := s.DB.Where("user_id = ? AND challenge_id = ?", userID, challengeID).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		def := models.DefaultNotificationSetting(userID, challengeID)
		return &def, nil
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

func (s *NotificationService) UpdateSettings(userID, challengeID string, in SettingsInput) (*models.NotificationSetting, error) {
	var ch models.Challenge
	if err := s.DB.Select("id").Where("id = ?", challengeID).First(&ch).Error; err != nil {
		return nil, notFound("challenge", err)
	}
	setting, err := s.Settings(userID, challengeID)
	if err != nil {
		return nil, err
	}
	if in.OnGoalReached != nil {
		setting.OnGoalReached = *in.OnGoalReached
	}
	if in.OnMilestone25 != nil {
		setting.OnMilestone25 = *in.OnMilestone25
	}
	if in.OnMilestone50 != nil {
		setting.OnMilestone50 = *in.OnMilestone50
	}
	if in.OnMilestone75 != nil {
		setting.OnMilestone75 = *in.OnMilestone75
	}
	if in.OnNewParticipant != nil {
		setting.OnNewParticipant = *in.OnNewParticipant
	}
	if in.ExpoPushToken != nil {
		setting.ExpoPushToken = *in.ExpoPushToken
	}

	if setting.ID != "" {
		if err := s.DB.Save(setting).Error; err != nil {
			return nil, err
		}
		return setting, nil
	}
	err = s.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "challenge_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"on_goal_reached", "on_milestone25", "on_milestone50", "on_milestone75",
			"on_new_participant", "expo_push_token", "updated_at",
		}),
	}).Create(setting).Error
	if err != nil {
		return nil, err
	}
	return s.Settings(userID, challengeID)
}

type NotificationPage struct {
	Items      []models.Notification `json:"items"`
	NextCursor string                `json:"next_cursor,omitempty"`
}

// List pages newest first. The cursor is the id of the last item of the previous page.
func (s *NotificationService) List(userID, cursor string, limit int) (*NotificationPage, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultPageSize
	}
	db := s.DB.Where("user_id = ?", userID)
	if cursor != "" {
		var last models.Notification
		if err := s.DB.Where("id = ? AND user_id = ?", cursor, userID).First(&last).Error; err != nil {
			return nil, invalidf("unknown cursor")
		}
		db = db.Where("created_at < ? OR (created_at = ? AND id < ?)", last.CreatedAt, last.CreatedAt, last.ID)
	}

	page := &NotificationPage{Items: []models.Notification{}}
	if err := db.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&page.Items).Error; err != nil {
		return nil, err
	}
	if len(page.Items) == limit {
		page.NextCursor = page.Items[len(page.Items)-1].ID
	}
	return page, nil
}

func (s *NotificationService) MarkRead(userID, id string) error {
	res := s.DB.Model(&models.Notification{}).Where("id = ? AND user_id = ?", id, userID).Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmtNotFound("notification")
	}
	return nil
}

func (s *NotificationService) MarkAllRead(userID string) (int64, error) {
	res := s.DB.Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", userID, false).Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (s *NotificationService) UnreadCount(userID string) (int64, error) {
	var n int64
	err := s.DB.Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", userID, false).Count(&n).Error
	return n, err
}

func (s *NotificationService) Notify(userID string, challengeID *string, t models.NotificationType, title, body string) (*models.Notification, error) {
	n := models.Notification{UserID: userID, ChallengeID: challengeID, Type: t, Title: title, Body: body}
	if err := s.DB.Create(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// notifyOnce skips users who already have a notification of this type for the challenge.
func (s *NotificationService) notifyOnce(userID, challengeID string, t models.NotificationType, title, body string) (bool, error) {
	var n int64
	if err := s.DB.Model(&models.Notification{}).
		Where("user_id = ? AND challenge_id = ? AND type = ?", userID, challengeID, t).
		Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	_, err := s.Notify(userID, &challengeID, t, title, body)
	return err == nil, err
}

// CrossedMilestones returns the milestone percentages passed when a challenge moved from before to after.
func CrossedMilestones(before, after, goal int) []int {
	if goal < 1 || after <= before {
		return nil
	}
	var crossed []int
	for _, m := range Milestones {
		// before/goal < m% <= after/goal, in integers
		if before*100 < m*goal && after*100 >= m*goal {
			crossed = append(crossed, m)
		}
	}
	return crossed
}

func milestoneType(percent int) models.NotificationType {
	switch percent {
	case 25:
		return models.NotifyMilestone25
	case 50:
		return models.NotifyMilestone50
	case 75:
		return models.NotifyMilestone75
	}
	return models.NotifyGoalReached
}

// ChallengeProgressed notifies subscribers and the host about milestones crossed
// between before and after.
func (s *NotificationService) ChallengeProgressed(ch *models.Challenge, before, after int) (int, error) {
	milestones := CrossedMilestones(before, after, ch.GoalValue)
	if len(milestones) == 0 {
		return 0, nil
	}
	var settings []models.NotificationSetting
	if err := s.DB.Where("challenge_id = ?", ch.ID).Find(&settings).Error; err != nil {
		return 0, err
	}
	hostHasSetting := false
	for _, st := range settings {
		if st.UserID == ch.HostUserID {
			hostHasSetting = true
		}
	}

	sent := 0
	for _, m := range milestones {
		t := milestoneType(m)
		title := fmt.Sprintf("「%s」が目標の%d%%に到達しました", ch.Title, m)
		if m == 100 {
			title = fmt.Sprintf("🎉「%s」が目標を達成しました！", ch.Title)
		}
		body := fmt.Sprintf("現在 %d / %d %s", after, ch.GoalValue, ch.GoalUnit)

		for _, st := range settings {
			if !st.Wants(t) {
				continue
			}
			ok, err := s.notifyOnce(st.UserID, ch.ID, t, title, body)
			if err != nil {
				return sent, err
			}
			if ok {
				sent++
			}
		}
		if !hostHasSetting {
			ok, err := s.notifyOnce(ch.HostUserID, ch.ID, t, title, body)
			if err != nil {
				return sent, err
			}
			if ok {
				sent++
			}
		}
		if m < 100 && s.Badges != nil {
			if err := s.Badges.AfterMilestone(ch.HostUserID, ch.ID, m); err != nil {
				logger.Warn("[NOTIFY] milestone badge failed", zap.String("challenge_id", ch.ID), zap.Int("milestone", m), zap.Error(err))
			}
		}
	}
	return sent, nil
}

// NewParticipant tells subscribers who opted in that someone joined. The participant is never told about themselves.
func (s *NotificationService) NewParticipant(ch *models.Challenge, participantUserID *string, participantName string) (int, error) {
	var settings []models.NotificationSetting
	if err := s.DB.Where("challenge_id = ?", ch.ID).Find(&settings).Error; err != nil {
		return 0, err
	}
	if participantName == "" {
		participantName = "匿名"
	}
	sent := 0
	for _, st := range settings {
		if !st.OnNewParticipant || (participantUserID != nil && st.UserID == *participantUserID) {
			continue
		}
		title := fmt.Sprintf("%sさんが「%s」に参加しました", participantName, ch.Title)
		if _, err := s.Notify(st.UserID, &ch.ID, models.NotifyNewParticipant, title, ""); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// PushMessage is one notification ready for push delivery.
type PushMessage struct {
	NotificationID string
	Token          string
	Title          string
	Body           string
	ChallengeID    *string
}

// PendingPush returns unsent notifications of the last day for users with a push token.
func (s *NotificationService) PendingPush(limit int) ([]PushMessage, error) {
	var tokens []models.NotificationSetting
	if err := s.DB.Select("user_id", "challenge_id", "expo_push_token", "updated_at").
		Where("expo_push_token <> ''").
		Order("updated_at ASC").
		Find(&tokens).Error; err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	// the most recently saved token wins per user; a challenge-specific token wins per challenge
	byUser := make(map[string]string)
	byUserChallenge := make(map[string]string)
	for _, t := range tokens {
		byUser[t.UserID] = t.ExpoPushToken
		byUserChallenge[t.UserID+"/"+t.ChallengeID] = t.ExpoPushToken
	}
	userIDs := make([]string, 0, len(byUser))
	for id := range byUser {
		userIDs = append(userIDs, id)
	}

	var pending []models.Notification
	if err := s.DB.Where("sent_at IS NULL AND created_at >= ? AND user_id IN ?", time.Now().UTC().Add(-24*time.Hour), userIDs).
		Order("created_at ASC").
		Limit(limit).
		Find(&pending).Error; err != nil {
		return nil, err
	}

	msgs := make([]PushMessage, 0, len(pending))
	for _, n := range pending {
		token := byUser[n.UserID]
		if n.ChallengeID != nil {
			if t, ok := byUserChallenge[n.UserID+"/"+*n.ChallengeID]; ok {
				token = t
			}
		}
		msgs = append(msgs, PushMessage{NotificationID: n.ID, Token: token, Title: n.Title, Body: n.Body, ChallengeID: n.ChallengeID})
	}
	return msgs, nil
}

func (s *NotificationService) MarkSent(ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return s.DB.Model(&models.Notification{}).Where("id IN ?", ids).Update("sent_at", at.UTC()).Error
}
