package services

import (
	"errors"
	"sort"
	"strings"
	"time"

	"doin-challenge/logger"
	"doin-challenge/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressionService struct {
	DB *gorm.DB
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db}
}

// EnsureProgressRecord ensures a UserProgress row exists (idempotent)
func (s *ProgressionService) EnsureProgressRecord(userID string) (*models.UserProgress, error) {
	var prog models.UserProgress
	err := s.DB.Where("user_id = ?", userID).First(&prog).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prog = models.UserProgress{UserID: userID}
		if err := s.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&prog).Error; err != nil {
			return nil, err
		}
		if err := s.DB.Where("user_id = ?", userID).First(&prog).Error; err != nil {
			return nil, err
		}
		return &prog, nil
	}
	if err != nil {
		return nil, err
	}
	return &prog, nil
}

// progressCounters feeds achievement evaluation.
type progressCounters struct {
	models.UserProgress
	GoalsReached int64
}

// Refresh recomputes the user's counters from their activity, then evaluates achievements.
// It returns the achievements completed by this call.
func (s *ProgressionService) Refresh(userID string) (*models.UserProgress, []models.Achievement, error) {
	if userID == "" {
		return nil, nil, nil
	}
	prog, err := s.EnsureProgressRecord(userID)
	if err != nil {
		return nil, nil, err
	}

	counters, err := s.countActivity(userID)
	if err != nil {
		return nil, nil, err
	}

	var completed []models.Achievement
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var achievements []models.Achievement
		if err := tx.Where("is_active = ?", true).Find(&achievements).Error; err != nil {
			return err
		}

		var existing []models.UserAchievement
		if err := tx.Where("user_id = ?", userID).Find(&existing).Error; err != nil {
			return err
		}
		byAchievement := make(map[string]models.UserAchievement, len(existing))
		for _, ua := range existing {
			byAchievement[ua.AchievementID] = ua
		}

		now := time.Now().UTC()
		for _, a := range achievements {
			value := counterFor(a.ConditionType, counters)
			if value > a.ConditionValue {
				value = a.ConditionValue
			}

			ua, ok := byAchievement[a.ID]
			if !ok {
				ua = models.UserAchievement{UserID: userID, AchievementID: a.ID}
			}
			if ok && ua.Progress == value && (ua.IsCompleted || value < a.ConditionValue) {
				continue
			}

			ua.Progress = value
			if !ua.IsCompleted && meetsThreshold(value, a.ConditionValue) {
				ua.IsCompleted = true
				ua.CompletedAt = &now
				completed = append(completed, a)
			}
			if err := tx.Save(&ua).Error; err != nil {
				return err
			}
		}

		var points int64
		if err := tx.Model(&models.UserAchievement{}).
			Joins("JOIN achievements ON achievements.id = user_achievements.achievement_id").
			Where("user_achievements.user_id = ? AND user_achievements.is_completed = ?", userID, true).
			Select("COALESCE(SUM(achievements.points), 0)").
			Scan(&points).Error; err != nil {
			return err
		}

		prog.TotalParticipations = counters.TotalParticipations
		prog.TotalContribution = counters.TotalContribution
		prog.TotalHosted = counters.TotalHosted
		prog.TotalInvited = counters.TotalInvited
		prog.CurrentStreak = counters.CurrentStreak
		prog.LongestStreak = counters.LongestStreak
		prog.LastParticipatedAt = counters.LastParticipatedAt
		prog.Points = points
		return tx.Save(prog).Error
	})
	if err != nil {
		return nil, nil, err
	}

	for _, a := range completed {
		logger.Info("🏆 [ACHIEVEMENT] unlocked",
			zap.String("user_id", userID),
			zap.String("achievement", a.Name),
			zap.String("condition", a.ConditionType),
		)
	}
	return prog, completed, nil
}

func meetsThreshold(value, required int64) bool {
	return required > 0 && value >= required
}

// counterFor picks the counter an achievement condition is measured against.
func counterFor(condition string, c *progressCounters) int64 {
	switch {
	case strings.HasPrefix(condition, "participate_"):
		return c.TotalParticipations
	case condition == "first_host", strings.HasPrefix(condition, "host_"):
		return c.TotalHosted
	case strings.HasPrefix(condition, "invite_"):
		return c.TotalInvited
	case strings.HasPrefix(condition, "contribution_"):
		return c.TotalContribution
	case strings.HasPrefix(condition, "streak_"):
		return int64(c.LongestStreak)
	case condition == "goal_reached":
		return c.GoalsReached
	}
	return 0
}

func (s *ProgressionService) countActivity(userID string) (*progressCounters, error) {
	c := &progressCounters{}

	var parts []models.Participation
	if err := s.DB.Select("id", "challenge_id", "contribution", "created_at").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&parts).Error; err != nil {
		return nil, err
	}
	c.TotalParticipations = int64(len(parts))
	days := make([]time.Time, 0, len(parts))
	for _, p := range parts {
		contribution := p.Contribution
		if contribution < 1 {
			contribution = 1
		}
		c.TotalContribution += int64(contribution)
		days = append(days, p.CreatedAt)
	}
	if n := len(parts); n > 0 {
		last := parts[n-1].CreatedAt
		c.LastParticipatedAt = &last
	}
	c.CurrentStreak, c.LongestStreak = streaks(days, time.Now())

	if err := s.DB.Model(&models.Challenge{}).Where("host_user_id = ?", userID).Count(&c.TotalHosted).Error; err != nil {
		return nil, err
	}

	if err := s.DB.Model(&models.InvitationUse{}).
		Joins("JOIN invitations ON invitations.id = invitation_uses.invitation_id").
		Where("invitations.inviter_id = ? AND invitation_uses.participation_id IS NOT NULL", userID).
		Count(&c.TotalInvited).Error; err != nil {
		return nil, err
	}

	if err := s.DB.Model(&models.Participation{}).
		Joins("JOIN challenges ON challenges.id = participations.challenge_id AND challenges.deleted_at IS NULL").
		Where("participations.user_id = ? AND challenges.goal_value > 0 AND challenges.current_value >= challenges.goal_value", userID).
		Distinct("participations.challenge_id").
		Count(&c.GoalsReached).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// streaks counts consecutive calendar days with activity. The current streak
// is alive when its last day is today or yesterday.
func streaks(times []time.Time, now time.Time) (current, longest int) {
	if len(times) == 0 {
		return 0, 0
	}
	seen := make(map[time.Time]bool, len(times))
	days := make([]time.Time, 0, len(times))
	for _, t := range times {
		d := startOfDay(t)
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	today := startOfDay(now)
	last := days[len(days)-1]
	if last.Equal(today) || last.Equal(today.Add(-24*time.Hour)) {
		current = run
	}
	return current, longest
}

// AchievementProgress is a catalog entry with the user's progress on it.
type AchievementProgress struct {
	models.Achievement
	Progress    int64      `json:"progress"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (s *ProgressionService) Catalog() ([]models.Achievement, error) {
	var achievements []models.Achievement
	err := s.DB.Where("is_active = ?", true).Order("type ASC, condition_value ASC").Find(&achievements).Error
	return achievements, err
}

func (s *ProgressionService) Mine(userID string) ([]AchievementProgress, error) {
	catalog, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	var rows []models.UserAchievement
	if err := s.DB.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]models.UserAchievement, len(rows))
	for _, r := range rows {
		byID[r.AchievementID] = r
	}

	out := make([]AchievementProgress, 0, len(catalog))
	for _, a := range catalog {
		ap := AchievementProgress{Achievement: a}
		if r, ok := byID[a.ID]; ok {
			ap.Progress, ap.IsCompleted, ap.CompletedAt = r.Progress, r.IsCompleted, r.CompletedAt
		}
		out = append(out, ap)
	}
	return out, nil
}

func (s *ProgressionService) Points(userID string) (int64, error) {
	prog, err := s.EnsureProgressRecord(userID)
	if err != nil {
		return 0, err
	}
	return prog.Points, nil
}
