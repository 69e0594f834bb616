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

const (
	activityMonths       = 6
	activityWeeks        = 4
	defaultHistoryPoints = 48
)

type StatsService struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db, now: time.Now}
}

type UserStats struct {
	Participations    int64 `json:"participations"`
	TotalContribution int64 `json:"total_contribution"`
	HostedChallenges  int64 `json:"hosted_challenges"`
	Badges            int64 `json:"badges"`
	AchievementPoints int64 `json:"achievement_points"`
}

func (s *StatsService) User(userID string) (*UserStats, error) {
	st := &UserStats{}
	if err := s.DB.Model(&models.Participation{}).Where("user_id = ?", userID).Count(&st.Participations).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Participation{}).
		Select("COALESCE(SUM("+contributionSQL+"), 0)").
		Where("user_id = ?", userID).
		Scan(&st.TotalContribution).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Challenge{}).Where("host_user_id = ?", userID).Count(&st.HostedChallenges).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.UserBadge{}).Where("user_id = ?", userID).Count(&st.Badges).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.UserProgress{}).
		Select("COALESCE(MAX(points), 0)").
		Where("user_id = ?", userID).
		Scan(&st.AchievementPoints).Error; err != nil {
		return nil, err
	}
	return st, nil
}

type ActivityBucket struct {
	Label        string    `json:"label"`
	Start        time.Time `json:"start"`
	Count        int       `json:"count"`
	Contribution int       `json:"contribution"`
}

type Activity struct {
	Monthly []ActivityBucket `json:"monthly"`
	Weekly  []ActivityBucket `json:"weekly"`
}

// Activity buckets the user's participations by month (last 6) and by week (last 4, weeks start Monday).
func (s *StatsService) Activity(userID string) (*Activity, error) {
	now := s.now().In(jst)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, jst)
	monthly := make([]ActivityBucket, activityMonths)
	for i := range monthly {
		start := monthStart.AddDate(0, i-(activityMonths-1), 0)
		monthly[i] = ActivityBucket{Label: start.Format("2006-01"), Start: start}
	}

	today := startOfDay(now)
	weekStart := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	weekly := make([]ActivityBucket, activityWeeks)
	for i := range weekly {
		start := weekStart.AddDate(0, 0, 7*(i-(activityWeeks-1)))
		weekly[i] = ActivityBucket{Label: start.Format("01/02"), Start: start}
	}

	since := monthly[0].Start
	if weekly[0].Start.Before(since) {
		since = weekly[0].Start
	}
	var parts []models.Participation
	if err := s.DB.Select("contribution", "created_at").
		Where("user_id = ? AND created_at >= ?", userID, since.UTC()).
		Find(&parts).Error; err != nil {
		return nil, err
	}

	for _, p := range parts {
		contribution := p.Contribution
		if contribution < 1 {
			contribution = 1
		}
		at := p.CreatedAt.In(jst)
		addToBucket(monthly, at, contribution)
		addToBucket(weekly, at, contribution)
	}
	return &Activity{Monthly: monthly, Weekly: weekly}, nil
}

// addToBucket finds the last bucket starting at or before t.
func addToBucket(buckets []ActivityBucket, t time.Time, contribution int) {
	for i := len(buckets) - 1; i >= 0; i-- {
		if !t.Before(buckets[i].Start) {
			buckets[i].Count++
			buckets[i].Contribution += contribution
			return
		}
	}
}

// Snapshot records an hourly ChallengeStats row for every challenge that has not ended.
func (s *StatsService) Snapshot(now time.Time) (int, error) {
	var challenges []models.Challenge
	if err := s.DB.Select("id", "current_value").
		Where("status <> ?", models.ChallengeEnded).
		Find(&challenges).Error; err != nil {
		return 0, err
	}

	at := now.UTC().Truncate(time.Hour)
	hourAgo := now.UTC().Add(-time.Hour)
	created := 0
	for _, ch := range challenges {
		row, err := s.snapshot(ch, at, hourAgo)
		if err != nil {
			logger.Warn("[STATS] snapshot failed", zap.String("challenge_id", ch.ID), zap.Error(err))
			continue
		}
		if err := s.DB.Create(row).Error; err != nil {
			logger.Warn("[STATS] snapshot insert failed", zap.String("challenge_id", ch.ID), zap.Error(err))
			continue
		}
		created++
	}
	return created, nil
}

func (s *StatsService) snapshot(ch models.Challenge, at, hourAgo time.Time) (*models.ChallengeStats, error) {
	row := &models.ChallengeStats{ChallengeID: ch.ID, SnapshotAt: at, CurrentValue: ch.CurrentValue}
	live := s.DB.Model(&models.Participation{}).Where("challenge_id = ?", ch.ID).Session(&gorm.Session{})
	if err := live.Count(&row.ParticipantCount).Error; err != nil {
		return nil, err
	}
	if err := live.Select("COALESCE(SUM(" + amountSQL + "), 0)").Scan(&row.TotalContribution).Error; err != nil {
		return nil, err
	}
	if err := live.Where("created_at >= ?", hourAgo).Count(&row.NewParticipants).Error; err != nil {
		return nil, err
	}

	var byPref []struct {
		Prefecture string
		Count      int
	}
	if err := live.Select("prefecture, COUNT(*) AS count").Group("prefecture").Scan(&byPref).Error; err != nil {
		return nil, err
	}
	data := make(map[string]int, len(byPref))
	for _, p := range byPref {
		name := p.Prefecture
		if name == "" {
			name = unsetPrefecture
		}
		data[name] += p.Count
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	row.PrefectureData = datatypes.JSON(raw)
	return row, nil
}

// History returns the latest snapshots of a challenge in chronological order.
func (s *StatsService) History(challengeID string, limit int) ([]models.ChallengeStats, error) {
	if limit <= 0 || limit > 24*30 {
		limit = defaultHistoryPoints
	}
	var rows []models.ChallengeStats
	if err := s.DB.Where("challenge_id = ?", challengeID).
		Order("snapshot_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
