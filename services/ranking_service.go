package services

import (
	"time"

	"doin-challenge/models"

	"gorm.io/gorm"
)

const (
	defaultRankingLimit = 50
	maxRankingLimit     = 100
	positionWindow      = 1000
)

type RankingPeriod string

const (
	PeriodWeekly  RankingPeriod = "weekly"
	PeriodMonthly RankingPeriod = "monthly"
	PeriodAll     RankingPeriod = "all"
)

// Since returns the start of the period window, or nil for all time.
func (p RankingPeriod) Since(now time.Time) (*time.Time, error) {
	var since time.Time
	switch p {
	case PeriodWeekly:
		since = now.UTC().AddDate(0, 0, -7)
	case PeriodMonthly:
		since = now.UTC().AddDate(0, 0, -30)
	case PeriodAll, "":
		return nil, nil
	default:
		return nil, invalidf("period must be weekly, monthly or all")
	}
	return &since, nil
}

type RankingService struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewRankingService(db *gorm.DB) *RankingService {
	return &RankingService{DB: db, now: time.Now}
}

type ContributorRank struct {
	Rank               int    `json:"rank"`
	UserID             string `json:"user_id"`
	Name               string `json:"name"`
	Username           string `json:"username,omitempty"`
	ProfileImage       string `json:"profile_image,omitempty"`
	TotalContribution  int64  `json:"total_contribution"`
	ParticipationCount int64  `json:"participation_count"`
}

func clampRankingLimit(limit int) int {
	if limit <= 0 {
		return defaultRankingLimit
	}
	if limit > maxRankingLimit {
		return maxRankingLimit
	}
	return limit
}

func (s *RankingService) contributors(period RankingPeriod, limit int) ([]ContributorRank, error) {
	since, err := period.Since(s.now())
	if err != nil {
		return nil, err
	}
	db := s.DB.Model(&models.Participation{}).
		Select("participations.user_id AS user_id, " +
			"COALESCE(SUM(" + contributionSQL + "), 0) AS total_contribution, " +
			"COUNT(*) AS participation_count").
		Where("participations.user_id IS NOT NULL AND participations.is_anonymous = ?", false)
	if since != nil {
		db = db.Where("participations.created_at >= ?", *since)
	}

	var rows []ContributorRank
	if err := db.Group("participations.user_id").
		Order("total_contribution DESC").
		Order("participation_count DESC").
		Order("user_id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []ContributorRank{}, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.UserID)
	}
	var users []models.User
	if err := s.DB.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for i := range rows {
		rows[i].Rank = i + 1
		if u, ok := byID[rows[i].UserID]; ok {
			rows[i].Name = u.DisplayName()
			rows[i].Username = u.Username
			rows[i].ProfileImage = u.ProfileImage
		}
	}
	return rows, nil
}

// Contributors ranks users by total contribution in the period.
func (s *RankingService) Contributors(period RankingPeriod, limit int) ([]ContributorRank, error) {
	return s.contributors(period, clampRankingLimit(limit))
}

type ChallengeRank struct {
	Rank            int     `json:"rank"`
	ChallengeID     string  `json:"challenge_id"`
	Title           string  `json:"title"`
	HostName        string  `json:"host_name"`
	CurrentValue    int     `json:"current_value"`
	GoalValue       int     `json:"goal_value"`
	GoalUnit        string  `json:"goal_unit"`
	AchievementRate float64 `json:"achievement_rate"`
}

// Challenges ranks public challenges by current/goal.
func (s *RankingService) Challenges(limit int) ([]ChallengeRank, error) {
	limit = clampRankingLimit(limit)
	var challenges []models.Challenge
	if err := s.DB.Where("is_public = ? AND goal_value > 0", true).
		Order("current_value * 1.0 / goal_value DESC").
		Order("current_value DESC").
		Limit(limit).
		Find(&challenges).Error; err != nil {
		return nil, err
	}
	ranks := make([]ChallengeRank, 0, len(challenges))
	for i, ch := range challenges {
		ranks = append(ranks, ChallengeRank{
			Rank:            i + 1,
			ChallengeID:     ch.ID,
			Title:           ch.Title,
			HostName:        ch.HostName,
			CurrentValue:    ch.CurrentValue,
			GoalValue:       ch.GoalValue,
			GoalUnit:        ch.GoalUnit,
			AchievementRate: float64(ch.CurrentValue) / float64(ch.GoalValue),
		})
	}
	return ranks, nil
}

type HostRank struct {
	Rank                   int     `json:"rank"`
	UserID                 string  `json:"user_id"`
	Name                   string  `json:"name"`
	ProfileImage           string  `json:"profile_image,omitempty"`
	ChallengeCount         int64   `json:"challenge_count"`
	TotalParticipants      int64   `json:"total_participants"`
	AverageAchievementRate float64 `json:"average_achievement_rate"`
}

// Hosts ranks hosts by the people their public challenges gathered.
func (s *RankingService) Hosts(limit int) ([]HostRank, error) {
	limit = clampRankingLimit(limit)
	var rows []HostRank
	if err := s.DB.Model(&models.Challenge{}).
		Select("host_user_id AS user_id, MAX(host_name) AS name, MAX(host_profile_image) AS profile_image, " +
			"COUNT(*) AS challenge_count, COALESCE(SUM(current_value), 0) AS total_participants, " +
			"AVG(CASE WHEN goal_value > 0 THEN current_value * 1.0 / goal_value ELSE 0 END) AS average_achievement_rate").
		Where("is_public = ?", true).
		Group("host_user_id").
		Order("total_participants DESC").
		Order("challenge_count DESC").
		Order("user_id ASC").
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	if rows == nil {
		rows = []HostRank{}
	}
	return rows, nil
}

type Position struct {
	Rank              int   `json:"rank"` // 0 when outside the window
	TotalContribution int64 `json:"total_contribution"`
	OutOf             int   `json:"out_of"`
}

// MyPosition finds the user within the top 1000 contributors of the period.
func (s *RankingService) MyPosition(userID string, period RankingPeriod) (*Position, error) {
	rows, err := s.contributors(period, positionWindow)
	if err != nil {
		return nil, err
	}
	pos := &Position{OutOf: len(rows)}
	for _, r := range rows {
		if r.UserID == userID {
			pos.Rank = r.Rank
			pos.TotalContribution = r.TotalContribution
			break
		}
	}
	return pos, nil
}
