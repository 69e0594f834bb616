package services

import (
	"errors"
	"strings"
	"time"

	"doin-challenge/heatmap"
	"doin-challenge/logger"
	"doin-challenge/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserService struct {
	DB *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{DB: db}
}

// LoginInput is the profile the identity provider returned for the user.
type LoginInput struct {
	OpenID         string `json:"open_id"`
	TwitterID      string `json:"twitter_id"`
	Name           string `json:"name"`
	Username       string `json:"username"`
	ProfileImage   string `json:"profile_image"`
	FollowersCount int    `json:"followers_count"`
	Description    string `json:"description"`
	LoginMethod    string `json:"login_method"`
}

// Login creates the user on first sign in and refreshes provider fields afterwards.
func (s *UserService) Login(in LoginInput) (*models.User, error) {
	in.OpenID = strings.TrimSpace(in.OpenID)
	if in.OpenID == "" {
		if in.TwitterID == "" {
			return nil, invalidf("open_id is required")
		}
		in.OpenID = "twitter:" + in.TwitterID
	}

	now := time.Now().UTC()
	var user models.User
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("open_id = ?", in.OpenID).
			First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = models.User{
				OpenID:         in.OpenID,
				TwitterID:      in.TwitterID,
				Name:           in.Name,
				Username:       in.Username,
				ProfileImage:   in.ProfileImage,
				FollowersCount: in.FollowersCount,
				Description:    in.Description,
				LoginMethod:    in.LoginMethod,
				Role:           models.RoleUser,
				Gender:         models.GenderUnspecified,
				LastSignedIn:   &now,
			}
			return tx.Create(&user).Error
		}
		if err != nil {
			return err
		}

		if in.TwitterID != "" {
			user.TwitterID = in.TwitterID
		}
		if in.Name != "" {
			user.Name = in.Name
		}
		if in.Username != "" {
			user.Username = in.Username
		}
		if in.ProfileImage != "" {
			user.ProfileImage = in.ProfileImage
		}
		if in.FollowersCount > 0 {
			user.FollowersCount = in.FollowersCount
		}
		if in.LoginMethod != "" {
			user.LoginMethod = in.LoginMethod
		}
		user.LastSignedIn = &now
		return tx.Save(&user).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[AUTH] user signed in", zap.String("user_id", user.ID), zap.String("method", user.LoginMethod))
	return &user, nil
}

func (s *UserService) Get(id string) (*models.User, error) {
	var user models.User
	if err := s.DB.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, notFound("user", err)
	}
	return &user, nil
}

// Role returns the user's current role. Middleware uses it so role changes apply without a new token.
func (s *UserService) Role(id string) (models.UserRole, error) {
	user, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

type ProfileUpdate struct {
	Name        *string        `json:"name"`
	Prefecture  *string        `json:"prefecture"`
	Gender      *models.Gender `json:"gender"`
	Description *string        `json:"description"`
}

func (s *UserService) UpdateProfile(userID string, in ProfileUpdate) (*models.User, error) {
	user, err := s.Get(userID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" || len([]rune(name)) > 100 {
			return nil, invalidf("name must be 1..100 characters")
		}
		user.Name = name
	}
	if in.Prefecture != nil {
		user.Prefecture = heatmap.NormalizePrefecture(*in.Prefecture)
	}
	if in.Gender != nil {
		if !in.Gender.Valid() {
			return nil, invalidf("unknown gender %q", *in.Gender)
		}
		user.Gender = *in.Gender
	}
	if in.Description != nil {
		user.Description = *in.Description
	}
	if err := s.DB.Save(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

type PublicProfile struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Username           string             `json:"username,omitempty"`
	ProfileImage       string             `json:"profile_image,omitempty"`
	FollowersCount     int                `json:"followers_count"`
	Description        string             `json:"description,omitempty"`
	Prefecture         string             `json:"prefecture,omitempty"`
	ParticipationCount int64              `json:"participation_count"`
	TotalContribution  int64              `json:"total_contribution"`
	HostedCount        int64              `json:"hosted_count"`
	Badges             []models.UserBadge `json:"badges"`
}

func (s *UserService) PublicProfile(id string) (*PublicProfile, error) {
	user, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	p := &PublicProfile{
		ID:             user.ID,
		Name:           user.DisplayName(),
		Username:       user.Username,
		ProfileImage:   user.ProfileImage,
		FollowersCount: user.FollowersCount,
		Description:    user.Description,
		Prefecture:     user.Prefecture,
	}

	var totals struct {
		Count        int64
		Contribution int64
	}
	if err := s.DB.Model(&models.Participation{}).
		Select("COUNT(*) AS count, COALESCE(SUM("+contributionSQL+"), 0) AS contribution").
		Where("user_id = ?", id).
		Scan(&totals).Error; err != nil {
		return nil, err
	}
	p.ParticipationCount, p.TotalContribution = totals.Count, totals.Contribution

	if err := s.DB.Model(&models.Challenge{}).Where("host_user_id = ?", id).Count(&p.HostedCount).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Preload("Badge").Where("user_id = ?", id).Order("awarded_at DESC").Find(&p.Badges).Error; err != nil {
		return nil, err
	}
	return p, nil
}

const unknownChallengeTitle = "不明なチャレンジ"

type RecentChallenge struct {
	ChallengeID  string    `json:"challenge_id"`
	Title        string    `json:"title"`
	EventDate    time.Time `json:"event_date,omitempty"`
	Contribution int       `json:"contribution"`
	JoinedAt     time.Time `json:"joined_at"`
}

type OshikatsuStats struct {
	TotalParticipations int64             `json:"total_participations"`
	TotalContribution   int64             `json:"total_contribution"`
	RecentChallenges    []RecentChallenge `json:"recent_challenges"`
}

// Oshikatsu summarizes a user's fan activity from their 20 latest participations.
func (s *UserService) Oshikatsu(userID string) (*OshikatsuStats, error) {
	if _, err := s.Get(userID); err != nil {
		return nil, err
	}

	var parts []models.Participation
	if err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(20).
		Find(&parts).Error; err != nil {
		return nil, err
	}

	stats := &OshikatsuStats{TotalParticipations: int64(len(parts)), RecentChallenges: []RecentChallenge{}}
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		c := p.Contribution
		if c < 1 {
			c = 1
		}
		stats.TotalContribution += int64(c)
		ids = append(ids, p.ChallengeID)
	}

	titles := map[string]models.Challenge{}
	if len(ids) > 0 {
		var challenges []models.Challenge
		if err := s.DB.Unscoped().Select("id", "title", "event_date").Where("id IN ?", ids).Find(&challenges).Error; err != nil {
			return nil, err
		}
		for _, c := range challenges {
			titles[c.ID] = c
		}
	}

	for _, p := range parts {
		if len(stats.RecentChallenges) == 5 {
			break
		}
		rc := RecentChallenge{ChallengeID: p.ChallengeID, Title: unknownChallengeTitle, Contribution: p.Contribution, JoinedAt: p.CreatedAt}
		if c, ok := titles[p.ChallengeID]; ok {
			rc.Title = c.Title
			rc.EventDate = c.EventDate
		}
		stats.RecentChallenges = append(stats.RecentChallenges, rc)
	}
	return stats, nil
}

// Search lists users matching q against name or username.
func (s *UserService) Search(q string, limit, offset int) ([]models.User, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	db := s.DB.Model(&models.User{})
	if q = strings.TrimSpace(q); q != "" {
		term := "%" + strings.ToLower(q) + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(username) LIKE ?", term, term)
	}
	db = db.Session(&gorm.Session{})

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []models.User
	if err := db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
