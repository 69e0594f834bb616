package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"doin-challenge/cache"
	"doin-challenge/heatmap"
	"doin-challenge/logger"
	"doin-challenge/models"
	"doin-challenge/ranking"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

type ChallengeService struct {
	DB            *gorm.DB
	Collaborators *CollaboratorService
	Badges        *BadgeService
	Progression   *ProgressionService
	Templates     *TemplateService
	Audit         *AuditService
	Uploader      Uploader

	events *cache.TTL[ChallengePage]
}

func NewChallengeService(db *gorm.DB, store cache.Store, eventsTTL time.Duration) *ChallengeService {
	if eventsTTL <= 0 {
		eventsTTL = cache.EventsListDuration
	}
	return &ChallengeService{
		DB:     db,
		events: cache.NewTTL[ChallengePage](store, "events:", eventsTTL),
	}
}

// ChallengeInput is used for create and, with pointer semantics on the
// optional fields, for update.
type ChallengeInput struct {
	Title           *string                 `json:"title"`
	Description     *string                 `json:"description"`
	GoalType        *models.GoalType        `json:"goal_type"`
	GoalValue       *int                    `json:"goal_value"`
	GoalUnit        *string                 `json:"goal_unit"`
	EventType       *models.EventType       `json:"event_type"`
	CategoryID      *string                 `json:"category_id"`
	EventDate       *string                 `json:"event_date"`
	Venue           *string                 `json:"venue"`
	Prefecture      *string                 `json:"prefecture"`
	TicketPresale   *int                    `json:"ticket_presale"`
	TicketDoor      *int                    `json:"ticket_door"`
	TicketSaleStart *string                 `json:"ticket_sale_start"`
	TicketURL       *string                 `json:"ticket_url"`
	ExternalURL     *string                 `json:"external_url"`
	IsPublic        *bool                   `json:"is_public"`
	Status          *models.ChallengeStatus `json:"status"`
	TemplateID      *string                 `json:"template_id"`
}

func (s *ChallengeService) Create(actor Actor, in ChallengeInput) (*models.Challenge, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	if in.Title == nil {
		return nil, invalidf("title is required")
	}
	if in.EventDate == nil || strings.TrimSpace(*in.EventDate) == "" {
		return nil, invalidf("event_date is required")
	}

	var host models.User
	if err := s.DB.Where("id = ?", actor.UserID).First(&host).Error; err != nil {
		return nil, notFound("user", err)
	}

	ch := models.Challenge{
		ID:                 uuid.NewString(),
		HostUserID:         host.ID,
		HostTwitterID:      host.TwitterID,
		HostName:           host.DisplayName(),
		HostUsername:       host.Username,
		HostProfileImage:   host.ProfileImage,
		HostFollowersCount: host.FollowersCount,
		HostDescription:    host.Description,
		GoalType:           models.GoalAttendance,
		GoalValue:          models.DefaultGoalValue,
		GoalUnit:           models.DefaultGoalUnit,
		EventType:          models.EventSolo,
		Status:             models.ChallengeActive,
		IsPublic:           true,
	}

	if in.TemplateID != nil && *in.TemplateID != "" && s.Templates != nil {
		tmpl, err := s.Templates.Get(actor, *in.TemplateID)
		if err != nil {
			return nil, err
		}
		ch.GoalType, ch.GoalValue, ch.GoalUnit, ch.EventType = tmpl.GoalType, tmpl.GoalValue, tmpl.GoalUnit, tmpl.EventType
		ch.TicketPresale, ch.TicketDoor = tmpl.TicketPresale, tmpl.TicketDoor
		if ch.Description == "" {
			ch.Description = tmpl.Description
		}
	}

	if err := s.apply(&ch, in); err != nil {
		return nil, err
	}
	ch.Slug = challengeSlug(ch.Title, ch.ID)

	if err := s.DB.Create(&ch).Error; err != nil {
		return nil, err
	}
	s.InvalidateList()

	if in.TemplateID != nil && *in.TemplateID != "" && s.Templates != nil {
		if err := s.Templates.IncrementUseCount(*in.TemplateID); err != nil {
			logger.Warn("[CHALLENGE] template use count not updated", zap.String("template_id", *in.TemplateID), zap.Error(err))
		}
	}
	if s.Badges != nil {
		if err := s.Badges.AfterHosting(host.ID, ch.ID); err != nil {
			logger.Warn("[CHALLENGE] host badge check failed", zap.String("user_id", host.ID), zap.Error(err))
		}
	}
	if s.Progression != nil {
		if _, _, err := s.Progression.Refresh(host.ID); err != nil {
			logger.Warn("[CHALLENGE] progress refresh failed", zap.String("user_id", host.ID), zap.Error(err))
		}
	}

	logger.Info("[CHALLENGE] created", zap.String("challenge_id", ch.ID), zap.String("host", host.ID), zap.String("title", ch.Title))
	return &ch, nil
}

func challengeSlug(title, id string) string {
	base := slug.Make(title)
	if len(base) > 60 {
		base = strings.Trim(base[:60], "-")
	}
	if base == "" {
		return id[:8]
	}
	return base + "-" + id[:8]
}

// apply copies the set fields of in onto ch and validates the result.
func (s *ChallengeService) apply(ch *models.Challenge, in ChallengeInput) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if n := len([]rune(title)); n < 1 || n > 255 {
			return invalidf("title must be 1..255 characters")
		}
		ch.Title = title
	}
	if in.Description != nil {
		ch.Description = *in.Description
	}
	if in.GoalType != nil {
		if !in.GoalType.Valid() {
			return invalidf("unknown goal_type %q", *in.GoalType)
		}
		ch.GoalType = *in.GoalType
	}
	if in.GoalValue != nil {
		if *in.GoalValue < 1 {
			return invalidf("goal_value must be at least 1")
		}
		ch.GoalValue = *in.GoalValue
	}
	if in.GoalUnit != nil && strings.TrimSpace(*in.GoalUnit) != "" {
		ch.GoalUnit = strings.TrimSpace(*in.GoalUnit)
	}
	if in.EventType != nil {
		if !in.EventType.Valid() {
			return invalidf("unknown event_type %q", *in.EventType)
		}
		ch.EventType = *in.EventType
	}
	if in.CategoryID != nil {
		if *in.CategoryID == "" {
			ch.CategoryID = nil
		} else {
			var cat models.Category
			if err := s.DB.Select("id").Where("id = ?", *in.CategoryID).First(&cat).Error; err != nil {
				return notFound("category", err)
			}
			id := cat.ID
			ch.CategoryID = &id
		}
	}
	if in.EventDate != nil {
		t, err := parseDate(*in.EventDate)
		if err != nil {
			return err
		}
		ch.EventDate = t
	}
	if in.Venue != nil {
		ch.Venue = strings.TrimSpace(*in.Venue)
	}
	if in.Prefecture != nil {
		ch.Prefecture = heatmap.NormalizePrefecture(*in.Prefecture)
	}
	if in.TicketPresale != nil {
		if *in.TicketPresale < 0 {
			return invalidf("ticket_presale must not be negative")
		}
		ch.TicketPresale = in.TicketPresale
	}
	if in.TicketDoor != nil {
		if *in.TicketDoor < 0 {
			return invalidf("ticket_door must not be negative")
		}
		ch.TicketDoor = in.TicketDoor
	}
	if in.TicketSaleStart != nil {
		if *in.TicketSaleStart == "" {
			ch.TicketSaleStart = nil
		} else {
			t, err := parseDate(*in.TicketSaleStart)
			if err != nil {
				return err
			}
			ch.TicketSaleStart = &t
		}
	}
	if in.TicketURL != nil {
		ch.TicketURL = *in.TicketURL
	}
	if in.ExternalURL != nil {
		ch.ExternalURL = *in.ExternalURL
	}
	if in.IsPublic != nil {
		ch.IsPublic = *in.IsPublic
	}
	if in.Status != nil {
		switch *in.Status {
		case models.ChallengeUpcoming, models.ChallengeActive, models.ChallengeEnded:
			ch.Status = *in.Status
		default:
			return invalidf("unknown status %q", *in.Status)
		}
	}
	return nil
}

// ChallengeDetail is a challenge with its live participation figures.
type ChallengeDetail struct {
	models.Challenge
	ParticipantCount int64   `json:"participant_count"`
	NewLast24h       int64   `json:"new_last_24h"`
	Progress         float64 `json:"progress"`
	Momentum         float64 `json:"momentum"`
}

func (s *ChallengeService) find(id string) (*models.Challenge, error) {
	var ch models.Challenge
	if err := s.DB.Preload("Category").Where("id = ?", id).First(&ch).Error; err != nil {
		return nil, notFound("challenge", err)
	}
	return &ch, nil
}

// Get returns a challenge. Private challenges are visible to the host, collaborators and admins.
func (s *ChallengeService) Get(actor Actor, id string) (*ChallengeDetail, error) {
	ch, err := s.find(id)
	if err != nil {
		return nil, err
	}
	if !ch.IsPublic && ch.HostUserID != actor.UserID && !actor.IsAdmin() {
		perms, err := s.Collaborators.Permissions(id, actor.UserID)
		if err != nil {
			return nil, err
		}
		if !perms.IsCollaborator {
			return nil, fmtNotFound("challenge")
		}
	}

	detail := &ChallengeDetail{Challenge: *ch, Progress: ch.Progress()}
	if err := s.DB.Model(&models.Participation{}).
		Select("COALESCE(SUM("+amountSQL+"), 0)").
		Where("challenge_id = ?", id).
		Scan(&detail.ParticipantCount).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Model(&models.Participation{}).
		Where("challenge_id = ? AND created_at >= ?", id, time.Now().UTC().Add(-24*time.Hour)).
		Count(&detail.NewLast24h).Error; err != nil {
		return nil, err
	}
	detail.Momentum = ranking.MomentumScore(ranking.Signals{
		Current: ch.CurrentValue,
		Goal:    ch.GoalValue,
		New24h:  int(detail.NewLast24h),
	})
	return detail, nil
}

type ListQuery struct {
	Cursor     int
	Limit      int
	Filter     string // all | solo | group
	Search     string
	CategoryID string
}

type ChallengePage struct {
	Items      []models.Challenge `json:"items"`
	NextCursor *int               `json:"next_cursor"`
	TotalCount int64              `json:"total_count"`
}

// List pages through public challenges, newest event first.
// The unfiltered list is served from the events cache.
func (s *ChallengeService) List(q ListQuery) (*ChallengePage, error) {
	if q.Cursor < 0 {
		q.Cursor = 0
	}
	if q.Limit <= 0 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	if q.Filter == "" {
		q.Filter = "all"
	}
	if q.Filter != "all" && !models.EventType(q.Filter).Valid() {
		return nil, invalidf("filter must be all, solo or group")
	}
	q.Search = strings.TrimSpace(q.Search)

	if q.Filter == "all" && q.Search == "" && q.CategoryID == "" {
		page, err := s.events.GetOrLoad(fmt.Sprintf("list:%d:%d", q.Cursor, q.Limit), func() (ChallengePage, error) {
			p, err := s.list(q)
			if err != nil {
				return ChallengePage{}, err
			}
			return *p, nil
		})
		if err != nil {
			return nil, err
		}
		return &page, nil
	}
	return s.list(q)
}

func (s *ChallengeService) list(q ListQuery) (*ChallengePage, error) {
	db := s.DB.Model(&models.Challenge{}).Where("is_public = ?", true)
	if q.Filter != "all" {
		db = db.Where("event_type = ?", q.Filter)
	}
	if q.CategoryID != "" {
		db = db.Where("category_id = ?", q.CategoryID)
	}
	if q.Search != "" {
		term := "%" + strings.ToLower(norm.NFKC.String(q.Search)) + "%"
		db = db.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(venue) LIKE ? OR LOWER(host_name) LIKE ?",
			term, term, term, term)
	}
	db = db.Session(&gorm.Session{})

	page := &ChallengePage{Items: []models.Challenge{}}
	if err := db.Count(&page.TotalCount).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Category").
		Order("event_date DESC").Order("id").
		Offset(q.Cursor).Limit(q.Limit).
		Find(&page.Items).Error; err != nil {
		return nil, err
	}
	if next := q.Cursor + len(page.Items); int64(next) < page.TotalCount {
		page.NextCursor = &next
	}
	return page, nil
}

// InvalidateList drops every cached page of the public list.
func (s *ChallengeService) InvalidateList() {
	if err := s.events.Clear(); err != nil {
		logger.Warn("[CACHE] events cache clear failed", zap.Error(err))
	}
}

func (s *ChallengeService) Mine(userID string) ([]models.Challenge, error) {
	var challenges []models.Challenge
	err := s.DB.Preload("Category").Where("host_user_id = ?", userID).Order("event_date DESC").Find(&challenges).Error
	return challenges, err
}

// ByCategory lists public challenges in a category.
func (s *ChallengeService) ByCategory(categoryID string, limit int) ([]models.Challenge, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	var challenges []models.Challenge
	err := s.DB.Where("category_id = ? AND is_public = ?", categoryID, true).
		Order("event_date DESC").
		Limit(limit).
		Find(&challenges).Error
	return challenges, err
}

func (s *ChallengeService) Update(actor Actor, id string, in ChallengeInput) (*models.Challenge, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	ch, err := s.find(id)
	if err != nil {
		return nil, err
	}
	perms, err := s.Collaborators.Permissions(id, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !perms.CanEdit && !actor.IsAdmin() {
		return nil, forbiddenf("no edit permission on this challenge")
	}

	before := *ch
	if err := s.apply(ch, in); err != nil {
		return nil, err
	}
	if in.Title != nil && ch.Title != before.Title {
		ch.Slug = challengeSlug(ch.Title, ch.ID)
	}
	ch.Category = nil
	if err := s.DB.Omit("current_value").Save(ch).Error; err != nil {
		return nil, err
	}
	s.InvalidateList()

	if !perms.CanEdit && actor.IsAdmin() && s.Audit != nil {
		s.Audit.Record(actor, AuditEntry{
			Action:     models.AuditEdit,
			EntityType: "challenge",
			TargetID:   ch.ID,
			Before:     before,
			After:      ch,
		})
	}
	return ch, nil
}

func (s *ChallengeService) Delete(actor Actor, id, reason string) error {
	if err := actor.requireUser(); err != nil {
		return err
	}
	ch, err := s.find(id)
	if err != nil {
		return err
	}
	if ch.HostUserID != actor.UserID && !actor.IsAdmin() {
		return forbiddenf("only the host can delete this challenge")
	}
	if err := s.DB.Delete(ch).Error; err != nil {
		return err
	}
	s.InvalidateList()

	if ch.HostUserID != actor.UserID && s.Audit != nil {
		s.Audit.Record(actor, AuditEntry{
			Action:     models.AuditDelete,
			EntityType: "challenge",
			TargetID:   ch.ID,
			Before:     ch,
			Reason:     reason,
		})
	}
	logger.Info("[CHALLENGE] deleted", zap.String("challenge_id", id), zap.String("by", actor.UserID))
	return nil
}

// UploadCover stores the cover image and saves its URL on the challenge.
func (s *ChallengeService) UploadCover(ctx context.Context, actor Actor, id string, fh *multipart.FileHeader) (string, error) {
	if err := actor.requireUser(); err != nil {
		return "", err
	}
	if s.Uploader == nil {
		return "", ErrUploadsDisabled
	}
	perms, err := s.Collaborators.Permissions(id, actor.UserID)
	if err != nil {
		return "", err
	}
	if !perms.CanEdit && !actor.IsAdmin() {
		return "", forbiddenf("no edit permission on this challenge")
	}

	key, err := imageKey("challenges", id, "cover", fh)
	if err != nil {
		return "", err
	}
	url, err := s.Uploader.UploadFormFile(ctx, fh, key)
	if err != nil {
		return "", err
	}
	if err := s.DB.Model(&models.Challenge{}).Where("id = ?", id).Update("cover_image_url", url).Error; err != nil {
		return "", err
	}
	s.InvalidateList()
	return url, nil
}

// Trending orders public, active challenges by momentum.
func (s *ChallengeService) Trending(limit int) ([]ChallengeDetail, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	var challenges []models.Challenge
	if err := s.DB.Where("is_public = ? AND status = ?", true, models.ChallengeActive).Find(&challenges).Error; err != nil {
		return nil, err
	}

	var recent []struct {
		ChallengeID string
		Count       int64
	}
	if err := s.DB.Model(&models.Participation{}).
		Select("challenge_id, COUNT(*) AS count").
		Where("created_at >= ?", time.Now().UTC().Add(-24*time.Hour)).
		Group("challenge_id").
		Scan(&recent).Error; err != nil {
		return nil, err
	}
	newByChallenge := make(map[string]int64, len(recent))
	for _, r := range recent {
		newByChallenge[r.ChallengeID] = r.Count
	}

	details := make([]ChallengeDetail, 0, len(challenges))
	for _, ch := range challenges {
		sig := ranking.Signals{Current: ch.CurrentValue, Goal: ch.GoalValue, New24h: int(newByChallenge[ch.ID])}
		details = append(details, ChallengeDetail{
			Challenge:        ch,
			ParticipantCount: int64(ch.CurrentValue),
			NewLast24h:       newByChallenge[ch.ID],
			Progress:         ch.Progress(),
			Momentum:         ranking.MomentumScore(sig),
		})
	}
	ranking.SortByMomentum(details, func(d ChallengeDetail) ranking.Signals {
		return ranking.Signals{Current: d.CurrentValue, Goal: d.GoalValue, New24h: int(d.NewLast24h)}
	})
	if len(details) > limit {
		details = details[:limit]
	}
	return details, nil
}

// TransitionStatuses moves upcoming challenges to active on their event day
// and ends challenges a day after their event.
func (s *ChallengeService) TransitionStatuses(now time.Time) (activated, ended int64, err error) {
	res := s.DB.Model(&models.Challenge{}).
		Where("status IN ? AND event_date <= ?", []models.ChallengeStatus{models.ChallengeUpcoming, models.ChallengeActive}, now.UTC().Add(-24*time.Hour)).
		Update("status", models.ChallengeEnded)
	if res.Error != nil {
		return 0, 0, res.Error
	}
	ended = res.RowsAffected

	tomorrow := startOfDay(now).Add(24 * time.Hour).UTC()
	res = s.DB.Model(&models.Challenge{}).
		Where("status = ? AND event_date < ?", models.ChallengeUpcoming, tomorrow).
		Update("status", models.ChallengeActive)
	if res.Error != nil {
		return 0, ended, res.Error
	}
	activated = res.RowsAffected

	if activated+ended > 0 {
		s.InvalidateList()
	}
	return activated, ended, nil
}
