package services

import (
	"time"

	"doin-challenge/cache"

	"gorm.io/gorm"
)

type Options struct {
	EventsTTL     time.Duration
	CategoriesTTL time.Duration
	Uploader      Uploader
}

// Services is the wired set of domain services shared by handlers, jobs and workers.
type Services struct {
	Users            *UserService
	Challenges       *ChallengeService
	Categories       *CategoryService
	Templates        *TemplateService
	Participations   *ParticipationService
	Invitations      *InvitationService
	Collaborators    *CollaboratorService
	Badges           *BadgeService
	Progression      *ProgressionService
	AchievementPages *AchievementPageService
	Tickets          *TicketService
	Notifications    *NotificationService
	Rankings         *RankingService
	Audit            *AuditService
	Admin            *AdminService
	Stats            *StatsService
}

func New(db *gorm.DB, store cache.Store, opts Options) *Services {
	if store == nil {
		store = cache.NewMemoryStore()
	}
	s := &Services{
		Users:            NewUserService(db),
		Categories:       NewCategoryService(db, store, opts.CategoriesTTL),
		Templates:        NewTemplateService(db),
		Invitations:      NewInvitationService(db),
		Collaborators:    NewCollaboratorService(db),
		Badges:           NewBadgeService(db),
		Progression:      NewProgressionService(db),
		AchievementPages: NewAchievementPageService(db),
		Notifications:    NewNotificationService(db),
		Rankings:         NewRankingService(db),
		Audit:            NewAuditService(db),
		Stats:            NewStatsService(db),
	}
	s.Notifications.Badges = s.Badges
	s.Tickets = NewTicketService(db, s.Notifications)

	s.Challenges = NewChallengeService(db, store, opts.EventsTTL)
	s.Challenges.Collaborators = s.Collaborators
	s.Challenges.Badges = s.Badges
	s.Challenges.Progression = s.Progression
	s.Challenges.Templates = s.Templates
	s.Challenges.Audit = s.Audit

	s.Participations = NewParticipationService(db)
	s.Participations.Challenges = s.Challenges
	s.Participations.Collaborators = s.Collaborators
	s.Participations.Badges = s.Badges
	s.Participations.Progression = s.Progression
	s.Participations.Notifications = s.Notifications
	s.Participations.Tickets = s.Tickets
	s.Participations.Audit = s.Audit

	s.Admin = NewAdminService(db, s.Audit)
	s.Admin.Challenges = s.Challenges
	s.Admin.Progression = s.Progression
	s.Admin.Participations = s.Participations

	if opts.Uploader != nil {
		s.Challenges.Uploader = opts.Uploader
		s.AchievementPages.Uploader = opts.Uploader
	}
	return s
}

// Jobs returns the scheduled maintenance tasks bound to these services.
func (s *Services) Jobs() *Jobs {
	return &Jobs{
		Challenges:    s.Challenges,
		Invitations:   s.Invitations,
		Collaborators: s.Collaborators,
		Stats:         s.Stats,
	}
}
