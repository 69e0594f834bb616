package services

import (
	"sort"
	"strings"

	"doin-challenge/heatmap"
	"doin-challenge/logger"
	"doin-challenge/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	unsetPrefecture         = "未設定"
	maxDisplayName          = 100
	maxMessage              = 1000
	defaultContributionTopN = 10
)

type ParticipationService struct {
	DB            *gorm.DB
	Challenges    *ChallengeService
	Collaborators *CollaboratorService
	Badges        *BadgeService
	Progression   *ProgressionService
	Notifications *NotificationService
	Tickets       *TicketService
	Audit         *AuditService
}

func NewParticipationService(db *gorm.DB) *ParticipationService {
	return &ParticipationService{DB: db}
}

type CompanionInput struct {
	DisplayName     string `json:"display_name"`
	TwitterUsername string `json:"twitter_username"`
	TwitterID       string `json:"twitter_id"`
	ProfileImage    string `json:"profile_image"`
}

type ParticipationInput struct {
	ChallengeID    string           `json:"challenge_id"`
	DisplayName    string           `json:"display_name"`
	Username       string           `json:"username"`
	TwitterID      string           `json:"twitter_id"`
	ProfileImage   string           `json:"profile_image"`
	FollowersCount int              `json:"followers_count"`
	Message        string           `json:"message"`
	CompanionCount int              `json:"companion_count"`
	Prefecture     string           `json:"prefecture"`
	Gender         models.Gender    `json:"gender"`
	Contribution   int              `json:"contribution"`
	Companions     []CompanionInput `json:"companions"`
	InvitationCode string           `json:"invitation_code"`
}

func (in *ParticipationInput) normalize() error {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.DisplayName == "" {
		return invalidf("display_name is required")
	}
	if len([]rune(in.DisplayName)) > maxDisplayName {
		return invalidf("display_name must be at most %d characters", maxDisplayName)
	}
	if len([]rune(in.Message)) > maxMessage {
		return invalidf("message must be at most %d characters", maxMessage)
	}
	if in.CompanionCount < 0 {
		return invalidf("companion_count must not be negative")
	}
	if len(in.Companions) > in.CompanionCount {
		in.CompanionCount = len(in.Companions)
	}
	if in.Contribution == 0 {
		in.Contribution = 1
	}
	if in.Contribution < 1 {
		return invalidf("contribution must be at least 1")
	}
	if in.Gender == "" {
		in.Gender = models.GenderUnspecified
	}
	if !in.Gender.Valid() {
		return invalidf("unknown gender %q", in.Gender)
	}
	if in.Prefecture != "" {
		in.Prefecture = heatmap.NormalizePrefecture(in.Prefecture)
	}
	for i := range in.Companions {
		in.Companions[i].DisplayName = strings.TrimSpace(in.Companions[i].DisplayName)
		if in.Companions[i].DisplayName == "" {
			return invalidf("companion display_name is required")
		}
	}
	return nil
}

// Create registers the caller for a challenge and adds contribution plus companions to its current value.
// An invitation code is redeemed in the same transaction; a rejected code fails the whole create.
func (s *ParticipationService) Create(actor Actor, in ParticipationInput) (*models.Participation, error) {
	p := models.Participation{}
	if actor.Authenticated() {
		var user models.User
		if err := s.DB.Where("id = ?", actor.UserID).First(&user).Error; err != nil {
			return nil, notFound("user", err)
		}
		uid := user.ID
		p.UserID = &uid
		if strings.TrimSpace(in.DisplayName) == "" {
			in.DisplayName = user.DisplayName()
		}
		if in.Username == "" {
			in.Username = user.Username
		}
		if in.TwitterID == "" {
			in.TwitterID = user.TwitterID
		}
		if in.ProfileImage == "" {
			in.ProfileImage = user.ProfileImage
		}
		if in.FollowersCount == 0 {
			in.FollowersCount = user.FollowersCount
		}
		if in.Prefecture == "" {
			in.Prefecture = user.Prefecture
		}
		if in.Gender == "" {
			in.Gender = user.Gender
		}
	}
	return s.create(p, in)
}

// CreateAnonymous registers a participation with no user link.
func (s *ParticipationService) CreateAnonymous(in ParticipationInput) (*models.Participation, error) {
	return s.create(models.Participation{IsAnonymous: true}, in)
}

func (s *ParticipationService) create(p models.Participation, in ParticipationInput) (*models.Participation, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	p.ChallengeID = in.ChallengeID
	p.DisplayName = in.DisplayName
	p.Username = in.Username
	p.TwitterID = in.TwitterID
	p.ProfileImage = in.ProfileImage
	p.FollowersCount = in.FollowersCount
	p.Message = in.Message
	p.CompanionCount = in.CompanionCount
	p.Contribution = in.Contribution
	p.Prefecture = in.Prefecture
	p.Gender = in.Gender

	var (
		ch        models.Challenge
		before    int
		inviterID string
	)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", in.ChallengeID).First(&ch).Error; err != nil {
			return notFound("challenge", err)
		}
		before = ch.CurrentValue

		if err := tx.Omit("Companions").Create(&p).Error; err != nil {
			return err
		}
		companions, err := createCompanions(tx, &p, in.Companions)
		if err != nil {
			return err
		}
		p.Companions = companions

		if code := strings.TrimSpace(in.InvitationCode); code != "" {
			inv, err := redeemInvitation(tx, code, UseInput{UserID: p.UserID, ParticipationID: &p.ID, DisplayName: p.DisplayName})
			if err != nil {
				return err
			}
			if inv.ChallengeID != ch.ID {
				return invalidf("invitation belongs to another challenge")
			}
			if err := tx.Model(&p).Update("invitation_id", inv.ID).Error; err != nil {
				return err
			}
			p.InvitationID = &inv.ID
			inviterID = inv.InviterID
		}

		if err := adjustCurrentValue(tx, ch.ID, p.Amount()); err != nil {
			return err
		}
		ch.CurrentValue += p.Amount()
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[PARTICIPATION] created",
		zap.String("participation_id", p.ID),
		zap.String("challenge_id", ch.ID),
		zap.Int("amount", p.Amount()),
		zap.Int("current_value", ch.CurrentValue))

	s.afterJoin(&ch, before, &p, inviterID)
	return &p, nil
}

func createCompanions(tx *gorm.DB, p *models.Participation, in []CompanionInput) ([]models.ParticipationCompanion, error) {
	companions := make([]models.ParticipationCompanion, 0, len(in))
	for _, c := range in {
		companions = append(companions, models.ParticipationCompanion{
			ParticipationID: p.ID,
			ChallengeID:     p.ChallengeID,
			DisplayName:     c.DisplayName,
			TwitterUsername: strings.TrimPrefix(c.TwitterUsername, "@"),
			TwitterID:       c.TwitterID,
			ProfileImage:    c.ProfileImage,
			InvitedByUserID: p.UserID,
		})
	}
	if len(companions) == 0 {
		return companions, nil
	}
	if err := tx.Create(&companions).Error; err != nil {
		return nil, err
	}
	return companions, nil
}

// adjustCurrentValue adds delta to a challenge's current value, never going below zero.
func adjustCurrentValue(tx *gorm.DB, challengeID string, delta int) error {
	if delta == 0 {
		return nil
	}
	q := tx.Model(&models.Challenge{}).Unscoped().Where("id = ?", challengeID)
	if delta > 0 {
		return q.UpdateColumn("current_value", gorm.Expr("current_value + ?", delta)).Error
	}
	return q.UpdateColumn("current_value", gorm.Expr("CASE WHEN current_value < ? THEN 0 ELSE current_value - ? END", -delta, -delta)).Error
}

// afterJoin runs the side effects of a new participation. Failures are logged and never undo the join.
func (s *ParticipationService) afterJoin(ch *models.Challenge, before int, p *models.Participation, inviterID string) {
	if s.Challenges != nil {
		s.Challenges.InvalidateList()
	}
	if p.UserID != nil && s.Badges != nil {
		if _, err := s.Badges.AfterParticipation(*p.UserID, p); err != nil {
			logger.Warn("[PARTICIPATION] badge evaluation failed", zap.String("user_id", *p.UserID), zap.Error(err))
		}
	}
	s.progressed(ch, before)
	if s.Notifications != nil {
		name := p.DisplayName
		if p.IsAnonymous {
			name = ""
		}
		if _, err := s.Notifications.NewParticipant(ch, p.UserID, name); err != nil {
			logger.Warn("[PARTICIPATION] new participant notifications failed", zap.String("challenge_id", ch.ID), zap.Error(err))
		}
	}
	if s.Progression != nil {
		if p.UserID != nil {
			s.refresh(*p.UserID)
		}
		if inviterID != "" {
			s.refresh(inviterID)
		}
	}
}

// progressed fires milestone notifications and goal badges for a challenge that moved from before to its current value.
// Joins, edits and restores all go through here.
func (s *ParticipationService) progressed(ch *models.Challenge, before int) {
	if ch.CurrentValue <= before {
		return
	}
	if s.Notifications != nil {
		if _, err := s.Notifications.ChallengeProgressed(ch, before, ch.CurrentValue); err != nil {
			logger.Warn("[PARTICIPATION] milestone notifications failed", zap.String("challenge_id", ch.ID), zap.Error(err))
		}
	}
	if ch.GoalValue > 0 && before < ch.GoalValue && ch.CurrentValue >= ch.GoalValue && s.Badges != nil {
		n, err := s.Badges.AwardGoalReached(ch.ID)
		if err != nil {
			logger.Warn("[PARTICIPATION] goal badges failed", zap.String("challenge_id", ch.ID), zap.Error(err))
		} else {
			logger.Info("🎉 [PARTICIPATION] goal reached", zap.String("challenge_id", ch.ID), zap.Int("badges_awarded", n))
		}
	}
}

// challengeTx loads and locks a challenge, including soft-deleted ones.
func challengeTx(tx *gorm.DB, id string) (*models.Challenge, error) {
	var ch models.Challenge
	if err := tx.Unscoped().Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&ch).Error; err != nil {
		return nil, notFound("challenge", err)
	}
	return &ch, nil
}

// progressStep is a challenge as it stands after a change, with its value before the change.
type progressStep struct {
	ch     *models.Challenge
	before int
}

func (s *ParticipationService) refresh(userID string) {
	if _, _, err := s.Progression.Refresh(userID); err != nil {
		logger.Warn("[PARTICIPATION] progression refresh failed", zap.String("user_id", userID), zap.Error(err))
	}
}

type ParticipationUpdate struct {
	Message        *string           `json:"message"`
	Prefecture     *string           `json:"prefecture"`
	Gender         *models.Gender    `json:"gender"`
	CompanionCount *int              `json:"companion_count"`
	Companions     *[]CompanionInput `json:"companions"`
}

// Update edits the caller's own participation. Companions, when given, replace the stored list.
func (s *ParticipationService) Update(actor Actor, id string, in ParticipationUpdate) (*models.Participation, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	var (
		p    models.Participation
		step progressStep
	)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&p).Error; err != nil {
			return notFound("participation", err)
		}
		if p.UserID == nil || *p.UserID != actor.UserID {
			return forbiddenf("only the participant can edit this participation")
		}
		oldAmount := p.Amount()

		if in.Message != nil {
			if len([]rune(*in.Message)) > maxMessage {
				return invalidf("message must be at most %d characters", maxMessage)
			}
			p.Message = *in.Message
		}
		if in.Prefecture != nil {
			p.Prefecture = ""
			if *in.Prefecture != "" {
				p.Prefecture = heatmap.NormalizePrefecture(*in.Prefecture)
			}
		}
		if in.Gender != nil {
			if !in.Gender.Valid() {
				return invalidf("unknown gender %q", *in.Gender)
			}
			p.Gender = *in.Gender
		}
		if in.CompanionCount != nil {
			if *in.CompanionCount < 0 {
				return invalidf("companion_count must not be negative")
			}
			p.CompanionCount = *in.CompanionCount
		}
		if in.Companions != nil {
			for i := range *in.Companions {
				c := &(*in.Companions)[i]
				c.DisplayName = strings.TrimSpace(c.DisplayName)
				if c.DisplayName == "" {
					return invalidf("companion display_name is required")
				}
			}
			if err := tx.Where("participation_id = ?", p.ID).Delete(&models.ParticipationCompanion{}).Error; err != nil {
				return err
			}
			companions, err := createCompanions(tx, &p, *in.Companions)
			if err != nil {
				return err
			}
			p.Companions = companions
			if len(companions) > p.CompanionCount {
				p.CompanionCount = len(companions)
			}
		}

		if err := tx.Omit("Companions").Save(&p).Error; err != nil {
			return err
		}
		ch, err := challengeTx(tx, p.ChallengeID)
		if err != nil {
			return err
		}
		step.before = ch.CurrentValue
		if err := adjustCurrentValue(tx, p.ChallengeID, p.Amount()-oldAmount); err != nil {
			return err
		}
		step.ch, err = challengeTx(tx, p.ChallengeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.Challenges != nil {
		s.Challenges.InvalidateList()
	}
	s.progressed(step.ch, step.before)
	return &p, nil
}

// canRemove allows the participant, admins and collaborators who manage participants.
func (s *ParticipationService) canRemove(tx *gorm.DB, actor Actor, p *models.Participation) error {
	if p.UserID != nil && *p.UserID == actor.UserID {
		return nil
	}
	if actor.IsAdmin() {
		return nil
	}
	perms, err := permissionsTx(tx, p.ChallengeID, actor.UserID)
	if err != nil {
		return err
	}
	if perms.CanManageParticipants {
		return nil
	}
	return forbiddenf("not allowed to remove this participation")
}

// removeTx soft-deletes a participation and takes its amount off the challenge.
func removeTx(tx *gorm.DB, p *models.Participation, deletedBy string) error {
	if err := tx.Model(p).Update("deleted_by", deletedBy).Error; err != nil {
		return err
	}
	if err := tx.Delete(p).Error; err != nil {
		return err
	}
	return adjustCurrentValue(tx, p.ChallengeID, -p.Amount())
}

func (s *ParticipationService) lock(tx *gorm.DB, id string) (*models.Participation, error) {
	var p models.Participation
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound("participation", err)
	}
	return &p, nil
}

func (s *ParticipationService) Delete(actor Actor, id string) error {
	if err := actor.requireUser(); err != nil {
		return err
	}
	var p *models.Participation
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = s.lock(tx, id); err != nil {
			return err
		}
		if err := s.canRemove(tx, actor, p); err != nil {
			return err
		}
		return removeTx(tx, p, actor.UserID)
	})
	if err != nil {
		return err
	}

	if p.UserID == nil || *p.UserID != actor.UserID {
		if s.Audit != nil {
			s.Audit.Record(actor, AuditEntry{Action: models.AuditDelete, EntityType: "participation", TargetID: p.ID, Before: p})
		}
	}
	s.afterRemove(p)
	return nil
}

type CancelInput struct {
	CreateTransfer bool   `json:"create_transfer"`
	Comment        string `json:"comment"`
}

type CancelResult struct {
	Participation *models.Participation  `json:"participation"`
	Transfer      *models.TicketTransfer `json:"transfer,omitempty"`
	NotifiedCount int                    `json:"notified_count"`
}

// Cancel withdraws the caller's participation and can offer the tickets to the waitlist.
func (s *ParticipationService) Cancel(actor Actor, id string, in CancelInput) (*CancelResult, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	res := &CancelResult{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		p, err := s.lock(tx, id)
		if err != nil {
			return err
		}
		if p.UserID == nil || *p.UserID != actor.UserID {
			return forbiddenf("only the participant can cancel this participation")
		}
		if err := removeTx(tx, p, actor.UserID); err != nil {
			return err
		}
		res.Participation = p

		if in.CreateTransfer {
			count := p.Contribution
			if count < 1 {
				count = 1
			}
			if count > maxTicketCount {
				count = maxTicketCount
			}
			comment := strings.TrimSpace(in.Comment)
			if comment == "" {
				comment = cancelTransferReason
			}
			res.Transfer, err = createTransfer(tx, actor.UserID, TransferInput{
				ChallengeID: p.ChallengeID,
				TicketCount: count,
				PriceType:   models.PriceFaceValue,
				Comment:     comment,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Transfer != nil && s.Tickets != nil {
		res.NotifiedCount = s.Tickets.notifyWaitlist(res.Transfer)
	}
	s.afterRemove(res.Participation)
	return res, nil
}

func (s *ParticipationService) afterRemove(p *models.Participation) {
	logger.Info("[PARTICIPATION] removed", zap.String("participation_id", p.ID), zap.String("challenge_id", p.ChallengeID))
	if s.Challenges != nil {
		s.Challenges.InvalidateList()
	}
	if p.UserID != nil && s.Progression != nil {
		s.refresh(*p.UserID)
	}
}

func (s *ParticipationService) Get(id string) (*models.Participation, error) {
	var p models.Participation
	if err := s.DB.Preload("Companions").Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound("participation", err)
	}
	return &p, nil
}

// ListByChallenge returns live participations, newest first.
func (s *ParticipationService) ListByChallenge(challengeID string) ([]models.Participation, error) {
	parts := []models.Participation{}
	err := s.DB.Preload("Companions").
		Where("challenge_id = ?", challengeID).
		Order("created_at DESC").
		Find(&parts).Error
	return parts, err
}

func (s *ParticipationService) Mine(userID string) ([]models.Participation, error) {
	parts := []models.Participation{}
	err := s.DB.Preload("Companions").Where("user_id = ?", userID).Order("created_at DESC").Find(&parts).Error
	return parts, err
}

func (s *ParticipationService) Companions(participationID string) ([]models.ParticipationCompanion, error) {
	companions := []models.ParticipationCompanion{}
	err := s.DB.Where("participation_id = ?", participationID).Order("created_at ASC").Find(&companions).Error
	return companions, err
}

// ChallengeCompanions lists companions of live participations only.
func (s *ParticipationService) ChallengeCompanions(challengeID string) ([]models.ParticipationCompanion, error) {
	companions := []models.ParticipationCompanion{}
	err := s.DB.Model(&models.ParticipationCompanion{}).
		Joins("JOIN participations ON participations.id = participation_companions.participation_id AND participations.deleted_at IS NULL").
		Where("participation_companions.challenge_id = ?", challengeID).
		Order("participation_companions.created_at ASC").
		Find(&companions).Error
	return companions, err
}

type PrefectureStat struct {
	Prefecture   string `json:"prefecture"`
	Count        int    `json:"count"`
	Contribution int    `json:"contribution"`
}

func (s *ParticipationService) prefectureTallies(challengeID string) (map[string]heatmap.Tally, error) {
	var rows []struct {
		Prefecture   string
		Count        int
		Contribution int
	}
	if err := s.DB.Model(&models.Participation{}).
		Select("prefecture, COUNT(*) AS count, COALESCE(SUM("+contributionSQL+"), 0) AS contribution").
		Where("challenge_id = ?", challengeID).
		Group("prefecture").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	tallies := make(map[string]heatmap.Tally, len(rows))
	for _, r := range rows {
		name := unsetPrefecture
		if strings.TrimSpace(r.Prefecture) != "" {
			name = heatmap.NormalizePrefecture(r.Prefecture)
		}
		t := tallies[name]
		t.Count += r.Count
		t.Contribution += r.Contribution
		tallies[name] = t
	}
	return tallies, nil
}

// PrefectureStats reports counts per prefecture in prefecture code order, with 未設定 last.
func (s *ParticipationService) PrefectureStats(challengeID string) ([]PrefectureStat, error) {
	tallies, err := s.prefectureTallies(challengeID)
	if err != nil {
		return nil, err
	}
	stats := make([]PrefectureStat, 0, len(tallies))
	for name, t := range tallies {
		stats = append(stats, PrefectureStat{Prefecture: name, Count: t.Count, Contribution: t.Contribution})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		ci, cj := prefectureOrder(stats[i].Prefecture), prefectureOrder(stats[j].Prefecture)
		if ci != cj {
			return ci < cj
		}
		return stats[i].Prefecture < stats[j].Prefecture
	})
	return stats, nil
}

func prefectureOrder(name string) int {
	if code := heatmap.Code(name); code > 0 {
		return code
	}
	return len(heatmap.Prefectures) + 1
}

// PrefectureRanking orders prefectures by contribution, then count.
func (s *ParticipationService) PrefectureRanking(challengeID string) ([]PrefectureStat, error) {
	stats, err := s.PrefectureStats(challengeID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Contribution != stats[j].Contribution {
			return stats[i].Contribution > stats[j].Contribution
		}
		return stats[i].Count > stats[j].Count
	})
	return stats, nil
}

// ContributionRanking returns the top participations of a challenge by contribution.
func (s *ParticipationService) ContributionRanking(challengeID string, limit int) ([]models.Participation, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultContributionTopN
	}
	parts := []models.Participation{}
	err := s.DB.Where("challenge_id = ?", challengeID).
		Order("contribution DESC").
		Order("companion_count DESC").
		Order("created_at ASC").
		Limit(limit).
		Find(&parts).Error
	return parts, err
}

func (s *ParticipationService) Heatmap(challengeID string) (heatmap.Map, error) {
	tallies, err := s.prefectureTallies(challengeID)
	if err != nil {
		return heatmap.Map{}, err
	}
	return heatmap.Build(tallies), nil
}
