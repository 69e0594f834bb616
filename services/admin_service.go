package services

import (
	"strings"

	"doin-challenge/logger"
	"doin-challenge/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AdminService struct {
	DB             *gorm.DB
	Audit          *AuditService
	Challenges     *ChallengeService
	Progression    *ProgressionService
	Participations *ParticipationService
}

func NewAdminService(db *gorm.DB, audit *AuditService) *AdminService {
	return &AdminService{DB: db, Audit: audit}
}

type DeletedQuery struct {
	ChallengeID string
	UserID      string
	Limit       int
	Offset      int
}

type DeletedPage struct {
	Items      []models.Participation `json:"items"`
	TotalCount int64                  `json:"total_count"`
}

func (s *AdminService) DeletedParticipations(q DeletedQuery) (*DeletedPage, error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	db := s.DB.Unscoped().Model(&models.Participation{}).Where("deleted_at IS NOT NULL")
	if q.ChallengeID != "" {
		db = db.Where("challenge_id = ?", q.ChallengeID)
	}
	if q.UserID != "" {
		db = db.Where("user_id = ?", q.UserID)
	}
	db = db.Session(&gorm.Session{})

	page := &DeletedPage{Items: []models.Participation{}}
	if err := db.Count(&page.TotalCount).Error; err != nil {
		return nil, err
	}
	if err := db.Order("deleted_at DESC").Offset(q.Offset).Limit(q.Limit).Find(&page.Items).Error; err != nil {
		return nil, err
	}
	return page, nil
}

func restoreTx(tx *gorm.DB, p *models.Participation) error {
	if err := tx.Unscoped().Model(p).Updates(map[string]interface{}{"deleted_at": nil, "deleted_by": nil}).Error; err != nil {
		return err
	}
	p.DeletedAt = gorm.DeletedAt{}
	p.DeletedBy = nil
	return adjustCurrentValue(tx, p.ChallengeID, p.Amount())
}

// restoreAllTx restores parts and reports how each touched challenge moved.
func restoreAllTx(tx *gorm.DB, parts []models.Participation) ([]progressStep, error) {
	before := make(map[string]int)
	order := make([]string, 0)
	for _, p := range parts {
		if _, ok := before[p.ChallengeID]; ok {
			continue
		}
		ch, err := challengeTx(tx, p.ChallengeID)
		if err != nil {
			return nil, err
		}
		before[ch.ID] = ch.CurrentValue
		order = append(order, ch.ID)
	}
	for i := range parts {
		if err := restoreTx(tx, &parts[i]); err != nil {
			return nil, err
		}
	}
	steps := make([]progressStep, 0, len(order))
	for _, id := range order {
		ch, err := challengeTx(tx, id)
		if err != nil {
			return nil, err
		}
		steps = append(steps, progressStep{ch: ch, before: before[id]})
	}
	return steps, nil
}

// RestoreParticipation undoes a soft delete and adds the amount back to the challenge.
func (s *AdminService) RestoreParticipation(actor Actor, id, reason string) (*models.Participation, error) {
	var (
		p     models.Participation
		steps []progressStep
	)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND deleted_at IS NOT NULL", id).
			First(&p).Error; err != nil {
			return notFound("deleted participation", err)
		}
		restored := []models.Participation{p}
		var err error
		if steps, err = restoreAllTx(tx, restored); err != nil {
			return err
		}
		p = restored[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Audit.Record(actor, AuditEntry{Action: models.AuditRestore, EntityType: "participation", TargetID: p.ID, After: p, Reason: reason})
	s.afterBulk([]models.Participation{p})
	s.afterRestore(steps)
	return &p, nil
}

type BulkInput struct {
	ChallengeID string   `json:"challenge_id"`
	UserID      string   `json:"user_id"`
	IDs         []string `json:"ids"`
	Reason      string   `json:"reason"`
}

func (in BulkInput) scope(db *gorm.DB) (*gorm.DB, error) {
	if in.ChallengeID == "" && in.UserID == "" {
		return nil, invalidf("challenge_id or user_id is required")
	}
	if in.ChallengeID != "" {
		db = db.Where("challenge_id = ?", in.ChallengeID)
	}
	if in.UserID != "" {
		db = db.Where("user_id = ?", in.UserID)
	}
	if len(in.IDs) > 0 {
		db = db.Where("id IN ?", in.IDs)
	}
	return db, nil
}

type BulkResult struct {
	Affected int      `json:"affected"`
	IDs      []string `json:"ids"`
}

func (s *AdminService) BulkDelete(actor Actor, in BulkInput) (*BulkResult, error) {
	var parts []models.Participation
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		db, err := in.scope(tx.Clauses(clause.Locking{Strength: "UPDATE"}))
		if err != nil {
			return err
		}
		if err := db.Find(&parts).Error; err != nil {
			return err
		}
		for i := range parts {
			if err := removeTx(tx, &parts[i], actor.UserID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res := bulkResult(parts)
	s.Audit.Record(actor, AuditEntry{
		Action:     models.AuditBulkDelete,
		EntityType: "participation",
		TargetID:   bulkTarget(in),
		Before:     res.IDs,
		Reason:     in.Reason,
	})
	s.afterBulk(parts)
	return res, nil
}

func (s *AdminService) BulkRestore(actor Actor, in BulkInput) (*BulkResult, error) {
	var (
		parts []models.Participation
		steps []progressStep
	)
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		db, err := in.scope(tx.Unscoped().Clauses(clause.Locking{Strength: "UPDATE"}).Where("deleted_at IS NOT NULL"))
		if err != nil {
			return err
		}
		if err := db.Find(&parts).Error; err != nil {
			return err
		}
		steps, err = restoreAllTx(tx, parts)
		return err
	})
	if err != nil {
		return nil, err
	}
	res := bulkResult(parts)
	s.Audit.Record(actor, AuditEntry{
		Action:     models.AuditBulkRestore,
		EntityType: "participation",
		TargetID:   bulkTarget(in),
		After:      res.IDs,
		Reason:     in.Reason,
	})
	s.afterBulk(parts)
	s.afterRestore(steps)
	return res, nil
}

// afterRestore runs milestone and goal side effects for challenges that gained value.
func (s *AdminService) afterRestore(steps []progressStep) {
	if s.Participations == nil {
		return
	}
	for _, st := range steps {
		s.Participations.progressed(st.ch, st.before)
	}
}

func bulkResult(parts []models.Participation) *BulkResult {
	res := &BulkResult{Affected: len(parts), IDs: make([]string, 0, len(parts))}
	for _, p := range parts {
		res.IDs = append(res.IDs, p.ID)
	}
	return res
}

func bulkTarget(in BulkInput) string {
	if in.ChallengeID != "" {
		return in.ChallengeID
	}
	return in.UserID
}

func (s *AdminService) afterBulk(parts []models.Participation) {
	if len(parts) == 0 {
		return
	}
	if s.Challenges != nil {
		s.Challenges.InvalidateList()
	}
	if s.Progression == nil {
		return
	}
	seen := make(map[string]bool)
	for _, p := range parts {
		if p.UserID == nil || seen[*p.UserID] {
			continue
		}
		seen[*p.UserID] = true
		if _, _, err := s.Progression.Refresh(*p.UserID); err != nil {
			logger.Warn("[ADMIN] progression refresh failed", zap.String("user_id", *p.UserID), zap.Error(err))
		}
	}
}

type UserQuery struct {
	Search string
	Role   models.UserRole
	Limit  int
	Offset int
}

type UserPage struct {
	Items      []models.User `json:"items"`
	TotalCount int64         `json:"total_count"`
}

func (s *AdminService) Users(q UserQuery) (*UserPage, error) {
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}
	db := s.DB.Model(&models.User{})
	if q.Role != "" {
		db = db.Where("role = ?", q.Role)
	}
	if term := strings.TrimSpace(q.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		db = db.Where("LOWER(name) LIKE ? OR LOWER(username) LIKE ?", like, like)
	}
	db = db.Session(&gorm.Session{})

	page := &UserPage{Items: []models.User{}}
	if err := db.Count(&page.TotalCount).Error; err != nil {
		return nil, err
	}
	if err := db.Order("created_at DESC").Offset(q.Offset).Limit(q.Limit).Find(&page.Items).Error; err != nil {
		return nil, err
	}
	return page, nil
}

func (s *AdminService) User(id string) (*models.User, error) {
	var u models.User
	if err := s.DB.Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound("user", err)
	}
	return &u, nil
}

// UpdateRole changes a user's role. Admins cannot demote themselves.
func (s *AdminService) UpdateRole(actor Actor, userID string, role models.UserRole, reason string) (*models.User, error) {
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, invalidf("role must be user or admin")
	}
	if userID == actor.UserID && role != models.RoleAdmin {
		return nil, forbiddenf("admins cannot remove their own admin role")
	}
	u, err := s.User(userID)
	if err != nil {
		return nil, err
	}
	before := u.Role
	if before == role {
		return u, nil
	}
	if err := s.DB.Model(u).Update("role", role).Error; err != nil {
		return nil, err
	}
	u.Role = role
	s.Audit.Record(actor, AuditEntry{
		Action:     models.AuditRoleChange,
		EntityType: "user",
		TargetID:   userID,
		Before:     map[string]models.UserRole{"role": before},
		After:      map[string]models.UserRole{"role": role},
		Reason:     reason,
	})
	logger.Info("[ADMIN] role changed", zap.String("user_id", userID), zap.String("from", string(before)), zap.String("to", string(role)))
	return u, nil
}

func (s *AdminService) AuditLogs(q AuditQuery) (*AuditPage, error) {
	return s.Audit.Query(q)
}

type IntegrityRow struct {
	ChallengeID   string `json:"challenge_id"`
	Title         string `json:"title"`
	StoredValue   int    `json:"stored_value"`
	ComputedValue int    `json:"computed_value"`
	Difference    int    `json:"difference"`
}

type IntegritySummary struct {
	TotalChallenges int `json:"total_challenges"`
	Mismatched      int `json:"mismatched"`
	TotalDrift      int `json:"total_drift"`
}

type IntegrityReport struct {
	Summary IntegritySummary `json:"summary"`
	Rows    []IntegrityRow   `json:"rows"`
}

func computedValues(db *gorm.DB) (map[string]int, error) {
	var sums []struct {
		ChallengeID string
		Total       int
	}
	if err := db.Model(&models.Participation{}).
		Select("challenge_id, COALESCE(SUM(" + amountSQL + "), 0) AS total").
		Group("challenge_id").
		Scan(&sums).Error; err != nil {
		return nil, err
	}
	out := make(map[string]int, len(sums))
	for _, r := range sums {
		out[r.ChallengeID] = r.Total
	}
	return out, nil
}

// Integrity compares each challenge's stored current value with the sum over its live participations.
// Only mismatched challenges are listed.
func (s *AdminService) Integrity() (*IntegrityReport, error) {
	var challenges []models.Challenge
	if err := s.DB.Select("id", "title", "current_value").Order("created_at ASC").Find(&challenges).Error; err != nil {
		return nil, err
	}
	computed, err := computedValues(s.DB)
	if err != nil {
		return nil, err
	}
	report := &IntegrityReport{Rows: []IntegrityRow{}}
	report.Summary.TotalChallenges = len(challenges)
	for _, ch := range challenges {
		want := computed[ch.ID]
		if want == ch.CurrentValue {
			continue
		}
		diff := ch.CurrentValue - want
		report.Rows = append(report.Rows, IntegrityRow{
			ChallengeID:   ch.ID,
			Title:         ch.Title,
			StoredValue:   ch.CurrentValue,
			ComputedValue: want,
			Difference:    diff,
		})
		report.Summary.Mismatched++
		if diff < 0 {
			diff = -diff
		}
		report.Summary.TotalDrift += diff
	}
	return report, nil
}

// Recalculate rewrites drifted current values. An empty challengeID fixes every challenge.
func (s *AdminService) Recalculate(actor Actor, challengeID, reason string) ([]IntegrityRow, error) {
	fixed := []IntegrityRow{}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id", "title", "current_value")
		if challengeID != "" {
			q = q.Where("id = ?", challengeID)
		}
		var challenges []models.Challenge
		if err := q.Find(&challenges).Error; err != nil {
			return err
		}
		if challengeID != "" && len(challenges) == 0 {
			return fmtNotFound("challenge")
		}
		computed, err := computedValues(tx)
		if err != nil {
			return err
		}
		for _, ch := range challenges {
			want := computed[ch.ID]
			if want == ch.CurrentValue {
				continue
			}
			if err := tx.Model(&models.Challenge{}).Where("id = ?", ch.ID).UpdateColumn("current_value", want).Error; err != nil {
				return err
			}
			fixed = append(fixed, IntegrityRow{
				ChallengeID:   ch.ID,
				Title:         ch.Title,
				StoredValue:   ch.CurrentValue,
				ComputedValue: want,
				Difference:    ch.CurrentValue - want,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(fixed) > 0 {
		s.Audit.Record(actor, AuditEntry{
			Action:     models.AuditRecalculate,
			EntityType: "challenge",
			TargetID:   challengeID,
			Before:     fixed,
			Reason:     reason,
		})
		if s.Challenges != nil {
			s.Challenges.InvalidateList()
		}
		logger.Info("🔧 [ADMIN] current values recalculated", zap.Int("fixed", len(fixed)))
	}
	return fixed, nil
}
