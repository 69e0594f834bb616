package services

import (
	"errors"
	"time"

	"doin-challenge/logger"
	"doin-challenge/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const collaboratorInvitationTTL = 7 * 24 * time.Hour

type CollaboratorService struct {
	DB *gorm.DB
}

func NewCollaboratorService(db *gorm.DB) *CollaboratorService {
	return &CollaboratorService{DB: db}
}

// Permissions is what a user may do on a challenge.
type Permissions struct {
	IsHost                bool `json:"is_host"`
	IsCollaborator        bool `json:"is_collaborator"`
	CanEdit               bool `json:"can_edit"`
	CanManageParticipants bool `json:"can_manage_participants"`
	CanInvite             bool `json:"can_invite"`
}

func (s *CollaboratorService) Permissions(challengeID, userID string) (Permissions, error) {
	return permissionsTx(s.DB, challengeID, userID)
}

func permissionsTx(db *gorm.DB, challengeID, userID string) (Permissions, error) {
	var perms Permissions
	if userID == "" {
		return perms, nil
	}

	var ch models.Challenge
	if err := db.Select("id", "host_user_id").Where("id = ?", challengeID).First(&ch).Error; err != nil {
		return perms, notFound("challenge", err)
	}
	if ch.HostUserID == userID {
		return Permissions{IsHost: true, CanEdit: true, CanManageParticipants: true, CanInvite: true}, nil
	}

	var collab models.Collaborator
	err := db.Where("challenge_id = ? AND user_id = ? AND status = ?", challengeID, userID, models.CollaboratorAccepted).
		First(&collab).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return perms, nil
	}
	if err != nil {
		return perms, err
	}
	return Permissions{
		IsCollaborator:        true,
		CanEdit:               collab.CanEdit,
		CanManageParticipants: collab.CanManageParticipants,
		CanInvite:             collab.CanInvite,
	}, nil
}

func (s *CollaboratorService) CreateInvitation(actor Actor, challengeID string, role models.CollaboratorRole) (*models.CollaboratorInvitation, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}
	if role == "" {
		role = models.RoleCoHost
	}
	if role != models.RoleCoHost && role != models.RoleModerator {
		return nil, invalidf("role must be co-host or moderator")
	}

	perms, err := s.Permissions(challengeID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !perms.CanInvite && !actor.IsAdmin() {
		return nil, forbiddenf("only the host or collaborators with invite rights can invite")
	}

	code, err := newCode()
	if err != nil {
		return nil, err
	}
	inv := models.CollaboratorInvitation{
		ChallengeID: challengeID,
		InviterID:   actor.UserID,
		Code:        code,
		Role:        role,
		Status:      models.CollaboratorPending,
		ExpiresAt:   time.Now().UTC().Add(collaboratorInvitationTTL),
	}
	if err := s.DB.Create(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *CollaboratorService) GetInvitation(code string) (*models.CollaboratorInvitation, error) {
	var inv models.CollaboratorInvitation
	if err := s.DB.Where("code = ?", code).First(&inv).Error; err != nil {
		return nil, notFound("collaborator invitation", err)
	}
	return &inv, nil
}

// Accept turns a pending invitation into an accepted collaborator with role permissions.
func (s *CollaboratorService) Accept(actor Actor, code string) (*models.Collaborator, error) {
	if err := actor.requireUser(); err != nil {
		return nil, err
	}

	var collab models.Collaborator
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		inv, err := s.lockPending(tx, code)
		if err != nil {
			return err
		}

		var ch models.Challenge
		if err := tx.Select("id", "host_user_id").Where("id = ?", inv.ChallengeID).First(&ch).Error; err != nil {
			return notFound("challenge", err)
		}
		if ch.HostUserID == actor.UserID {
			return invalidf("the host cannot join as a collaborator")
		}

		var existing int64
		if err := tx.Model(&models.Collaborator{}).
			Where("challenge_id = ? AND user_id = ?", inv.ChallengeID, actor.UserID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return conflictf("already a collaborator")
		}

		var user models.User
		if err := tx.Where("id = ?", actor.UserID).First(&user).Error; err != nil {
			return notFound("user", err)
		}

		now := time.Now().UTC()
		collab = models.Collaborator{
			ChallengeID: inv.ChallengeID,
			UserID:      actor.UserID,
			UserName:    user.DisplayName(),
			UserImage:   user.ProfileImage,
			Role:        inv.Role,
			Status:      models.CollaboratorAccepted,
			InvitedBy:   inv.InviterID,
			AcceptedAt:  &now,
		}
		collab.ApplyRolePermissions()
		if err := tx.Create(&collab).Error; err != nil {
			return err
		}

		return tx.Model(inv).Updates(map[string]interface{}{
			"status":       models.CollaboratorAccepted,
			"responded_by": actor.UserID,
			"responded_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[COLLAB] collaborator accepted",
		zap.String("challenge_id", collab.ChallengeID),
		zap.String("user_id", collab.UserID),
		zap.String("role", string(collab.Role)),
	)
	return &collab, nil
}

func (s *CollaboratorService) Decline(actor Actor, code string) error {
	if err := actor.requireUser(); err != nil {
		return err
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		inv, err := s.lockPending(tx, code)
		if err != nil {
			return err
		}
		return tx.Model(inv).Updates(map[string]interface{}{
			"status":       models.CollaboratorDeclined,
			"responded_by": actor.UserID,
			"responded_at": time.Now().UTC(),
		}).Error
	})
}

// lockPending loads a pending, unexpired invitation for update.
// Expired rows are left for the scheduler to mark.
func (s *CollaboratorService) lockPending(tx *gorm.DB, code string) (*models.CollaboratorInvitation, error) {
	var inv models.CollaboratorInvitation
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("code = ?", code).First(&inv).Error; err != nil {
		return nil, notFound("collaborator invitation", err)
	}
	if inv.Status != models.CollaboratorPending {
		return nil, conflictf("invitation already %s", inv.Status)
	}
	if inv.ExpiresAt.Before(time.Now()) {
		return nil, ErrInvitationExpired
	}
	return &inv, nil
}

func (s *CollaboratorService) List(challengeID string) ([]models.Collaborator, error) {
	var collabs []models.Collaborator
	err := s.DB.Where("challenge_id = ? AND status = ?", challengeID, models.CollaboratorAccepted).
		Order("created_at ASC").
		Find(&collabs).Error
	return collabs, err
}

// Mine lists the challenges the user helps manage.
func (s *CollaboratorService) Mine(userID string) ([]models.Collaborator, error) {
	var collabs []models.Collaborator
	err := s.DB.Where("user_id = ? AND status = ?", userID, models.CollaboratorAccepted).
		Order("created_at DESC").
		Find(&collabs).Error
	return collabs, err
}

// Remove deletes the collaborator row so the user can be invited again later.
func (s *CollaboratorService) Remove(actor Actor, challengeID, userID string) error {
	if err := actor.requireUser(); err != nil {
		return err
	}
	perms, err := s.Permissions(challengeID, actor.UserID)
	if err != nil {
		return err
	}
	if !perms.IsHost && !actor.IsAdmin() && actor.UserID != userID {
		return forbiddenf("only the host can remove collaborators")
	}

	res := s.DB.Unscoped().Where("challenge_id = ? AND user_id = ?", challengeID, userID).Delete(&models.Collaborator{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmtNotFound("collaborator")
	}
	return nil
}

// ExpireInvitations marks pending invitations past their expiry.
func (s *CollaboratorService) ExpireInvitations(now time.Time) (int64, error) {
	res := s.DB.Model(&models.CollaboratorInvitation{}).
		Where("status = ? AND expires_at < ?", models.CollaboratorPending, now.UTC()).
		Update("status", models.CollaboratorExpired)
	return res.RowsAffected, res.Error
}
