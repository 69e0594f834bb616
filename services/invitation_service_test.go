package services

import (
	"strings"
	"testing"
	"time"

	"doin-challenge/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvitationMaxUsesRejectsSecondUse(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	ch := newChallenge(t, svc, host, 100)

	inv, err := svc.Invitations.Create(host, InvitationInput{ChallengeID: ch.ID, MaxUses: 1})
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9A-F]{12}$`, inv.Code)

	used, err := svc.Invitations.Use(inv.Code, UseInput{DisplayName: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, used.UseCount)

	_, err = svc.Invitations.Use(inv.Code, UseInput{DisplayName: "b"})
	require.ErrorIs(t, err, ErrInvitationExhausted)

	detail, err := svc.Invitations.GetByCode(inv.Code)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.UseCount)
	assert.Equal(t, "host", detail.InviterName)
}

func TestInvitationUnlimitedWhenMaxUsesZero(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	ch := newChallenge(t, svc, host, 100)

	inv, err := svc.Invitations.Create(host, InvitationInput{ChallengeID: ch.ID})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := svc.Invitations.Use(inv.Code, UseInput{})
		require.NoError(t, err)
	}
}

func TestInvitationRejectionOrder(t *testing.T) {
	svc, db := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	ch := newChallenge(t, svc, host, 100)

	_, err := svc.Invitations.Use("NOPE", UseInput{})
	require.ErrorIs(t, err, ErrNotFound)

	// inactive wins over exhausted and expired
	inv, err := svc.Invitations.Create(host, InvitationInput{ChallengeID: ch.ID, MaxUses: 1})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Invitation{}).Where("id = ?", inv.ID).Updates(map[string]interface{}{
		"is_active":  false,
		"use_count":  1,
		"expires_at": time.Now().UTC().Add(-time.Hour),
	}).Error)
	_, err = svc.Invitations.Use(inv.Code, UseInput{})
	require.ErrorIs(t, err, ErrInvitationInactive)

	// exhausted wins over expired
	require.NoError(t, db.Model(&models.Invitation{}).Where("id = ?", inv.ID).Update("is_active", true).Error)
	_, err = svc.Invitations.Use(inv.Code, UseInput{})
	require.ErrorIs(t, err, ErrInvitationExhausted)

	require.NoError(t, db.Model(&models.Invitation{}).Where("id = ?", inv.ID).Update("use_count", 0).Error)
	_, err = svc.Invitations.Use(inv.Code, UseInput{})
	require.ErrorIs(t, err, ErrInvitationExpired)
}

func TestInvitationCodeIsCaseInsensitive(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	ch := newChallenge(t, svc, host, 100)
	inv, err := svc.Invitations.Create(host, InvitationInput{ChallengeID: ch.ID})
	require.NoError(t, err)

	_, err = svc.Invitations.GetByCode(" " + strings.ToLower(inv.Code) + " ")
	require.NoError(t, err)
}

func TestParticipationWithInvitationCode(t *testing.T) {
	svc, db := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	ch := newChallenge(t, svc, host, 100)

	inv, err := svc.Invitations.Create(host, InvitationInput{ChallengeID: ch.ID, MaxUses: 1})
	require.NoError(t, err)

	p, err := svc.Participations.Create(fan, ParticipationInput{ChallengeID: ch.ID, InvitationCode: inv.Code})
	require.NoError(t, err)
	require.NotNil(t, p.InvitationID)
	assert.Equal(t, inv.ID, *p.InvitationID)

	stats, err := svc.Invitations.Stats(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.UseCount)
	assert.EqualValues(t, 1, stats.ParticipationCount)

	mine, err := svc.Invitations.MyStats(host.UserID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, mine.InvitationCount)
	assert.EqualValues(t, 1, mine.TotalInvited)
	assert.EqualValues(t, 1, mine.Confirmed)

	invited, err := svc.Invitations.InvitedParticipants(host, inv.ID)
	require.NoError(t, err)
	require.Len(t, invited, 1)
	assert.Equal(t, p.ID, invited[0].ID)

	// the inviter's counters pick up the confirmed invitation
	progress, err := svc.Progression.EnsureProgressRecord(host.UserID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, progress.TotalInvited)

	// an exhausted code rejects the whole participation
	other := newUser(t, svc, "other", "other")
	_, err = svc.Participations.Create(other, ParticipationInput{ChallengeID: ch.ID, InvitationCode: inv.Code})
	require.ErrorIs(t, err, ErrInvitationExhausted)
	assert.Equal(t, 1, currentValue(t, db, ch.ID))
	list, err := svc.Participations.ListByChallenge(ch.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInvitationDeactivateAndExpire(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	other := newUser(t, svc, "other", "other")
	ch := newChallenge(t, svc, host, 100)

	inv, err := svc.Invitations.Create(host, InvitationInput{ChallengeID: ch.ID})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Invitations.Deactivate(other, inv.ID), ErrForbidden)
	require.NoError(t, svc.Invitations.Deactivate(host, inv.ID))
	_, err = svc.Invitations.Use(inv.Code, UseInput{})
	require.ErrorIs(t, err, ErrInvitationInactive)

	soon := time.Now().Add(time.Minute)
	expiring, err := svc.Invitations.Create(host, InvitationInput{ChallengeID: ch.ID, ExpiresAt: &soon})
	require.NoError(t, err)
	n, err := svc.Invitations.ExpireInvitations(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	detail, err := svc.Invitations.GetByCode(expiring.Code)
	require.NoError(t, err)
	assert.False(t, detail.IsActive)
}

func TestCollaboratorInvitationLifecycle(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	mod := newUser(t, svc, "mod", "mod")
	late := newUser(t, svc, "late", "late")
	ch := newChallenge(t, svc, host, 100)

	_, err := svc.Collaborators.CreateInvitation(mod, ch.ID, models.RoleModerator)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Collaborators.CreateInvitation(host, ch.ID, models.RoleOwner)
	require.ErrorIs(t, err, ErrInvalidInput)

	inv, err := svc.Collaborators.CreateInvitation(host, ch.ID, models.RoleModerator)
	require.NoError(t, err)
	_, err = svc.Collaborators.Accept(host, inv.Code)
	require.ErrorIs(t, err, ErrInvalidInput)

	collab, err := svc.Collaborators.Accept(mod, inv.Code)
	require.NoError(t, err)
	assert.False(t, collab.CanEdit)
	assert.True(t, collab.CanManageParticipants)
	assert.False(t, collab.CanInvite)

	_, err = svc.Collaborators.Accept(late, inv.Code)
	require.ErrorIs(t, err, ErrConflict)

	perms, err := svc.Collaborators.Permissions(ch.ID, mod.UserID)
	require.NoError(t, err)
	assert.True(t, perms.IsCollaborator)

	require.NoError(t, svc.Collaborators.Remove(host, ch.ID, mod.UserID))
	perms, err = svc.Collaborators.Permissions(ch.ID, mod.UserID)
	require.NoError(t, err)
	assert.False(t, perms.IsCollaborator)
}
