package services

import (
	"testing"

	"doin-challenge/cache"
	"doin-challenge/database"
	"doin-challenge/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestServices(t *testing.T) (*Services, *gorm.DB) {
	t.Helper()
	db, err := database.OpenMemory(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	_, err = Seed(db)
	require.NoError(t, err)
	return New(db, cache.NewMemoryStore(), Options{}), db
}

func newUser(t *testing.T, svc *Services, openID, name string) Actor {
	t.Helper()
	u, err := svc.Users.Login(LoginInput{OpenID: openID, Name: name, Username: name, LoginMethod: "twitter"})
	require.NoError(t, err)
	return Actor{UserID: u.ID, Role: u.Role}
}

func newAdmin(t *testing.T, svc *Services, db *gorm.DB, openID string) Actor {
	t.Helper()
	a := newUser(t, svc, openID, "admin")
	require.NoError(t, PromoteAdmin(db, openID))
	a.Role = models.RoleAdmin
	return a
}

func ptr[T any](v T) *T { return &v }

func newChallenge(t *testing.T, svc *Services, host Actor, goal int) *models.Challenge {
	t.Helper()
	ch, err := svc.Challenges.Create(host, ChallengeInput{
		Title:     ptr("渋谷ワンマン動員チャレンジ"),
		EventDate: ptr("2026-12-24"),
		Venue:     ptr("Spotify O-EAST"),
		GoalValue: ptr(goal),
	})
	require.NoError(t, err)
	return ch
}

func join(t *testing.T, svc *Services, actor Actor, challengeID string, contribution, companions int) *models.Participation {
	t.Helper()
	p, err := svc.Participations.Create(actor, ParticipationInput{
		ChallengeID:    challengeID,
		DisplayName:    "fan",
		Contribution:   contribution,
		CompanionCount: companions,
	})
	require.NoError(t, err)
	return p
}

func currentValue(t *testing.T, db *gorm.DB, challengeID string) int {
	t.Helper()
	var ch models.Challenge
	require.NoError(t, db.Unscoped().Where("id = ?", challengeID).First(&ch).Error)
	return ch.CurrentValue
}
