package services

import (
	"testing"

	"doin-challenge/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipationAddsContributionAndCompanions(t *testing.T) {
	svc, db := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	ch := newChallenge(t, svc, host, 100)

	p, err := svc.Participations.Create(fan, ParticipationInput{
		ChallengeID:  ch.ID,
		Contribution: 2,
		Prefecture:   "東京",
		Companions: []CompanionInput{
			{DisplayName: "友達A", TwitterUsername: "@friend_a"},
			{DisplayName: "友達B"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "fan", p.DisplayName)
	assert.Equal(t, "東京都", p.Prefecture)
	assert.Equal(t, models.GenderUnspecified, p.Gender)
	assert.Equal(t, 2, p.CompanionCount)
	require.Len(t, p.Companions, 2)
	assert.Equal(t, "friend_a", p.Companions[0].TwitterUsername)
	assert.Equal(t, 4, currentValue(t, db, ch.ID))

	detail, err := svc.Challenges.Get(Actor{}, ch.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, detail.ParticipantCount)

	companions, err := svc.Participations.ChallengeCompanions(ch.ID)
	require.NoError(t, err)
	assert.Len(t, companions, 2)
}

func TestAnonymousParticipation(t *testing.T) {
	svc, db := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	ch := newChallenge(t, svc, host, 100)

	p, err := svc.Participations.CreateAnonymous(ParticipationInput{ChallengeID: ch.ID, DisplayName: "名無し"})
	require.NoError(t, err)
	assert.True(t, p.IsAnonymous)
	assert.Nil(t, p.UserID)
	assert.Equal(t, 1, p.Contribution)
	assert.Equal(t, 1, currentValue(t, db, ch.ID))
}

func TestParticipationValidation(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	ch := newChallenge(t, svc, host, 100)

	_, err := svc.Participations.CreateAnonymous(ParticipationInput{ChallengeID: ch.ID})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Participations.CreateAnonymous(ParticipationInput{ChallengeID: ch.ID, DisplayName: "x", Contribution: -1})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Participations.CreateAnonymous(ParticipationInput{ChallengeID: ch.ID, DisplayName: "x", CompanionCount: -1})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Participations.CreateAnonymous(ParticipationInput{ChallengeID: ch.ID, DisplayName: "x", Gender: "other"})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Participations.CreateAnonymous(ParticipationInput{ChallengeID: "missing", DisplayName: "x"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParticipationUpdateAdjustsByDelta(t *testing.T) {
	svc, db := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	other := newUser(t, svc, "other", "other")
	ch := newChallenge(t, svc, host, 100)
	p := join(t, svc, fan, ch.ID, 2, 1)
	require.Equal(t, 3, currentValue(t, db, ch.ID))

	_, err := svc.Participations.Update(other, p.ID, ParticipationUpdate{CompanionCount: ptr(5)})
	require.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.Participations.Update(fan, p.ID, ParticipationUpdate{
		CompanionCount: ptr(0),
		Companions:     &[]CompanionInput{{DisplayName: "a"}, {DisplayName: "b"}, {DisplayName: "c"}},
		Message:        ptr("楽しみ！"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.CompanionCount)
	assert.Equal(t, "楽しみ！", updated.Message)
	assert.Equal(t, 5, currentValue(t, db, ch.ID))

	companions, err := svc.Participations.Companions(p.ID)
	require.NoError(t, err)
	assert.Len(t, companions, 3)

	_, err = svc.Participations.Update(fan, p.ID, ParticipationUpdate{Companions: &[]CompanionInput{}, CompanionCount: ptr(0)})
	require.NoError(t, err)
	assert.Equal(t, 2, currentValue(t, db, ch.ID))
}

func TestParticipationDeleteIsSoftAndFloorsAtZero(t *testing.T) {
	svc, db := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	ch := newChallenge(t, svc, host, 100)
	p := join(t, svc, fan, ch.ID, 3, 0)

	// simulate drift below the participation's amount
	require.NoError(t, db.Model(&models.Challenge{}).Where("id = ?", ch.ID).UpdateColumn("current_value", 1).Error)

	require.NoError(t, svc.Participations.Delete(fan, p.ID))
	assert.Equal(t, 0, currentValue(t, db, ch.ID))

	list, err := svc.Participations.ListByChallenge(ch.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	var deleted models.Participation
	require.NoError(t, db.Unscoped().Where("id = ?", p.ID).First(&deleted).Error)
	assert.True(t, deleted.DeletedAt.Valid)
	require.NotNil(t, deleted.DeletedBy)
	assert.Equal(t, fan.UserID, *deleted.DeletedBy)
}

func TestParticipationDeletePermissions(t *testing.T) {
	svc, db := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	other := newUser(t, svc, "other", "other")
	ch := newChallenge(t, svc, host, 100)
	p := join(t, svc, fan, ch.ID, 1, 0)

	require.ErrorIs(t, svc.Participations.Delete(other, p.ID), ErrForbidden)
	require.NoError(t, svc.Participations.Delete(host, p.ID))
	assert.Equal(t, 0, currentValue(t, db, ch.ID))

	logs, err := svc.Audit.Query(AuditQuery{EntityType: "participation", TargetID: p.ID})
	require.NoError(t, err)
	assert.Len(t, logs.Items, 1)
}

func TestCancelCreatesTransferAndNotifiesWaitlist(t *testing.T) {
	svc, db := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	waiter := newUser(t, svc, "waiter", "waiter")
	quiet := newUser(t, svc, "quiet", "quiet")
	ch := newChallenge(t, svc, host, 100)
	p := join(t, svc, fan, ch.ID, 2, 0)

	_, err := svc.Tickets.AddToWaitlist(waiter, WaitlistInput{ChallengeID: ch.ID})
	require.NoError(t, err)
	_, err = svc.Tickets.AddToWaitlist(quiet, WaitlistInput{ChallengeID: ch.ID, NotifyOnNew: ptr(false)})
	require.NoError(t, err)

	res, err := svc.Participations.Cancel(fan, p.ID, CancelInput{CreateTransfer: true})
	require.NoError(t, err)
	require.NotNil(t, res.Transfer)
	assert.Equal(t, 2, res.Transfer.TicketCount)
	assert.Equal(t, models.PriceFaceValue, res.Transfer.PriceType)
	assert.Equal(t, cancelTransferReason, res.Transfer.Comment)
	assert.Equal(t, 1, res.NotifiedCount)
	assert.Equal(t, 0, currentValue(t, db, ch.ID))

	n, err := svc.Notifications.UnreadCount(waiter.UserID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCancelWithoutTransfer(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	ch := newChallenge(t, svc, host, 100)
	p := join(t, svc, fan, ch.ID, 1, 0)

	_, err := svc.Participations.Cancel(host, p.ID, CancelInput{})
	require.ErrorIs(t, err, ErrForbidden)

	res, err := svc.Participations.Cancel(fan, p.ID, CancelInput{})
	require.NoError(t, err)
	assert.Nil(t, res.Transfer)
	assert.Zero(t, res.NotifiedCount)
}

func TestPrefectureStatsAndHeatmap(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	ch := newChallenge(t, svc, host, 100)

	for _, in := range []ParticipationInput{
		{Prefecture: "東京", Contribution: 1},
		{Prefecture: "東京都", Contribution: 2},
		{Prefecture: "大阪", Contribution: 5},
		{Prefecture: "京都", Contribution: 3},
		{Prefecture: "", Contribution: 1},
	} {
		in.ChallengeID = ch.ID
		in.DisplayName = "fan"
		_, err := svc.Participations.CreateAnonymous(in)
		require.NoError(t, err)
	}

	stats, err := svc.Participations.PrefectureStats(ch.ID)
	require.NoError(t, err)
	require.Len(t, stats, 4)
	assert.Equal(t, PrefectureStat{Prefecture: "東京都", Count: 2, Contribution: 3}, stats[0])
	assert.Equal(t, PrefectureStat{Prefecture: "京都府", Count: 1, Contribution: 3}, stats[1])
	assert.Equal(t, PrefectureStat{Prefecture: "大阪府", Count: 1, Contribution: 5}, stats[2])
	assert.Equal(t, PrefectureStat{Prefecture: unsetPrefecture, Count: 1, Contribution: 1}, stats[3])

	ranked, err := svc.Participations.PrefectureRanking(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "大阪府", ranked[0].Prefecture)
	assert.Equal(t, "東京都", ranked[1].Prefecture)
	assert.Equal(t, "京都府", ranked[2].Prefecture)

	hm, err := svc.Participations.Heatmap(ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, hm.Total)
	assert.Equal(t, 1, hm.Unassigned)
	assert.Equal(t, 1, hm.Prefectures[25].Count) // 京都府
	assert.Equal(t, 2, hm.MaxCount)
	assert.Len(t, hm.Prefectures, 47)
}

func TestContributionRanking(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	ch := newChallenge(t, svc, host, 100)
	for _, c := range []int{1, 7, 3} {
		join(t, svc, Actor{}, ch.ID, c, 0)
	}

	top, err := svc.Participations.ContributionRanking(ch.ID, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, 7, top[0].Contribution)
	assert.Equal(t, 3, top[1].Contribution)
}
