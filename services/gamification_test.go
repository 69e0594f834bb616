package services

import (
	"testing"
	"time"

	"doin-challenge/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCrossedMilestones(t *testing.T) {
	tests := []struct {
		before, after, goal int
		want                []int
	}{
		{0, 1, 4, []int{25}},
		{1, 4, 4, []int{50, 75, 100}},
		{0, 100, 100, []int{25, 50, 75, 100}},
		{24, 25, 100, []int{25}},
		{25, 26, 100, nil},
		{4, 8, 4, nil},
		{5, 3, 4, nil},
		{0, 10, 0, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CrossedMilestones(tt.before, tt.after, tt.goal), "%d->%d of %d", tt.before, tt.after, tt.goal)
	}
}

func TestStreaks(t *testing.T) {
	now := time.Date(2026, 10, 19, 21, 0, 0, 0, jst)
	day := func(daysAgo, hour int) time.Time {
		return time.Date(2026, 10, 19-daysAgo, hour, 0, 0, 0, jst)
	}

	tests := []struct {
		name             string
		times            []time.Time
		current, longest int
	}{
		{"none", nil, 0, 0},
		{"three in a row", []time.Time{day(2, 10), day(1, 10), day(0, 10)}, 3, 3},
		{"same day twice", []time.Time{day(0, 9), day(0, 20)}, 1, 1},
		{"alive from yesterday", []time.Time{day(2, 23), day(1, 1)}, 2, 2},
		{"broken", []time.Time{day(10, 12), day(9, 12), day(0, 12)}, 1, 2},
		{"lapsed", []time.Time{day(3, 12), day(2, 12)}, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, longest := streaks(tt.times, now)
			assert.Equal(t, tt.current, current)
			assert.Equal(t, tt.longest, longest)
		})
	}
}

func badgeConditions(t *testing.T, svc *Services, userID string) []models.BadgeCondition {
	t.Helper()
	mine, err := svc.Badges.Mine(userID)
	require.NoError(t, err)
	conds := make([]models.BadgeCondition, 0, len(mine))
	for _, ub := range mine {
		require.NotNil(t, ub.Badge)
		conds = append(conds, ub.Badge.ConditionType)
	}
	return conds
}

func TestParticipationBadges(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	ch := newChallenge(t, svc, host, 100)
	other := newChallenge(t, svc, host, 100)

	assert.Contains(t, badgeConditions(t, svc, host.UserID), models.ConditionHostChallenge)

	join(t, svc, fan, ch.ID, 10, 0)
	got := badgeConditions(t, svc, fan.UserID)
	assert.ElementsMatch(t, []models.BadgeCondition{
		models.ConditionFirstParticipation,
		models.ConditionContribution5,
		models.ConditionContribution10,
	}, got)

	// awarding is idempotent
	join(t, svc, fan, other.ID, 5, 0)
	assert.Len(t, badgeConditions(t, svc, fan.UserID), 3)
}

func TestMilestonesNotifyAndAwardOnce(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	a := newUser(t, svc, "a", "a")
	b := newUser(t, svc, "b", "b")
	ch := newChallenge(t, svc, host, 4)

	// defaults plus new participant alerts
	_, err := svc.Notifications.UpdateSettings(fan.UserID, ch.ID, SettingsInput{OnNewParticipant: ptr(true)})
	require.NoError(t, err)

	join(t, svc, a, ch.ID, 1, 0)
	join(t, svc, b, ch.ID, 3, 0)

	hostUnread, err := svc.Notifications.UnreadCount(host.UserID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, hostUnread)

	// goal and 50% by default, plus two joins
	fanUnread, err := svc.Notifications.UnreadCount(fan.UserID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, fanUnread)

	hostBadges := badgeConditions(t, svc, host.UserID)
	assert.Contains(t, hostBadges, models.ConditionMilestone25)
	assert.Contains(t, hostBadges, models.ConditionMilestone50)
	assert.Contains(t, hostBadges, models.ConditionMilestone75)
	assert.Contains(t, badgeConditions(t, svc, a.UserID), models.ConditionGoalReached)
	assert.Contains(t, badgeConditions(t, svc, b.UserID), models.ConditionGoalReached)

	// dropping under and crossing again does not repeat a milestone
	c := newUser(t, svc, "c", "c")
	p := join(t, svc, c, ch.ID, 1, 0)
	require.NoError(t, svc.Participations.Delete(c, p.ID))
	join(t, svc, c, ch.ID, 1, 0)
	hostUnread, err = svc.Notifications.UnreadCount(host.UserID)
	require.NoError(t, err)
	assert.EqualValues(t, 4, hostUnread)
}

func TestNotificationReadState(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	other := newUser(t, svc, "other", "other")

	for i := 0; i < 3; i++ {
		_, err := svc.Notifications.Notify(host.UserID, nil, models.NotifyNewParticipant, "hi", "")
		require.NoError(t, err)
	}

	page, err := svc.Notifications.List(host.UserID, "", 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	rest, err := svc.Notifications.List(host.UserID, page.NextCursor, 2)
	require.NoError(t, err)
	assert.Len(t, rest.Items, 1)

	require.ErrorIs(t, svc.Notifications.MarkRead(other.UserID, page.Items[0].ID), ErrNotFound)
	require.NoError(t, svc.Notifications.MarkRead(host.UserID, page.Items[0].ID))
	n, err := svc.Notifications.UnreadCount(host.UserID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	marked, err := svc.Notifications.MarkAllRead(host.UserID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, marked)
}

func TestNotificationSettingsDefaultsAndUpdate(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	ch := newChallenge(t, svc, host, 100)

	def, err := svc.Notifications.Settings(host.UserID, ch.ID)
	require.NoError(t, err)
	assert.True(t, def.OnGoalReached)
	assert.True(t, def.OnMilestone50)
	assert.False(t, def.OnMilestone25)
	assert.Empty(t, def.ID)

	saved, err := svc.Notifications.UpdateSettings(host.UserID, ch.ID, SettingsInput{OnMilestone25: ptr(true), ExpoPushToken: ptr("ExponentPushToken[abc]")})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.True(t, saved.OnMilestone25)

	again, err := svc.Notifications.UpdateSettings(host.UserID, ch.ID, SettingsInput{OnGoalReached: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, saved.ID, again.ID)
	assert.False(t, again.OnGoalReached)
	assert.True(t, again.OnMilestone25)

	_, err = svc.Notifications.UpdateSettings(host.UserID, "missing", SettingsInput{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPendingPushAndMarkSent(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	ch := newChallenge(t, svc, host, 100)
	_, err := svc.Notifications.UpdateSettings(host.UserID, ch.ID, SettingsInput{ExpoPushToken: ptr("ExponentPushToken[abc]")})
	require.NoError(t, err)

	n, err := svc.Notifications.Notify(host.UserID, &ch.ID, models.NotifyGoalReached, "done", "")
	require.NoError(t, err)

	msgs, err := svc.Notifications.PendingPush(10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, n.ID, msgs[0].NotificationID)
	assert.Equal(t, "ExponentPushToken[abc]", msgs[0].Token)

	require.NoError(t, svc.Notifications.MarkSent([]string{n.ID}, time.Now()))
	msgs, err = svc.Notifications.PendingPush(10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRefreshCompletesAchievements(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	ch := newChallenge(t, svc, host, 100)
	join(t, svc, fan, ch.ID, 2, 0)

	prog, completed, err := svc.Progression.Refresh(fan.UserID)
	require.NoError(t, err)
	assert.Empty(t, completed, "already completed by the join")
	assert.EqualValues(t, 1, prog.TotalParticipations)
	assert.EqualValues(t, 2, prog.TotalContribution)
	assert.Equal(t, 1, prog.CurrentStreak)
	assert.GreaterOrEqual(t, prog.Points, int64(10))

	mine, err := svc.Progression.Mine(fan.UserID)
	require.NoError(t, err)
	byCondition := map[string]AchievementProgress{}
	for _, ap := range mine {
		byCondition[ap.ConditionType] = ap
	}
	assert.True(t, byCondition["participate_1"].IsCompleted)
	assert.False(t, byCondition["participate_5"].IsCompleted)
	assert.EqualValues(t, 1, byCondition["participate_5"].Progress)

	hostProg, err := svc.Progression.EnsureProgressRecord(host.UserID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, hostProg.TotalHosted)
}

func notificationTypes(t *testing.T, svc *Services, userID string) []models.NotificationType {
	t.Helper()
	page, err := svc.Notifications.List(userID, "", 50)
	require.NoError(t, err)
	types := make([]models.NotificationType, 0, len(page.Items))
	for _, n := range page.Items {
		types = append(types, n.Type)
	}
	return types
}

func TestEditCrossingMilestonesNotifiesAndAwards(t *testing.T) {
	svc, db := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	ch := newChallenge(t, svc, host, 4)

	p := join(t, svc, fan, ch.ID, 1, 0)
	assert.ElementsMatch(t, []models.NotificationType{models.NotifyMilestone25}, notificationTypes(t, svc, host.UserID))

	_, err := svc.Participations.Update(fan, p.ID, ParticipationUpdate{CompanionCount: ptr(5)})
	require.NoError(t, err)
	require.Equal(t, 6, currentValue(t, db, ch.ID))

	assert.ElementsMatch(t, []models.NotificationType{
		models.NotifyMilestone25,
		models.NotifyMilestone50,
		models.NotifyMilestone75,
		models.NotifyGoalReached,
	}, notificationTypes(t, svc, host.UserID))

	hostBadges := badgeConditions(t, svc, host.UserID)
	assert.Contains(t, hostBadges, models.ConditionMilestone50)
	assert.Contains(t, hostBadges, models.ConditionMilestone75)
	assert.Contains(t, badgeConditions(t, svc, fan.UserID), models.ConditionGoalReached)

	// shrinking the party fires nothing new
	_, err = svc.Participations.Update(fan, p.ID, ParticipationUpdate{CompanionCount: ptr(0)})
	require.NoError(t, err)
	assert.Len(t, notificationTypes(t, svc, host.UserID), 4)
}

func TestRestoreCrossingGoalNotifiesAndAwards(t *testing.T) {
	svc, db := newTestServices(t)
	admin := newAdmin(t, svc, db, "admin")
	host := newUser(t, svc, "host", "host")
	a := newUser(t, svc, "a", "a")
	b := newUser(t, svc, "b", "b")
	c := newUser(t, svc, "c", "c")
	ch := newChallenge(t, svc, host, 4)

	early := join(t, svc, a, ch.ID, 1, 0)
	require.NoError(t, svc.Participations.Delete(a, early.ID))
	join(t, svc, b, ch.ID, 1, 0)
	join(t, svc, c, ch.ID, 2, 0)
	require.Equal(t, 3, currentValue(t, db, ch.ID))
	assert.NotContains(t, notificationTypes(t, svc, host.UserID), models.NotifyGoalReached)

	_, err := svc.Admin.RestoreParticipation(admin, early.ID, "removed by mistake")
	require.NoError(t, err)
	require.Equal(t, 4, currentValue(t, db, ch.ID))

	assert.Contains(t, notificationTypes(t, svc, host.UserID), models.NotifyGoalReached)
	for _, u := range []Actor{a, b, c} {
		assert.Contains(t, badgeConditions(t, svc, u.UserID), models.ConditionGoalReached)
	}
}

func TestBulkRestoreCrossingGoal(t *testing.T) {
	svc, db := newTestServices(t)
	admin := newAdmin(t, svc, db, "admin")
	host := newUser(t, svc, "host", "host")
	a := newUser(t, svc, "a", "a")
	b := newUser(t, svc, "b", "b")
	ch := newChallenge(t, svc, host, 4)

	join(t, svc, a, ch.ID, 3, 0)
	_, err := svc.Admin.BulkDelete(admin, BulkInput{ChallengeID: ch.ID, UserID: a.UserID})
	require.NoError(t, err)
	join(t, svc, b, ch.ID, 1, 0)
	require.Equal(t, 1, currentValue(t, db, ch.ID))

	_, err = svc.Admin.BulkRestore(admin, BulkInput{ChallengeID: ch.ID})
	require.NoError(t, err)
	require.Equal(t, 4, currentValue(t, db, ch.ID))

	assert.ElementsMatch(t, []models.NotificationType{
		models.NotifyMilestone25,
		models.NotifyMilestone50,
		models.NotifyMilestone75,
		models.NotifyGoalReached,
	}, notificationTypes(t, svc, host.UserID))
	assert.Contains(t, badgeConditions(t, svc, a.UserID), models.ConditionGoalReached)
	assert.Contains(t, badgeConditions(t, svc, b.UserID), models.ConditionGoalReached)
}
