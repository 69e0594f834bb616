package services

import (
	"testing"

	"doin-challenge/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTransferValidationAndDefaults(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	ch := newChallenge(t, svc, host, 100)

	_, err := svc.Tickets.CreateTransfer(fan, TransferInput{ChallengeID: ch.ID, TicketCount: 11})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Tickets.CreateTransfer(fan, TransferInput{ChallengeID: ch.ID, PriceType: "auction"})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.Tickets.CreateTransfer(Actor{}, TransferInput{ChallengeID: ch.ID})
	require.ErrorIs(t, err, ErrUnauthenticated)

	res, err := svc.Tickets.CreateTransfer(fan, TransferInput{ChallengeID: ch.ID, Comment: "  当日手渡し  "})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Transfer.TicketCount)
	assert.Equal(t, models.PriceFaceValue, res.Transfer.PriceType)
	assert.Equal(t, models.TransferAvailable, res.Transfer.Status)
	assert.Equal(t, "当日手渡し", res.Transfer.Comment)
	assert.Equal(t, "fan", res.Transfer.UserName)
	assert.Zero(t, res.NotifiedCount)

	list, err := svc.Tickets.ListByChallenge(ch.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTransferStatusChanges(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	ch := newChallenge(t, svc, host, 100)
	res, err := svc.Tickets.CreateTransfer(fan, TransferInput{ChallengeID: ch.ID, TicketCount: 2, PriceType: models.PriceNegotiable})
	require.NoError(t, err)
	id := res.Transfer.ID

	_, err = svc.Tickets.UpdateStatus(host, id, models.TransferReserved)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Tickets.UpdateStatus(fan, id, models.TicketTransferStatus("sold"))
	require.ErrorIs(t, err, ErrInvalidInput)

	reserved, err := svc.Tickets.UpdateStatus(fan, id, models.TransferReserved)
	require.NoError(t, err)
	assert.Equal(t, models.TransferReserved, reserved.Status)

	// only available transfers are listed
	list, err := svc.Tickets.ListByChallenge(ch.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = svc.Tickets.UpdateStatus(fan, id, models.TransferCompleted)
	require.NoError(t, err)
	_, err = svc.Tickets.Cancel(fan, id)
	require.ErrorIs(t, err, ErrConflict)

	mine, err := svc.Tickets.Mine(fan.UserID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.TransferCompleted, mine[0].Status)
}

func TestWaitlistIsIdempotentAndReactivates(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	ch := newChallenge(t, svc, host, 100)

	first, err := svc.Tickets.AddToWaitlist(fan, WaitlistInput{ChallengeID: ch.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, first.DesiredCount)
	assert.True(t, first.NotifyOnNew)

	again, err := svc.Tickets.AddToWaitlist(fan, WaitlistInput{ChallengeID: ch.ID, DesiredCount: 3})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 3, again.DesiredCount)

	entries, err := svc.Tickets.Waitlist(ch.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, svc.Tickets.RemoveFromWaitlist(fan, ch.ID))
	require.ErrorIs(t, svc.Tickets.RemoveFromWaitlist(fan, ch.ID), ErrNotFound)
	on, err := svc.Tickets.IsOnWaitlist(fan.UserID, ch.ID)
	require.NoError(t, err)
	assert.False(t, on)

	back, err := svc.Tickets.AddToWaitlist(fan, WaitlistInput{ChallengeID: ch.ID, NotifyOnNew: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, back.ID)
	assert.True(t, back.IsActive)
	assert.False(t, back.NotifyOnNew)

	mine, err := svc.Tickets.MyWaitlist(fan.UserID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = svc.Tickets.AddToWaitlist(fan, WaitlistInput{ChallengeID: ch.ID, DesiredCount: 11})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewTransferSkipsPosterOnWaitlist(t *testing.T) {
	svc, _ := newTestServices(t)
	host := newUser(t, svc, "host", "host")
	fan := newUser(t, svc, "fan", "fan")
	waiter := newUser(t, svc, "waiter", "waiter")
	ch := newChallenge(t, svc, host, 100)

	_, err := svc.Tickets.AddToWaitlist(fan, WaitlistInput{ChallengeID: ch.ID})
	require.NoError(t, err)
	_, err = svc.Tickets.AddToWaitlist(waiter, WaitlistInput{ChallengeID: ch.ID})
	require.NoError(t, err)

	res, err := svc.Tickets.CreateTransfer(fan, TransferInput{ChallengeID: ch.ID, PriceType: models.PriceFree})
	require.NoError(t, err)
	assert.Equal(t, 1, res.NotifiedCount)

	page, err := svc.Notifications.List(waiter.UserID, "", 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, models.NotifyTicketAvailable, page.Items[0].Type)
}
