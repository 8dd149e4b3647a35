package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xxiimcha/lk-web/internal/common"
	"github.com/xxiimcha/lk-web/internal/server/models"
)

func fixedClock(start time.Time) func() time.Time {
	var n int64
	return func() time.Time {
		return start.Add(time.Duration(atomic.AddInt64(&n, 1)) * time.Second)
	}
}

func TestAccounts_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Accounts()

	a, err := repo.Create(ctx, &models.Account{Name: "Ana", Username: "ana", Email: "ana@lk.ph", PasswordHash: "h"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, models.RoleUser, a.Role)

	byEmail, err := repo.GetByEmail(ctx, "ana@lk.ph")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byEmail.ID)

	_, err = repo.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.Create(ctx, &models.Account{Username: "ana2", Email: "ana@lk.ph"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
	_, err = repo.Create(ctx, &models.Account{Username: "ana", Email: "other@lk.ph"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestAccounts_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Accounts()

	a, err := repo.Create(ctx, &models.Account{Name: "Ana", Username: "ana", Email: "ana@lk.ph"})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", again.Name)
}

func TestAccounts_ListByRoleOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.SetClock(fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	repo := s.Accounts()

	for _, a := range []*models.Account{
		{Username: "u1", Email: "u1@x", Role: models.RoleUser},
		{Username: "a1", Email: "a1@x", Role: models.RoleAdmin},
		{Username: "u2", Email: "u2@x", Role: models.RoleUser},
	} {
		_, err := repo.Create(ctx, a)
		require.NoError(t, err)
	}

	users, err := repo.List(ctx, models.RoleUser)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u1", users[0].Username)
	assert.Equal(t, "u2", users[1].Username)

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestAccounts_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Accounts()

	a, _ := repo.Create(ctx, &models.Account{Name: "Ana", Username: "ana", Email: "ana@lk.ph"})
	_, _ = repo.Create(ctx, &models.Account{Name: "Ben", Username: "ben", Email: "ben@lk.ph"})

	name := "Ana Cruz"
	got, err := repo.Update(ctx, a.ID, models.AccountUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Ana Cruz", got.Name)
	assert.Equal(t, "ana@lk.ph", got.Email)

	taken := "ben@lk.ph"
	_, err = repo.Update(ctx, a.ID, models.AccountUpdate{Email: &taken})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	own := "ana@lk.ph"
	_, err = repo.Update(ctx, a.ID, models.AccountUpdate{Email: &own})
	assert.NoError(t, err)

	_, err = repo.Update(ctx, "missing", models.AccountUpdate{Name: &name})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAccounts_OTPLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Accounts()
	a, _ := repo.Create(ctx, &models.Account{Username: "ana", Email: "ana@lk.ph"})
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SetOTP(ctx, a.ID, "123456", now.Add(5*time.Minute)))

	ok, err := repo.ConsumeOTP(ctx, a.ID, "000000", now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ConsumeOTP(ctx, a.ID, "123456", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ConsumeOTP(ctx, a.ID, "123456", now)
	require.NoError(t, err)
	assert.False(t, ok, "second consume must fail")

	assert.ErrorIs(t, repo.SetOTP(ctx, "missing", "1", now), common.ErrorNotFound)
}

func TestAccounts_ConsumeExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Accounts()
	a, _ := repo.Create(ctx, &models.Account{Username: "ana", Email: "ana@lk.ph"})
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.SetOTP(ctx, a.ID, "123456", now))
	ok, err := repo.ConsumeOTP(ctx, a.ID, "123456", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccounts_ClearOTPOnlyMatching(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Accounts()
	a, _ := repo.Create(ctx, &models.Account{Username: "ana", Email: "ana@lk.ph"})
	exp := time.Now().Add(time.Hour)

	require.NoError(t, repo.SetOTP(ctx, a.ID, "222222", exp))
	require.NoError(t, repo.ClearOTP(ctx, a.ID, "111111"))

	got, _ := repo.GetByID(ctx, a.ID)
	require.NotNil(t, got.OTP)
	assert.Equal(t, "222222", *got.OTP)

	require.NoError(t, repo.ClearOTP(ctx, a.ID, "222222"))
	got, _ = repo.GetByID(ctx, a.ID)
	assert.Nil(t, got.OTP)
}

func TestAccounts_PurgeExpiredOTPs(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Accounts()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	old, _ := repo.Create(ctx, &models.Account{Username: "old", Email: "old@x"})
	fresh, _ := repo.Create(ctx, &models.Account{Username: "fresh", Email: "fresh@x"})
	require.NoError(t, repo.SetOTP(ctx, old.ID, "1", now.Add(-time.Minute)))
	require.NoError(t, repo.SetOTP(ctx, fresh.ID, "2", now.Add(time.Minute)))

	n, err := repo.PurgeExpiredOTPs(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, _ := repo.GetByID(ctx, fresh.ID)
	assert.NotNil(t, got.OTP)
}

func TestAccounts_ConcurrentConsumeSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Accounts()
	a, _ := repo.Create(ctx, &models.Account{Username: "ana", Email: "ana@lk.ph"})
	now := time.Now()
	require.NoError(t, repo.SetOTP(ctx, a.ID, "123456", now.Add(time.Minute)))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := repo.ConsumeOTP(ctx, a.ID, "123456", now); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
}

func TestSeedRequests_ListAndTransition(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.SetClock(fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	repo := s.SeedRequests()

	r1, err := repo.Create(ctx, &models.SeedRequest{UserID: "u", SeedType: "Tomato"})
	require.NoError(t, err)
	r2, err := repo.Create(ctx, &models.SeedRequest{UserID: "u", SeedType: "Okra"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, r1.Status)

	reason := "no stock"
	got, err := repo.UpdateStatus(ctx, r2.ID, models.StatusPending, models.StatusRejected, &reason)
	require.NoError(t, err)
	assert.Equal(t, "no stock", *got.RejectReason)

	_, err = repo.UpdateStatus(ctx, r2.ID, models.StatusPending, models.StatusApproved, nil)
	assert.ErrorIs(t, err, common.ErrorNotFound, "stale from status")

	pending, err := repo.List(ctx, models.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, r1.ID, pending[0].ID)

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, r1.ID, all[0].ID)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[models.StatusPending])
	assert.EqualValues(t, 1, counts[models.StatusRejected])
	assert.EqualValues(t, 0, counts[models.StatusReleased])
}

func TestSeedRequests_CreateKeepsGivenID(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().SeedRequests()

	_, err := repo.Create(ctx, &models.SeedRequest{ID: "fixed", UserID: "u"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.SeedRequest{ID: "fixed", UserID: "u"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
