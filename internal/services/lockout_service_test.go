package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/kamino-guard/internal/cache"
	"github.com/BradenHooton/kamino-guard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	bobEmail = "bob@x.com"
	tenantA  = "tenantA"
	tenantB  = "tenantB"
)

func testLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxFailedAttempts: 5,
		Window:            15 * time.Minute,
		LockoutDuration:   15 * time.Minute,
	}
}

func bob() *models.User {
	return &models.User{
		ID:       "user-bob",
		TenantID: tenantA,
		Email:    bobEmail,
		Name:     "Bob",
		Status:   models.UserStatusActive,
	}
}

func newTestLockoutService(t *testing.T, users UserRepository, c cache.Cache, clock *testClock) *LockoutService {
	t.Helper()
	svc := NewLockoutService(users, c, testLockoutConfig(), discardLogger())
	svc.now = clock.Now
	return svc
}

func TestLockoutService_LocksOnFifthFailure(t *testing.T) {
	c, clock := newTestCache(t)
	table := newUserTable(bob())
	svc := newTestLockoutService(t, table.repo(), c, clock)
	ctx := context.Background()
	start := clock.Now()

	for i := 0; i < 4; i++ {
		clock.At(start, time.Duration(i)*time.Minute)
		outcome, err := svc.RecordFailedLogin(ctx, bobEmail, tenantA, "10.0.0.1", "ua")
		require.NoError(t, err)
		assert.Equal(t, models.FailedOutcome(i+1, 5), outcome)
	}

	clock.At(start, 4*time.Minute)
	outcome, err := svc.RecordFailedLogin(ctx, bobEmail, tenantA, "10.0.0.1", "ua")
	require.NoError(t, err)
	require.True(t, outcome.IsLocked())
	assert.True(t, start.Add(19*time.Minute).Equal(*outcome.LockedUntil))

	stored := table.get("user-bob")
	require.NotNil(t, stored.LockedUntil)
	assert.True(t, start.Add(19*time.Minute).Equal(*stored.LockedUntil))

	clock.At(start, 10*time.Minute)
	locked, err := svc.IsAccountLocked(ctx, bobEmail, tenantA)
	require.NoError(t, err)
	assert.True(t, locked)

	clock.At(start, 20*time.Minute)
	locked, err = svc.IsAccountLocked(ctx, bobEmail, tenantA)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLockoutService_FailureDuringLockExtendsIt(t *testing.T) {
	c, clock := newTestCache(t)
	table := newUserTable(bob())
	svc := newTestLockoutService(t, table.repo(), c, clock)
	ctx := context.Background()
	start := clock.Now()

	var outcome models.LoginAttemptOutcome
	var err error
	for i := 0; i < 5; i++ {
		outcome, err = svc.RecordFailedLogin(ctx, bobEmail, tenantA, "10.0.0.1", "ua")
		require.NoError(t, err)
	}
	require.True(t, outcome.IsLocked())
	assert.True(t, start.Add(15*time.Minute).Equal(*outcome.LockedUntil))

	clock.At(start, 5*time.Minute)
	outcome, err = svc.RecordFailedLogin(ctx, bobEmail, tenantA, "10.0.0.1", "ua")
	require.NoError(t, err)
	require.True(t, outcome.IsLocked())
	assert.True(t, start.Add(20*time.Minute).Equal(*outcome.LockedUntil))

	end, err := svc.GetLockoutEndTime(ctx, bobEmail, tenantA)
	require.NoError(t, err)
	require.NotNil(t, end)
	assert.True(t, start.Add(20*time.Minute).Equal(*end))
}

func TestLockoutService_FailuresOutsideWindowDoNotCount(t *testing.T) {
	c, clock := newTestCache(t)
	svc := newTestLockoutService(t, newUserTable(bob()).repo(), c, clock)
	ctx := context.Background()
	start := clock.Now()

	_, err := svc.RecordFailedLogin(ctx, bobEmail, tenantA, "", "")
	require.NoError(t, err)

	clock.At(start, 16*time.Minute)
	var outcome models.LoginAttemptOutcome
	for i := 0; i < 4; i++ {
		outcome, err = svc.RecordFailedLogin(ctx, bobEmail, tenantA, "", "")
		require.NoError(t, err)
	}

	assert.Equal(t, models.FailedOutcome(4, 5), outcome)
	locked, err := svc.IsAccountLocked(ctx, bobEmail, tenantA)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLockoutService_ClearResetsCount(t *testing.T) {
	c, clock := newTestCache(t)
	svc := newTestLockoutService(t, newUserTable(bob()).repo(), c, clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.RecordFailedLogin(ctx, bobEmail, tenantA, "", "")
		require.NoError(t, err)
	}
	require.NoError(t, svc.ClearFailedLoginAttempts(ctx, bobEmail, tenantA))

	outcome, err := svc.RecordFailedLogin(ctx, bobEmail, tenantA, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.FailedOutcome(1, 5), outcome)
}

func TestLockoutService_IdentityIsEmailAndTenant(t *testing.T) {
	c, clock := newTestCache(t)
	svc := newTestLockoutService(t, newUserTable(bob()).repo(), c, clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.RecordFailedLogin(ctx, bobEmail, tenantA, "", "")
		require.NoError(t, err)
	}

	locked, err := svc.IsAccountLocked(ctx, "BOB@x.com ", tenantA)
	require.NoError(t, err)
	assert.True(t, locked, "email match is case-insensitive")

	locked, err = svc.IsAccountLocked(ctx, bobEmail, tenantB)
	require.NoError(t, err)
	assert.False(t, locked)

	outcome, err := svc.RecordFailedLogin(ctx, bobEmail, tenantB, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.FailedOutcome(1, 5), outcome)
}

func TestLockoutService_UnknownEmailLocksThroughCache(t *testing.T) {
	c, clock := newTestCache(t)
	svc := newTestLockoutService(t, newUserTable().repo(), c, clock)
	ctx := context.Background()

	var outcome models.LoginAttemptOutcome
	var err error
	for i := 0; i < 5; i++ {
		outcome, err = svc.RecordFailedLogin(ctx, "ghost@x.com", tenantA, "", "")
		require.NoError(t, err)
	}
	assert.True(t, outcome.IsLocked())

	locked, err := svc.IsAccountLocked(ctx, "ghost@x.com", tenantA)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestLockoutService_StoreLockExpiresLazily(t *testing.T) {
	c, clock := newTestCache(t)
	past := clock.Now().Add(-time.Minute)
	user := bob()
	user.LockAccount(past.Add(-time.Hour), past)
	svc := newTestLockoutService(t, newUserTable(user).repo(), c, clock)

	locked, err := svc.IsAccountLocked(context.Background(), bobEmail, tenantA)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLockoutService_GetLockoutEndTimeReturnsLaterSource(t *testing.T) {
	c, clock := newTestCache(t)
	now := clock.Now()
	user := bob()
	user.LockAccount(now, now.Add(10*time.Minute))
	svc := newTestLockoutService(t, newUserTable(user).repo(), c, clock)
	ctx := context.Background()

	cachedUntil := now.Add(25 * time.Minute)
	require.NoError(t, c.Set(ctx, lockoutKeyPrefix+tenantA+":"+bobEmail, models.AccountLockState{
		Email: bobEmail, TenantID: tenantA, LockedAt: now, LockedUntil: cachedUntil,
	}, 25*time.Minute))

	end, err := svc.GetLockoutEndTime(ctx, bobEmail, tenantA)
	require.NoError(t, err)
	require.NotNil(t, end)
	assert.True(t, cachedUntil.Equal(*end))

	clock.Advance(30 * time.Minute)
	end, err = svc.GetLockoutEndTime(ctx, bobEmail, tenantA)
	require.NoError(t, err)
	assert.Nil(t, end)
}

func TestLockoutService_UnlockAccount(t *testing.T) {
	c, clock := newTestCache(t)
	table := newUserTable(bob())
	svc := newTestLockoutService(t, table.repo(), c, clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.RecordFailedLogin(ctx, bobEmail, tenantA, "", "")
		require.NoError(t, err)
	}

	require.NoError(t, svc.UnlockAccount(ctx, bobEmail, tenantA))

	locked, err := svc.IsAccountLocked(ctx, bobEmail, tenantA)
	require.NoError(t, err)
	assert.False(t, locked)
	assert.Nil(t, table.get("user-bob").LockedUntil)

	outcome, err := svc.RecordFailedLogin(ctx, bobEmail, tenantA, "", "")
	require.NoError(t, err)
	assert.Equal(t, models.FailedOutcome(1, 5), outcome)
}

func TestLockoutService_UnlockAccountReportsStoreErrors(t *testing.T) {
	c, clock := newTestCache(t)
	users := &MockUserRepository{
		GetByEmailFunc: func(context.Context, string, string) (*models.User, error) {
			return nil, models.ErrInternalServer
		},
	}
	svc := newTestLockoutService(t, users, c, clock)

	err := svc.UnlockAccount(context.Background(), bobEmail, tenantA)
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestLockoutService_InfrastructureFailuresDegrade(t *testing.T) {
	clock := &testClock{now: testEpoch}
	users := &MockUserRepository{
		GetByEmailFunc: func(context.Context, string, string) (*models.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestLockoutService(t, users, unavailableCache(), clock)
	ctx := context.Background()

	var outcome models.LoginAttemptOutcome
	var err error
	for i := 0; i < 5; i++ {
		outcome, err = svc.RecordFailedLogin(ctx, bobEmail, tenantA, "", "")
		require.NoError(t, err)
	}
	assert.Equal(t, models.FailedOutcome(0, 5), outcome)

	locked, err := svc.IsAccountLocked(ctx, bobEmail, tenantA)
	require.NoError(t, err)
	assert.False(t, locked)

	assert.NoError(t, svc.ClearFailedLoginAttempts(ctx, bobEmail, tenantA))
}

func TestLockoutService_RejectsMissingIdentity(t *testing.T) {
	c, clock := newTestCache(t)
	svc := newTestLockoutService(t, newUserTable().repo(), c, clock)
	ctx := context.Background()

	_, err := svc.RecordFailedLogin(ctx, "", tenantA, "", "")
	assert.True(t, models.IsValidationError(err))

	_, err = svc.IsAccountLocked(ctx, bobEmail, " ")
	assert.True(t, models.IsValidationError(err))

	assert.True(t, models.IsValidationError(svc.UnlockAccount(ctx, "", "")))
	assert.True(t, models.IsValidationError(svc.ClearFailedLoginAttempts(ctx, "", tenantA)))
}

func TestLockoutService_ConcurrentFailuresCountEachAttempt(t *testing.T) {
	clock := &testClock{now: testEpoch}
	svc := NewLockoutService(newUserTable().repo(), &MockCache{}, LockoutConfig{
		MaxFailedAttempts: 1000,
		Window:            time.Hour,
		LockoutDuration:   time.Hour,
	}, discardLogger())
	svc.now = clock.Now
	ctx := context.Background()

	const perIdentity = 50
	seen := make([]map[int]bool, 3)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for id := range seen {
		seen[id] = make(map[int]bool)
		for i := 0; i < perIdentity; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				outcome, err := svc.RecordFailedLogin(ctx, fmt.Sprintf("user%d@x.com", id), tenantA, "", "")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				seen[id][outcome.Attempts] = true
				mu.Unlock()
			}(id)
		}
	}
	wg.Wait()

	for id := range seen {
		assert.Len(t, seen[id], perIdentity, "every attempt for user%d saw a distinct count", id)
	}
}
