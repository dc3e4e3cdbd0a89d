package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/kamino-guard/internal/cache"
	"github.com/BradenHooton/kamino-guard/internal/models"
	"github.com/BradenHooton/kamino-guard/pkg/logger"
)

const lockoutKeyPrefix = "lockout:"

// LockoutConfig holds the brute-force thresholds.
type LockoutConfig struct {
	MaxFailedAttempts int
	Window            time.Duration
	LockoutDuration   time.Duration
}

// LockoutService tracks failed logins per (email, tenant) and locks accounts.
//
// The user record is the authoritative lock state and the cache entry is a
// fast-path mirror for other replicas. Both are plain overwrites, so two
// replicas locking the same account at once simply both write; the later
// write wins. Failure windows live in this process only.
type LockoutService struct {
	users   UserRepository
	cache   cache.Cache
	config  LockoutConfig
	logger  *slog.Logger
	windows *windowRegistry
	now     func() time.Time
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(users UserRepository, c cache.Cache, config LockoutConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		users:   users,
		cache:   c,
		config:  config,
		logger:  logger,
		windows: newWindowRegistry(),
		now:     time.Now,
	}
}

// RecordFailedLogin adds a failure to the identity's window and locks the
// account once the window holds MaxFailedAttempts failures.
// Store or cache failures degrade the result to Failed{0, max}.
func (s *LockoutService) RecordFailedLogin(ctx context.Context, email, tenantID, sourceIP, userAgent string) (models.LoginAttemptOutcome, error) {
	id, err := newIdentity(email, tenantID)
	if err != nil {
		return models.LoginAttemptOutcome{}, err
	}

	now := s.now()
	count := s.windows.record(id.key(), models.LoginFailureRecord{
		Timestamp: now,
		SourceIP:  sourceIP,
		UserAgent: userAgent,
	}, now.Add(-s.config.Window))

	if count < s.config.MaxFailedAttempts {
		return models.FailedOutcome(count, s.config.MaxFailedAttempts), nil
	}

	until := now.Add(s.config.LockoutDuration)
	if err := s.lock(ctx, id, now, until); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist account lock",
			logger.EmailAttr(id.email),
			slog.String("tenant_id", id.tenantID),
			slog.Any("error", err))
		return models.FailedOutcome(0, s.config.MaxFailedAttempts), nil
	}

	s.logger.WarnContext(ctx, "account locked after repeated failures",
		logger.EmailAttr(id.email),
		slog.String("tenant_id", id.tenantID),
		slog.Int("attempts", count),
		slog.Time("locked_until", until))

	return models.LockedOutcome(until), nil
}

// ClearFailedLoginAttempts discards the failure window and the cached lock.
// Called after a successful login.
func (s *LockoutService) ClearFailedLoginAttempts(ctx context.Context, email, tenantID string) error {
	id, err := newIdentity(email, tenantID)
	if err != nil {
		return err
	}

	s.windows.clear(id.key())
	if err := s.cache.Remove(ctx, lockoutKeyPrefix+id.key()); err != nil {
		s.logger.WarnContext(ctx, "failed to remove cached lock",
			logger.EmailAttr(id.email),
			slog.String("tenant_id", id.tenantID),
			slog.Any("error", err))
	}
	return nil
}

// IsAccountLocked reports whether either lock source is still in force.
// Read failures count as "not locked".
func (s *LockoutService) IsAccountLocked(ctx context.Context, email, tenantID string) (bool, error) {
	until, err := s.GetLockoutEndTime(ctx, email, tenantID)
	if err != nil {
		return false, err
	}
	return until != nil, nil
}

// GetLockoutEndTime returns the later of the active lock expiries, or nil
// when neither source holds an unexpired lock.
func (s *LockoutService) GetLockoutEndTime(ctx context.Context, email, tenantID string) (*time.Time, error) {
	id, err := newIdentity(email, tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var end *time.Time

	if until := s.storedLockUntil(ctx, id, now); until != nil {
		end = until
	}
	if until := s.cachedLockUntil(ctx, id, now); until != nil && (end == nil || until.After(*end)) {
		end = until
	}
	return end, nil
}

// UnlockAccount clears the stored lock, the cached lock and the failure
// window. Unlike the other operations it reports infrastructure errors,
// since the caller needs to know the override took effect.
func (s *LockoutService) UnlockAccount(ctx context.Context, email, tenantID string) error {
	id, err := newIdentity(email, tenantID)
	if err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, id.email, id.tenantID)
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to load user: %w", err)
	case user.LockedUntil != nil || user.LockedAt != nil:
		user.UnlockAccount()
		if _, err := s.users.Update(ctx, user.ID, user); err != nil {
			return fmt.Errorf("failed to clear stored lock: %w", err)
		}
	}

	if err := s.cache.Remove(ctx, lockoutKeyPrefix+id.key()); err != nil {
		return fmt.Errorf("failed to clear cached lock: %w", err)
	}
	s.windows.clear(id.key())

	s.logger.InfoContext(ctx, "account unlocked",
		logger.EmailAttr(id.email),
		slog.String("tenant_id", id.tenantID))
	return nil
}

// lock writes the lock to the user record, then mirrors it into the cache.
// Unknown identities only get the cache entry so they behave like real ones.
func (s *LockoutService) lock(ctx context.Context, id identity, at, until time.Time) error {
	user, err := s.users.GetByEmail(ctx, id.email, id.tenantID)
	switch {
	case errors.Is(err, models.ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to load user: %w", err)
	default:
		user.LockAccount(at, until)
		if _, err := s.users.Update(ctx, user.ID, user); err != nil {
			return fmt.Errorf("failed to store lock: %w", err)
		}
	}

	state := models.AccountLockState{
		Email:       id.email,
		TenantID:    id.tenantID,
		LockedAt:    at,
		LockedUntil: until,
	}
	if err := s.cache.Set(ctx, lockoutKeyPrefix+id.key(), state, until.Sub(at)); err != nil {
		return fmt.Errorf("failed to mirror lock: %w", err)
	}
	return nil
}

func (s *LockoutService) storedLockUntil(ctx context.Context, id identity, now time.Time) *time.Time {
	user, err := s.users.GetByEmail(ctx, id.email, id.tenantID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.WarnContext(ctx, "lock check could not read user store",
				logger.EmailAttr(id.email),
				slog.String("tenant_id", id.tenantID),
				slog.Any("error", err))
		}
		return nil
	}
	if !user.IsLockedAt(now) {
		return nil
	}
	until := *user.LockedUntil
	return &until
}

func (s *LockoutService) cachedLockUntil(ctx context.Context, id identity, now time.Time) *time.Time {
	var state models.AccountLockState
	found, err := s.cache.Get(ctx, lockoutKeyPrefix+id.key(), &state)
	if err != nil {
		s.logger.WarnContext(ctx, "lock check could not read cache",
			logger.EmailAttr(id.email),
			slog.String("tenant_id", id.tenantID),
			slog.Any("error", err))
		return nil
	}
	if !found || !state.ActiveAt(now) {
		return nil
	}
	return &state.LockedUntil
}
