package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/kamino-guard/internal/cache"
	"github.com/BradenHooton/kamino-guard/internal/models"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByEmailFunc func(ctx context.Context, email, tenantID string) (*models.User, error)
	GetByIDFunc    func(ctx context.Context, id string) (*models.User, error)
	UpdateFunc     func(ctx context.Context, id string, user *models.User) (*models.User, error)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email, tenantID string) (*models.User, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email, tenantID)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, id, user)
	}
	return nil, models.ErrInternalServer
}

// userTable backs a MockUserRepository with a map keyed by id.
type userTable struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newUserTable(users ...*models.User) *userTable {
	t := &userTable{users: make(map[string]*models.User)}
	for _, u := range users {
		t.users[u.ID] = u
	}
	return t
}

func (t *userTable) get(id string) *models.User {
	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (t *userTable) repo() *MockUserRepository {
	return &MockUserRepository{
		GetByEmailFunc: func(_ context.Context, email, tenantID string) (*models.User, error) {
			t.mu.Lock()
			defer t.mu.Unlock()
			for _, u := range t.users {
				if strings.EqualFold(u.Email, email) && u.TenantID == tenantID {
					cp := *u
					return &cp, nil
				}
			}
			return nil, models.ErrNotFound
		},
		GetByIDFunc: func(_ context.Context, id string) (*models.User, error) {
			if u := t.get(id); u != nil {
				return u, nil
			}
			return nil, models.ErrNotFound
		},
		UpdateFunc: func(_ context.Context, id string, user *models.User) (*models.User, error) {
			t.mu.Lock()
			defer t.mu.Unlock()
			if _, ok := t.users[id]; !ok {
				return nil, models.ErrNotFound
			}
			cp := *user
			t.users[id] = &cp
			return user, nil
		},
	}
}

// MockEmailSender implements EmailSender for testing
type MockEmailSender struct {
	mu                   sync.Mutex
	Sent                 []sentEmail
	SendTemplateEmailErr error
}

type sentEmail struct {
	To        string
	Name      string
	Template  string
	Variables map[string]string
}

func (m *MockEmailSender) SendTemplateEmail(_ context.Context, toEmail, toName, templateID string, variables map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendTemplateEmailErr != nil {
		return m.SendTemplateEmailErr
	}
	m.Sent = append(m.Sent, sentEmail{To: toEmail, Name: toName, Template: templateID, Variables: variables})
	return nil
}

func (m *MockEmailSender) sent() []sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentEmail(nil), m.Sent...)
}

// MockCache implements cache.Cache for failure paths.
type MockCache struct {
	GetFunc    func(ctx context.Context, key string, dest interface{}) (bool, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	RemoveFunc func(ctx context.Context, key string) error
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key, dest)
	}
	return false, nil
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	return nil
}

func (m *MockCache) Remove(ctx context.Context, key string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, key)
	}
	return nil
}

func unavailableCache() *MockCache {
	return &MockCache{
		GetFunc: func(context.Context, string, interface{}) (bool, error) {
			return false, models.ErrCacheUnavailable
		},
		SetFunc: func(context.Context, string, interface{}, time.Duration) error {
			return models.ErrCacheUnavailable
		},
		RemoveFunc: func(context.Context, string) error {
			return models.ErrCacheUnavailable
		},
	}
}

// testClock drives both the service clock and miniredis TTLs.
type testClock struct {
	mu  sync.Mutex
	now time.Time
	mr  *miniredis.Miniredis
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	if c.mr != nil {
		c.mr.FastForward(d)
	}
}

// At moves the clock to start+offset.
func (c *testClock) At(start time.Time, offset time.Duration) {
	c.Advance(start.Add(offset).Sub(c.Now()))
}

var testEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T) (*cache.RedisCache, *testClock) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return cache.NewRedisCache(client, "test"), &testClock{now: testEpoch, mr: mr}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
