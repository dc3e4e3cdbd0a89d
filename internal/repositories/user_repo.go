package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/kamino-guard/internal/database"
	"github.com/BradenHooton/kamino-guard/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, tenant_id, email, name, password_hash, status, locked_at, locked_until, password_changed_at, created_at, updated_at`

// UserRepository is the Postgres-backed user store.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner interface for scanning user rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanUserRow handles nullable fields and populates a User model from a database row
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var passwordHash *string

	err := scanner.Scan(
		&user.ID, &user.TenantID, &user.Email, &user.Name, &passwordHash, &user.Status,
		&user.LockedAt, &user.LockedUntil, &user.PasswordChangedAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if passwordHash != nil {
		user.PasswordHash = *passwordHash
	}

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail looks a user up by identity key. Emails are compared case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email, tenantID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND lower(email) = lower($2)`

	return scanUserRow(r.pool.QueryRow(ctx, query, tenantID, email))
}

// Create inserts a user. Used by seeding and tests; account creation lives elsewhere.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now()
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}

	query := `
		INSERT INTO users (tenant_id, email, name, password_hash, status, password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING ` + userColumns

	var passwordHash *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}

	return scanUserRow(r.pool.QueryRow(ctx, query,
		user.TenantID, user.Email, user.Name, passwordHash, user.Status, user.PasswordChangedAt, now,
	))
}

// Update persists the fields the security core owns: lock state and password.
func (r *UserRepository) Update(ctx context.Context, id string, user *models.User) (*models.User, error) {
	user.UpdatedAt = time.Now()

	query := `
		UPDATE users
		SET password_hash = $1, status = $2, locked_at = $3, locked_until = $4, password_changed_at = $5, updated_at = $6
		WHERE id = $7
		RETURNING ` + userColumns

	var passwordHash *string
	if user.PasswordHash != "" {
		passwordHash = &user.PasswordHash
	}

	return scanUserRow(r.pool.QueryRow(ctx, query,
		passwordHash, user.Status, user.LockedAt, user.LockedUntil, user.PasswordChangedAt, user.UpdatedAt, id,
	))
}
