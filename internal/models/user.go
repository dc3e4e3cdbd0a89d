package models

import (
	"time"
)

// Account status values
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusDisabled  = "disabled"
)

// User is the slice of the identity record the security core reads and writes.
// The (TenantID, Email) pair is unique.
type User struct {
	ID                string
	TenantID          string
	Email             string
	Name              string
	PasswordHash      string
	Status            string
	LockedAt          *time.Time // Set together with LockedUntil
	LockedUntil       *time.Time // Temporary account lock expiration
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LockAccount marks the account locked until the given time.
func (u *User) LockAccount(at, until time.Time) {
	u.LockedAt = &at
	u.LockedUntil = &until
}

// UnlockAccount clears any lock fields.
func (u *User) UnlockAccount() {
	u.LockedAt = nil
	u.LockedUntil = nil
}

// UpdatePassword replaces the password hash and stamps the change time.
func (u *User) UpdatePassword(hash string, at time.Time) {
	u.PasswordHash = hash
	u.PasswordChangedAt = &at
}

// IsLockedAt reports whether the stored lock is still in force at now.
// An expired LockedUntil counts as unlocked even though the field is still set.
func (u *User) IsLockedAt(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
