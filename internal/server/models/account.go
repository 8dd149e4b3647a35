// Package models defines server-side data models persisted in the store and
// the public shapes returned to dashboard clients.
package models

import (
	"crypto/subtle"
	"strings"
	"time"
)

// Role is checked at the authorization boundary of each operation.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole accepts the stored spelling of a role only.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleUser:
		return Role(s), true
	}
	return "", false
}

// Account is a dashboard or program user. PasswordHash and the one-time-code
// slot never leave the server; use Profile for anything client-facing.
type Account struct {
	ID           string
	Name         string
	Username     string
	Email        string
	PasswordHash string
	Role         Role

	// OTP is the pending one-time code, nil when none was issued or the
	// last one was consumed.
	OTP          *string
	OTPExpiresAt *time.Time
	OTPUsed      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicProfile is an account without its secrets.
type PublicProfile struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a *Account) Profile() PublicProfile {
	return PublicProfile{
		ID:        a.ID,
		Name:      a.Name,
		Username:  a.Username,
		Email:     a.Email,
		Role:      a.Role,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// OTPValid reports whether code matches an unused, unexpired stored code.
func (a *Account) OTPValid(code string, now time.Time) bool {
	if a.OTP == nil || a.OTPUsed {
		return false
	}
	if a.OTPExpiresAt != nil && !now.Before(*a.OTPExpiresAt) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*a.OTP), []byte(code)) == 1
}

// AccountUpdate is a partial update; nil fields are left untouched.
type AccountUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
}

func (u AccountUpdate) Empty() bool {
	return u.Name == nil && u.Email == nil && u.PasswordHash == nil
}

// NormalizeEmail is applied to every email before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
