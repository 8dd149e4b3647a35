package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xxiimcha/lk-web/internal/common"
	"github.com/xxiimcha/lk-web/internal/server/models"
)

type AccountRepository struct {
	s *Store
}

// taken reports whether another account already uses email or username.
func (r *AccountRepository) taken(selfID, email, username string) error {
	for id, a := range r.s.accounts {
		if id == selfID {
			continue
		}
		if email != "" && a.Email == email {
			return fmt.Errorf("%w: users_email_key", common.ErrorAlreadyExists)
		}
		if username != "" && a.Username == username {
			return fmt.Errorf("%w: users_username_key", common.ErrorAlreadyExists)
		}
	}
	return nil
}

func (r *AccountRepository) Create(_ context.Context, a *models.Account) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.taken("", a.Email, a.Username); err != nil {
		return nil, err
	}

	c := copyAccount(a)
	c.ID = uuid.NewString()
	if c.Role == "" {
		c.Role = models.RoleUser
	}
	c.CreatedAt = r.s.now()
	c.UpdatedAt = c.CreatedAt
	r.s.accounts[c.ID] = c

	a.ID, a.Role, a.CreatedAt, a.UpdatedAt = c.ID, c.Role, c.CreatedAt, c.UpdatedAt
	return a, nil
}

func (r *AccountRepository) GetByID(_ context.Context, id string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return copyAccount(a), nil
}

func (r *AccountRepository) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, a := range r.s.accounts {
		if a.Email == email {
			return copyAccount(a), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *AccountRepository) List(_ context.Context, role models.Role) ([]*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*models.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		if role != "" && a.Role != role {
			continue
		}
		out = append(out, copyAccount(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *AccountRepository) Update(_ context.Context, id string, u models.AccountUpdate) (*models.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if u.Empty() {
		return copyAccount(a), nil
	}
	if u.Email != nil {
		if err := r.taken(id, *u.Email, ""); err != nil {
			return nil, err
		}
	}

	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.Email != nil {
		a.Email = *u.Email
	}
	if u.PasswordHash != nil {
		a.PasswordHash = *u.PasswordHash
	}
	a.UpdatedAt = r.s.now()
	return copyAccount(a), nil
}

func (r *AccountRepository) Count(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.s.accounts)), nil
}

func (r *AccountRepository) SetOTP(_ context.Context, id, code string, expiresAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.OTP = &code
	a.OTPExpiresAt = &expiresAt
	a.OTPUsed = false
	return nil
}

func (r *AccountRepository) ClearOTP(_ context.Context, id, code string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok || a.OTP == nil || *a.OTP != code {
		return nil
	}
	a.OTP, a.OTPExpiresAt, a.OTPUsed = nil, nil, false
	return nil
}

func (r *AccountRepository) ConsumeOTP(_ context.Context, id, code string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[id]
	if !ok || a.OTP == nil || *a.OTP != code || a.OTPUsed {
		return false, nil
	}
	if a.OTPExpiresAt != nil && !a.OTPExpiresAt.After(now) {
		return false, nil
	}
	a.OTP, a.OTPExpiresAt, a.OTPUsed = nil, nil, true
	return true, nil
}

func (r *AccountRepository) PurgeExpiredOTPs(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, a := range r.s.accounts {
		if a.OTP == nil {
			continue
		}
		if a.OTPUsed || (a.OTPExpiresAt != nil && !a.OTPExpiresAt.After(now)) {
			a.OTP, a.OTPExpiresAt = nil, nil
			n++
		}
	}
	return n, nil
}
