// Package memory keeps accounts and seed requests in process. It backs the
// service tests and the server's memory store mode.
package memory

import (
	"sync"
	"time"

	"github.com/xxiimcha/lk-web/internal/server/models"
)

// Store is safe for concurrent use. Every value handed out is a copy.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	requests map[string]*models.SeedRequest
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*models.Account),
		requests: make(map[string]*models.SeedRequest),
		now:      time.Now,
	}
}

// SetClock replaces the time source used for created/updated stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) Accounts() *AccountRepository {
	return &AccountRepository{s: s}
}

func (s *Store) SeedRequests() *SeedRequestRepository {
	return &SeedRequestRepository{s: s}
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyAccount(a *models.Account) *models.Account {
	c := *a
	c.OTP = copyString(a.OTP)
	c.OTPExpiresAt = copyTime(a.OTPExpiresAt)
	return &c
}

func copyRequest(r *models.SeedRequest) *models.SeedRequest {
	c := *r
	c.ImagePath = copyString(r.ImagePath)
	c.RejectReason = copyString(r.RejectReason)
	return &c
}
