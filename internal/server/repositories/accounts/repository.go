package accounts

import (
	"context"
	"time"

	"github.com/xxiimcha/lk-web/internal/server/models"
)

// Repository stores accounts. Emails are expected to be normalized by the
// caller. Lookups that match nothing return common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, a *models.Account) (*models.Account, error)
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	// List returns accounts ordered by creation time. An empty role lists
	// everyone.
	List(ctx context.Context, role models.Role) ([]*models.Account, error)
	Update(ctx context.Context, id string, u models.AccountUpdate) (*models.Account, error)
	Count(ctx context.Context) (int64, error)

	// SetOTP overwrites any pending code.
	SetOTP(ctx context.Context, id, code string, expiresAt time.Time) error
	// ClearOTP drops the pending code if it is still code.
	ClearOTP(ctx context.Context, id, code string) error
	// ConsumeOTP marks code used if it is still pending, unused and not
	// expired at now. It reports whether this call consumed it.
	ConsumeOTP(ctx context.Context, id, code string, now time.Time) (bool, error)
	// PurgeExpiredOTPs clears codes that expired before now or were used.
	PurgeExpiredOTPs(ctx context.Context, now time.Time) (int64, error)
}
