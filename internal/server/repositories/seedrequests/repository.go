package seedrequests

import (
	"context"

	"github.com/xxiimcha/lk-web/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, r *models.SeedRequest) (*models.SeedRequest, error)
	GetByID(ctx context.Context, id string) (*models.SeedRequest, error)
	// List returns requests ordered by created_at then id. An empty status
	// lists all of them.
	List(ctx context.Context, status models.Status) ([]*models.SeedRequest, error)
	// UpdateStatus moves the request from one status to another only if it
	// is still in from. When nothing matched it returns common.ErrorNotFound
	// and leaves the record untouched.
	UpdateStatus(ctx context.Context, id string, from, to models.Status, reason *string) (*models.SeedRequest, error)
	// CountByStatus returns a count for every status, zero included.
	CountByStatus(ctx context.Context) (map[models.Status]int64, error)
}
