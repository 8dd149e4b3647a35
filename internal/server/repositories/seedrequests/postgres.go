package seedrequests

import (
	"context"
	"database/sql"

	"github.com/xxiimcha/lk-web/internal/dbx"
	"github.com/xxiimcha/lk-web/internal/server/models"
)

const columns = `id, user_id, seed_type, description, image_path, status, reject_reason, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(s scanner) (*models.SeedRequest, error) {
	var (
		r      models.SeedRequest
		status string
		image  sql.NullString
		reason sql.NullString
	)
	if err := s.Scan(&r.ID, &r.UserID, &r.SeedType, &r.Description, &image, &status, &reason, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.Status = models.Status(status)
	if image.Valid {
		r.ImagePath = &image.String
	}
	if reason.Valid {
		r.RejectReason = &reason.String
	}
	return &r, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func (p *PostgresRepository) Create(ctx context.Context, r *models.SeedRequest) (*models.SeedRequest, error) {
	status := r.Status
	if status == "" {
		status = models.StatusPending
	}

	query :=
		`INSERT INTO seed_requests (user_id, seed_type, description, image_path, status, reject_reason)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING ` + columns

	out, err := scanRequest(p.db.QueryRowContext(ctx, query,
		r.UserID, r.SeedType, r.Description, nullable(r.ImagePath), string(status), nullable(r.RejectReason)))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return out, nil
}

func (p *PostgresRepository) GetByID(ctx context.Context, id string) (*models.SeedRequest, error) {
	query := `SELECT ` + columns + ` FROM seed_requests WHERE id = $1`

	r, err := scanRequest(p.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return r, nil
}

func (p *PostgresRepository) List(ctx context.Context, status models.Status) ([]*models.SeedRequest, error) {
	query := `SELECT ` + columns + ` FROM seed_requests`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at, id`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	defer rows.Close()

	out := make([]*models.SeedRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, dbx.MapError(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError(err)
	}
	return out, nil
}

func (p *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to models.Status, reason *string) (*models.SeedRequest, error) {
	query :=
		`UPDATE seed_requests SET status = $1, reject_reason = $2
		 WHERE id = $3 AND status = $4
		 RETURNING ` + columns

	r, err := scanRequest(p.db.QueryRowContext(ctx, query, string(to), nullable(reason), id, string(from)))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return r, nil
}

func (p *PostgresRepository) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT status, count(*) FROM seed_requests GROUP BY status`)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	defer rows.Close()

	out := make(map[models.Status]int64, len(models.Statuses))
	for _, s := range models.Statuses {
		out[s] = 0
	}
	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, dbx.MapError(err)
		}
		out[models.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError(err)
	}
	return out, nil
}
