package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/xxiimcha/lk-web/internal/dbx"
	"github.com/xxiimcha/lk-web/internal/server/models"
)

const columns = `id, name, username, email, password_hash, role, otp, otp_expires_at, otp_used, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*models.Account, error) {
	var (
		a         models.Account
		role      string
		otp       sql.NullString
		otpExpiry sql.NullTime
	)
	err := s.Scan(&a.ID, &a.Name, &a.Username, &a.Email, &a.PasswordHash, &role,
		&otp, &otpExpiry, &a.OTPUsed, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Role = models.Role(role)
	if otp.Valid {
		a.OTP = &otp.String
	}
	if otpExpiry.Valid {
		a.OTPExpiresAt = &otpExpiry.Time
	}
	return &a, nil
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO users (name, username, email, password_hash, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, a.Name, a.Username, a.Email, a.PasswordHash, string(a.Role)).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}

	return a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + columns + ` FROM users WHERE id = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return a, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + columns + ` FROM users WHERE email = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return a, nil
}

func (r *PostgresRepository) List(ctx context.Context, role models.Role) ([]*models.Account, error) {
	query := `SELECT ` + columns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role = $1`
		args = append(args, string(role))
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	defer rows.Close()

	out := make([]*models.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, dbx.MapError(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError(err)
	}

	return out, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id string, u models.AccountUpdate) (*models.Account, error) {
	if u.Empty() {
		return r.GetByID(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Email != nil {
		add("email", *u.Email)
	}
	if u.PasswordHash != nil {
		add("password_hash", *u.PasswordHash)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s, updated_at = now() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), columns)

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return a, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&n); err != nil {
		return 0, dbx.MapError(err)
	}
	return n, nil
}

func (r *PostgresRepository) SetOTP(ctx context.Context, id, code string, expiresAt time.Time) error {
	query :=
		`UPDATE users SET otp = $1, otp_expires_at = $2, otp_used = FALSE
		 WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, code, expiresAt, id)
	if err != nil {
		return dbx.MapError(err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) ClearOTP(ctx context.Context, id, code string) error {
	query :=
		`UPDATE users SET otp = NULL, otp_expires_at = NULL, otp_used = FALSE
		 WHERE id = $1 AND otp = $2`

	if _, err := r.db.ExecContext(ctx, query, id, code); err != nil {
		return dbx.MapError(err)
	}
	return nil
}

func (r *PostgresRepository) ConsumeOTP(ctx context.Context, id, code string, now time.Time) (bool, error) {
	query :=
		`UPDATE users SET otp = NULL, otp_expires_at = NULL, otp_used = TRUE
		 WHERE id = $1 AND otp = $2 AND otp_used = FALSE
		   AND (otp_expires_at IS NULL OR otp_expires_at > $3)`

	res, err := r.db.ExecContext(ctx, query, id, code, now)
	if err != nil {
		return false, dbx.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, dbx.MapError(err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) PurgeExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	query :=
		`UPDATE users SET otp = NULL, otp_expires_at = NULL
		 WHERE otp IS NOT NULL AND (otp_used OR otp_expires_at <= $1)`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, dbx.MapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, dbx.MapError(err)
	}
	return n, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbx.MapError(err)
	}
	if n == 0 {
		return dbx.MapError(sql.ErrNoRows)
	}
	return nil
}
