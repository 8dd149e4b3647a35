package dbx

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xxiimcha/lk-web/internal/common"
)

const (
	pgUniqueViolation  = "23505"
	pgCheckViolation   = "23514"
	pgInvalidTextInput = "22P02"
)

// MapError translates driver errors into the common sentinels. Unknown
// errors are wrapped as "db error".
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrorNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", common.ErrorAlreadyExists, pgErr.ConstraintName)
		case pgCheckViolation:
			return fmt.Errorf("%w: %s", common.ErrorValidation, pgErr.ConstraintName)
		case pgInvalidTextInput:
			return common.ErrorNotFound
		}
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.As(err, &connErr) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", common.ErrorStoreUnavailable, err)
	}

	return fmt.Errorf("db error: %w", err)
}
