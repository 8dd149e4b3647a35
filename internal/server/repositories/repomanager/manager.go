package repomanager

import (
	"context"
	"database/sql"

	"github.com/xxiimcha/lk-web/internal/dbx"
	"github.com/xxiimcha/lk-web/internal/server/repositories/accounts"
	"github.com/xxiimcha/lk-web/internal/server/repositories/seedrequests"
)

// RepositoryManager vends repositories bound to a connection or
// transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	SeedRequests(db dbx.DBTX) seedrequests.Repository
	// RunInTx runs fn inside a transaction on db with the given options.
	RunInTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx dbx.DBTX) error) error
}
