package repomanager

import (
	"context"
	"database/sql"

	"github.com/xxiimcha/lk-web/internal/dbx"
	"github.com/xxiimcha/lk-web/internal/server/repositories/accounts"
	"github.com/xxiimcha/lk-web/internal/server/repositories/memory"
	"github.com/xxiimcha/lk-web/internal/server/repositories/seedrequests"
)

// MemoryRepositoryManager serves every repository from one in-process
// store and ignores the handles it is given.
type MemoryRepositoryManager struct {
	store *memory.Store
}

func NewMemoryRepositoryManager(store *memory.Store) *MemoryRepositoryManager {
	if store == nil {
		store = memory.NewStore()
	}
	return &MemoryRepositoryManager{store: store}
}

func (m *MemoryRepositoryManager) Store() *memory.Store {
	return m.store
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *MemoryRepositoryManager) Accounts(dbx.DBTX) accounts.Repository {
	return m.store.Accounts()
}

func (m *MemoryRepositoryManager) SeedRequests(dbx.DBTX) seedrequests.Repository {
	return m.store.SeedRequests()
}

// RunInTx calls fn directly; the store has no transactions.
func (m *MemoryRepositoryManager) RunInTx(ctx context.Context, _ *sql.DB, _ *sql.TxOptions, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return fn(ctx, nil)
}
