package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/xxiimcha/lk-web/internal/common"
)

// Source hands out the shared database handle.
type Source interface {
	Conn(ctx context.Context) (*sql.DB, error)
}

// SetupFunc runs once on a freshly opened handle, e.g. to apply migrations.
type SetupFunc func(ctx context.Context, db *sql.DB) error

// Connector opens the database on first use and reuses the handle for the
// life of the process. Conn is idempotent: once a connection is
// established further calls return it without touching the server. A failed
// attempt leaves the connector empty so the next call tries again.
type Connector struct {
	driver string
	dsn    string
	setup  SetupFunc
	open   func(driverName, dataSourceName string) (*sql.DB, error)

	mu sync.Mutex
	db *sql.DB
}

func NewConnector(driver, dsn string, setup SetupFunc) *Connector {
	return &Connector{driver: driver, dsn: dsn, setup: setup, open: sql.Open}
}

func (c *Connector) Conn(ctx context.Context) (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return c.db, nil
	}

	db, err := c.open(c.driver, c.dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", common.ErrorStoreUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %v", common.ErrorStoreUnavailable, err)
	}
	if c.setup != nil {
		if err := c.setup(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: setup: %v", common.ErrorStoreUnavailable, err)
		}
	}

	c.db = db
	return db, nil
}

// Ping checks an already established connection. It never opens one.
func (c *Connector) Ping(ctx context.Context) error {
	c.mu.Lock()
	db := c.db
	c.mu.Unlock()

	if db == nil {
		return fmt.Errorf("%w: not connected", common.ErrorStoreUnavailable)
	}
	return db.PingContext(ctx)
}

func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Fixed is a Source that always returns the same handle (nil included).
// Used by tests and by the in-memory store, which ignores the handle.
type Fixed struct {
	DB *sql.DB
}

func (f Fixed) Conn(context.Context) (*sql.DB, error) {
	return f.DB, nil
}
