// Package services contains server-side business logic: the two-step
// credential gate, the seed request lifecycle, roster and statistics
// reads, and scheduled housekeeping.
package services

import (
	"context"
	"database/sql"

	"github.com/xxiimcha/lk-web/internal/dbx"
	"github.com/xxiimcha/lk-web/internal/server/models"
	"github.com/xxiimcha/lk-web/internal/server/repositories/repomanager"
)

// Hasher hashes and verifies account passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
	// VerifyDummy spends the same effort as Verify and always fails.
	VerifyDummy(password string) bool
}

// ImageLinker turns a stored image path into a link for the dashboard.
type ImageLinker interface {
	URL(ctx context.Context, path string) (string, error)
}

// Observer receives business outcomes, typically to feed metrics. outcome
// is common.Kind of the operation's error.
type Observer interface {
	AuthEvent(event, outcome string)
	Transition(to models.Status, outcome string)
	OTPsPurged(n int64)
}

type nopObserver struct{}

func (nopObserver) AuthEvent(string, string)         {}
func (nopObserver) Transition(models.Status, string) {}
func (nopObserver) OTPsPurged(int64)                 {}

// store bundles the connection source and repository manager every service
// needs.
type store struct {
	conn  dbx.Source
	repos repomanager.RepositoryManager
}

func (s store) db(ctx context.Context) (*sql.DB, error) {
	return s.conn.Conn(ctx)
}

func (s store) readOnly(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	return s.repos.RunInTx(ctx, db, dbx.Snapshot, fn)
}
