package services

import (
	"context"
	"fmt"

	"github.com/xxiimcha/lk-web/internal/common"
	"github.com/xxiimcha/lk-web/internal/dbx"
	"github.com/xxiimcha/lk-web/internal/server/models"
	"github.com/xxiimcha/lk-web/internal/server/repositories/repomanager"
)

// RosterService serves the read-only dashboard views: the user list and the
// summary statistics.
type RosterService struct {
	store
}

func NewRosterService(conn dbx.Source, m repomanager.RepositoryManager) *RosterService {
	return &RosterService{store: store{conn: conn, repos: m}}
}

// ListUsers returns public profiles, optionally only those with role.
func (s *RosterService) ListUsers(ctx context.Context, role string) ([]models.PublicProfile, error) {
	var filter models.Role
	if role != "" {
		r, ok := models.ParseRole(role)
		if !ok {
			return nil, fmt.Errorf("%w: unknown role %q", common.ErrorValidation, role)
		}
		filter = r
	}

	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	accts, err := s.repos.Accounts(db).List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]models.PublicProfile, 0, len(accts))
	for _, a := range accts {
		out = append(out, a.Profile())
	}
	return out, nil
}

// Stats counts requests per status and users in one snapshot.
func (s *RosterService) Stats(ctx context.Context) (*models.Stats, error) {
	var st models.Stats
	err := s.readOnly(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		byStatus, err := s.repos.SeedRequests(tx).CountByStatus(ctx)
		if err != nil {
			return err
		}
		users, err := s.repos.Accounts(tx).Count(ctx)
		if err != nil {
			return err
		}

		st.PendingRequests = byStatus[models.StatusPending]
		st.ApprovedRequests = byStatus[models.StatusApproved]
		st.RejectedRequests = byStatus[models.StatusRejected]
		st.ReleasedRequests = byStatus[models.StatusReleased]
		for _, n := range byStatus {
			st.TotalRequests += n
		}
		st.TotalUsers = users
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}
