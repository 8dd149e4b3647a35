package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/xxiimcha/lk-web/internal/common"
	"github.com/xxiimcha/lk-web/internal/dbx"
	"github.com/xxiimcha/lk-web/internal/logging"
	"github.com/xxiimcha/lk-web/internal/server/config"
	"github.com/xxiimcha/lk-web/internal/server/models"
	"github.com/xxiimcha/lk-web/internal/server/notify"
	"github.com/xxiimcha/lk-web/internal/server/repositories/accounts"
	"github.com/xxiimcha/lk-web/internal/server/repositories/repomanager"
)

// OwnerSubject is the subject of the mail sent to a request's owner after
// its status changed.
const OwnerSubject = "Luntiang-Kamay seed request update"

// RequestService drives the seed request lifecycle. Status only moves along
// models.Edges and every change is a compare-and-swap on the prior status.
type RequestService struct {
	store
	notifier     notify.Notifier
	images       ImageLinker
	log          logging.Logger
	observer     Observer
	notifyOwners bool
}

func NewRequestService(conn dbx.Source, m repomanager.RepositoryManager, cfg *config.Config,
	notifier notify.Notifier, images ImageLinker, log logging.Logger) *RequestService {
	return &RequestService{
		store:        store{conn: conn, repos: m},
		notifier:     notifier,
		images:       images,
		log:          log,
		observer:     nopObserver{},
		notifyOwners: cfg.NotifyOwners,
	}
}

func (s *RequestService) SetObserver(o Observer) {
	if o != nil {
		s.observer = o
	}
}

// List returns every request, or only those with the given status, joined
// with its owner.
func (s *RequestService) List(ctx context.Context, status string) ([]*models.RequestWithOwner, error) {
	var filter models.Status
	if status != "" {
		st, ok := models.ParseStatus(status)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", common.ErrorValidation, status)
		}
		filter = st
	}

	var out []*models.RequestWithOwner
	err := s.readOnly(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		reqs, err := s.repos.SeedRequests(tx).List(ctx, filter)
		if err != nil {
			return err
		}
		out, err = s.join(ctx, s.repos.Accounts(tx), reqs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a single request with its owner. A malformed id is reported
// as not found.
func (s *RequestService) Get(ctx context.Context, id string) (*models.RequestWithOwner, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	var out *models.RequestWithOwner
	err := s.readOnly(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		req, err := s.repos.SeedRequests(tx).GetByID(ctx, id)
		if err != nil {
			return err
		}
		joined, err := s.join(ctx, s.repos.Accounts(tx), []*models.SeedRequest{req})
		if err != nil {
			return err
		}
		out = joined[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Transition moves a request to target. reason is required, and kept
// trimmed, only when rejecting; any other target clears it.
func (s *RequestService) Transition(ctx context.Context, id, target, reason string) (res *models.SeedRequest, err error) {
	to, ok := models.ParseStatus(target)
	defer func() { s.observer.Transition(to, common.Kind(err)) }()

	if _, perr := uuid.Parse(id); perr != nil {
		return nil, fmt.Errorf("%w: malformed request id", common.ErrorValidation)
	}
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrorValidation, target)
	}

	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	repo := s.repos.SeedRequests(db)

	cur, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cur.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", common.ErrorInvalidTransition, cur.Status, to)
	}

	var why *string
	if to == models.StatusRejected {
		r := strings.TrimSpace(reason)
		if r == "" {
			return nil, fmt.Errorf("%w: reason is required", common.ErrorValidation)
		}
		why = &r
	}

	updated, err := repo.UpdateStatus(ctx, id, cur.Status, to, why)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		// Lost the race: either the record vanished or its status moved on.
		if _, gerr := repo.GetByID(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, fmt.Errorf("%w: status changed concurrently", common.ErrorInvalidTransition)
	}

	s.log.Info(ctx, "request transitioned", "request_id", id, "from", cur.Status, "to", to)
	s.notifyOwner(ctx, db, updated)
	return updated, nil
}

// notifyOwner mails the owner about the new status. Failures are only
// logged.
func (s *RequestService) notifyOwner(ctx context.Context, db dbx.DBTX, req *models.SeedRequest) {
	if !s.notifyOwners {
		return
	}

	owner, err := s.repos.Accounts(db).GetByID(ctx, req.UserID)
	if err != nil {
		s.log.Warn(ctx, "owner lookup failed", "request_id", req.ID, "error", err)
		return
	}

	body := fmt.Sprintf("Your %s seed request is now %s.", req.SeedType, req.Status)
	if req.RejectReason != nil {
		body += "\nReason: " + *req.RejectReason
	}
	msg := notify.Message{To: owner.Email, Subject: OwnerSubject, Body: body}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.log.Warn(ctx, "owner notification failed", "request_id", req.ID, "error", err)
	}
}

// join attaches owner profiles and image links. Owners are looked up once
// each; an owner that does not resolve leaves User nil.
func (s *RequestService) join(ctx context.Context, accts accounts.Repository, reqs []*models.SeedRequest) ([]*models.RequestWithOwner, error) {
	owners := make(map[string]*models.PublicProfile)
	out := make([]*models.RequestWithOwner, 0, len(reqs))

	for _, r := range reqs {
		owner, seen := owners[r.UserID]
		if !seen {
			a, err := accts.GetByID(ctx, r.UserID)
			switch {
			case err == nil:
				p := a.Profile()
				owner = &p
			case errors.Is(err, common.ErrorNotFound):
			default:
				return nil, err
			}
			owners[r.UserID] = owner
		}

		item := &models.RequestWithOwner{SeedRequest: *r, User: owner}
		if r.ImagePath != nil && s.images != nil {
			link, err := s.images.URL(ctx, *r.ImagePath)
			if err != nil {
				s.log.Warn(ctx, "image link failed", "request_id", r.ID, "error", err)
			} else {
				item.ImageURL = link
			}
		}
		out = append(out, item)
	}
	return out, nil
}
