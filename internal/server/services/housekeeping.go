package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xxiimcha/lk-web/internal/dbx"
	"github.com/xxiimcha/lk-web/internal/logging"
	"github.com/xxiimcha/lk-web/internal/server/repositories/repomanager"
)

// Pruner is implemented by in-process limiters that can drop idle keys.
type Pruner interface {
	Prune() int
}

// Housekeeper periodically clears one-time codes that can no longer be
// used and prunes idle limiter state.
type Housekeeper struct {
	store
	log      logging.Logger
	observer Observer
	pruners  []Pruner
	timeout  time.Duration
	now      func() time.Time

	cron *cron.Cron
}

func NewHousekeeper(conn dbx.Source, m repomanager.RepositoryManager, log logging.Logger) *Housekeeper {
	return &Housekeeper{
		store:    store{conn: conn, repos: m},
		log:      log,
		observer: nopObserver{},
		timeout:  30 * time.Second,
		now:      time.Now,
	}
}

func (h *Housekeeper) SetObserver(o Observer) {
	if o != nil {
		h.observer = o
	}
}

// AddPruner registers limiter state to prune on every run.
func (h *Housekeeper) AddPruner(p Pruner) {
	h.pruners = append(h.pruners, p)
}

// PurgeOTPs clears expired or used codes and returns how many were cleared.
func (h *Housekeeper) PurgeOTPs(ctx context.Context) (int64, error) {
	db, err := h.db(ctx)
	if err != nil {
		return 0, err
	}

	n, err := h.repos.Accounts(db).PurgeExpiredOTPs(ctx, h.now())
	if err != nil {
		return 0, err
	}
	h.observer.OTPsPurged(n)
	return n, nil
}

// Run performs one housekeeping pass.
func (h *Housekeeper) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	n, err := h.PurgeOTPs(ctx)
	if err != nil {
		h.log.Error(ctx, "otp purge failed", "error", err)
	} else if n > 0 {
		h.log.Info(ctx, "otp codes purged", "count", n)
	}

	pruned := 0
	for _, p := range h.pruners {
		pruned += p.Prune()
	}
	if pruned > 0 {
		h.log.Debug(ctx, "limiter keys pruned", "count", pruned)
	}
}

// Start schedules Run using a standard cron spec or a descriptor such as
// "@every 10m". Runs never overlap.
func (h *Housekeeper) Start(schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() { h.Run(context.Background()) }); err != nil {
		return fmt.Errorf("housekeeping schedule %q: %w", schedule, err)
	}
	h.cron = c
	c.Start()
	return nil
}

// Stop halts the schedule and waits for a running pass to finish or ctx to
// end.
func (h *Housekeeper) Stop(ctx context.Context) {
	if h.cron == nil {
		return
	}
	select {
	case <-h.cron.Stop().Done():
	case <-ctx.Done():
	}
}
