// Package server wires the dashboard backend together: storage, the
// credential gate, the request lifecycle, the HTTP API, the gRPC health
// endpoint and scheduled housekeeping.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/xxiimcha/lk-web/internal/dbx"
	"github.com/xxiimcha/lk-web/internal/logging"
	"github.com/xxiimcha/lk-web/internal/server/config"
	"github.com/xxiimcha/lk-web/internal/server/health"
	"github.com/xxiimcha/lk-web/internal/server/httpapi"
	"github.com/xxiimcha/lk-web/internal/server/images"
	"github.com/xxiimcha/lk-web/internal/server/metrics"
	"github.com/xxiimcha/lk-web/internal/server/notify"
	"github.com/xxiimcha/lk-web/internal/server/otp"
	"github.com/xxiimcha/lk-web/internal/server/password"
	"github.com/xxiimcha/lk-web/internal/server/repositories/memory"
	"github.com/xxiimcha/lk-web/internal/server/repositories/repomanager"
	"github.com/xxiimcha/lk-web/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	metrics *metrics.Metrics

	conn    dbx.Source
	pinger  storePinger
	closers []func() error

	api         *httpapi.API
	housekeeper *services.Housekeeper
}

// storePinger establishes the connection if needed and pings it.
type storePinger struct {
	conn   dbx.Source
	memory bool
}

func (p storePinger) Ping(ctx context.Context) error {
	if p.memory {
		return nil
	}
	db, err := p.conn.Conn(ctx)
	if err != nil {
		return err
	}
	return db.PingContext(ctx)
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, cfg.LogLevel)
	app := &App{config: cfg, logger: logger, metrics: metrics.New()}

	repos, err := app.initStore()
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	notifier := app.newNotifier()
	limiter, pruner := app.newOTPLimiter()

	var linker services.ImageLinker
	imgCfg := ImagesConfig(cfg)
	if imgCfg.Enabled() {
		linker = images.NewPresigner(imgCfg)
	}

	gate := services.NewCredentialService(app.conn, repos, cfg, hasher, notifier, limiter, logger)
	gate.SetObserver(app.metrics)
	reqs := services.NewRequestService(app.conn, repos, cfg, notifier, linker, logger)
	reqs.SetObserver(app.metrics)
	roster := services.NewRosterService(app.conn, repos)

	app.api = httpapi.New(cfg, logger, gate, reqs, roster, app.pinger, app.metrics)

	app.housekeeper = services.NewHousekeeper(app.conn, repos, logger)
	app.housekeeper.SetObserver(app.metrics)
	app.housekeeper.AddPruner(app.api.AuthLimiter())
	if pruner != nil {
		app.housekeeper.AddPruner(pruner)
	}

	return app, nil
}

func (app *App) initStore() (repomanager.RepositoryManager, error) {
	switch app.config.Store {
	case config.StoreMemory:
		app.conn = dbx.Fixed{}
		app.pinger = storePinger{memory: true}
		return repomanager.NewMemoryRepositoryManager(memory.NewStore()), nil
	case config.StorePostgres:
		repos := repomanager.NewPostgresRepositoryManager()
		connector := dbx.NewConnector(repomanager.DriverName, app.config.DatabaseDSN, repos.RunMigrations)
		app.conn = connector
		app.pinger = storePinger{conn: connector}
		app.closers = append(app.closers, connector.Close)
		return repos, nil
	default:
		return nil, fmt.Errorf("unknown store %q", app.config.Store)
	}
}

func (app *App) newNotifier() notify.Notifier {
	if app.config.Notifier == config.NotifierSMTP {
		return notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     app.config.SMTPHost,
			Port:     app.config.SMTPPort,
			Username: app.config.SMTPUser,
			Password: app.config.SMTPPassword,
			From:     app.config.SMTPFrom,
		})
	}
	return notify.NewLogNotifier(app.logger)
}

// newOTPLimiter shares attempt counts through redis when an address is
// configured and keeps them in process otherwise.
func (app *App) newOTPLimiter() (otp.Limiter, services.Pruner) {
	if app.config.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     app.config.RedisAddr,
			Password: app.config.RedisPassword,
		})
		app.closers = append(app.closers, rdb.Close)
		return otp.NewRedisLimiter(rdb, app.config.OTPMaxAttempts, app.config.OTPWindow), nil
	}
	l := otp.NewMemoryLimiter(app.config.OTPMaxAttempts, app.config.OTPWindow)
	return l, l
}

// ImagesConfig extracts the object storage settings.
func ImagesConfig(cfg *config.Config) images.Config {
	return images.Config{
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Endpoint:  cfg.S3Endpoint,
		Bucket:    cfg.S3Bucket,
		Expiry:    cfg.S3PresignTTL,
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.api.Handler(), app.config.ShutdownTimeout, app.logger)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHealthServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := health.NewServer(app.config.GRPCHealthAddr, app.pinger, health.DefaultInterval, app.logger)
	s.OnProbe(app.metrics.SetStoreUp)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc health server failed", "error", err)
		cancelFunc()
	}
}

// Run blocks until SIGINT/SIGTERM or until a server fails, then shuts
// everything down.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "store", app.config.Store, "notifier", app.config.Notifier)

	if err := app.housekeeper.Start(app.config.PurgeSchedule); err != nil {
		return err
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.GRPCHealthAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startHealthServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()
	app.housekeeper.Stop(stopCtx)

	var errs []error
	for _, c := range app.closers {
		errs = append(errs, c())
	}
	app.logger.Info(stopCtx, "App stopped")
	return errors.Join(errs...)
}
