// Package httpapi is the JSON-over-HTTP surface of the dashboard backend.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xxiimcha/lk-web/internal/logging"
	"github.com/xxiimcha/lk-web/internal/server/auth"
	"github.com/xxiimcha/lk-web/internal/server/config"
	"github.com/xxiimcha/lk-web/internal/server/metrics"
	"github.com/xxiimcha/lk-web/internal/server/models"
	"github.com/xxiimcha/lk-web/internal/server/services"
)

// Gate is the two-step credential check.
type Gate interface {
	Login(ctx context.Context, email, password string) (*services.TokenResult, error)
	IssueOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (*services.TokenResult, error)
	Authenticate(token string) (*auth.Claims, error)
	ResolveSession(ctx context.Context, token string) (*models.PublicProfile, error)
	UpdateProfile(ctx context.Context, token string, in services.ProfileChange) (*models.PublicProfile, error)
}

// Lifecycle reads and transitions seed requests.
type Lifecycle interface {
	List(ctx context.Context, status string) ([]*models.RequestWithOwner, error)
	Get(ctx context.Context, id string) (*models.RequestWithOwner, error)
	Transition(ctx context.Context, id, target, reason string) (*models.SeedRequest, error)
}

type Roster interface {
	ListUsers(ctx context.Context, role string) ([]models.PublicProfile, error)
	Stats(ctx context.Context) (*models.Stats, error)
}

// Pinger reports whether the store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type API struct {
	gate     Gate
	requests Lifecycle
	roster   Roster
	store    Pinger
	metrics  *metrics.Metrics
	log      logging.Logger

	corsOrigin  string
	authLimiter *RateLimiter
}

func New(cfg *config.Config, log logging.Logger, gate Gate, requests Lifecycle, roster Roster, store Pinger, m *metrics.Metrics) *API {
	return &API{
		gate:        gate,
		requests:    requests,
		roster:      roster,
		store:       store,
		metrics:     m,
		log:         log.With("module", "http_api"),
		corsOrigin:  cfg.CORSOrigin,
		authLimiter: NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst),
	}
}

// AuthLimiter is the per-client limiter guarding the unauthenticated auth
// routes. Housekeeping prunes it.
func (a *API) AuthLimiter() *RateLimiter {
	return a.authLimiter
}

// Handler builds the complete middleware chain and router.
func (a *API) Handler() http.Handler {
	r := mux.NewRouter()
	if a.metrics != nil {
		r.Use(a.metrics.Middleware)
		r.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/health", a.health).Methods(http.MethodGet)
	r.HandleFunc("/ready", a.ready).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	open := api.PathPrefix("/auth").Subrouter()
	open.Use(a.authLimiter.Handler)
	open.HandleFunc("/login", a.login).Methods(http.MethodPost)
	open.HandleFunc("/send-otp", a.sendOTP).Methods(http.MethodPost)
	open.HandleFunc("/verify-otp", a.verifyOTP).Methods(http.MethodPost)

	session := api.PathPrefix("/auth").Subrouter()
	session.Use(a.requireSession(""))
	session.HandleFunc("/me", a.me).Methods(http.MethodGet)
	session.HandleFunc("/update-profile", a.updateProfile).Methods(http.MethodPut)

	admin := api.NewRoute().Subrouter()
	admin.Use(a.requireSession(models.RoleAdmin))
	admin.HandleFunc("/seedrequests", a.listRequests).Methods(http.MethodGet)
	admin.HandleFunc("/seedrequests", a.patchRequest).Methods(http.MethodPatch)
	admin.HandleFunc("/seedrequests/{id}", a.getRequest).Methods(http.MethodGet)
	admin.HandleFunc("/seedrequests/{id}", a.putRequest).Methods(http.MethodPut)
	admin.HandleFunc("/users", a.listUsers).Methods(http.MethodGet)
	admin.HandleFunc("/stats", a.stats).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return a.recoverPanics(a.logRequests(a.cors(r)))
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (a *API) ready(w http.ResponseWriter, r *http.Request) {
	if a.store != nil {
		if err := a.store.Ping(r.Context()); err != nil {
			a.log.Warn(r.Context(), "store not ready", "error", err)
			writeStatus(w, http.StatusServiceUnavailable, "Store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
