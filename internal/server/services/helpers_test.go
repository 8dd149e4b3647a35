package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xxiimcha/lk-web/internal/dbx"
	"github.com/xxiimcha/lk-web/internal/logging"
	"github.com/xxiimcha/lk-web/internal/server/config"
	"github.com/xxiimcha/lk-web/internal/server/models"
	"github.com/xxiimcha/lk-web/internal/server/notify"
	"github.com/xxiimcha/lk-web/internal/server/otp"
	"github.com/xxiimcha/lk-web/internal/server/password"
	"github.com/xxiimcha/lk-web/internal/server/repositories/memory"
	"github.com/xxiimcha/lk-web/internal/server/repositories/repomanager"
)

// --- fakes ---

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *recordingNotifier) messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.sent...)
}

type recordingObserver struct {
	mu          sync.Mutex
	auth        []string
	transitions []string
	purged      int64
}

func (o *recordingObserver) AuthEvent(event, outcome string) {
	o.mu.Lock()
	o.auth = append(o.auth, event+":"+outcome)
	o.mu.Unlock()
}

func (o *recordingObserver) Transition(to models.Status, outcome string) {
	o.mu.Lock()
	o.transitions = append(o.transitions, string(to)+":"+outcome)
	o.mu.Unlock()
}

func (o *recordingObserver) OTPsPurged(n int64) {
	o.mu.Lock()
	o.purged += n
	o.mu.Unlock()
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) error {
	return errors.Join(otp.ErrUnavailable, errors.New("dial tcp: refused"))
}
func (brokenLimiter) Reset(context.Context, string) error { return nil }

type fakeLinker struct{}

func (fakeLinker) URL(_ context.Context, path string) (string, error) {
	if path == "broken" {
		return "", errors.New("presign failed")
	}
	return "https://cdn.test/" + path, nil
}

// --- fixture ---

type fixture struct {
	store    *memory.Store
	repos    *repomanager.MemoryRepositoryManager
	conn     dbx.Source
	cfg      *config.Config
	hasher   *password.Bcrypt
	notifier *recordingNotifier
	observer *recordingObserver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	st := memory.NewStore()
	return &fixture{
		store:    st,
		repos:    repomanager.NewMemoryRepositoryManager(st),
		conn:     dbx.Fixed{},
		cfg:      cfg,
		hasher:   hasher,
		notifier: &recordingNotifier{},
		observer: &recordingObserver{},
	}
}

func (f *fixture) credentials(limiter otp.Limiter) *CredentialService {
	if limiter == nil {
		limiter = otp.NewMemoryLimiter(f.cfg.OTPMaxAttempts, f.cfg.OTPWindow)
	}
	s := NewCredentialService(f.conn, f.repos, f.cfg, f.hasher, f.notifier, limiter, logging.Nop{})
	s.SetObserver(f.observer)
	return s
}

func (f *fixture) requests(images ImageLinker) *RequestService {
	s := NewRequestService(f.conn, f.repos, f.cfg, f.notifier, images, logging.Nop{})
	s.SetObserver(f.observer)
	return s
}

func (f *fixture) addAccount(t *testing.T, name, email, pass string, role models.Role) *models.Account {
	t.Helper()
	hash, err := f.hasher.Hash(pass)
	require.NoError(t, err)

	a, err := f.store.Accounts().Create(context.Background(), &models.Account{
		Name:         name,
		Username:     name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) addRequest(t *testing.T, owner, seedType string, status models.Status, at time.Time) *models.SeedRequest {
	t.Helper()
	r := &models.SeedRequest{
		UserID:      owner,
		SeedType:    seedType,
		Description: seedType + " for the school garden",
		Status:      status,
		CreatedAt:   at,
	}
	if status == models.StatusRejected {
		reason := "out of stock"
		r.RejectReason = &reason
	}
	out, err := f.store.SeedRequests().Create(context.Background(), r)
	require.NoError(t, err)
	return out
}
