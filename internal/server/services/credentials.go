package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xxiimcha/lk-web/internal/common"
	"github.com/xxiimcha/lk-web/internal/dbx"
	"github.com/xxiimcha/lk-web/internal/logging"
	"github.com/xxiimcha/lk-web/internal/server/auth"
	"github.com/xxiimcha/lk-web/internal/server/config"
	"github.com/xxiimcha/lk-web/internal/server/models"
	"github.com/xxiimcha/lk-web/internal/server/notify"
	"github.com/xxiimcha/lk-web/internal/server/otp"
	"github.com/xxiimcha/lk-web/internal/server/password"
	"github.com/xxiimcha/lk-web/internal/server/repositories/repomanager"
)

// MinPasswordLength applies to passwords set through profile updates.
const MinPasswordLength = 6

// TokenResult is what a successful gate step hands back to the client.
type TokenResult struct {
	Token string
	Role  models.Role
}

// ProfileChange is a profile update request. Nil fields are left alone.
type ProfileChange struct {
	Name     string
	Email    *string
	Password *string
}

// CredentialService authenticates administrators in two steps: email and
// password first, then an emailed one-time code. No state is held between
// the steps; each call re-reads the account.
type CredentialService struct {
	store
	hasher   Hasher
	notifier notify.Notifier
	limiter  otp.Limiter
	log      logging.Logger
	observer Observer

	secret   []byte
	tokenTTL time.Duration
	otpTTL   time.Duration

	newCode func() (string, error)
	now     func() time.Time
}

func NewCredentialService(conn dbx.Source, m repomanager.RepositoryManager, cfg *config.Config,
	hasher Hasher, notifier notify.Notifier, limiter otp.Limiter, log logging.Logger) *CredentialService {
	return &CredentialService{
		store:    store{conn: conn, repos: m},
		hasher:   hasher,
		notifier: notifier,
		limiter:  limiter,
		log:      log,
		observer: nopObserver{},
		secret:   []byte(cfg.SecretKey),
		tokenTTL: cfg.TokenTTL,
		otpTTL:   cfg.OTPTTL,
		newCode:  otp.NewCode,
		now:      time.Now,
	}
}

func (s *CredentialService) SetObserver(o Observer) {
	if o != nil {
		s.observer = o
	}
}

// Login checks email and password and returns a token that only unlocks the
// one-time-code step. Unknown email and wrong password fail the same way.
func (s *CredentialService) Login(ctx context.Context, email, pass string) (res *TokenResult, err error) {
	defer func() { s.observer.AuthEvent("login", common.Kind(err)) }()

	email = models.NormalizeEmail(email)
	if email == "" || pass == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrorValidation)
	}

	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	acct, err := s.repos.Accounts(db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.VerifyDummy(pass)
			return nil, common.ErrorInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(pass, acct.PasswordHash) {
		return nil, common.ErrorInvalidCredentials
	}
	s.upgradeHash(ctx, db, acct, pass)

	token, err := auth.GenerateToken(acct.ID, string(acct.Role), auth.StagePrimary, s.secret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &TokenResult{Token: token, Role: acct.Role}, nil
}

// rehasher is implemented by hashers that can tell a stored hash was made
// with weaker parameters than they use now.
type rehasher interface {
	NeedsUpgrade(encoded string) (bool, error)
}

// upgradeHash stores pass under the current hash parameters when the stored
// hash is weaker. Failures are only logged.
func (s *CredentialService) upgradeHash(ctx context.Context, db dbx.DBTX, acct *models.Account, pass string) {
	r, ok := s.hasher.(rehasher)
	if !ok {
		return
	}
	if stale, err := r.NeedsUpgrade(acct.PasswordHash); err != nil || !stale {
		return
	}

	hash, err := s.hasher.Hash(pass)
	if err == nil {
		_, err = s.repos.Accounts(db).Update(ctx, acct.ID, models.AccountUpdate{PasswordHash: &hash})
	}
	if err != nil {
		s.log.Warn(ctx, "password rehash failed", "user_id", acct.ID, "error", err)
		return
	}
	s.log.Info(ctx, "password hash upgraded", "user_id", acct.ID)
}

// IssueOTP stores a fresh code for the account and mails it. If the mail
// cannot be handed off the code is withdrawn again, so a stored code was
// always delivered to the notifier.
func (s *CredentialService) IssueOTP(ctx context.Context, email string) (err error) {
	defer func() { s.observer.AuthEvent("otp_issue", common.Kind(err)) }()

	email = models.NormalizeEmail(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", common.ErrorValidation)
	}

	db, err := s.db(ctx)
	if err != nil {
		return err
	}
	repo := s.repos.Accounts(db)

	acct, err := repo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := repo.SetOTP(ctx, acct.ID, code, s.now().Add(s.otpTTL)); err != nil {
		return err
	}

	msg := notify.Message{
		To:      acct.Email,
		Subject: common.OTPSubject,
		Body:    "Your OTP code is: " + code,
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.log.Error(ctx, "otp dispatch failed", "user_id", acct.ID, "error", err)
		if cerr := repo.ClearOTP(ctx, acct.ID, code); cerr != nil {
			s.log.Error(ctx, "otp withdraw failed", "user_id", acct.ID, "error", cerr)
		}
		return fmt.Errorf("%w: %v", common.ErrorNotificationFailure, err)
	}

	s.log.Info(ctx, "otp issued", "user_id", acct.ID)
	return nil
}

// VerifyOTP consumes the code and returns a session token. Every failure,
// including exhausted attempts, is reported as common.ErrorInvalidOtp.
func (s *CredentialService) VerifyOTP(ctx context.Context, email, code string) (res *TokenResult, err error) {
	defer func() { s.observer.AuthEvent("otp_verify", common.Kind(err)) }()

	email = models.NormalizeEmail(email)
	if email == "" || code == "" {
		return nil, fmt.Errorf("%w: email and otp are required", common.ErrorValidation)
	}

	if err := s.limiter.Allow(ctx, email); err != nil {
		if errors.Is(err, otp.ErrRateLimited) {
			s.log.Warn(ctx, "otp attempts exhausted", "email", email)
			return nil, common.ErrorInvalidOtp
		}
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}
	repo := s.repos.Accounts(db)

	acct, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorInvalidOtp
		}
		return nil, err
	}

	now := s.now()
	if !acct.OTPValid(code, now) {
		return nil, common.ErrorInvalidOtp
	}

	consumed, err := repo.ConsumeOTP(ctx, acct.ID, code, now)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, common.ErrorInvalidOtp
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		s.log.Warn(ctx, "otp limiter reset failed", "email", email, "error", err)
	}

	token, err := auth.GenerateToken(acct.ID, string(acct.Role), auth.StageSession, s.secret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.log.Info(ctx, "session issued", "user_id", acct.ID)
	return &TokenResult{Token: token, Role: acct.Role}, nil
}

// Authenticate checks a bearer token without touching the store. Only
// session-stage tokens pass.
func (s *CredentialService) Authenticate(token string) (*auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", common.ErrorUnauthorized)
	}

	claims, err := auth.ParseToken(token, s.secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorUnauthorized, err)
	}
	if claims.Stage != auth.StageSession {
		return nil, fmt.Errorf("%w: one-time code not verified", common.ErrorUnauthorized)
	}
	return claims, nil
}

// ResolveSession returns the profile of the token's account.
func (s *CredentialService) ResolveSession(ctx context.Context, token string) (*models.PublicProfile, error) {
	claims, err := s.Authenticate(token)
	if err != nil {
		return nil, err
	}

	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	acct, err := s.repos.Accounts(db).GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	p := acct.Profile()
	return &p, nil
}

// UpdateProfile changes the caller's own name, email or password.
func (s *CredentialService) UpdateProfile(ctx context.Context, token string, in ProfileChange) (*models.PublicProfile, error) {
	claims, err := s.Authenticate(token)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", common.ErrorValidation)
	}
	upd := models.AccountUpdate{Name: &name}

	if in.Email != nil {
		email := models.NormalizeEmail(*in.Email)
		if !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: invalid email", common.ErrorValidation)
		}
		upd.Email = &email
	}

	if in.Password != nil {
		if len(*in.Password) < MinPasswordLength {
			return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, MinPasswordLength)
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			if errors.Is(err, password.ErrTooLong) {
				return nil, fmt.Errorf("%w: %v", common.ErrorValidation, err)
			}
			return nil, fmt.Errorf("hash password: %w", err)
		}
		upd.PasswordHash = &hash
	}

	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	acct, err := s.repos.Accounts(db).Update(ctx, claims.UserID, upd)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, fmt.Errorf("%w: email already in use", common.ErrorValidation)
		}
		return nil, err
	}

	s.log.Info(ctx, "profile updated", "user_id", acct.ID, "password_changed", upd.PasswordHash != nil)
	p := acct.Profile()
	return &p, nil
}
