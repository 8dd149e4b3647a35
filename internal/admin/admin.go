// Package admin implements the operator command line: account bootstrap,
// password resets, request inspection and schema migration.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/xxiimcha/lk-web/internal/common"
	"github.com/xxiimcha/lk-web/internal/dbx"
	"github.com/xxiimcha/lk-web/internal/netx"
	"github.com/xxiimcha/lk-web/internal/server/models"
	"github.com/xxiimcha/lk-web/internal/server/repositories/repomanager"
	"github.com/xxiimcha/lk-web/internal/server/services"
)

// Uploader hands out presigned upload links for new images.
type Uploader interface {
	UploadURL(ctx context.Context, key, contentType string) (string, error)
}

// putObject is a seam for netx.PutPresigned.
var putObject = netx.PutPresigned

type Admin struct {
	conn   dbx.Source
	repos  repomanager.RepositoryManager
	hasher services.Hasher
	out    io.Writer
	now    func() time.Time

	uploader Uploader
	client   *http.Client
}

func New(conn dbx.Source, repos repomanager.RepositoryManager, hasher services.Hasher, out io.Writer) *Admin {
	return &Admin{conn: conn, repos: repos, hasher: hasher, out: out, now: time.Now}
}

// SetUploader enables image uploads for AddRequest.
func (a *Admin) SetUploader(u Uploader, client *http.Client) {
	a.uploader = u
	a.client = client
}

type NewUser struct {
	Name     string
	Username string
	Email    string
	Password string
	Role     string
}

func (u *NewUser) normalize() error {
	u.Name = strings.TrimSpace(u.Name)
	u.Username = strings.TrimSpace(u.Username)
	u.Email = models.NormalizeEmail(u.Email)

	var errs []error
	if u.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if u.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if !strings.Contains(u.Email, "@") {
		errs = append(errs, errors.New("a valid email is required"))
	}
	if len(u.Password) < services.MinPasswordLength {
		errs = append(errs, fmt.Errorf("password must be at least %d characters", services.MinPasswordLength))
	}
	if u.Role == "" {
		u.Role = string(models.RoleUser)
	}
	if _, ok := models.ParseRole(u.Role); !ok {
		errs = append(errs, fmt.Errorf("unknown role %q", u.Role))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return nil
}

func (a *Admin) CreateUser(ctx context.Context, u NewUser) (*models.Account, error) {
	if err := u.normalize(); err != nil {
		return nil, err
	}

	hash, err := a.hasher.Hash(u.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	db, err := a.conn.Conn(ctx)
	if err != nil {
		return nil, err
	}

	acct, err := a.repos.Accounts(db).Create(ctx, &models.Account{
		Name:         u.Name,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: hash,
		Role:         models.Role(u.Role),
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "created %s %s (%s)\n", acct.Role, acct.Email, acct.ID)
	return acct, nil
}

// SetPassword replaces the password of the account with email.
func (a *Admin) SetPassword(ctx context.Context, email, password string) error {
	email = models.NormalizeEmail(email)
	if len(password) < services.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, services.MinPasswordLength)
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	db, err := a.conn.Conn(ctx)
	if err != nil {
		return err
	}
	repo := a.repos.Accounts(db)

	acct, err := repo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("%s: %w", email, err)
	}
	if _, err := repo.Update(ctx, acct.ID, models.AccountUpdate{PasswordHash: &hash}); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "password updated for %s\n", email)
	return nil
}

// ListRequests prints requests as a table, oldest first.
func (a *Admin) ListRequests(ctx context.Context, status string) error {
	var filter models.Status
	if status != "" {
		st, ok := models.ParseStatus(status)
		if !ok {
			return fmt.Errorf("%w: unknown status %q", common.ErrorValidation, status)
		}
		filter = st
	}

	db, err := a.conn.Conn(ctx)
	if err != nil {
		return err
	}

	reqs, err := a.repos.SeedRequests(db).List(ctx, filter)
	if err != nil {
		return err
	}

	owners := make(map[string]string)
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSEED\tOWNER\tCREATED\tREASON")
	for _, r := range reqs {
		owner, ok := owners[r.UserID]
		if !ok {
			owner = "-"
			if acct, err := a.repos.Accounts(db).GetByID(ctx, r.UserID); err == nil {
				owner = acct.Email
			}
			owners[r.UserID] = owner
		}
		reason := ""
		if r.RejectReason != nil {
			reason = *r.RejectReason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Status, r.SeedType, owner, humanize.RelTime(r.CreatedAt, a.now(), "ago", "from now"), reason)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s request(s)\n", humanize.Comma(int64(len(reqs))))
	return nil
}

type NewRequest struct {
	OwnerEmail  string
	SeedType    string
	Description string
	// ImageFile is a local file uploaded to object storage. Optional.
	ImageFile   string
}

// AddRequest records a pending request on behalf of an existing account.
func (a *Admin) AddRequest(ctx context.Context, in NewRequest) (*models.SeedRequest, error) {
	in.SeedType = strings.TrimSpace(in.SeedType)
	in.Description = strings.TrimSpace(in.Description)
	if in.SeedType == "" || in.Description == "" {
		return nil, fmt.Errorf("%w: seed type and description are required", common.ErrorValidation)
	}

	db, err := a.conn.Conn(ctx)
	if err != nil {
		return nil, err
	}

	owner, err := a.repos.Accounts(db).GetByEmail(ctx, models.NormalizeEmail(in.OwnerEmail))
	if err != nil {
		return nil, fmt.Errorf("owner %s: %w", in.OwnerEmail, err)
	}

	req := &models.SeedRequest{
		UserID:      owner.ID,
		SeedType:    in.SeedType,
		Description: in.Description,
		Status:      models.StatusPending,
	}
	if in.ImageFile != "" {
		key, err := a.upload(ctx, in.ImageFile)
		if err != nil {
			return nil, err
		}
		req.ImagePath = &key
	}

	out, err := a.repos.SeedRequests(db).Create(ctx, req)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "created request %s for %s\n", out.ID, owner.Email)
	return out, nil
}

func (a *Admin) upload(ctx context.Context, file string) (string, error) {
	if a.uploader == nil {
		return "", errors.New("object storage is not configured")
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(file))
	key := "seedrequests/" + uuid.NewString() + ext
	contentType := mime.TypeByExtension(ext)

	url, err := a.uploader.UploadURL(ctx, key, contentType)
	if err != nil {
		return "", err
	}
	if err := putObject(ctx, a.client, url, contentType, data); err != nil {
		return "", err
	}

	fmt.Fprintf(a.out, "uploaded %s (%s)\n", key, humanize.Bytes(uint64(len(data))))
	return key, nil
}

// Migrate applies pending schema migrations.
func (a *Admin) Migrate(ctx context.Context) error {
	db, err := a.conn.Conn(ctx)
	if err != nil {
		return err
	}
	if err := a.repos.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	fmt.Fprintln(a.out, "migrations applied")
	return nil
}
