package admin

import (
	"bufio"
	"context"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/xxiimcha/lk-web/internal/dbx"
	"github.com/xxiimcha/lk-web/internal/server"
	"github.com/xxiimcha/lk-web/internal/server/config"
	"github.com/xxiimcha/lk-web/internal/server/images"
	"github.com/xxiimcha/lk-web/internal/server/password"
	"github.com/xxiimcha/lk-web/internal/server/repositories/repomanager"
)

// Options are the persistent flags shared by every command.
type Options struct {
	ConfigFile string
	DSN        string
}

func (o *Options) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFile, "config", "c", "", "path to a JSON or YAML config file")
	fs.StringVarP(&o.DSN, "dsn", "d", "", "PostgreSQL DSN, overrides the config")
}

// Opener builds an Admin for one command invocation. The returned func
// releases whatever the Admin holds.
type Opener func(ctx context.Context, opts *Options, cmd *cobra.Command) (*Admin, func() error, error)

// OpenPostgres is the production Opener. Migrations are not applied
// implicitly; use the migrate command.
func OpenPostgres(_ context.Context, opts *Options, cmd *cobra.Command) (*Admin, func() error, error) {
	var args []string
	if opts.ConfigFile != "" {
		args = append(args, "-c", opts.ConfigFile)
	}
	if opts.DSN != "" {
		args = append(args, "-d", opts.DSN)
	}
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return nil, nil, err
	}

	hasher, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, nil, err
	}

	conn := dbx.NewConnector(repomanager.DriverName, cfg.DatabaseDSN, nil)
	a := New(conn, repomanager.NewPostgresRepositoryManager(), hasher, cmd.OutOrStdout())

	if ic := server.ImagesConfig(cfg); ic.Enabled() {
		a.SetUploader(images.NewPresigner(ic), http.DefaultClient)
	}
	return a, conn.Close, nil
}

// NewRootCommand assembles the lkadmin command tree.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &Options{}

	root := &cobra.Command{
		Use:           "lkadmin",
		Short:         "Operator tooling for the Luntiang-Kamay backend",
		SilenceUsage: true,
	}
	opts.bind(root.PersistentFlags())

	// run opens an Admin, calls fn and releases the Admin afterwards.
	run := func(cmd *cobra.Command, fn func(ctx context.Context, a *Admin) error) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, release, err := open(ctx, opts, cmd)
		if err != nil {
			return err
		}
		defer func() { _ = release() }()
		return fn(ctx, a)
	}

	root.AddCommand(
		newMigrateCmd(run),
		newCreateUserCmd(run),
		newSetPasswordCmd(run),
		newRequestsCmd(run),
	)
	return root
}

type runner func(cmd *cobra.Command, fn func(ctx context.Context, a *Admin) error) error

func newMigrateCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, a *Admin) error {
				return a.Migrate(ctx)
			})
		},
	}
}

func newCreateUserCmd(run runner) *cobra.Command {
	var u NewUser

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an account, prompting for anything not given as a flag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			w := cmd.OutOrStdout()

			var err error
			if u.Name == "" {
				if u.Name, err = promptLine(in, w, "Full name"); err != nil {
					return err
				}
			}
			if u.Username == "" {
				if u.Username, err = promptLine(in, w, "Username"); err != nil {
					return err
				}
			}
			if u.Email == "" {
				if u.Email, err = promptLine(in, w, "Email"); err != nil {
					return err
				}
			}
			if u.Password == "" {
				if u.Password, err = promptPassword(w); err != nil {
					return err
				}
			}

			return run(cmd, func(ctx context.Context, a *Admin) error {
				_, err := a.CreateUser(ctx, u)
				return err
			})
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&u.Name, "name", "", "full name")
	fs.StringVar(&u.Username, "username", "", "login name")
	fs.StringVar(&u.Email, "email", "", "email address")
	fs.StringVar(&u.Password, "password", "", "password, prompted for when empty")
	fs.StringVar(&u.Role, "role", "user", "role: user or admin")
	return cmd
}

func newSetPasswordCmd(run runner) *cobra.Command {
	var email, pw string

	cmd := &cobra.Command{
		Use:   "set-password",
		Short: "Replace the password of an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pw == "" {
				var err error
				if pw, err = promptPassword(cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return run(cmd, func(ctx context.Context, a *Admin) error {
				return a.SetPassword(ctx, email, pw)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&pw, "password", "", "new password, prompted for when empty")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRequestsCmd(run runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Inspect and seed requests",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List requests, optionally by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, a *Admin) error {
				return a.ListRequests(ctx, status)
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "pending, approved, rejected or released")

	var in NewRequest
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a pending request for an existing account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, func(ctx context.Context, a *Admin) error {
				_, err := a.AddRequest(ctx, in)
				return err
			})
		},
	}
	fs := add.Flags()
	fs.StringVar(&in.OwnerEmail, "owner", "", "owner email")
	fs.StringVar(&in.SeedType, "seed-type", "", "seed type")
	fs.StringVar(&in.Description, "description", "", "free text description")
	fs.StringVar(&in.ImageFile, "image", "", "local image to upload")
	_ = add.MarkFlagRequired("owner")

	cmd.AddCommand(list, add)
	return cmd
}
