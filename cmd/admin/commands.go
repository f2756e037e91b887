package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/noah-isme/edu-project-tracker/internal/models"
)

var readPasswordFunc = term.ReadPassword // mockable

type profileManager interface {
	Backfill(ctx context.Context) (int, error)
	Rollback(ctx context.Context) (int64, error)
}

type accountRegistrar interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.AccountInfo, error)
}

type deps struct {
	migrate  func(ctx context.Context, command string, args ...string) error
	profiles profileManager
	accounts accountRegistrar
	logger   *zap.Logger
}

type depsLoader func(ctx context.Context) (*deps, func(), error)

// withDeps resolves dependencies lazily so --help never touches the database.
func withDeps(load depsLoader, run func(cmd *cobra.Command, args []string, d *deps) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		d, cleanup, err := load(cmd.Context())
		if err != nil {
			return err
		}
		if cleanup != nil {
			defer cleanup()
		}
		if d.logger == nil {
			d.logger = zap.NewNop()
		}
		return run(cmd, args, d)
	}
}

func newRootCmd(load depsLoader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Maintenance commands for the project tracker",
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(out)
	root.AddCommand(newMigrateCmd(load), newProfilesCmd(load), newAccountsCmd(load))
	return root
}

func newMigrateCmd(load depsLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
	}
	for _, sub := range []struct{ name, short string }{
		{"up", "Apply all pending migrations"},
		{"down", "Roll back the most recent migration"},
		{"status", "Print the migration status"},
	} {
		command := sub.name
		cmd.AddCommand(&cobra.Command{
			Use:   command,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: withDeps(load, func(cmd *cobra.Command, _ []string, d *deps) error {
				if err := d.migrate(cmd.Context(), command); err != nil {
					return err
				}
				d.logger.Info("migrate finished", zap.String("command", command))
				fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", command)
				return nil
			}),
		})
	}
	return cmd
}

func newProfilesCmd(load depsLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage student profiles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "backfill",
		Short: "Create a student profile for every account lacking one",
		Args:  cobra.NoArgs,
		RunE: withDeps(load, func(cmd *cobra.Command, _ []string, d *deps) error {
			created, err := d.profiles.Backfill(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d student profiles\n", created)
			return nil
		}),
	})

	var confirm bool
	rollback := &cobra.Command{
		Use:   "rollback",
		Short: "Delete every student profile",
		Args:  cobra.NoArgs,
		RunE: withDeps(load, func(cmd *cobra.Command, _ []string, d *deps) error {
			if !confirm {
				return errors.New("refusing to delete student profiles without --yes")
			}
			deleted, err := d.profiles.Rollback(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d student profiles\n", deleted)
			return nil
		}),
	}
	rollback.Flags().BoolVar(&confirm, "yes", false, "confirm deletion")
	cmd.AddCommand(rollback)
	return cmd
}

func newAccountsCmd(load depsLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage login accounts",
	}

	var req models.RegisterRequest
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account; the password is prompted",
		Args:  cobra.NoArgs,
		RunE: withDeps(load, func(cmd *cobra.Command, _ []string, d *deps) error {
			fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
			pwd, err := readPasswordFunc(int(syscall.Stdin))
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			if len(pwd) == 0 {
				return errors.New("password must not be empty")
			}
			req.Password = string(pwd)

			info, err := d.accounts.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created account %d (%s)\n", info.ID, info.Username)
			if info.Student != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "student id %s\n", info.Student.StudentID)
			}
			return nil
		}),
	}
	create.Flags().StringVar(&req.Username, "username", "", "login name")
	create.Flags().StringVar(&req.Email, "email", "", "email address")
	create.Flags().StringVar(&req.FullName, "name", "", "full name")
	create.Flags().BoolVar(&req.IsStaff, "staff", false, "grant staff access")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("email")
	cmd.AddCommand(create)
	return cmd
}
