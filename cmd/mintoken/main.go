package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"media-converter/internal/database"
	"media-converter/internal/identity"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	// Default timeout for database operations
	defaultTimeout = 30 * time.Second
	// Default database directory path
	defaultDatabaseDir = "/data/db"
	databaseFile       = "converter.db"
	defaultTTL         = 24 * time.Hour
)

// app carries the process environment so commands can be tested.
type app struct {
	out        io.Writer
	getenv     func(string) string
	readSecret func() ([]byte, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{
		out:        os.Stdout,
		getenv:     os.Getenv,
		readSecret: promptSecret,
	}

	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "mintoken",
		Short:        "Issue and inspect media converter identity tokens",
		SilenceUsage: true,
	}
	root.SetOut(a.out)
	root.AddCommand(newSignCmd(a), newVerifyCmd(a), newStatusCmd(a))
	return root
}

func newSignCmd(a *app) *cobra.Command {
	var tierName string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "sign <user-id>",
		Short: "Sign a token for a user",
		Long: `Sign an identity token for a user. The token is accepted by the server
as a Bearer token or in the auth_token cookie.

Examples:
  mintoken sign alice
  mintoken sign ops --tier admin --ttl 1h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, ok := identity.ParseTier(tierName)
			if !ok || tier == identity.TierGuest {
				return fmt.Errorf("invalid tier %q (want user or admin)", tierName)
			}
			if ttl <= 0 {
				return fmt.Errorf("ttl must be positive, got %v", ttl)
			}
			userID := strings.TrimSpace(args[0])
			if userID == "" {
				return errors.New("user id is empty")
			}

			secret, err := a.secret()
			if err != nil {
				return err
			}

			token, err := identity.Sign(secret, userID, tier, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&tierName, "tier", string(identity.TierUser), "tier to grant (user or admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", defaultTTL, "token lifetime")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Check a token and show the identity it names",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := a.secret()
			if err != nil {
				return err
			}

			id, err := identity.NewResolver(secret, false).Verify(strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:  %s\n", id.UserID)
			fmt.Fprintf(out, "Tier:  %s\n", id.Tier)
			fmt.Fprintf(out, "Quota: %s\n", id.Key)
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show recorded conversions and the last sweep run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			databaseDir := a.getenv("DATABASE_DIR")
			if databaseDir == "" {
				databaseDir = defaultDatabaseDir
			}

			db, err := database.New(ctx, filepath.Join(databaseDir, databaseFile))
			if err != nil {
				return fmt.Errorf("failed to open database (DATABASE_DIR=%s): %w", databaseDir, err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
				}
			}()

			count, err := db.CountHistory(ctx, "")
			if err != nil {
				return fmt.Errorf("failed to count conversions: %w", err)
			}
			last, err := db.GetLastSweepRun(ctx)
			if err != nil {
				return fmt.Errorf("failed to read last sweep: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Conversions recorded: %d\n", count)
			if last.IsZero() {
				fmt.Fprintln(out, "Last sweep:           never")
			} else {
				fmt.Fprintf(out, "Last sweep:           %s\n", last.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}

// secret returns JWT_SECRET, prompting for it when unset.
func (a *app) secret() (string, error) {
	if s := a.getenv("JWT_SECRET"); s != "" {
		return s, nil
	}
	raw, err := a.readSecret()
	if err != nil {
		return "", err
	}
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return "", errors.New("signing secret is empty")
	}
	return s, nil
}

func promptSecret() ([]byte, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // stdin fd fits in int
	if !term.IsTerminal(fd) {
		return nil, errors.New("JWT_SECRET is not set and stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, "JWT secret: ")
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("error reading secret: %w", err)
	}
	return secret, nil
}
