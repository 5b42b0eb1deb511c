// Command admin is the School Cup operator CLI.
//
// Usage:
//
//	schoolcup-admin migrate
//	schoolcup-admin user create --email ana@school.example --name "Ana" --role admin
//	schoolcup-admin user passwd --email ana@school.example
//	schoolcup-admin requests list teams --status pending
//	schoolcup-admin requests approve teams 12
//	schoolcup-admin requests reject players 7 --reason "duplicate"
//	schoolcup-admin games start 42
//	schoolcup-admin seed modalities
//	schoolcup-admin maintenance run
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/schoolcup/internal/auth"
	"github.com/albapepper/schoolcup/internal/config"
	"github.com/albapepper/schoolcup/internal/db"
	"github.com/albapepper/schoolcup/internal/maintenance"
	"github.com/albapepper/schoolcup/internal/store"
	"github.com/albapepper/schoolcup/internal/tournament"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:          "schoolcup-admin",
		Short:        "School Cup operator CLI",
		SilenceUsage: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(userCmd())
	root.AddCommand(requestsCmd())
	root.AddCommand(gamesCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(maintenanceCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// migrate
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()
			cfg, err := config.LoadDatabaseOnly()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
				return err
			}
			logger.Info("Schema applied")
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// user
// --------------------------------------------------------------------------

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage console accounts",
	}
	cmd.AddCommand(userCreateCmd())
	cmd.AddCommand(userPasswdCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var email, name, role, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin or scorer account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != store.RoleAdmin && role != store.RoleScorer {
				return fmt.Errorf("role must be %q or %q", store.RoleAdmin, store.RoleScorer)
			}
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}
			return runDB(func(ctx context.Context, s *store.Store) error {
				a := store.Admin{Email: email, Name: name, Role: role, PassHash: hash}
				if err := s.CreateAdmin(ctx, &a); err != nil {
					if errors.Is(err, store.ErrConflict) {
						return fmt.Errorf("an account for %s already exists", email)
					}
					return err
				}
				logger.Info("Account created", "id", a.ID, "email", a.Email, "role", a.Role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&role, "role", store.RoleAdmin, "admin or scorer")
	cmd.Flags().StringVar(&password, "password", "", "Password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func userPasswdCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Reset the password of an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}
			return runDB(func(ctx context.Context, s *store.Store) error {
				if err := s.SetPassword(ctx, email, hash); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("no account for %s", email)
					}
					return err
				}
				logger.Info("Password updated", "email", email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Login email")
	cmd.Flags().StringVar(&password, "password", "", "Password (read from stdin when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// readPassword returns flag when set, otherwise the first line of stdin.
func readPassword(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// --------------------------------------------------------------------------
// requests
// --------------------------------------------------------------------------

func requestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Review public team and player signups",
	}
	cmd.AddCommand(requestsListCmd())
	cmd.AddCommand(requestsReviewCmd("approve", true))
	cmd.AddCommand(requestsReviewCmd("reject", false))
	return cmd
}

func requestsListCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:       "list teams|players",
		Short:     "List signup requests",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{store.RequestKindTeam, store.RequestKindPlayer},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDB(func(ctx context.Context, s *store.Store) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				defer tw.Flush()
				switch args[0] {
				case store.RequestKindTeam:
					reqs, err := s.ListTeamRequests(ctx, status)
					if err != nil {
						return err
					}
					fmt.Fprintln(tw, "ID\tNAME\tMODALITY\tCATEGORY\tCOACH\tSTATUS\tCREATED")
					for _, r := range reqs {
						fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%s\n",
							r.ID, r.Name, r.ModalityID, r.Category, r.CoachName, r.Status, r.CreatedAt.Format("2006-01-02 15:04"))
					}
				case store.RequestKindPlayer:
					reqs, err := s.ListPlayerRequests(ctx, status)
					if err != nil {
						return err
					}
					fmt.Fprintln(tw, "ID\tNAME\tJERSEY\tTEAM\tSTATUS\tCREATED")
					for _, r := range reqs {
						fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n",
							r.ID, r.Name, r.JerseyNumber, r.TeamID, r.Status, r.CreatedAt.Format("2006-01-02 15:04"))
					}
				default:
					return fmt.Errorf("kind must be %s or %s", store.RequestKindTeam, store.RequestKindPlayer)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", tournament.RequestPending, "pending, approved or rejected")
	return cmd
}

func requestsReviewCmd(verb string, approve bool) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   verb + " teams|players <id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a pending request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[1])
			}
			return runDB(func(ctx context.Context, s *store.Store) error {
				rev, err := s.ReviewRequest(ctx, args[0], id, approve, 0, reason)
				if err != nil {
					return err
				}
				if err := s.Audit(ctx, 0, "request."+rev.Status, fmt.Sprintf("kind=%s id=%d via cli", rev.Kind, id)); err != nil {
					logger.Warn("Audit write failed", "error", err)
				}
				logger.Info("Request reviewed", "kind", rev.Kind, "id", id, "status", rev.Status, "created_id", rev.CreatedID)
				return nil
			})
		},
	}
	if !approve {
		cmd.Flags().StringVar(&reason, "reason", "", "Reason shown to the applicant")
	}
	return cmd
}

// --------------------------------------------------------------------------
// games
// --------------------------------------------------------------------------

func gamesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Move games through their lifecycle",
	}
	cmd.AddCommand(gameStatusCmd("start", tournament.StatusLive))
	cmd.AddCommand(gameStatusCmd("finish", tournament.StatusFinished))
	cmd.AddCommand(gameStatusCmd("cancel", tournament.StatusCancelled))
	return cmd
}

func gameStatusCmd(verb, to string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: "Set a game " + to,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return runDB(func(ctx context.Context, s *store.Store) error {
				g, err := s.SetStatus(ctx, id, to)
				if err != nil {
					return err
				}
				logger.Info("Game updated", "id", g.ID, "status", g.Status,
					"home", g.HomeTeam, "away", g.AwayTeam, "score", fmt.Sprintf("%d-%d", g.HomeScore, g.AwayScore))
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// seed
// --------------------------------------------------------------------------

// defaultModalities are the disciplines of a standard school cup.
var defaultModalities = []tournament.Modality{
	{Name: "Vôlei", Kind: tournament.KindTeam, Sport: config.SportVolleyball, MinPlayers: 6, MaxPlayers: 12, Active: true},
	{Name: "Futsal", Kind: tournament.KindTeam, Sport: config.SportFutsal, MinPlayers: 5, MaxPlayers: 12, Active: true},
	{Name: "Tênis de Mesa", Kind: tournament.KindIndividual, Sport: config.SportTableTennis, MinPlayers: 1, MaxPlayers: 2, Active: true},
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert reference data",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "modalities",
		Short: "Create the default modalities, skipping existing names",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDB(func(ctx context.Context, s *store.Store) error {
				created := 0
				for _, m := range defaultModalities {
					err := s.CreateModality(ctx, &m)
					switch {
					case errors.Is(err, store.ErrConflict):
						logger.Info("Modality exists, skipped", "name", m.Name)
					case err != nil:
						return err
					default:
						created++
						logger.Info("Modality created", "id", m.ID, "name", m.Name, "sport", m.Sport)
					}
				}
				logger.Info("Seed finished", "created", created, "total", len(defaultModalities))
				return nil
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// maintenance
// --------------------------------------------------------------------------

func maintenanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Run maintenance tasks by hand",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Close an expired signup window, purge old requests, report stale live games",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDB(func(ctx context.Context, s *store.Store) error {
				return maintenance.RunAll(ctx, s, logger)
			})
		},
	})
	return cmd
}

// runDB handles config loading, DB connection, and context cancellation.
func runDB(fn func(ctx context.Context, s *store.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, store.New(pool.Pool))
}
