package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/syssam/schemasync"
	"github.com/syssam/schemasync/config"
	"github.com/syssam/schemasync/dialect/sql"
)

// errWriter receives logs and diagnostics.
var errWriter io.Writer = os.Stderr

// cli holds the global flags.
type cli struct {
	configPath string
	entities   string
	debug      bool
	stats      bool
	lockWait   time.Duration
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "schemasync",
		Short: "Synchronize database schemas with declared entities",
		Long: `schemasync compares declared entities with a live database and either applies
the differences directly or writes them as versioned up/down migrations.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "schemasync.yaml", "Configuration file")
	root.PersistentFlags().StringVarP(&c.entities, "entities", "e", "", "Entity declarations file (default: entities of the configuration)")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "Log every statement sent to the database")
	root.PersistentFlags().BoolVar(&c.stats, "stats", false, "Print statement counters on exit")
	root.PersistentFlags().DurationVar(&c.lockWait, "lock-timeout", 0, "Maximum wait for locks held by other sessions (default: lock_timeout of the configuration)")
	root.AddCommand(
		c.planCmd(),
		c.syncCmd(),
		c.generateCmd(),
		c.migrateCmd(),
		c.dbCmd(),
		c.watchCmd(),
	)
	return root
}

func (c *cli) logger() *slog.Logger {
	level := slog.LevelInfo
	if c.debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(errWriter, &slog.HandlerOptions{Level: level}))
}

func (c *cli) config() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.entities != "" {
		cfg.Entities = c.entities
	}
	if c.lockWait > 0 {
		cfg.LockTimeout = c.lockWait
	}
	return cfg, nil
}

// withClient opens a client on the configured database, registers the
// declared entities when register is set, and runs fn.
func (c *cli) withClient(ctx context.Context, w io.Writer, register bool, fn func(*schemasync.Client) error) (rerr error) {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	logger := c.logger()
	opts := []schemasync.Option{schemasync.Logger(logger)}
	if c.debug {
		opts = append(opts, schemasync.Debug())
	}
	if c.stats {
		opts = append(opts, schemasync.Stats(sql.WithSlowQueryLog(logger)))
	}
	client, err := schemasync.Open(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if s, ok := client.Stats(); ok {
			fmt.Fprintln(w, "stats:", s)
		}
		rerr = errors.Join(rerr, client.Close())
	}()
	if register {
		if cfg.Entities == "" {
			return errors.New("no entity declarations: set entities in the configuration or pass --entities")
		}
		entities, err := config.LoadEntities(cfg.Entities)
		if err != nil {
			return err
		}
		if err := client.Register(entities...); err != nil {
			return err
		}
	}
	return fn(client)
}

func (c *cli) planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the changes of one synchronization pass without applying them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			return c.withClient(cmd.Context(), w, true, func(client *schemasync.Client) error {
				p, err := client.Plan(cmd.Context())
				if err != nil {
					return err
				}
				for _, warn := range p.Report.Warnings {
					fmt.Fprintln(w, "warning:", warn)
				}
				if len(p.Changes) == 0 {
					fmt.Fprintln(w, "no changes")
					return nil
				}
				for _, change := range p.Changes {
					fmt.Fprintln(w, "-", change)
				}
				stmts, err := p.Statements()
				if err != nil {
					return err
				}
				fmt.Fprintln(w)
				for _, s := range stmts {
					fmt.Fprintf(w, "%s;\n", s)
				}
				return nil
			})
		},
	}
}

func (c *cli) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Apply the changes bringing the database in sync with the entities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			return c.withClient(cmd.Context(), w, true, func(client *schemasync.Client) error {
				if err := client.Sync(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(w, "database is in sync")
				return nil
			})
		},
	}
}

func (c *cli) generateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [name]",
		Short: "Write the pending changes as a versioned migration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "changes"
			if len(args) > 0 {
				name = args[0]
			}
			return c.generate(cmd.Context(), cmd.OutOrStdout(), name)
		},
	}
}

func (c *cli) generate(ctx context.Context, w io.Writer, name string) error {
	return c.withClient(ctx, w, true, func(client *schemasync.Client) error {
		m, err := client.CreateMigration(ctx, name)
		if err != nil {
			return err
		}
		if m == nil {
			fmt.Fprintln(w, "no changes")
			return nil
		}
		fmt.Fprintln(w, "created", m)
		return nil
	})
}

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or list versioned migrations",
	}
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			return c.withClient(cmd.Context(), w, false, func(client *schemasync.Client) error {
				applied, err := client.Migrate(cmd.Context())
				for _, m := range applied {
					fmt.Fprintln(w, "applied", m.ID())
				}
				if err == nil && len(applied) == 0 {
					fmt.Fprintln(w, "no pending migrations")
				}
				return err
			})
		},
	}
	down := &cobra.Command{
		Use:   "down [n]",
		Short: "Roll back the n most recent migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n := 1
			if len(args) > 0 {
				var err error
				if n, err = strconv.Atoi(args[0]); err != nil || n < 1 {
					return fmt.Errorf("invalid migration count %q", args[0])
				}
			}
			w := cmd.OutOrStdout()
			return c.withClient(cmd.Context(), w, false, func(client *schemasync.Client) error {
				reverted, err := client.Rollback(cmd.Context(), n)
				for _, m := range reverted {
					fmt.Fprintln(w, "reverted", m.ID())
				}
				if err == nil && len(reverted) == 0 {
					fmt.Fprintln(w, "no applied migrations")
				}
				return err
			})
		},
	}
	status := &cobra.Command{
		Use:   "status",
		Short: "List migrations with their applied state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			return c.withClient(cmd.Context(), w, false, func(client *schemasync.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tNAME\tSTATE")
				for _, s := range status {
					state := "pending"
					if s.Applied {
						state = "applied"
						if !s.AppliedAt.IsZero() {
							state += " " + s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Migration.Version, s.Migration.Name, state)
				}
				return tw.Flush()
			})
		},
	}
	cmd.AddCommand(up, down, status)
	return cmd
}

func (c *cli) dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Create or drop the configured database",
	}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create the database if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if err := schemasync.CreateDatabase(cmd.Context(), cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "created database", name(cfg))
			return nil
		},
	}
	drop := &cobra.Command{
		Use:   "drop",
		Short: "Drop the database if it exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if err := schemasync.DropDatabase(cmd.Context(), cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "dropped database", name(cfg))
			return nil
		},
	}
	cmd.AddCommand(create, drop)
	return cmd
}

func name(cfg *config.Config) string {
	if cfg.Database != "" {
		return cfg.Database
	}
	return cfg.Path
}
