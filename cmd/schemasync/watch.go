package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func (c *cli) watchCmd() *cobra.Command {
	var delay time.Duration
	cmd := &cobra.Command{
		Use:   "watch [name]",
		Short: "Generate a migration every time the entity declarations change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "changes"
			if len(args) > 0 {
				name = args[0]
			}
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if cfg.Entities == "" {
				return errors.New("no entity declarations: set entities in the configuration or pass --entities")
			}
			w := cmd.OutOrStdout()
			logger := c.logger()
			fmt.Fprintln(w, "watching", cfg.Entities)
			return watchFile(cmd.Context(), cfg.Entities, delay, logger, func() error {
				return c.generate(cmd.Context(), w, name)
			})
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", 500*time.Millisecond, "Quiet period after a change before generating")
	return cmd
}

// watchFile calls onChange once the file at path stopped changing for
// delay. It watches the parent directory so editors replacing the file are
// noticed. It returns when ctx is done.
func watchFile(ctx context.Context, path string, delay time.Duration, logger *slog.Logger, onChange func() error) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	timer := time.NewTimer(delay)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || name != target || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
				continue
			}
			timer.Reset(delay)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		case <-timer.C:
			if err := onChange(); err != nil {
				logger.Error("generate migration", "file", target, "error", err)
			}
		}
	}
}
