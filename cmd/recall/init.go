package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/recall/pkg/cache"
	"github.com/odvcencio/recall/pkg/config"
	"github.com/odvcencio/recall/pkg/paths"
	"github.com/odvcencio/recall/pkg/queue"
	"github.com/odvcencio/recall/pkg/worklog"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config file if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := paths.ConfigPath()
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "config already exists at %s\n", path)
				return nil
			}
			if err := config.Save(config.DefaultConfig()); err != nil {
				return fmt.Errorf("write default config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote default config to %s\n", path)
			return nil
		},
	}
}

func newResetCmd() *cobra.Command {
	var keepIdentity bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear cached context and the pending message queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity := cache.NewIdentityCache(paths.IdentityCachePath())
			q := queue.New(paths.QueuePath(), identity)
			if err := q.Clear(); err != nil {
				return fmt.Errorf("clear queue: %w", err)
			}

			targets := []string{paths.ContextCachePath(), paths.GitStatePath()}
			if !keepIdentity {
				targets = append(targets, paths.IdentityCachePath())
			}
			for _, path := range targets {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("remove %s: %w", path, err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cleared cached context and pending queue")
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepIdentity, "keep-identity", false, "keep cached workspace/peer/session ids")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show data locations, cache freshness, and queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, _ := os.Getwd()
			cfg, err := config.Load(cwd)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "data dir:    %s\n", paths.DataDir())
			fmt.Fprintf(out, "service:     %s\n", cfg.Service.BaseURL)
			fmt.Fprintf(out, "tier:        %s (compressed=%v)\n", cfg.Context.Tier, cfg.Context.Compressed)
			fmt.Fprintf(out, "context ttl: %s\n", cfg.ContextTTL())

			ctxCache := cache.NewContextCache(paths.ContextCachePath(), cfg.ContextTTL(), cfg.Cache.RefreshThreshold)
			if ctxCache.IsStale() {
				fmt.Fprintln(out, "context:     stale (next session-start refetches)")
			} else {
				fmt.Fprintln(out, "context:     fresh")
			}

			identity := cache.NewIdentityCache(paths.IdentityCachePath())
			q := queue.New(paths.QueuePath(), identity)
			fmt.Fprintf(out, "queue:       %d pending for %s\n", len(q.Pending(cwd)), cwd)

			wl := worklog.New(paths.WorkLogPath(), cfg.WorkLog.MaxEntries)
			if text := wl.Load(); text == "" {
				fmt.Fprintln(out, "work log:    empty")
			} else {
				fmt.Fprintf(out, "work log:    %d bytes at %s\n", len(text), wl.Path())
			}
			return nil
		},
	}
}
