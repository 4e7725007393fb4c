package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgnsrekt/listen/internal/cache"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var errNoBacking = errors.New("no persistent cache configured (cache.backing is none)")

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the audio cache",
		Args:  cobra.NoArgs,
	}

	cacheStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show how much audio is cached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBacking(cmd.Context(), func(ctx context.Context, b cache.Backing) error {
				usage, err := b.Usage(ctx)
				if err != nil {
					return fmt.Errorf("unable to read cache usage: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s clips, %s\n",
					humanize.Comma(usage.Items),
					humanize.IBytes(uint64(max(0, usage.Bytes))), //nolint:gosec
				)
				return nil
			})
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete all cached audio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBacking(cmd.Context(), func(ctx context.Context, b cache.Backing) error {
				if err := b.Clear(ctx); err != nil {
					return fmt.Errorf("unable to clear cache: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
				return nil
			})
		},
	}
)

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}

// withBacking opens the configured persistent tier for fn.
func withBacking(ctx context.Context, fn func(context.Context, cache.Backing) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := openBacking(cfg.Cache)
	if err != nil {
		return err
	}
	if b == nil {
		return errNoBacking
	}
	defer b.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return fn(ctx, b)
}
