// Package cachecmder provides the cache command for inspecting and clearing
// the embedding cache.
package cachecmder

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/callctx/api/client"
	"github.com/papercomputeco/callctx/pkg/cliui"
	"github.com/papercomputeco/callctx/pkg/config"
	"github.com/papercomputeco/callctx/pkg/embeddings/service"
	"github.com/papercomputeco/callctx/pkg/engine"
	"github.com/papercomputeco/callctx/pkg/logger"
)

const keyWidth = 12

type cacheCommander struct {
	local       bool
	apiTarget   string
	cacheTarget string
}

var cacheFlagKeys = []string{
	config.FlagAPITarget,
	config.FlagCacheTarget,
}

const cacheLongDesc string = `Inspect or clear the embedding cache.

By default the commands talk to a running callctx server. Use --local to open
the configured cache directly.

Examples:
  callctx cache stats
  callctx cache clear
  callctx cache clear --prefix embedding: --local`

const cacheShortDesc string = "Inspect or clear the embedding cache"

func NewCacheCmd() *cobra.Command {
	cmder := &cacheCommander{}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: cacheShortDesc,
		Long:  cacheLongDesc,
	}

	cmd.PersistentFlags().BoolVar(&cmder.local, "local", false, "Open the local cache instead of calling the API")
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagCacheTarget, &cmder.cacheTarget)

	cmd.AddCommand(cmder.newStatsCmd())
	cmd.AddCommand(cmder.newClearCmd())

	return cmd
}

func (c *cacheCommander) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache and backend statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var stats *service.Stats
			err := c.with(cmd, func(ctx context.Context, remote *client.Client, eng *engine.Engine) error {
				if remote != nil {
					var err error
					stats, err = remote.Stats(ctx)
					return err
				}
				s := eng.Embeddings.Stats(ctx)
				stats = &s
				return nil
			})
			if err != nil {
				return err
			}

			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

func (c *cacheCommander) newClearCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached embeddings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var removed int64
			err := c.with(cmd, func(ctx context.Context, remote *client.Client, eng *engine.Engine) error {
				if remote != nil {
					var err error
					removed, err = remote.ClearCache(ctx, prefix)
					return err
				}
				removed = eng.Embeddings.ClearCache(ctx, prefix)
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Removed %s cached embeddings\n",
				cliui.SuccessMark,
				cliui.ValueStyle.Render(fmt.Sprintf("%d", removed)),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Only remove keys under this prefix (default: the whole namespace)")
	return cmd
}

// with runs fn against either the API client or a local engine.
func (c *cacheCommander) with(cmd *cobra.Command, fn func(context.Context, *client.Client, *engine.Engine) error) error {
	debug, err := cmd.Flags().GetBool("debug")
	if err != nil {
		return fmt.Errorf("could not get debug flag: %w", err)
	}
	configDir, _ := cmd.Flags().GetString("config-dir")

	cfg, err := config.Resolve(cmd, configDir, cacheFlagKeys...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()
	if !c.local {
		remote, err := client.New(cfg.Client.APITarget)
		if err != nil {
			return err
		}
		return fn(ctx, remote, nil)
	}

	log := logger.Nop()
	if debug {
		log = logger.New(logger.WithDebug(true), logger.WithPretty(true), logger.WithWriter(cmd.ErrOrStderr()))
	}

	// Only the cache is needed.
	cfg.VectorStore.Provider = "memory"
	eng, err := engine.Open(ctx, cfg, engine.Options{ConfigDir: configDir}, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	return fn(ctx, nil, eng)
}

func printStats(w io.Writer, s *service.Stats) {
	fmt.Fprintln(w)
	cliui.KeyValue(w, keyWidth, "model", s.Model)
	cliui.KeyValue(w, keyWidth, "cache", fmt.Sprintf("%s (%s)", s.Cache.Backend, s.Cache.Health))
	cliui.KeyValue(w, keyWidth, "namespace", s.Cache.Namespace)
	cliui.KeyValue(w, keyWidth, "keys", fmt.Sprintf("%d", s.TotalKeys))
	cliui.KeyValue(w, keyWidth, "hits", fmt.Sprintf("%d", s.Cache.Hits))
	cliui.KeyValue(w, keyWidth, "misses", fmt.Sprintf("%d", s.Cache.Misses))
	cliui.KeyValue(w, keyWidth, "ttl", fmt.Sprintf("%ds", s.Cache.TTLSeconds))
	fmt.Fprintln(w)

	for _, h := range s.Backends {
		var err error
		if !h.Healthy {
			err = errors.New(h.LastError)
		}
		fmt.Fprintf(w, "  %s %s %s\n",
			cliui.Mark(err),
			cliui.StepStyle.Render(h.Name),
			cliui.DimStyle.Render(fmt.Sprintf("%d ok, %d failed", h.Successes, h.Failures)),
		)
	}
	fmt.Fprintln(w)
}
