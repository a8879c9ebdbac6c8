// Package embedcmder provides the embed command, which runs a text through
// the local embedding chain.
package embedcmder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/callctx/pkg/cliui"
	"github.com/papercomputeco/callctx/pkg/config"
	"github.com/papercomputeco/callctx/pkg/embeddings"
	"github.com/papercomputeco/callctx/pkg/engine"
	"github.com/papercomputeco/callctx/pkg/logger"
	"github.com/papercomputeco/callctx/pkg/textutil"
)

const (
	previewValues = 8
	previewText   = 60
)

type embedCommander struct {
	noCache bool
	asJSON  bool

	remoteTarget string
	localGPU     bool
	model        string
	dimensions   uint
	cacheTarget  string
}

var embedFlagKeys = []string{
	config.FlagRemoteTarget,
	config.FlagLocalGPU,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagCacheTarget,
}

const embedLongDesc string = `Embed a text through the local backend chain.

The text is normalized, looked up in the embedding cache and, on a miss,
embedded by the first healthy backend. The output shows which backends were
tried and a preview of the vector.

Examples:
  callctx embed "customer asked about a refund"
  callctx embed "customer asked about a refund" --json
  callctx embed "hello" --no-cache --remote-target http://gpu-box:8000`

const embedShortDesc string = "Embed a text"

func NewEmbedCmd() *cobra.Command {
	cmder := &embedCommander{}

	cmd := &cobra.Command{
		Use:   "embed <text>",
		Short: embedShortDesc,
		Long:  embedLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			configDir, _ := cmd.Flags().GetString("config-dir")

			cfg, err := config.Resolve(cmd, configDir, embedFlagKeys...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			// Embedding never touches stored owners.
			cfg.VectorStore.Provider = "memory"

			log := logger.Nop()
			if debug {
				log = logger.New(logger.WithDebug(true), logger.WithPretty(true), logger.WithWriter(cmd.ErrOrStderr()))
			}

			eng, err := engine.Open(cmd.Context(), cfg, engine.Options{ConfigDir: configDir}, log)
			if err != nil {
				return err
			}
			defer eng.Close()

			text := strings.Join(args, " ")
			start := time.Now()
			vec, err := eng.Embeddings.Generate(cmd.Context(), text, !cmder.noCache)
			if err != nil {
				return fmt.Errorf("embedding text: %w", err)
			}

			if cmder.asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"model":      eng.Embeddings.Model(),
					"dimensions": len(vec),
					"embedding":  vec,
				})
			}

			printEmbedding(cmd.OutOrStdout(), text, eng.Embeddings.Model(), vec, time.Since(start))
			printBackends(cmd, eng)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cmder.noCache, "no-cache", false, "Bypass the embedding cache")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the full vector as JSON")
	config.AddStringFlag(cmd, config.Flags, config.FlagRemoteTarget, &cmder.remoteTarget)
	config.AddBoolFlag(cmd, config.Flags, config.FlagLocalGPU, &cmder.localGPU)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.model)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.dimensions)
	config.AddStringFlag(cmd, config.Flags, config.FlagCacheTarget, &cmder.cacheTarget)

	return cmd
}

func printEmbedding(w io.Writer, text, model string, vec embeddings.Vector, took time.Duration) {
	n := min(previewValues, len(vec))
	parts := make([]string, n)
	for i := range n {
		parts[i] = fmt.Sprintf("%.4f", vec[i])
	}
	preview := "[" + strings.Join(parts, ", ")
	if len(vec) > n {
		preview += ", ..."
	}
	preview += "]"

	fmt.Fprintln(w)
	cliui.KeyValue(w, 12, "text", textutil.Truncate(strings.Join(strings.Fields(text), " "), previewText))
	cliui.KeyValue(w, 12, "model", model)
	cliui.KeyValue(w, 12, "dimensions", fmt.Sprintf("%d", len(vec)))
	cliui.KeyValue(w, 12, "took", cliui.FormatDuration(took))
	cliui.KeyValue(w, 12, "vector", preview)
	fmt.Fprintln(w)
}

func printBackends(cmd *cobra.Command, eng *engine.Engine) {
	w := cmd.OutOrStdout()
	for _, h := range eng.Embeddings.Stats(cmd.Context()).Backends {
		if h.Successes == 0 && h.Failures == 0 {
			continue
		}
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
}
