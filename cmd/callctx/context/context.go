// Package contextcmder provides the context command, which assembles the
// context block for a scope and query.
package contextcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/callctx/api/client"
	"github.com/papercomputeco/callctx/pkg/cliui"
	"github.com/papercomputeco/callctx/pkg/config"
	"github.com/papercomputeco/callctx/pkg/engine"
	"github.com/papercomputeco/callctx/pkg/logger"
	"github.com/papercomputeco/callctx/pkg/retrieval"
	"github.com/papercomputeco/callctx/pkg/textutil"
)

const excerptWords = 12

type contextCommander struct {
	scope  string
	label  string
	local  bool
	raw    bool
	asJSON bool

	apiTarget   string
	topK        uint
	tokenBudget uint
	provider    string
	target      string
}

var contextFlagKeys = []string{
	config.FlagAPITarget,
	config.FlagTopK,
	config.FlagTokenBudget,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
}

const contextLongDesc string = `Assemble context from past calls.

Ranks the stored calls of a scope against the query and packs the best ones
into a token-bounded context block. When the scope has no more calls than
--top-k, calls are ordered by recency without embedding the query.

By default the request goes to a running callctx server. Use --local to read
the configured vector store directly.

Examples:
  callctx context --scope cust-42 "refund for order 1001"
  callctx context --scope cust-42 "billing issue" --top-k 5 --token-budget 1500
  callctx context --scope cust-42 "refund" --local --raw`

const contextShortDesc string = "Assemble context for a scope"

func NewContextCmd() *cobra.Command {
	cmder := &contextCommander{}

	cmd := &cobra.Command{
		Use:   "context <query>",
		Short: contextShortDesc,
		Long:  contextLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmder.scope == "" {
				return fmt.Errorf("--scope is required")
			}

			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			configDir, _ := cmd.Flags().GetString("config-dir")

			cfg, err := config.Resolve(cmd, configDir, contextFlagKeys...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			req := retrieval.Request{
				Scope:       cmder.scope,
				Query:       strings.Join(args, " "),
				TopK:        int(cfg.Context.TopK),
				TokenBudget: int(cfg.Context.TokenBudget),
				Label:       cmder.label,
			}

			var res *retrieval.Result
			if cmder.local {
				res, err = retrieveLocal(cmd.Context(), cfg, configDir, debug, cmd.ErrOrStderr(), req)
			} else {
				res, err = retrieveRemote(cmd.Context(), cfg.Client.APITarget, req)
			}
			if err != nil {
				return err
			}

			return cmder.print(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&cmder.scope, "scope", "s", "", "Scope (customer) to retrieve context for")
	cmd.Flags().StringVar(&cmder.label, "label", "", "Label used in provenance markers (default \"Call\")")
	cmd.Flags().BoolVar(&cmder.local, "local", false, "Read the local vector store instead of calling the API")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print the context block without formatting")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Print the full result as JSON")
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	config.AddUintFlag(cmd, config.Flags, config.FlagTopK, &cmder.topK)
	config.AddUintFlag(cmd, config.Flags, config.FlagTokenBudget, &cmder.tokenBudget)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.target)

	return cmd
}

func retrieveRemote(ctx context.Context, target string, req retrieval.Request) (*retrieval.Result, error) {
	c, err := client.New(target)
	if err != nil {
		return nil, err
	}
	return c.Context(ctx, req)
}

func retrieveLocal(ctx context.Context, cfg *config.Config, configDir string, debug bool, logw io.Writer, req retrieval.Request) (*retrieval.Result, error) {
	log := logger.Nop()
	if debug {
		log = logger.New(logger.WithDebug(true), logger.WithPretty(true), logger.WithWriter(logw))
	}

	eng, err := engine.Open(ctx, cfg, engine.Options{ConfigDir: configDir}, log)
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	res, err := eng.Retriever.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *contextCommander) print(w io.Writer, res *retrieval.Result) error {
	switch {
	case c.asJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)

	case c.raw:
		_, err := fmt.Fprint(w, res.Text)
		return err
	}

	md := cliui.ContextMarkdown(c.scope, string(res.Mode), res.Text, res.ItemsIncluded, res.TokensUsed)
	rendered, err := cliui.RenderMarkdown(md)
	if err != nil {
		rendered = md
	}
	fmt.Fprint(w, rendered)

	for i, r := range res.Ranked {
		score := "recency"
		if r.Scored {
			score = fmt.Sprintf("score %.4f", r.Score)
		}
		fmt.Fprintf(w, "  %s %s %s\n",
			cliui.StepStyle.Render(fmt.Sprintf("#%d", i+1)),
			cliui.KeyStyle.Render(r.OwnerID),
			cliui.ScoreStyle.Render(score),
		)
		fmt.Fprintf(w, "     %s\n", cliui.DimStyle.Render(textutil.Excerpt(r.Text, excerptWords)))
	}
	return nil
}
