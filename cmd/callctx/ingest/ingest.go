// Package ingestcmder provides the ingest command, which registers an owner
// and embeds its text.
package ingestcmder

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/callctx/api"
	"github.com/papercomputeco/callctx/api/client"
	"github.com/papercomputeco/callctx/pkg/cliui"
	"github.com/papercomputeco/callctx/pkg/config"
	"github.com/papercomputeco/callctx/pkg/engine"
	"github.com/papercomputeco/callctx/pkg/ingest"
	"github.com/papercomputeco/callctx/pkg/logger"
	"github.com/papercomputeco/callctx/pkg/vector"
)

type ingestCommander struct {
	ownerID   string
	scope     string
	text      string
	file      string
	summary   string
	createdAt string
	local     bool

	apiTarget string
	provider  string
	target    string
	brokers   string
}

var ingestFlagKeys = []string{
	config.FlagAPITarget,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEventBrokers,
}

const ingestLongDesc string = `Register an owner and embed its text.

An owner is one stored item, typically a call transcript, grouped under a
scope such as a customer id. Its full text and optional summary are embedded
and written to the vector store.

By default the owner is queued on a running callctx server. Use --local to
embed and store it in this process; the command then waits until the vectors
are written.

Examples:
  callctx ingest --owner-id call-1 --scope cust-42 --text "customer asked for a refund"
  callctx ingest --owner-id call-2 --scope cust-42 --file transcript.txt --summary "refund follow-up"
  cat transcript.txt | callctx ingest --owner-id call-3 --scope cust-42 --file - --local`

const ingestShortDesc string = "Register and embed an owner"

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, err := cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			configDir, _ := cmd.Flags().GetString("config-dir")

			owner, err := cmder.owner(cmd.InOrStdin())
			if err != nil {
				return err
			}

			cfg, err := config.Resolve(cmd, configDir, ingestFlagKeys...)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			w := cmd.OutOrStdout()
			if cmder.local {
				return cliui.Step(w, "Embedding "+owner.ID, func() error {
					return ingestLocal(cmd.Context(), cfg, configDir, debug, cmd.ErrOrStderr(), owner)
				})
			}

			res, err := ingestRemote(cmd.Context(), cfg.Client.APITarget, owner)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  %s %s %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(res.OwnerID), cliui.DimStyle.Render(res.Status))
			return nil
		},
	}

	cmd.Flags().StringVar(&cmder.ownerID, "owner-id", "", "Owner id (required)")
	cmd.Flags().StringVarP(&cmder.scope, "scope", "s", "", "Scope the owner belongs to (required)")
	cmd.Flags().StringVar(&cmder.text, "text", "", "Full text to embed")
	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "Read the full text from a file, or - for stdin")
	cmd.Flags().StringVar(&cmder.summary, "summary", "", "Optional summary, embedded as a second vector")
	cmd.Flags().StringVar(&cmder.createdAt, "created-at", "", "Creation time in RFC3339 (default now)")
	cmd.Flags().BoolVar(&cmder.local, "local", false, "Embed and store in this process instead of calling the API")
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreProv, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.target)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventBrokers, &cmder.brokers)

	return cmd
}

func (c *ingestCommander) owner(stdin io.Reader) (vector.Owner, error) {
	switch {
	case c.ownerID == "":
		return vector.Owner{}, fmt.Errorf("--owner-id is required")
	case c.scope == "":
		return vector.Owner{}, fmt.Errorf("--scope is required")
	case c.text != "" && c.file != "":
		return vector.Owner{}, fmt.Errorf("--text and --file are mutually exclusive")
	}

	text := c.text
	if c.file != "" {
		var (
			data []byte
			err  error
		)
		if c.file == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(c.file)
		}
		if err != nil {
			return vector.Owner{}, fmt.Errorf("reading text: %w", err)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		return vector.Owner{}, fmt.Errorf("--text or --file is required")
	}

	createdAt := time.Now().UTC()
	if c.createdAt != "" {
		t, err := time.Parse(time.RFC3339, c.createdAt)
		if err != nil {
			return vector.Owner{}, fmt.Errorf("invalid --created-at: %w", err)
		}
		createdAt = t.UTC()
	}

	return vector.Owner{
		ID:        c.ownerID,
		Scope:     c.scope,
		Text:      text,
		Summary:   c.summary,
		CreatedAt: createdAt,
	}, nil
}

func ingestRemote(ctx context.Context, target string, owner vector.Owner) (*api.IngestResponse, error) {
	c, err := client.New(target)
	if err != nil {
		return nil, err
	}
	return c.Ingest(ctx, api.IngestRequest{
		OwnerID:   owner.ID,
		Scope:     owner.Scope,
		Text:      owner.Text,
		Summary:   owner.Summary,
		CreatedAt: owner.CreatedAt,
	})
}

func ingestLocal(ctx context.Context, cfg *config.Config, configDir string, debug bool, logw io.Writer, owner vector.Owner) error {
	log := logger.Nop()
	if debug {
		log = logger.New(logger.WithDebug(true), logger.WithPretty(true), logger.WithWriter(logw))
	}

	eng, err := engine.Open(ctx, cfg, engine.Options{ConfigDir: configDir, WithPublisher: true}, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	pool, err := eng.NewIngestPool()
	if err != nil {
		return err
	}
	defer pool.Close()

	return pool.Process(ctx, ingest.Job{Owner: owner})
}
