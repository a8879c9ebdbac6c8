// Package callctxcmder
package callctxcmder

import (
	"github.com/spf13/cobra"

	cachecmder "github.com/papercomputeco/callctx/cmd/callctx/cache"
	configcmder "github.com/papercomputeco/callctx/cmd/callctx/config"
	contextcmder "github.com/papercomputeco/callctx/cmd/callctx/context"
	embedcmder "github.com/papercomputeco/callctx/cmd/callctx/embed"
	ingestcmder "github.com/papercomputeco/callctx/cmd/callctx/ingest"
	servecmder "github.com/papercomputeco/callctx/cmd/callctx/serve"
	versioncmder "github.com/papercomputeco/callctx/cmd/version"
)

const callctxLongDesc string = `callctx generates embeddings and assembles context from past calls.

Run the server using:
  callctx serve                 Run the API and MCP server

Work against the local stores using:
  callctx embed <text>          Embed a text through the backend chain
  callctx ingest                Embed and store one owner
  callctx context <query>       Assemble context for a scope
  callctx cache stats|clear     Inspect or clear the embedding cache
  callctx config get|set|list   Manage persistent configuration`

const callctxShortDesc string = "callctx - Call Context Engine"

func NewCallctxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "callctx",
		Short:         callctxShortDesc,
		Long:          callctxLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to the .callctx/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(embedcmder.NewEmbedCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(contextcmder.NewContextCmd())
	cmd.AddCommand(cachecmder.NewCacheCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
