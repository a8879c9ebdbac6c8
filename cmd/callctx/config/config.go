// Package configcmder provides the config command for managing persistent
// callctx configuration stored in the .callctx/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/callctx/pkg/cliui"
	"github.com/papercomputeco/callctx/pkg/config"
)

const configLongDesc string = `Manage persistent callctx configuration.

Configuration is stored as config.toml in the .callctx/ directory and provides
default values for command flags. CLI flags and CALLCTX_ environment variables
take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  embedding.remote_target, embedding.remote_provider, embedding.remote_api_key,
  embedding.local_gpu, embedding.local_target, embedding.model,
  embedding.dimensions, embedding.timeout_ms,
  cache.target, cache.ttl_seconds, cache.namespace,
  vector_store.provider, vector_store.target, vector_store.api_key,
  context.token_budget, context.top_k, context.candidate_limit,
  ingest.workers, ingest.queue_size,
  api.listen, client.api_target, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  callctx config set <key> <value>    Set a configuration value
  callctx config get <key>            Get a configuration value
  callctx config list                 List all configuration values

Examples:
  callctx config set embedding.remote_target http://gpu-box:8000
  callctx config set cache.target sqlite
  callctx config get embedding.model
  callctx config list`

const configShortDesc string = "Manage persistent callctx configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// displayValue masks secret keys so they never reach the terminal in full.
func displayValue(key, value string) string {
	if config.IsSecretKey(key) {
		return cliui.Mask(value)
	}
	return value
}
