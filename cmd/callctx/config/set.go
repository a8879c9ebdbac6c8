package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/callctx/pkg/cliui"
	"github.com/papercomputeco/callctx/pkg/config"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file
stored in the .callctx/ directory. Keys use dotted notation matching
the TOML section structure. Run "callctx config list" for every key.

Examples:
  callctx config set embedding.remote_provider openai
  callctx config set embedding.remote_api_key sk-...
  callctx config set embedding.dimensions 768
  callctx config set vector_store.provider qdrant`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runSet(cmd.OutOrStdout(), args[0], args[1], configDir)
		},
		ValidArgsFunction: completeKeys,
	}

	return cmd
}

func runSet(w io.Writer, key, value, configDir string) error {
	if !config.IsValidConfigKey(key) {
		return unknownKeyError(key)
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	printTarget(w, cfger.GetTarget())

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(displayValue(key, value)),
	)
	return nil
}
