package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/callctx/pkg/cliui"
	"github.com/papercomputeco/callctx/pkg/config"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from the config.toml file
stored in the .callctx/ directory. Keys use dotted notation matching
the TOML section structure. Secret values are masked.

Examples:
  callctx config get embedding.model
  callctx config get cache.target`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runGet(cmd.OutOrStdout(), args[0], configDir)
		},
		ValidArgsFunction: completeKeys,
	}

	return cmd
}

func runGet(w io.Writer, key, configDir string) error {
	if !config.IsValidConfigKey(key) {
		return unknownKeyError(key)
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	printTarget(w, cfger.GetTarget())

	value, err := cfger.GetConfigValue(key)
	if err != nil {
		return err
	}

	if value == "" {
		fmt.Fprintf(w, "  %s  %s\n\n", cliui.KeyStyle.Render(key), cliui.DimStyle.Render("<not set>"))
	} else {
		fmt.Fprintf(w, "  %s  %s\n\n", cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(displayValue(key, value)))
	}

	return nil
}

func printTarget(w io.Writer, target string) {
	if target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
	} else {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
	}
}
