package configcmder

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/agentstream/pkg/cliui"
	"github.com/papercomputeco/agentstream/pkg/config"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from the config.toml file
stored in the .agentstream/ directory. Keys use dotted notation matching
the TOML section structure.

Examples:
  agentstream config get stream.base_url
  agentstream config get replay.dir`

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
		ValidArgsFunction: completeKey,
	}

	return cmd
}

func runGet(w io.Writer, key, configDir string) error {
	if err := checkKey(key); err != nil {
		return err
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

	shown := cliui.ValueStyle.Render(value)
	if value == "" {
		shown = cliui.DimStyle.Render("<not set>")
	}
	fmt.Fprintf(w, "  %s  %s\n", cliui.KeyStyle.Render(key), shown)

	if env := config.EnvVar(key); os.Getenv(env) != "" {
		fmt.Fprintf(w, "  %s\n", cliui.DimStyle.Render(fmt.Sprintf("overridden by $%s=%q", env, os.Getenv(env))))
	}
	fmt.Fprintln(w)

	return nil
}

func printTarget(w io.Writer, target string) {
	if target != "" {
		fmt.Fprintf(w, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(target),
		)
		return
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No config file found. Using defaults."))
}
