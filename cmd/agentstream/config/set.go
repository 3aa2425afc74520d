package configcmder

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/agentstream/pkg/cliui"
	"github.com/papercomputeco/agentstream/pkg/config"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in the config.toml file
stored in the .agentstream/ directory. Numeric and duration values are
validated before anything is written.

Examples:
  agentstream config set stream.base_url http://localhost:8000
  agentstream config set stream.base_delay 500ms
  agentstream config set replay.dir ./sessions`

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
		ValidArgsFunction: completeKey,
	}

	return cmd
}

func runSet(w io.Writer, key, value, configDir string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	printTarget(w, cfger.GetTarget())

	fmt.Fprintf(w, "  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(value),
	)

	if env := config.EnvVar(key); os.Getenv(env) != "" {
		fmt.Fprintf(w, "  %s\n\n", cliui.DimStyle.Render("$"+env+" is set and takes precedence over this value"))
	}
	return nil
}
