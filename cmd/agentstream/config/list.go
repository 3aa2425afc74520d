package configcmder

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/agentstream/pkg/cliui"
	"github.com/papercomputeco/agentstream/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key grouped by section, with its value from
the config.toml file in the .agentstream/ directory. Keys overridden by an
AGENTSTREAM_* environment variable show the variable and the value that
"agentstream watch" and "agentstream replay" will actually use.

Examples:
  agentstream config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runList(w io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	printTarget(w, cfger.GetTarget())

	keys := config.ValidConfigKeys()
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}

	section := ""
	for _, key := range keys {
		if s, _, _ := strings.Cut(key, "."); s != section {
			if section != "" {
				fmt.Fprintln(w)
			}
			section = s
			fmt.Fprintf(w, "  %s\n", cliui.StepStyle.Render("["+section+"]"))
		}

		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}

		line := fmt.Sprintf("  %-*s  ", width, key)
		switch env := config.EnvVar(key); {
		case os.Getenv(env) != "":
			line += fmt.Sprintf("%s %s", cliui.ValueStyle.Render(fmt.Sprintf("%q", os.Getenv(env))), cliui.DimStyle.Render("(from $"+env+")"))
		case value == "":
			line += cliui.DimStyle.Render("<not set>")
		default:
			line += cliui.ValueStyle.Render(fmt.Sprintf("%q", value))
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)

	return nil
}
