// Package configcmder provides the config command for managing persistent
// agentstream configuration stored in the .agentstream/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/agentstream/pkg/config"
)

const configLongDesc string = `Manage persistent agentstream configuration.

Configuration is stored as config.toml in the .agentstream/ directory and
provides default values for command flags. Precedence, highest first:
CLI flags, AGENTSTREAM_* environment variables, config.toml, built-in defaults.

Keys use dotted notation matching the TOML section structure:
  stream.base_url, stream.user, stream.environment,
  stream.max_attempts, stream.base_delay, stream.max_line_bytes,
  replay.listen, replay.dir, replay.line_delay,
  log.json, log.pretty, log.file

Use subcommands to get, set, or list configuration values:
  agentstream config set <key> <value>    Set a configuration value
  agentstream config get <key>            Get a configuration value
  agentstream config list                 List all configuration values

Examples:
  agentstream config set stream.base_url https://agents.example.com/api
  agentstream config set stream.max_attempts 8
  agentstream config get stream.base_url
  agentstream config list`

const configShortDesc string = "Manage persistent agentstream configuration"

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

// completeKey completes the first positional argument with config keys.
func completeKey(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if config.IsValidConfigKey(key) {
		return nil
	}
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}
