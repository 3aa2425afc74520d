// Package agentstreamcmder is the root agentstream command.
package agentstreamcmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/papercomputeco/agentstream/cmd/agentstream/config"
	replaycmder "github.com/papercomputeco/agentstream/cmd/agentstream/replay"
	watchcmder "github.com/papercomputeco/agentstream/cmd/agentstream/watch"
	versioncmder "github.com/papercomputeco/agentstream/cmd/version"
)

const agentstreamLongDesc string = `agentstream follows live agent sessions.

It subscribes to a session's event stream, renders tokens, tool activity,
phase changes and pipeline progress as they happen, and reconnects with
backoff when the connection drops.

Commands:
  agentstream watch <session-id>    Watch a session stream
  agentstream replay                Serve recorded sessions for local testing
  agentstream config                Manage persistent configuration`

const agentstreamShortDesc string = "agentstream - live agent session streams"

func NewAgentStreamCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "agentstream",
		Short:        agentstreamShortDesc,
		Long:         agentstreamLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.agentstream or ~/.agentstream)")

	cmd.AddCommand(watchcmder.NewWatchCmd())
	cmd.AddCommand(replaycmder.NewReplayCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
