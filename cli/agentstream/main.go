package main

import (
	"os"

	agentstreamcmder "github.com/papercomputeco/agentstream/cmd/agentstream"
)

func main() {
	cmd := agentstreamcmder.NewAgentStreamCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
