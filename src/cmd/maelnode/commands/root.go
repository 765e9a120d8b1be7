package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

// RootCmd is the root command for maelnode. Without a subcommand it behaves
// like run, which is how the harness launches a node.
var RootCmd = &cobra.Command{
	Use:              "maelnode",
	Short:            "maelnode serves harness messages on stdin/stdout",
	TraverseChildren: true,
	PreRunE:          loadConfig,
	RunE:             runMaelnode,
}

func init() {
	AddRunFlags(RootCmd)
}
