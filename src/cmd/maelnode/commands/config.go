package commands

import (
	"github.com/mosaicnetworks/maelnode/src/config"
)

// CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Maelnode config.Config `mapstructure:",squash"`
}

// NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Maelnode: *config.NewDefaultConfig(),
	}
}
