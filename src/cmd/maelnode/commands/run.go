package commands

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mosaicnetworks/maelnode/src/maelnode"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRunCmd returns the command that starts a maelnode
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runMaelnode,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runMaelnode(cmd *cobra.Command, args []string) error {
	engine := maelnode.NewMaelnode(&_config.Maelnode)

	if err := engine.Init(); err != nil {
		_config.Maelnode.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.Run(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			_config.Maelnode.Logger().WithError(err).Error("Node stopped")
			return err
		}
	case <-ctx.Done():
		// A read on stdin cannot be interrupted, so do not wait for Run.
		_config.Maelnode.Logger().Info("Interrupted")
		return engine.Close()
	}

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

// AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Maelnode.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Maelnode.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Maelnode.LogFile, "Also write logs, as JSON, to this file")

	// Protocol
	cmd.Flags().String("decode-policy", _config.Maelnode.DecodePolicy, "What to do with undecodable lines: strict, skip")
	cmd.Flags().String("init-policy", _config.Maelnode.InitPolicy, "What to do with a repeated init: reinit, ignore, reject")
	cmd.Flags().Int("max-line-size", _config.Maelnode.MaxLineSize, "Largest accepted input line in bytes")

	// Journal
	cmd.Flags().Bool("store", _config.Maelnode.Store, "Journal messages to badgerDB instead of memory")
	cmd.Flags().String("db", _config.Maelnode.DatabaseDir, "Dabatabase directory")
	cmd.Flags().Int("cache-size", _config.Maelnode.CacheSize, "Number of journal entries kept in memory")

	// Service
	cmd.Flags().Bool("no-service", _config.Maelnode.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.Maelnode.ServiceAddr, "Listen IP:Port for HTTP service")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Maelnode.SetDataDir(_config.Maelnode.DataDir)

	logFields := logrus.Fields{
		"maelnode.DataDir":      _config.Maelnode.DataDir,
		"maelnode.LogLevel":     _config.Maelnode.LogLevel,
		"maelnode.LogFile":      _config.Maelnode.LogFile,
		"maelnode.DecodePolicy": _config.Maelnode.DecodePolicy,
		"maelnode.InitPolicy":   _config.Maelnode.InitPolicy,
		"maelnode.MaxLineSize":  _config.Maelnode.MaxLineSize,
		"maelnode.Store":        _config.Maelnode.Store,
		"maelnode.CacheSize":    _config.Maelnode.CacheSize,
		"maelnode.NoService":    _config.Maelnode.NoService,
	}

	if _config.Maelnode.Store {
		logFields["maelnode.DatabaseDir"] = _config.Maelnode.DatabaseDir
	}

	if !_config.Maelnode.NoService {
		logFields["maelnode.ServiceAddr"] = _config.Maelnode.ServiceAddr
	}

	_config.Maelnode.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// MAELNODE_INIT_POLICY and friends
	viper.SetEnvPrefix("maelnode")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/maelnode.toml (.json, .yaml also work)
	viper.SetConfigName("maelnode")               // name of config file (without extension)
	viper.AddConfigPath(_config.Maelnode.DataDir) // search root directory

	// If a config file is found, read it in.
	err := viper.ReadInConfig()
	_, notFound := err.(viper.ConfigFileNotFoundError)
	if err != nil && !notFound {
		return err
	}

	// second unmarshal to read from config file
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// the logger depends on log and log-file, which the file may have set
	_config.Maelnode.SetLogger(nil)

	if notFound {
		_config.Maelnode.Logger().Debugf("No config file found in: %s", _config.Maelnode.DataDir)
	} else {
		_config.Maelnode.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	}

	return nil
}
