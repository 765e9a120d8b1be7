package config

import (
	"io"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/mosaicnetworks/maelnode/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the
	// Badger journal database
	DefaultBadgerFile = "badger_db"
)

// Decode policies.
const (
	// DecodeStrict stops the node on the first line that cannot be decoded.
	DecodeStrict = "strict"
	// DecodeSkip logs undecodable lines and carries on.
	DecodeSkip = "skip"
)

// Init policies, applied when a node receives a second init message.
const (
	// InitReinit overwrites the node's identity and membership.
	InitReinit = "reinit"
	// InitIgnore keeps the first identity and acknowledges the message.
	InitIgnore = "ignore"
	// InitReject keeps the first identity and answers with an error.
	InitReject = "reject"
)

// Default configuration values.
const (
	DefaultLogLevel     = "info"
	DefaultDecodePolicy = DecodeStrict
	DefaultInitPolicy   = InitReinit
	DefaultMaxLineSize  = 4 << 20
	DefaultCacheSize    = 1000
	DefaultStore        = false
	DefaultNoService    = true
	DefaultServiceAddr  = "127.0.0.1:8000"
)

// Config contains all the configuration properties of a maelnode.
type Config struct {
	// DataDir is the top-level directory containing the optional config file
	// and the journal database.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log entry in JSON format.
	LogFile string `mapstructure:"log-file"`

	// DecodePolicy decides what happens to input lines that are not valid
	// messages: "strict" terminates the node, "skip" drops the line.
	DecodePolicy string `mapstructure:"decode-policy"`

	// InitPolicy decides how a second init message is treated: "reinit",
	// "ignore" or "reject".
	InitPolicy string `mapstructure:"init-policy"`

	// MaxLineSize is the largest input line, in bytes, the node accepts.
	MaxLineSize int `mapstructure:"max-line-size"`

	// CacheSize is the number of journal entries kept in memory when Store is
	// not set.
	CacheSize int `mapstructure:"cache-size"`

	// Store activates the persistent Badger journal.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing the journal database files.
	DatabaseDir string `mapstructure:"db"`

	// NoService disables the HTTP introspection service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Input and Output are the streams messages are read from and written
	// to. They default to os.Stdin and os.Stdout.
	Input  io.Reader `mapstructure:"-"`
	Output io.Writer `mapstructure:"-"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:      DefaultDataDir(),
		LogLevel:     DefaultLogLevel,
		DecodePolicy: DefaultDecodePolicy,
		InitPolicy:   DefaultInitPolicy,
		MaxLineSize:  DefaultMaxLineSize,
		CacheSize:    DefaultCacheSize,
		Store:        DefaultStore,
		DatabaseDir:  DefaultDatabaseDir(),
		NoService:    DefaultNoService,
		ServiceAddr:  DefaultServiceAddr,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.DataDir = ""
	config.DatabaseDir = ""
	config.SetLogger(common.NewTestLogger(t, level))
	return config
}

// SetDataDir sets the top-level directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Logger returns a formatted logrus Entry, with prefix set to "maelnode".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Out = os.Stderr
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, level := range logrus.AllLevels {
				pathMap[level] = c.LogFile
			}
			c.logger.Hooks.Add(lfshook.NewHook(
				pathMap,
				&logrus.JSONFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "maelnode")
}

// SetLogger replaces the logger returned by Logger. A nil logger makes the
// next call to Logger build a new one from LogLevel and LogFile.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level config based
// on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Maelnode")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Maelnode")
		} else {
			return filepath.Join(home, ".maelnode")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
