// Package config loads runtime settings and algorithm profiles.
//
// Settings (backend address, worker count, ledger and logging) come from
// flags, PAGBENCH_* environment variables and an optional config file, in
// that order of precedence. Profiles describe the experiment grid and the
// algorithm parameters and are YAML.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrInvalidConfiguration marks startup errors: bad flags, settings or
// profiles. Nothing has been processed when it is returned.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// #region keys
const (
	KeyBackendAddr    = "backend"
	KeyBackendTimeout = "backend-timeout"
	KeyBackendMaxMsg  = "backend-max-message-mb"
	KeyWorkers        = "workers"
	KeyLedger         = "ledger"
	KeyLogLevel       = "log-level"
	KeyLogFile        = "log-file"
	KeyLogFormat      = "log-format"
	KeyProfiles       = "profiles"
	KeyDryRun         = "dry-run"

	envPrefix = "PAGBENCH"
)
// #endregion keys

// #region settings
// Settings are the resolved runtime settings.
type Settings struct {
	BackendAddr    string
	BackendTimeout time.Duration
	BackendMaxMsg  int // MiB, send and receive limit per InferPAG call
	Workers        int
	LedgerPath     string // empty disables the ledger
	LogLevel       string
	LogFile        string // empty logs to stderr only
	LogFormat      string // text or json
	ProfilesPath   string // empty uses the built-in profiles
	DryRun         bool
}

// NewViper returns a viper instance with defaults and env binding set up.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyBackendAddr, "localhost:50061")
	v.SetDefault(KeyBackendTimeout, time.Duration(0))
	v.SetDefault(KeyBackendMaxMsg, 256)
	v.SetDefault(KeyWorkers, runtime.NumCPU())
	v.SetDefault(KeyLedger, "pagbench.db")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFile, "")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyProfiles, "")
	v.SetDefault(KeyDryRun, false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// RegisterFlags adds the persistent settings flags to fs and binds them to v.
func RegisterFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.String(KeyBackendAddr, v.GetString(KeyBackendAddr), "discovery service address (host:port)")
	fs.Duration(KeyBackendTimeout, v.GetDuration(KeyBackendTimeout), "per-experiment backend timeout (0 = none)")
	fs.Int(KeyBackendMaxMsg, v.GetInt(KeyBackendMaxMsg), "max InferPAG message size in MiB")
	fs.Int(KeyWorkers, v.GetInt(KeyWorkers), "experiments processed concurrently")
	fs.String(KeyLedger, v.GetString(KeyLedger), "SQLite run ledger path (empty disables)")
	fs.String(KeyLogLevel, v.GetString(KeyLogLevel), "log level: debug, info, warn, error")
	fs.String(KeyLogFile, v.GetString(KeyLogFile), "also write logs to this file (rotated)")
	fs.String(KeyLogFormat, v.GetString(KeyLogFormat), "log format: text or json")
	fs.String(KeyProfiles, v.GetString(KeyProfiles), "algorithm profile YAML (default: built-in)")
	fs.Bool(KeyDryRun, v.GetBool(KeyDryRun), "resolve paths and report missing inputs without running the backend")

	for _, key := range []string{
		KeyBackendAddr, KeyBackendTimeout, KeyBackendMaxMsg, KeyWorkers, KeyLedger,
		KeyLogLevel, KeyLogFile, KeyLogFormat, KeyProfiles, KeyDryRun,
	} {
		if err := v.BindPFlag(key, fs.Lookup(key)); err != nil {
			return fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	return nil
}

// ReadFile merges an optional config file (yaml, toml or json) into v.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read config %s: %v", ErrInvalidConfiguration, path, err)
	}
	return nil
}

// Load resolves and validates the settings held by v.
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		BackendAddr:    strings.TrimSpace(v.GetString(KeyBackendAddr)),
		BackendTimeout: v.GetDuration(KeyBackendTimeout),
		BackendMaxMsg:  v.GetInt(KeyBackendMaxMsg),
		Workers:        v.GetInt(KeyWorkers),
		LedgerPath:     v.GetString(KeyLedger),
		LogLevel:       strings.ToLower(v.GetString(KeyLogLevel)),
		LogFile:        v.GetString(KeyLogFile),
		LogFormat:      strings.ToLower(v.GetString(KeyLogFormat)),
		ProfilesPath:   v.GetString(KeyProfiles),
		DryRun:         v.GetBool(KeyDryRun),
	}
	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.BackendAddr == "" && !s.DryRun {
		return fmt.Errorf("%w: empty backend address", ErrInvalidConfiguration)
	}
	if s.BackendTimeout < 0 {
		return fmt.Errorf("%w: negative backend timeout %s", ErrInvalidConfiguration, s.BackendTimeout)
	}
	if s.BackendMaxMsg < 1 {
		return fmt.Errorf("%w: backend max message must be >= 1 MiB, got %d", ErrInvalidConfiguration, s.BackendMaxMsg)
	}
	if s.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalidConfiguration, s.Workers)
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfiguration, s.LogLevel)
	}
	if s.LogFormat != "text" && s.LogFormat != "json" {
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfiguration, s.LogFormat)
	}
	return nil
}
// #endregion settings
