// Package config loads nowplaying settings from defaults, a YAML file, the
// environment and command-line flags, and reloads them when the file
// changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/justinmdickey/nowplaying/internal/logging"
	"github.com/justinmdickey/nowplaying/internal/media"
)

var log = logging.Logger("config")

// EnvPrefix prefixes every environment override, e.g. NOWPLAYING_SERVER_PORT.
const EnvPrefix = "NOWPLAYING"

// Config holds all application configuration
type Config struct {
	Server struct {
		Host              string `mapstructure:"host"`
		Port              int    `mapstructure:"port"`
		ShutdownTimeoutMs int    `mapstructure:"shutdown_timeout_ms"`
	} `mapstructure:"server"`
	Poll struct {
		IntervalMs     int `mapstructure:"interval_ms"`
		QueryTimeoutMs int `mapstructure:"query_timeout_ms"`
	} `mapstructure:"poll"`
	Push struct {
		WriteTimeoutMs int `mapstructure:"write_timeout_ms"`
		PingIntervalMs int `mapstructure:"ping_interval_ms"`
		QueueSize      int `mapstructure:"queue_size"`
	} `mapstructure:"push"`
	Media struct {
		Backend      string `mapstructure:"backend"`
		EmbedArtwork bool   `mapstructure:"embed_artwork"`
		ArtworkSize  int    `mapstructure:"artwork_size"`
	} `mapstructure:"media"`
	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
	TUI struct {
		Color                string `mapstructure:"color"`
		ColorMode            string `mapstructure:"color_mode"`
		MaxWidth             int    `mapstructure:"max_width"`
		MaxTextLength        int    `mapstructure:"max_text_length"`
		MaxTextLengthWithArt int    `mapstructure:"max_text_length_with_art"`
		UIRefreshMs          int    `mapstructure:"ui_refresh_ms"`
		Artwork              bool   `mapstructure:"artwork"`
		ArtworkColumns       int    `mapstructure:"artwork_columns"`
		ArtworkPadding       int    `mapstructure:"artwork_padding"`
	} `mapstructure:"tui"`
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (c Config) PollInterval() time.Duration { return ms(c.Poll.IntervalMs) }
func (c Config) QueryTimeout() time.Duration { return ms(c.Poll.QueryTimeoutMs) }
func (c Config) WriteTimeout() time.Duration { return ms(c.Push.WriteTimeoutMs) }
func (c Config) PingInterval() time.Duration { return ms(c.Push.PingIntervalMs) }
func (c Config) ShutdownTimeout() time.Duration { return ms(c.Server.ShutdownTimeoutMs) }
func (c Config) UIRefresh() time.Duration { return ms(c.TUI.UIRefreshMs) }

// ControlAddr is the host:port of the query/control server.
func (c Config) ControlAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// PushAddr is the host:port of the push server, one above the control port.
func (c Config) PushAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port+1)
}

var logFormats = []string{"color", "nocolor", "plain", "json"}

// Validate rejects settings the daemon cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65534 {
		errs = append(errs, fmt.Errorf("server.port %d out of range 1-65534", c.Server.Port))
	}
	positive := map[string]int{
		"poll.interval_ms":           c.Poll.IntervalMs,
		"poll.query_timeout_ms":      c.Poll.QueryTimeoutMs,
		"push.write_timeout_ms":      c.Push.WriteTimeoutMs,
		"push.queue_size":            c.Push.QueueSize,
		"server.shutdown_timeout_ms": c.Server.ShutdownTimeoutMs,
		"tui.ui_refresh_ms":          c.TUI.UIRefreshMs,
	}
	for _, key := range sortedKeys(positive) {
		if positive[key] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", key, positive[key]))
		}
	}
	if c.Push.PingIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("push.ping_interval_ms must not be negative"))
	}
	if !media.ValidBackend(c.Media.Backend) {
		errs = append(errs, fmt.Errorf("unknown media.backend %q (want one of %s)",
			c.Media.Backend, strings.Join(media.Backends, ", ")))
	}
	if !contains(logFormats, strings.ToLower(c.Log.Format)) {
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SafeConfig wraps Config with thread-safe access
type SafeConfig struct {
	mu  sync.RWMutex
	cfg Config
}

// Get returns a copy of the current config (thread-safe read)
func (sc *SafeConfig) Get() Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.cfg
}

// Set updates the config (thread-safe write)
func (sc *SafeConfig) Set(cfg Config) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cfg = cfg
}

// Loader owns the viper instance behind a SafeConfig.
type Loader struct {
	v   *viper.Viper
	cfg SafeConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 14565)
	v.SetDefault("server.shutdown_timeout_ms", 3000)
	v.SetDefault("poll.interval_ms", 500)
	v.SetDefault("poll.query_timeout_ms", 2000)
	v.SetDefault("push.write_timeout_ms", 5000)
	v.SetDefault("push.ping_interval_ms", 30000)
	v.SetDefault("push.queue_size", 16)
	v.SetDefault("media.backend", "auto")
	v.SetDefault("media.embed_artwork", false)
	v.SetDefault("media.artwork_size", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "color")
	v.SetDefault("tui.color", "2")
	v.SetDefault("tui.color_mode", "manual")
	v.SetDefault("tui.max_width", 45)
	v.SetDefault("tui.max_text_length", 36)
	v.SetDefault("tui.max_text_length_with_art", 22)
	v.SetDefault("tui.ui_refresh_ms", 100)
	v.SetDefault("tui.artwork", true)
	v.SetDefault("tui.artwork_columns", 13)
	v.SetDefault("tui.artwork_padding", 15)
}

// flagKeys maps flag names to the config keys they override.
var flagKeys = map[string]string{
	"host":          "server.host",
	"port":          "server.port",
	"backend":       "media.backend",
	"embed-artwork": "media.embed_artwork",
	"log-level":     "log.level",
	"log-format":    "log.format",
	"color":         "tui.color",
}

// NewFlagSet returns the flags shared by the nowplaying commands.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to a config file (default $XDG_CONFIG_HOME/nowplaying/config.yaml)")
	fs.String("host", "127.0.0.1", "address the servers bind to or connect to")
	fs.Int("port", 14565, "query/control port; the push server uses port+1")
	fs.String("backend", "auto", "media backend: "+strings.Join(media.Backends, ", "))
	fs.Bool("embed-artwork", false, "embed local artwork as data URIs")
	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("log-format", "color", "log format: color, nocolor, json")
	fs.StringP("color", "c", "2", "TUI color (name or hex)")
	fs.Bool("no-artwork", false, "disable album artwork in the TUI")
	return fs
}

// Dir returns the default config directory following XDG.
func Dir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "nowplaying")
}

// Load reads the configuration. Precedence, lowest first: defaults, config
// file, environment, explicitly set flags. fs may be nil.
func Load(fs *pflag.FlagSet) (*Loader, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	var path string
	if fs != nil {
		path, _ = fs.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		if dir := Dir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Loader{v: v}
	l.cfg.Set(cfg)
	return l, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Config returns the current configuration.
func (l *Loader) Config() Config {
	return l.cfg.Get()
}

// File returns the config file in use, or "" when running on defaults.
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch reloads the configuration whenever the file changes and passes each
// valid result to onChange. Invalid edits are logged and ignored.
func (l *Loader) Watch(onChange func(Config)) {
	if l.File() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(l.v)
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			log.Warnw("ignoring config change", "file", e.Name, "err", err)
			return
		}
		l.cfg.Set(cfg)
		log.Infow("config reloaded", "file", e.Name)
		if onChange != nil {
			onChange(cfg)
		}
	})
	l.v.WatchConfig()
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
