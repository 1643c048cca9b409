// Package config handles TOML (or YAML) configuration loading with sensible defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/setevik/faultwatch/internal/fault"
)

// Config is the top-level configuration for faultwatch.
type Config struct {
	Instance InstanceConfig `toml:"instance" yaml:"instance"`
	Notify   NotifyConfig   `toml:"notify" yaml:"notify"`
	Ntfy     NtfyConfig     `toml:"ntfy" yaml:"ntfy"`
	SMTP     SMTPConfig     `toml:"smtp" yaml:"smtp"`
	Stats    StatsConfig    `toml:"stats" yaml:"stats"`
	Log      LogConfig      `toml:"log" yaml:"log"`
	Metrics  MetricsConfig  `toml:"metrics" yaml:"metrics"`
}

// InstanceConfig identifies the host process in notifications.
type InstanceConfig struct {
	ID string `toml:"id" yaml:"id"`
}

// NotifyConfig controls which faults are notified, where, and how often.
type NotifyConfig struct {
	Transport   string   `toml:"transport" yaml:"transport"`
	Destination string   `toml:"destination" yaml:"destination"`
	Mask        []string `toml:"mask" yaml:"mask"`
	TraceMask   []string `toml:"trace_mask" yaml:"trace_mask"`
	Throttle    Duration `toml:"throttle" yaml:"throttle"`
	Summary     bool     `toml:"summary" yaml:"summary"`
	DateFormat  string   `toml:"date_format" yaml:"date_format"`
}

// NtfyConfig controls the ntfy transport.
type NtfyConfig struct {
	PriorityMap map[string]string `toml:"priority_map" yaml:"priority_map"`
}

// SMTPConfig controls the mail transport.
type SMTPConfig struct {
	Addr     string `toml:"addr" yaml:"addr"`
	From     string `toml:"from" yaml:"from"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

// StatsConfig controls the occurrence statistics store.
type StatsConfig struct {
	Backend    string   `toml:"backend" yaml:"backend"`
	Path       string   `toml:"path" yaml:"path"`
	Retention  Duration `toml:"retention" yaml:"retention"`
	GCInterval Duration `toml:"gc_interval" yaml:"gc_interval"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Duration wraps time.Duration for string parsing (e.g. "5m", "4h").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Notification transports.
const (
	TransportNtfy = "ntfy"
	TransportSMTP = "smtp"
)

// DestinationEnv seeds the default notification destination.
const DestinationEnv = "FAULTWATCH_DESTINATION"

// Default returns a Config with sensible defaults.
func Default() *Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	return &Config{
		Instance: InstanceConfig{
			ID: hostname,
		},
		Notify: NotifyConfig{
			Transport:   TransportNtfy,
			Destination: os.Getenv(DestinationEnv),
			Mask:        []string{"fatal", "error", "warning"},
			TraceMask:   []string{"fatal", "error", "warning"},
			Throttle:    Duration{4 * time.Hour},
			Summary:     true,
			DateFormat:  "2006-01-02 15:04:05 MST",
		},
		Ntfy: NtfyConfig{
			PriorityMap: map[string]string{
				"fatal":   "urgent",
				"error":   "high",
				"warning": "default",
				"notice":  "low",
			},
		},
		SMTP: SMTPConfig{
			Addr: "localhost:25",
		},
		Stats: StatsConfig{
			Backend:    BackendFile,
			Retention:  Duration{24 * time.Hour},
			GCInterval: Duration{time.Hour},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "faultwatch", "config.toml")
}

// Load reads configuration from the given path, falling back to defaults
// for any unset fields. If the file does not exist, returns defaults.
// Files ending in .yaml or .yml are decoded as YAML, everything else as TOML.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks enumerated fields and severity lists.
func (c *Config) Validate() error {
	var errs []error
	switch c.Stats.Backend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("stats.backend: unknown backend %q", c.Stats.Backend))
	}
	switch c.Notify.Transport {
	case TransportNtfy, TransportSMTP:
	default:
		errs = append(errs, fmt.Errorf("notify.transport: unknown transport %q", c.Notify.Transport))
	}
	if c.Notify.Throttle.Duration < 0 {
		errs = append(errs, errors.New("notify.throttle: must not be negative"))
	}
	if c.Stats.Retention.Duration <= 0 {
		errs = append(errs, errors.New("stats.retention: must be positive"))
	}
	for _, name := range append(append([]string{}, c.Notify.Mask...), c.Notify.TraceMask...) {
		if _, err := fault.ParseSeverity(name); err != nil {
			errs = append(errs, fmt.Errorf("notify: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ShouldNotify returns true if the severity is in the notification mask.
func (c *Config) ShouldNotify(sev fault.Severity) bool {
	return inMask(c.Notify.Mask, sev)
}

// ShouldTrace returns true if notifications for the severity carry a backtrace.
func (c *Config) ShouldTrace(sev fault.Severity) bool {
	return inMask(c.Notify.TraceMask, sev)
}

// ThrottleWindow returns the minimum time between two notifications for one
// fingerprint. Zero disables throttling.
func (c *Config) ThrottleWindow() time.Duration {
	return c.Notify.Throttle.Duration
}

// NtfyPriority maps a severity to an ntfy priority string.
func (c *Config) NtfyPriority(sev fault.Severity) string {
	if p, ok := c.Ntfy.PriorityMap[sev.String()]; ok {
		return p
	}
	return "default"
}

// StatsPath returns the stats store location, defaulting to the XDG data dir.
func (c *Config) StatsPath() string {
	if c.Stats.Path != "" {
		return c.Stats.Path
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = os.TempDir()
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	name := "stats.json"
	if c.Stats.Backend == BackendSQLite {
		name = "stats.db"
	}
	return filepath.Join(dataHome, "faultwatch", name)
}

func inMask(mask []string, sev fault.Severity) bool {
	for _, m := range mask {
		if strings.EqualFold(m, sev.String()) {
			return true
		}
	}
	return false
}
