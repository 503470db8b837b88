// Package config holds the powerhint-test tool configuration.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/testharness/loader"
)

// Config represents the tool configuration
type Config struct {
	ADB          ADBConfig          `yaml:"adb"`
	ConfigDir    string             `yaml:"config_dir"` // Remote directory of the PowerHint documents
	Files        loader.FileNames   `yaml:"files"`
	WorkDir      string             `yaml:"work_dir"`    // Local directory the documents are pulled into
	ReportRoot   string             `yaml:"report_root"` // Parent of the per-device report directories
	Discovery    DiscoveryConfig    `yaml:"discovery"`
	Settle       SettleConfig       `yaml:"settle"`
	Ylog         YlogConfig         `yaml:"ylog"`
	PowerService PowerServiceConfig `yaml:"power_service"`
	Log          LogConfig          `yaml:"log"`
	EventLog     string             `yaml:"event_log"` // CBOR device event log path (empty = disabled)
	Scenes       string             `yaml:"scenes"`    // Regexp selecting scenes to verify (empty = all)
}

// ADBConfig locates the adb binary
type ADBConfig struct {
	Binary string `yaml:"binary"`
	MDNS   bool   `yaml:"mdns"` // Browse for wireless debugging devices before listing
}

// DiscoveryConfig bounds the wait for a first device
type DiscoveryConfig struct {
	Attempts int      `yaml:"attempts"`
	Interval Duration `yaml:"interval"`
	Browse   Duration `yaml:"browse"` // mDNS browse window when adb.mdns is set
}

// SettleConfig contains the fixed delays after device operations
type SettleConfig struct {
	Scene  Duration `yaml:"scene"`  // After each enable/disable call
	Root   Duration `yaml:"root"`   // After adb root
	Reboot Duration `yaml:"reboot"` // After the device is back from a reboot
}

// YlogConfig controls the vendor log capture around a run
type YlogConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Property string `yaml:"property"`
	Dir      string `yaml:"dir"`
}

// PowerServiceConfig names the binder call used to toggle a scene
type PowerServiceConfig struct {
	Name string `yaml:"name"`
	Code int    `yaml:"code"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	JSON   bool   `yaml:"json"`
	Colors bool   `yaml:"colors"`
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration in time.Duration string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		ADB:        ADBConfig{Binary: "adb"},
		ConfigDir:  "/vendor/etc",
		Files:      loader.DefaultFileNames,
		WorkDir:    ".",
		ReportRoot: ".",
		Discovery: DiscoveryConfig{
			Attempts: 60,
			Interval: Duration(time.Second),
			Browse:   Duration(3 * time.Second),
		},
		Settle: SettleConfig{
			Scene:  Duration(2 * time.Second),
			Root:   Duration(5 * time.Second),
			Reboot: Duration(20 * time.Second),
		},
		Ylog: YlogConfig{
			Enabled:  true,
			Property: "persist.ylog.enabled",
			Dir:      "/storage/emulated/0/ylog",
		},
		PowerService: PowerServiceConfig{Name: "power", Code: 5},
		Log:          LogConfig{Level: "info", Colors: true},
	}
}

// Load reads the configuration file at path on top of Default. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the runner cannot work with.
func (c *Config) Validate() error {
	if c.ADB.Binary == "" {
		return fmt.Errorf("adb.binary must not be empty")
	}
	if c.Discovery.Attempts <= 0 {
		return fmt.Errorf("discovery.attempts must be positive, got %d", c.Discovery.Attempts)
	}
	if c.Files.Scene == "" || c.Files.Resource == "" || c.Files.SceneID == "" {
		return fmt.Errorf("files: all three document names are required")
	}
	if c.Scenes != "" {
		if _, err := regexp.Compile(c.Scenes); err != nil {
			return fmt.Errorf("scenes: %w", err)
		}
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})
}
