package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	Scan    ScanConfig    `mapstructure:"scan"`
	Install InstallConfig `mapstructure:"install"`
	Notify  NotifyConfig  `mapstructure:"notify"`
}

// ScanConfig controls driver detection.
type ScanConfig struct {
	// Strategy forces a detection strategy: "auto", "ubuntu-drivers" or
	// "apt". "auto" probes ubuntu-drivers first and falls back to apt.
	Strategy string `mapstructure:"strategy"`
	// RefreshPackageLists runs a privileged "apt update" before the apt
	// fallback scan. Failure to refresh degrades to a stale-list scan.
	RefreshPackageLists bool `mapstructure:"refresh_package_lists"`
	// DriverMatchPatterns filter "apt list --upgradable" output down to
	// driver-related packages. Matched case-insensitively as substrings.
	DriverMatchPatterns []string `mapstructure:"driver_match_patterns"`
	TimeoutSeconds      int      `mapstructure:"timeout_seconds"`
}

// InstallConfig controls driver installation.
type InstallConfig struct {
	// RebootPatterns are glob patterns matched against installed package
	// names; a match marks the outcome as reboot-required.
	RebootPatterns []string `mapstructure:"reboot_patterns"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// NotifyConfig controls desktop notifications.
type NotifyConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Scan: ScanConfig{
			Strategy:            "auto",
			RefreshPackageLists: true,
			DriverMatchPatterns: []string{
				"driver", "firmware",
				"linux-modules", "linux-image", "linux-headers",
				"nvidia", "amdgpu", "intel", "vulkan", "mesa",
			},
			TimeoutSeconds: 600,
		},
		Install: InstallConfig{
			RebootPatterns: []string{
				"linux-image-*",
				"linux-headers-*",
				"linux-modules-*",
				"linux-firmware*",
				"linux-generic*",
			},
			TimeoutSeconds: 1800,
		},
		Notify: NotifyConfig{Enabled: true},
	}
}

func Load(cfgFile string) (*Config, error) {
	viper.Reset()

	cfg := Default()
	setDefaults(cfg)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("driverdeck")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(ConfigDir())
		viper.AddConfigPath(".")
	}

	// Env overrides need every key registered (SetDefault above) and a
	// dot-to-underscore replacer so DRIVERDECK_SCAN_STRATEGY reaches
	// the nested scan.strategy key.
	viper.SetEnvPrefix("DRIVERDECK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers every config key with viper so that env-only
// overrides are consulted even when no config file exists.
func setDefaults(cfg *Config) {
	viper.SetDefault("log_level", cfg.LogLevel)
	viper.SetDefault("log_format", cfg.LogFormat)
	viper.SetDefault("log_file", cfg.LogFile)
	viper.SetDefault("scan.strategy", cfg.Scan.Strategy)
	viper.SetDefault("scan.refresh_package_lists", cfg.Scan.RefreshPackageLists)
	viper.SetDefault("scan.driver_match_patterns", cfg.Scan.DriverMatchPatterns)
	viper.SetDefault("scan.timeout_seconds", cfg.Scan.TimeoutSeconds)
	viper.SetDefault("install.reboot_patterns", cfg.Install.RebootPatterns)
	viper.SetDefault("install.timeout_seconds", cfg.Install.TimeoutSeconds)
	viper.SetDefault("notify.enabled", cfg.Notify.Enabled)
}

// SaveTo writes the configuration as YAML. An empty cfgFile targets
// the default per-user location.
func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("log_level", cfg.LogLevel)
	viper.Set("log_format", cfg.LogFormat)
	viper.Set("log_file", cfg.LogFile)
	viper.Set("scan.strategy", cfg.Scan.Strategy)
	viper.Set("scan.refresh_package_lists", cfg.Scan.RefreshPackageLists)
	viper.Set("scan.driver_match_patterns", cfg.Scan.DriverMatchPatterns)
	viper.Set("scan.timeout_seconds", cfg.Scan.TimeoutSeconds)
	viper.Set("install.reboot_patterns", cfg.Install.RebootPatterns)
	viper.Set("install.timeout_seconds", cfg.Install.TimeoutSeconds)
	viper.Set("notify.enabled", cfg.Notify.Enabled)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(ConfigDir(), "driverdeck.yaml")
		if err := os.MkdirAll(ConfigDir(), 0o700); err != nil {
			return err
		}
	}

	return viper.WriteConfigAs(cfgPath)
}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "driverdeck")
}

// DefaultLogFile returns the log path used when none is configured and
// the TUI needs logs routed away from the terminal.
func DefaultLogFile() string {
	return filepath.Join(xdg.StateHome, "driverdeck", "driverdeck.log")
}
