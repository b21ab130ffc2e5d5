package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/driverdeck/driverdeck/internal/config"
	"github.com/driverdeck/driverdeck/internal/driver"
	"github.com/driverdeck/driverdeck/internal/executor"
	"github.com/driverdeck/driverdeck/internal/hwinfo"
	"github.com/driverdeck/driverdeck/internal/installer"
	"github.com/driverdeck/driverdeck/internal/logging"
	"github.com/driverdeck/driverdeck/internal/notify"
	"github.com/driverdeck/driverdeck/internal/tui"
)

var (
	version      = "0.1.0"
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "driverdeck",
	Short: "Driver update utility for Debian-based systems",
	Long:  `Driverdeck scans for hardware driver updates via ubuntu-drivers (with an apt fallback) and installs them through pkexec.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI()
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for driver updates without the UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScan()
	},
}

var installCmd = &cobra.Command{
	Use:   "install <package>...",
	Short: "Install driver packages without the UI",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstall(args)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := config.SaveTo(cfg, cfgFile); err != nil {
			return err
		}
		path := cfgFile
		if path == "" {
			path = filepath.Join(config.ConfigDir(), "driverdeck.yaml")
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("driverdeck v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/driverdeck/driverdeck.yaml)")
	scanCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or yaml")

	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	for _, problem := range cfg.Validate() {
		fmt.Fprintf(os.Stderr, "config: %v (using default)\n", problem)
	}
	return cfg, nil
}

func runTUI() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Logs must not reach stdout while the alternate screen is active.
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = config.DefaultLogFile()
	}
	logFile, err := logging.InitFile(cfg.LogFormat, cfg.LogLevel, logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log file unavailable: %v\n", err)
		logging.Discard()
	} else {
		defer logFile.Close()
	}

	runner := executor.New()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	model := tui.New(
		cfg,
		driver.NewDetector(cfg, runner),
		newInstaller(cfg, runner),
		notify.New(runner, cfg.Notify.Enabled),
		hwinfo.Collect(ctx, runner),
	)
	return tui.Run(model)
}

func runScan() error {
	switch outputFormat {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stderr)

	runner := executor.New()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	detector := driver.NewDetector(cfg, runner)
	result, err := detector.Scan(ctx, nil)
	if err != nil {
		if errors.Is(err, driver.ErrDetectionUnavailable) {
			return fmt.Errorf("no driver detection tool available (install ubuntu-drivers-common or apt): %w", err)
		}
		return err
	}

	return writeScanResult(os.Stdout, result)
}

// scanReport is the headless scan's serialization shape.
type scanReport struct {
	Strategy string         `json:"strategy" yaml:"strategy"`
	Count    int            `json:"count" yaml:"count"`
	Drivers  []driverReport `json:"drivers" yaml:"drivers"`
}

type driverReport struct {
	Package          string `json:"package" yaml:"package"`
	CurrentVersion   string `json:"current_version" yaml:"current_version"`
	AvailableVersion string `json:"available_version" yaml:"available_version"`
	Recommended      bool   `json:"recommended" yaml:"recommended"`
	Vendor           string `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Model            string `json:"model,omitempty" yaml:"model,omitempty"`
}

func writeScanResult(out *os.File, result driver.ScanResult) error {
	report := scanReport{Strategy: result.Strategy, Count: len(result.Entries), Drivers: []driverReport{}}
	for _, entry := range result.Entries {
		report.Drivers = append(report.Drivers, driverReport{
			Package:          entry.Package,
			CurrentVersion:   entry.CurrentVersion,
			AvailableVersion: entry.AvailableVersion,
			Recommended:      entry.Recommended,
			Vendor:           entry.Vendor,
			Model:            entry.Model,
		})
	}

	switch outputFormat {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case "yaml":
		return yaml.NewEncoder(out).Encode(report)
	}

	if len(report.Drivers) == 0 {
		fmt.Fprintln(out, "All drivers are up to date.")
		return nil
	}
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "PACKAGE\tCURRENT\tAVAILABLE\tRECOMMENDED\tHARDWARE")
	for _, d := range report.Drivers {
		hardware := strings.TrimSpace(d.Vendor + " " + d.Model)
		recommended := ""
		if d.Recommended {
			recommended = "yes"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n", d.Package, d.CurrentVersion, d.AvailableVersion, recommended, hardware)
	}
	return writer.Flush()
}

func runInstall(packages []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stderr)

	runner := executor.New()
	inst := newInstaller(cfg, runner)
	if !inst.Available() {
		return errors.New("pkexec and apt-get are required for installation")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outcomes, err := inst.Install(ctx, packages, func(p installer.Progress) {
		fmt.Printf("[%d/%d] %s: %s\n", p.Index, p.Total, p.Package, p.Message)
	})

	rebootNeeded := false
	failed := 0
	for _, outcome := range outcomes {
		status := "ok"
		if !outcome.Succeeded {
			status = "failed: " + outcome.Message
			failed++
		}
		fmt.Printf("%s: %s\n", outcome.Package, status)
		if outcome.RebootRequired {
			rebootNeeded = true
		}
	}
	if rebootNeeded {
		fmt.Println("Core drivers were updated. A reboot is recommended.")
	}

	if errors.Is(err, installer.ErrAuthDenied) {
		return errors.New("authentication was dismissed or denied")
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d package(s) failed to install", failed)
	}
	return nil
}

func newInstaller(cfg *config.Config, runner executor.Runner) *installer.Installer {
	return installer.New(runner, installer.Options{
		RebootPatterns: cfg.Install.RebootPatterns,
		Timeout:        time.Duration(cfg.Install.TimeoutSeconds) * time.Second,
	})
}
