// Command powerhint-test verifies the PowerHint scenes of every attached
// Android device.
//
// For each device listed by `adb devices -l` it enables ylog, reboots,
// pulls the PowerHint configuration from /vendor/etc, checks the default
// value of every tunable and then enables and disables each scene, checking
// that the scene values are applied and the defaults restored. Findings go
// to PowerHint-test-<serial>_<product>_<timestamp>/report.txt.
//
// Usage:
//
//	powerhint-test [flags] [scene-pattern]
//	powerhint-test shell <serial>
//
// Examples:
//
//	# Verify every scene on every attached device
//	powerhint-test
//
//	# Only launch scenes, without the ylog reboot, JSON summary
//	powerhint-test --no-ylog --output json "^interaction_"
//
//	# Record the device event log for powerhint-log
//	powerhint-test --event-log run.plog
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/adb"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/config"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/testharness/reporter"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/testharness/runner"
	plog "github.com/Kscope-Devices/android-device-duoqin-qin2pro/pkg/log"
)

// options holds the command line flags. Flags that are set override the
// configuration file.
type options struct {
	configPath string
	logLevel   string
	logJSON    bool
	adbBinary  string
	reportRoot string
	workDir    string
	output     string
	verbose    bool
	eventLog   string
	noYlog     bool
	mdns       bool
	mdnsIface  string
	attempts   int
}

func main() {
	if err := newRootCommand(&options{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "powerhint-test [scene-pattern]",
		Short:         "Verify PowerHint scenes on attached Android devices",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, args)
			if err != nil {
				return err
			}
			err = run(cmd.Context(), cfg, opts)
			if err != nil {
				log.Error().Err(err).Msg("Test run failed")
			}
			return err
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to YAML configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	flags.BoolVar(&opts.logJSON, "log-json", false, "log as JSON instead of console text")
	flags.StringVar(&opts.adbBinary, "adb", "", "path to the adb binary")
	flags.StringVar(&opts.workDir, "work-dir", "", "local directory the configuration documents are pulled into")
	flags.StringVar(&opts.eventLog, "event-log", "", "write the device event log (CBOR) to this file")

	local := cmd.Flags()
	local.StringVar(&opts.reportRoot, "report-root", "", "directory the per-device report directories are created in")
	local.StringVarP(&opts.output, "output", "o", "text", "console summary format (text|json|junit)")
	local.BoolVarP(&opts.verbose, "verbose", "v", false, "list every mismatch in the console summary")
	local.BoolVar(&opts.noYlog, "no-ylog", false, "skip ylog preparation, reboot and log pull")
	local.BoolVar(&opts.mdns, "mdns", false, "connect wireless debugging devices found via mDNS first")
	local.StringVar(&opts.mdnsIface, "mdns-iface", "", "network interface for the mDNS browse")
	local.IntVar(&opts.attempts, "discovery-attempts", 0, "device discovery attempts, one per interval")

	cmd.AddCommand(newShellCommand(opts))

	return cmd
}

// loadConfig reads the configuration file, applies flag overrides and sets
// up logging.
func loadConfig(cmd *cobra.Command, opts *options, args []string) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON = opts.logJSON
	}
	if flags.Changed("adb") {
		cfg.ADB.Binary = opts.adbBinary
	}
	if flags.Changed("work-dir") {
		cfg.WorkDir = opts.workDir
	}
	if flags.Changed("event-log") {
		cfg.EventLog = opts.eventLog
	}
	if flags.Changed("report-root") {
		cfg.ReportRoot = opts.reportRoot
	}
	if flags.Changed("no-ylog") {
		cfg.Ylog.Enabled = !opts.noYlog
	}
	if flags.Changed("mdns") {
		cfg.ADB.MDNS = opts.mdns
	}
	if flags.Changed("discovery-attempts") {
		cfg.Discovery.Attempts = opts.attempts
	}
	if len(args) > 0 {
		cfg.Scenes = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)
	return cfg, nil
}

// openEventLog returns the device event logger: the CBOR file if
// configured, mirrored to the debug log.
func openEventLog(path string) (plog.Logger, func(), error) {
	adapter := plog.NewZerologAdapter(log.Logger)
	if path == "" {
		return adapter, func() {}, nil
	}
	fl, err := plog.NewFileLogger(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open event log: %w", err)
	}
	log.Info().Str("path", path).Msg("Device event logging enabled")
	closeLog := func() {
		if err := fl.Close(); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to close device event log")
		}
	}
	return plog.NewMultiLogger(fl, adapter), closeLog, nil
}

func run(ctx context.Context, cfg *config.Config, opts *options) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	events, closeEvents, err := openEventLog(cfg.EventLog)
	if err != nil {
		return err
	}
	defer closeEvents()

	rc, err := runner.ConfigFrom(cfg)
	if err != nil {
		return err
	}
	rc.EventLogger = events

	rep, err := reporter.New(opts.output, os.Stdout, opts.verbose)
	if err != nil {
		return err
	}

	client := adb.NewClient(cfg.ADB.Binary, adb.WithEventLogger(events))
	if cfg.ADB.MDNS {
		connected, err := client.ConnectWireless(ctx, adb.NewMDNSBrowser(opts.mdnsIface), cfg.Discovery.Browse.Duration())
		if err != nil {
			return fmt.Errorf("mdns: %w", err)
		}
		log.Info().Int("connected", len(connected)).Msg("Wireless debugging devices connected")
	}

	r := runner.New(rc, client, func(serial, runID string) runner.Transport {
		return client.Device(serial, runID)
	}, rep)

	results, err := r.RunAll(ctx)
	if err != nil {
		if errors.Is(err, adb.ErrDiscoveryTimeout) {
			return fmt.Errorf("no available devices detected: %w", err)
		}
		return err
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil || res.FailCount() > 0 {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d devices failed verification", failed, len(results))
	}
	return nil
}
