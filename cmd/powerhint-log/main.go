// Command powerhint-log views and analyzes the device event logs written by
// powerhint-test --event-log.
//
// Usage:
//
//	powerhint-log <command> [flags] <file.plog>
//
// Examples:
//
//	# View all events
//	powerhint-log view run.plog
//
//	# View only failed and passed value checks of one scene
//	powerhint-log view --category check --scene launch run.plog
//
//	# Export to CSV
//	powerhint-log export --format csv -o run.csv run.plog
//
//	# Keep only one device and save to a new file
//	powerhint-log filter --serial 0123456789ABCDEF -o one.plog run.plog
//
//	# Show statistics
//	powerhint-log stats run.plog
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/cmd/powerhint-log/commands"
)

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "powerhint-log",
		Short:         "PowerHint device event log analyzer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	cmd.AddCommand(
		newViewCommand(),
		newExportCommand(),
		newFilterCommand(),
		newStatsCommand(),
	)
	return cmd
}

func addFilterFlags(cmd *cobra.Command, opts *commands.FilterOptions) {
	flags := cmd.Flags()
	flags.StringVar(&opts.RunID, "run-id", "", "only events of this run")
	flags.StringVar(&opts.Serial, "serial", "", "only events of this device")
	flags.StringVar(&opts.Scene, "scene", "", "only events of this scene")
	flags.StringVar(&opts.Category, "category", "", "only events of this category (command, state, check, error)")
	flags.StringVar(&opts.TimeStart, "time-start", "", "only events at or after this RFC 3339 time")
	flags.StringVar(&opts.TimeEnd, "time-end", "", "only events before this RFC 3339 time")
}

func newViewCommand() *cobra.Command {
	var opts commands.FilterOptions
	cmd := &cobra.Command{
		Use:   "view [flags] <file.plog>",
		Short: "View log file in human-readable format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := opts.Build()
			if err != nil {
				return err
			}
			return commands.RunView(args[0], filter, cmd.OutOrStdout())
		},
	}
	addFilterFlags(cmd, &opts)
	return cmd
}

func newExportCommand() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export [flags] <file.plog>",
		Short: "Export log file to JSONL or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			return commands.RunExport(args[0], format, w)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "jsonl", "output format (jsonl, csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newFilterCommand() *cobra.Command {
	var opts commands.FilterOptions
	var output string
	cmd := &cobra.Command{
		Use:   "filter [flags] -o <out.plog> <file.plog>",
		Short: "Filter log file and write to new file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := commands.RunFilter(args[0], output, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Filtered %d events to %s\n", n, output)
			return nil
		},
	}
	addFilterFlags(cmd, &opts)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file.plog>",
		Short: "Show statistics about the log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunStats(args[0], cmd.OutOrStdout())
		},
	}
}
