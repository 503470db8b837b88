package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/cmd/powerhint-test/interactive"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/adb"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/device"
	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/testharness/runner"
)

func newShellCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "shell <serial>",
		Short: "Interactively verify single scenes on one device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts, nil)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

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

			client := adb.NewClient(cfg.ADB.Binary, adb.WithEventLogger(events))
			id, err := findDevice(cmd, client, args[0])
			if err != nil {
				return err
			}

			sh, err := interactive.New(rc, func(serial, runID string) runner.Transport {
				return client.Device(serial, runID)
			}, id)
			if err != nil {
				return err
			}
			sh.Run(ctx)
			return nil
		},
	}
}

func findDevice(cmd *cobra.Command, client *adb.Client, serial string) (device.Identity, error) {
	ids, err := client.ListDevices(cmd.Context())
	if err != nil {
		return device.Identity{}, err
	}
	for _, id := range ids {
		if id.Serial == serial {
			return id, nil
		}
	}
	return device.Identity{}, fmt.Errorf("device %s is not attached", serial)
}
