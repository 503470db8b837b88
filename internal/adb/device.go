package adb

import (
	"context"
)

// Device runs adb commands against one serial.
type Device struct {
	client *Client
	serial string
	runID  string
}

// Serial returns the adb serial.
func (d *Device) Serial() string {
	return d.serial
}

// Shell runs a command in the device shell and returns its output.
func (d *Device) Shell(ctx context.Context, args ...string) (string, error) {
	return d.client.run(ctx, d.serial, d.runID, append([]string{"shell"}, args...)...)
}

// ReadValue returns the raw contents of a file on the device.
func (d *Device) ReadValue(ctx context.Context, path string) (string, error) {
	return d.Shell(ctx, "cat", path)
}

// Root restarts adbd with root permissions.
func (d *Device) Root(ctx context.Context) error {
	_, err := d.client.run(ctx, d.serial, d.runID, "root")
	return err
}

// Pull copies remote to the local path.
func (d *Device) Pull(ctx context.Context, remote, local string) error {
	_, err := d.client.run(ctx, d.serial, d.runID, "pull", remote, local)
	return err
}

// SetProperty sets a system property.
func (d *Device) SetProperty(ctx context.Context, name, value string) error {
	_, err := d.Shell(ctx, "setprop", name, value)
	return err
}

// RebootAndWait reboots the device and blocks until adb sees it again.
func (d *Device) RebootAndWait(ctx context.Context) error {
	if _, err := d.client.run(ctx, d.serial, d.runID, "reboot"); err != nil {
		return err
	}
	_, err := d.client.run(ctx, d.serial, d.runID, "wait-for-device")
	return err
}
