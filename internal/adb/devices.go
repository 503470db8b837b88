package adb

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Kscope-Devices/android-device-duoqin-qin2pro/internal/device"
)

// deviceLine matches one "adb devices -l" entry of a device in the "device"
// state. The usb field is absent for devices attached over the network.
var deviceLine = regexp.MustCompile(`^(\S+)\s+device\s+(?:usb:(\S+)\s+)?product:(\S+)\s+model:(\S+)\s+device:(\S+)`)

// ParseDevices extracts the identities listed in "adb devices -l" output.
// Unauthorized, offline and header lines are skipped.
func ParseDevices(output string) []device.Identity {
	var ids []device.Identity
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		m := deviceLine.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		ids = append(ids, device.Identity{
			Serial:  m[1],
			USB:     m[2],
			Product: m[3],
			Model:   m[4],
			Name:    m[5],
		})
	}
	return ids
}

// ListDevices returns the devices currently attached and authorized.
func (c *Client) ListDevices(ctx context.Context) ([]device.Identity, error) {
	out, err := c.run(ctx, "", "", "devices", "-l")
	if err != nil {
		return nil, err
	}
	return ParseDevices(out), nil
}

// WaitForDevice polls ListDevices until at least one device is listed.
// It gives up with ErrDiscoveryTimeout after attempts polls spaced by
// interval.
func (c *Client) WaitForDevice(ctx context.Context, attempts int, interval time.Duration) ([]device.Identity, error) {
	for i := 1; i <= attempts; i++ {
		ids, err := c.ListDevices(ctx)
		switch {
		case err != nil:
			log.Warn().Err(err).Int("attempt", i).Msg("Listing devices failed")
		case len(ids) > 0:
			return ids, nil
		default:
			log.Info().Int("attempt", i).Int("of", attempts).Msg("Waiting for device")
		}

		if i == attempts {
			break
		}
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	return nil, fmt.Errorf("%w after %d attempts", ErrDiscoveryTimeout, attempts)
}
