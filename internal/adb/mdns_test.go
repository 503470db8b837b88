package adb

import (
	"context"
	"testing"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBrowse(found, gone []serviceEntry) browseFunc {
	return func(ctx context.Context, foundCh, goneCh chan<- serviceEntry) {
		for _, e := range found {
			select {
			case foundCh <- e:
			case <-ctx.Done():
				return
			}
		}
		for _, e := range gone {
			select {
			case goneCh <- e:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}
}

func TestEndpointAddress(t *testing.T) {
	assert.Equal(t, "192.168.1.20:37233", Endpoint{Host: "qin2.local.", Port: 37233, Addresses: []string{"192.168.1.20"}}.Address())
	assert.Equal(t, "qin2.local.:5555", Endpoint{Host: "qin2.local.", Port: 5555}.Address())
	assert.Equal(t, "[fe80::1]:5555", Endpoint{Port: 5555, Addresses: []string{"fe80::1"}}.Address())
}

func TestBrowseMergesAndDrops(t *testing.T) {
	b := &MDNSBrowser{browse: fakeBrowse(
		[]serviceEntry{
			{instance: "adb-A", host: "a.local.", port: 37001, addrs: []string{"192.168.1.20"}},
			{instance: "adb-B", host: "b.local.", port: 37002, addrs: []string{"192.168.1.21"}},
			{instance: "adb-A", host: "a.local.", port: 37001, addrs: []string{"192.168.1.20", "fe80::a"}},
		},
		[]serviceEntry{{instance: "adb-B"}},
	)}

	endpoints, err := b.Browse(context.Background(), 200*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []Endpoint{
		{Instance: "adb-A", Host: "a.local.", Port: 37001, Addresses: []string{"192.168.1.20", "fe80::a"}},
	}, endpoints)
}

func TestBrowseCancelled(t *testing.T) {
	b := &MDNSBrowser{browse: fakeBrowse(nil, nil)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Browse(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnectWireless(t *testing.T) {
	runner := newFakeRunner()
	runner.on("connect 192.168.1.20:37001", "connected to 192.168.1.20:37001\n", nil)
	runner.on("connect 192.168.1.21:37002", "failed to connect\n", nil)
	c := NewClient("", WithCommandRunner(runner))
	b := &MDNSBrowser{browse: fakeBrowse([]serviceEntry{
		{instance: "adb-A", port: 37001, addrs: []string{"192.168.1.20"}},
		{instance: "adb-B", port: 37002, addrs: []string{"192.168.1.21"}},
	}, nil)}

	connected, err := c.ConnectWireless(context.Background(), b, 200*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, connected, 1)
	assert.Equal(t, "adb-A", connected[0].Instance)
}

func TestForwardEntriesAfterRemovedCloses(t *testing.T) {
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)
	found := make(chan serviceEntry, 1)
	gone := make(chan serviceEntry, 1)

	done := make(chan struct{})
	go func() {
		forwardEntries(context.Background(), entries, removed, found, gone)
		close(done)
	}()

	close(removed)
	entry := &zeroconf.ServiceEntry{}
	entry.Instance = "qin2"
	entry.HostName = "qin2.local."
	entries <- entry

	select {
	case got := <-found:
		assert.Equal(t, "qin2", got.instance)
		assert.Equal(t, "qin2.local.", got.host)
	case <-time.After(time.Second):
		t.Fatal("entry not forwarded after removed was closed")
	}

	close(entries)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwardEntries did not return after entries was closed")
	}
	assert.Empty(t, gone)
}

func TestForwardEntriesStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		forwardEntries(ctx, make(chan *zeroconf.ServiceEntry), nil, make(chan serviceEntry), make(chan serviceEntry))
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forwardEntries did not return after cancel")
	}
}

func TestOptionsUnknownInterface(t *testing.T) {
	assert.Empty(t, NewMDNSBrowser("no-such-iface0").options())
	assert.Empty(t, NewMDNSBrowser("").options())
}
