package adb

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/rs/zerolog/log"
)

// mDNS service advertised by devices with wireless debugging enabled.
const (
	WirelessServiceType = "_adb-tls-connect._tcp"
	Domain              = "local."
)

// Endpoint is a wireless debugging endpoint found on the local network.
type Endpoint struct {
	Instance  string
	Host      string
	Port      int
	Addresses []string
}

// Address returns host:port for adb connect, preferring the first resolved
// address over the host name.
func (e Endpoint) Address() string {
	host := e.Host
	if len(e.Addresses) > 0 {
		host = e.Addresses[0]
	}
	return net.JoinHostPort(host, strconv.Itoa(e.Port))
}

// serviceEntry is the part of a zeroconf entry the browser uses.
type serviceEntry struct {
	instance string
	host     string
	port     int
	addrs    []string
}

func fromZeroconf(entry *zeroconf.ServiceEntry) serviceEntry {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return serviceEntry{
		instance: entry.Instance,
		host:     entry.HostName,
		port:     int(entry.Port),
		addrs:    addrs,
	}
}

type browseFunc func(ctx context.Context, found, gone chan<- serviceEntry)

// MDNSBrowser finds wireless debugging endpoints using zeroconf.
type MDNSBrowser struct {
	iface  string
	browse browseFunc
}

// NewMDNSBrowser creates a browser. If iface is set, only that network
// interface is queried.
func NewMDNSBrowser(iface string) *MDNSBrowser {
	b := &MDNSBrowser{iface: iface}
	b.browse = b.zeroconfBrowse
	return b
}

// Browse collects endpoints for the given window. Endpoints announced on
// several interfaces are merged by instance name; endpoints withdrawn before
// the window ends are dropped.
func (b *MDNSBrowser) Browse(ctx context.Context, window time.Duration) ([]Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	found := make(chan serviceEntry)
	gone := make(chan serviceEntry)
	go b.browse(ctx, found, gone)

	var order []string
	endpoints := make(map[string]*Endpoint)
	for {
		select {
		case e := <-found:
			if ep, ok := endpoints[e.instance]; ok {
				ep.Addresses = mergeAddresses(ep.Addresses, e.addrs)
				continue
			}
			endpoints[e.instance] = &Endpoint{Instance: e.instance, Host: e.host, Port: e.port, Addresses: e.addrs}
			order = append(order, e.instance)
			log.Debug().Str("instance", e.instance).Str("host", e.host).Int("port", e.port).Msg("Wireless debugging endpoint found")

		case e := <-gone:
			delete(endpoints, e.instance)

		case <-ctx.Done():
			out := make([]Endpoint, 0, len(endpoints))
			for _, name := range order {
				if ep, ok := endpoints[name]; ok {
					out = append(out, *ep)
				}
			}
			if err := ctx.Err(); err != nil && err != context.DeadlineExceeded {
				return out, err
			}
			return out, nil
		}
	}
}

func (b *MDNSBrowser) zeroconfBrowse(ctx context.Context, found, gone chan<- serviceEntry) {
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go forwardEntries(ctx, entries, removed, found, gone)

	if err := zeroconf.Browse(ctx, WirelessServiceType, Domain, entries, removed, b.options()...); err != nil {
		log.Warn().Err(err).Msg("mDNS browse failed")
	}
}

// forwardEntries converts zeroconf entries until entries is closed or ctx
// is done. A closed removed channel stops only the withdrawal side.
func forwardEntries(ctx context.Context, entries, removed <-chan *zeroconf.ServiceEntry, found, gone chan<- serviceEntry) {
	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return
			}
			select {
			case found <- fromZeroconf(entry):
			case <-ctx.Done():
				return
			}
		case entry, ok := <-removed:
			if !ok {
				removed = nil
				continue
			}
			select {
			case gone <- fromZeroconf(entry):
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (b *MDNSBrowser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.iface != "" {
		iface, err := net.InterfaceByName(b.iface)
		if err != nil {
			log.Warn().Err(err).Str("iface", b.iface).Msg("mDNS interface not found, browsing on all interfaces")
			return nil
		}
		opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
	}
	return opts
}

func mergeAddresses(have, add []string) []string {
	for _, a := range add {
		dup := false
		for _, h := range have {
			if h == a {
				dup = true
				break
			}
		}
		if !dup {
			have = append(have, a)
		}
	}
	return have
}

// ConnectWireless browses for wireless debugging endpoints and connects the
// adb server to each of them. Endpoints that refuse the connection are
// logged and skipped. It returns the endpoints that connected.
func (c *Client) ConnectWireless(ctx context.Context, b *MDNSBrowser, window time.Duration) ([]Endpoint, error) {
	endpoints, err := b.Browse(ctx, window)
	if err != nil {
		return nil, err
	}

	var connected []Endpoint
	for _, ep := range endpoints {
		if err := c.Connect(ctx, ep.Address()); err != nil {
			log.Warn().Err(err).Str("instance", ep.Instance).Msg("Wireless connect failed")
			continue
		}
		connected = append(connected, ep)
	}
	return connected, nil
}
