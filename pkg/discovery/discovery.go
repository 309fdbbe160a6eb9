// Package discovery finds Moonraker hosts on the local network over mDNS.
package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/rs/zerolog/log"
)

const (
	// ServiceType is the DNS-SD service Moonraker advertises with its zeroconf
	// component enabled.
	ServiceType = "_moonraker._tcp"
	Domain      = "local."
)

// Host is one advertised Moonraker instance. Addresses from every interface
// it answered on are merged.
type Host struct {
	Instance  string   `json:"instance"`
	HostName  string   `json:"host_name"`
	Port      int      `json:"port"`
	Addresses []string `json:"addresses"`
	Text      []string `json:"text,omitempty"`
}

// WebSocketURL returns the JSON-RPC endpoint of the host, preferring an IPv4
// address over the advertised host name.
func (h Host) WebSocketURL() string {
	addr := strings.TrimSuffix(h.HostName, ".")
	for _, a := range h.Addresses {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			addr = a
			break
		}
	}
	if addr == "" && len(h.Addresses) > 0 {
		addr = h.Addresses[0]
	}
	return "ws://" + net.JoinHostPort(addr, strconv.Itoa(h.Port)) + "/websocket"
}

// Browser browses for Moonraker hosts.
type Browser struct {
	// Interface restricts browsing to one network interface when set.
	Interface string
}

// Browse streams hosts as they are first seen until ctx ends. Later answers
// for a known instance only widen its address list.
func (b *Browser) Browse(ctx context.Context) (<-chan Host, error) {
	out := make(chan Host)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)
		seen := make(map[string]*Host)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				host := fromEntry(entry)
				if existing, found := seen[host.Instance]; found {
					existing.Addresses = mergeAddresses(existing.Addresses, host.Addresses)
					continue
				}
				seen[host.Instance] = &host
				log.Debug().Str("instance", host.Instance).Str("url", host.WebSocketURL()).Msg("Found Moonraker host")
				select {
				case out <- host:
				case <-ctx.Done():
					return
				}
			case entry, ok := <-removed:
				if ok {
					delete(seen, entry.Instance)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		if err := zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, b.options()...); err != nil {
			log.Warn().Err(err).Msg("mDNS browse failed")
		}
	}()

	return out, nil
}

// Scan browses for the given duration and returns every host found.
func (b *Browser) Scan(ctx context.Context, timeout time.Duration) ([]Host, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	hosts, err := b.Browse(ctx)
	if err != nil {
		return nil, err
	}
	var found []Host
	for h := range hosts {
		found = append(found, h)
	}
	return found, nil
}

func (b *Browser) options() []zeroconf.ClientOption {
	var opts []zeroconf.ClientOption
	if b.Interface != "" {
		iface, err := net.InterfaceByName(b.Interface)
		if err != nil {
			log.Warn().Err(err).Str("interface", b.Interface).Msg("Ignoring unknown interface")
		} else {
			opts = append(opts, zeroconf.SelectIfaces([]net.Interface{*iface}))
		}
	}
	return opts
}

func fromEntry(entry *zeroconf.ServiceEntry) Host {
	ips := make([]net.IP, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	ips = append(ips, entry.AddrIPv4...)
	ips = append(ips, entry.AddrIPv6...)
	return newHost(entry.Instance, entry.HostName, entry.Port, entry.Text, ips)
}

func newHost(instance, hostName string, port int, text []string, ips []net.IP) Host {
	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.String())
	}
	return Host{
		Instance:  instance,
		HostName:  hostName,
		Port:      port,
		Addresses: addrs,
		Text:      text,
	}
}

func mergeAddresses(existing, more []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, a := range existing {
		seen[a] = true
	}
	for _, a := range more {
		if !seen[a] {
			existing = append(existing, a)
			seen[a] = true
		}
	}
	return existing
}
