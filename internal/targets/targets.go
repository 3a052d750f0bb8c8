package targets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"
)

var ERROR_DISCOVERY_UNAVAILABLE = errors.New("interface discovery unavailable")

const UNIVERSAL_BROADCAST = "255.255.255.255"
const LOOPBACK_BROADCAST = "127.255.255.255"

type Mode string

const (
	MODE_UNICAST   Mode = "unicast"
	MODE_BROADCAST Mode = "broadcast"
	MODE_MDNS      Mode = "mdns"
)

// Target is one datagram destination. Host is an IP or a hostname.
type Target struct {
	Host string
	Port int
}

func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

func (t Target) UDPAddr() (*net.UDPAddr, error) {
	return net.ResolveUDPAddr("udp4", t.String())
}

// Interface is the part of a network interface the resolver looks at.
type Interface struct {
	Name      string
	Broadcast bool
	Loopback  bool
	Addrs     []net.Addr
}

// InterfaceSource lists the host's interfaces. A nil source means the
// capability is not available in this environment.
type InterfaceSource func() ([]Interface, error)

// Browser finds receivers advertised on the local network.
type Browser interface {
	Browse(ctx context.Context, service string, timeout time.Duration) ([]Target, error)
}

type Result struct {
	Mode    Mode
	Targets []Target
}

func (r Result) Hosts() []string {
	hosts := make([]string, 0, len(r.Targets))
	for _, t := range r.Targets {
		hosts = append(hosts, t.Host)
	}
	return hosts
}

type options struct {
	interfaces  InterfaceSource
	browser     Browser
	service     string
	browseFor   time.Duration
	ctx         context.Context
	browseFirst bool
}

type Option func(*options)

// WithInterfaceSource replaces net.Interfaces. Pass nil to model an
// environment without interface introspection.
func WithInterfaceSource(src InterfaceSource) Option {
	return func(o *options) {
		o.interfaces = src
	}
}

// WithMDNS asks the browser for receivers of service before falling back to
// broadcast discovery.
func WithMDNS(ctx context.Context, b Browser, service string, timeout time.Duration) Option {
	return func(o *options) {
		o.ctx = ctx
		o.browser = b
		o.service = service
		o.browseFor = timeout
		o.browseFirst = true
	}
}

// Resolve builds the target set. It never fails: every discovery problem
// degrades to the universal broadcast address.
func Resolve(explicit string, port int, opts ...Option) Result {
	o := &options{
		interfaces: SystemInterfaces,
	}
	for _, opt := range opts {
		opt(o)
	}

	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		return Result{
			Mode:    MODE_UNICAST,
			Targets: []Target{{Host: explicit, Port: port}},
		}
	}

	if o.browseFirst && o.browser != nil {
		found, err := o.browser.Browse(o.ctx, o.service, o.browseFor)
		if err != nil {
			slog.Warn("targets: mdns browse failed, using broadcast", "service", o.service, "error", err)
		}
		if len(found) > 0 {
			return Result{Mode: MODE_MDNS, Targets: dedupe(found)}
		}
		slog.Info("targets: no mdns receivers answered, using broadcast", "service", o.service)
	}

	ifaces, err := discover(o.interfaces)
	if err != nil {
		slog.Debug("targets: falling back to universal broadcast", "error", err)
	}

	hosts := BroadcastAddrs(ifaces)
	if len(hosts) == 0 {
		hosts = []string{UNIVERSAL_BROADCAST}
	}

	ts := make([]Target, 0, len(hosts))
	for _, h := range hosts {
		ts = append(ts, Target{Host: h, Port: port})
	}

	return Result{Mode: MODE_BROADCAST, Targets: ts}
}

func discover(src InterfaceSource) ([]Interface, error) {
	if src == nil {
		return nil, ERROR_DISCOVERY_UNAVAILABLE
	}

	ifaces, err := src()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ERROR_DISCOVERY_UNAVAILABLE, err)
	}

	return ifaces, nil
}

// BroadcastAddrs returns the sorted, deduplicated IPv4 broadcast addresses of
// every broadcast-capable interface, skipping the loopback broadcast.
func BroadcastAddrs(ifaces []Interface) []string {
	seen := map[string]bool{}
	out := []string{}

	for _, iface := range ifaces {
		if !iface.Broadcast {
			continue
		}

		for _, a := range iface.Addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}

			b := broadcastOf(ipnet)
			if b == nil {
				continue
			}

			s := b.String()
			if s == LOOPBACK_BROADCAST || seen[s] {
				continue
			}

			seen[s] = true
			out = append(out, s)
		}
	}

	slices.SortFunc(out, compareIPs)
	return out
}

func broadcastOf(n *net.IPNet) net.IP {
	ip := n.IP.To4()
	if ip == nil {
		return nil
	}

	mask := n.Mask
	if len(mask) == net.IPv6len {
		mask = mask[12:]
	}
	if len(mask) != net.IPv4len {
		return nil
	}
	// /31 links and /32 host routes have no broadcast address; ip|^mask
	// would just be a peer or the host itself.
	if ones, _ := mask.Size(); ones >= 31 {
		return nil
	}

	b := make(net.IP, net.IPv4len)
	for i := range ip {
		b[i] = ip[i] | ^mask[i]
	}
	return b
}

// compareIPs orders dotted quads numerically so 9.255.255.255 sorts before
// 10.0.0.255.
func compareIPs(a, b string) int {
	ia, ib := net.ParseIP(a).To4(), net.ParseIP(b).To4()
	if ia == nil || ib == nil {
		return strings.Compare(a, b)
	}
	return slices.Compare(ia, ib)
}

func dedupe(ts []Target) []Target {
	seen := map[string]bool{}
	out := make([]Target, 0, len(ts))
	for _, t := range ts {
		k := t.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}

	slices.SortFunc(out, func(a, b Target) int {
		if c := compareIPs(a.Host, b.Host); c != 0 {
			return c
		}
		return a.Port - b.Port
	})
	return out
}

// SystemInterfaces reads interfaces from the operating system.
func SystemInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			slog.Debug("targets: skipping interface", "iface", iface.Name, "error", err)
			continue
		}

		out = append(out, Interface{
			Name:      iface.Name,
			Broadcast: iface.Flags&net.FlagBroadcast != 0,
			Loopback:  iface.Flags&net.FlagLoopback != 0,
			Addrs:     addrs,
		})
	}

	return out, nil
}
