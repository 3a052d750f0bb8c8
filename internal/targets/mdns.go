package targets

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/grandcat/zeroconf"
)

const DEFAULT_MDNS_SERVICE = "_osc._udp"
const MDNS_DOMAIN = "local."

// MDNSBrowser finds OSC receivers that advertise themselves over mDNS.
type MDNSBrowser struct{}

func (MDNSBrowser) Browse(ctx context.Context, service string, timeout time.Duration) ([]Target, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	resolver, err := zeroconf.NewResolver()
	if err != nil {
		return nil, fmt.Errorf("mdns resolver: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, service, MDNS_DOMAIN, entries); err != nil {
		return nil, fmt.Errorf("mdns browse %s: %w", service, err)
	}

	found := []Target{}
	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return found, nil
			}
			found = append(found, entryTargets(e)...)
		case <-ctx.Done():
			return found, nil
		}
	}
}

func entryTargets(e *zeroconf.ServiceEntry) []Target {
	ts := make([]Target, 0, len(e.AddrIPv4))
	for _, ip := range e.AddrIPv4 {
		slog.Debug("targets: mdns receiver", "instance", e.Instance, "ip", ip, "port", e.Port)
		ts = append(ts, Target{Host: ip.String(), Port: e.Port})
	}
	return ts
}
