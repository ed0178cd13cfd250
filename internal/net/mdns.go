package net

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

const serviceType = "_scriptink._tcp"

// Host is a ScriptInk host found on the LAN.
type Host struct {
	Name string
	Addr string
}

// Advertise announces a host serving on port until the returned server is
// shut down.
func Advertise(port int, info ...string) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("advertise: hostname: %w", err)
	}
	if len(info) == 0 {
		info = []string{"ScriptInk"}
	}

	service, err := mdns.NewMDNSService(host, serviceType, "", "", port, nil, info)
	if err != nil {
		return nil, fmt.Errorf("advertise: %w", err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("advertise: start server: %w", err)
	}
	return server, nil
}

// Browse collects hosts answering on the LAN within timeout.
func Browse(timeout time.Duration) ([]Host, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	found := make(chan []Host)
	go func() {
		var hosts []Host
		seen := make(map[string]bool)
		for e := range entries {
			if h, ok := hostFromEntry(e); ok && !seen[h.Addr] {
				seen[h.Addr] = true
				hosts = append(hosts, h)
			}
		}
		found <- hosts
	}()

	params := mdns.DefaultParams(serviceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	hosts := <-found
	if err != nil {
		return hosts, fmt.Errorf("browse: %w", err)
	}
	return hosts, nil
}

func hostFromEntry(e *mdns.ServiceEntry) (Host, bool) {
	if e == nil || e.AddrV4 == nil || e.Port == 0 {
		return Host{}, false
	}
	return Host{Name: e.Host, Addr: net.JoinHostPort(e.AddrV4.String(), fmt.Sprint(e.Port))}, true
}
