// Package discovery advertises the relay on the local network over mDNS so
// LAN clients can find it without configuration.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hashicorp/mdns"
)

const ServiceType = "_sketchsync._tcp"

// Advertise announces the server until the returned server is shut down.
// An empty instance uses the OS hostname.
func Advertise(instance string, port int) (*mdns.Server, error) {
	service, err := newService(instance, "", port, nil)
	if err != nil {
		return nil, err
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("start mdns server: %w", err)
	}
	return server, nil
}

func newService(instance, hostName string, port int, ips []net.IP) (*mdns.MDNSService, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("hostname: %w", err)
		}
		instance = host
	}
	service, err := mdns.NewMDNSService(instance, ServiceType, "", hostName, port, ips, []string{"sketchsync", "path=/ws"})
	if err != nil {
		return nil, fmt.Errorf("build mdns service: %w", err)
	}
	return service, nil
}

// Browse returns the first advertised relay address (host:port) seen before
// ctx ends.
func Browse(ctx context.Context) (string, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	found := make(chan string, 1)
	go func() {
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			select {
			case found <- fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port):
			default:
			}
		}
	}()

	timeout := time.Second
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	if err != nil {
		return "", fmt.Errorf("mdns query: %w", err)
	}
	select {
	case addr := <-found:
		return addr, nil
	default:
		return "", fmt.Errorf("no %s service found", ServiceType)
	}
}
