// Package discovery advertises a delivery service on the local network
// over mDNS and lets clients locate one without configuration.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/betamos/zeroconf"
)

const (
	ServiceType = "_mls-delivery._tcp"
	Domain      = "local."
)

// Relay is a delivery service seen on the local network.
type Relay struct {
	Name string
	Addr string
	Port int
}

// Advertiser publishes this delivery service instance over mDNS.
type Advertiser struct {
	client *zeroconf.Client
}

// Advertise publishes the service under name on the given port.
func Advertise(name string, port int) (*Advertiser, error) {
	svcType := zeroconf.NewType(ServiceType)
	port16 := uint16(port)
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("mdns: port %d out of range", port)
	}
	self := zeroconf.NewService(svcType, name, port16)

	client, err := zeroconf.New().Publish(self).Open()
	if err != nil {
		return nil, fmt.Errorf("zeroconf: %w", err)
	}
	return &Advertiser{client: client}, nil
}

// Close stops advertising.
func (a *Advertiser) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// Locate browses for a delivery service and returns the first one seen,
// or the context error if none shows up in time.
func Locate(ctx context.Context) (Relay, error) {
	found := make(chan Relay, 1)
	svcType := zeroconf.NewType(ServiceType)

	client, err := zeroconf.New().
		Browse(func(e zeroconf.Event) {
			if relay, ok := fromEvent(e); ok {
				select {
				case found <- relay:
				default:
				}
			}
		}, svcType).
		Open()
	if err != nil {
		return Relay{}, fmt.Errorf("zeroconf: %w", err)
	}
	defer client.Close()

	select {
	case relay := <-found:
		return relay, nil
	case <-ctx.Done():
		return Relay{}, ctx.Err()
	}
}

func fromEvent(e zeroconf.Event) (Relay, bool) {
	var addrs []string
	for _, a := range e.Addrs {
		if a.IsValid() {
			addrs = append(addrs, net.JoinHostPort(a.String(), strconv.Itoa(int(e.Port))))
		}
	}
	if len(addrs) == 0 {
		return Relay{}, false
	}
	// Prefer an IPv4 address when one is present.
	addr := addrs[0]
	for _, a := range addrs {
		if !strings.Contains(a, "::") {
			addr = a
			break
		}
	}
	return Relay{Name: e.Name, Addr: addr, Port: int(e.Port)}, true
}

// ParseAddr splits "host:port" and parses the port.
func ParseAddr(s string) (host string, port int, err error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, err
	}
	port, err = strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}
