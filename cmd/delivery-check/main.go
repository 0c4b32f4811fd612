// delivery-check is a validation CLI: it connects to a delivery service,
// performs a ListKeyPackages round trip and exits non-zero if the service
// does not answer correctly.
// Usage: go run ./cmd/delivery-check -addr localhost:8080
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/krich11/mls-delivery-service/client"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "delivery service address (empty to discover via mDNS)")
	network := flag.String("transport", "tcp", "transport: tcp or quic")
	timeout := flag.Duration("timeout", 5*time.Second, "total probe timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c, err := client.New(ctx, client.Config{Addr: *addr, Transport: *network})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	clients, err := c.ListKeyPackages(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "probe failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ok: service is up, %d KeyPackage(s) stored\n", len(clients))
}
