package transport

import (
	"context"
	"fmt"
	"net"
)

// Server accepts framed connections and hands each one to a handler,
// which runs on its own goroutine and owns the connection's lifetime.
type Server struct {
	handler func(*Conn)
	addrFn  func() string
	closeFn func() error
}

// LocalAddr returns the listen address.
func (s *Server) LocalAddr() string { return s.addrFn() }

// Close stops accepting. Open connections are not torn down; their
// handlers end when the peers disconnect.
func (s *Server) Close() error { return s.closeFn() }

// ListenTCP starts a TCP listener on addr with handler set before the
// first accept.
func ListenTCP(ctx context.Context, addr string, handler func(*Conn)) (*Server, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		handler: handler,
		addrFn:  func() string { return ln.Addr().String() },
		closeFn: ln.Close,
	}
	go s.acceptTCP(ctx, ln)
	return s, nil
}

func (s *Server) acceptTCP(ctx context.Context, ln net.Listener) {
	context.AfterFunc(ctx, func() { _ = ln.Close() })
	for {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		go s.handler(newConn(nc, nc.RemoteAddr().String()))
	}
}

// DialTCP connects to a delivery service over TCP.
func DialTCP(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return newConn(nc, nc.RemoteAddr().String()), nil
}

// Dial connects using the named transport, "tcp" or "quic".
func Dial(ctx context.Context, network, addr string) (*Conn, error) {
	switch network {
	case "tcp":
		return DialTCP(ctx, addr)
	case "quic":
		return DialQUIC(ctx, addr)
	default:
		return nil, fmt.Errorf("unknown transport %q", network)
	}
}
