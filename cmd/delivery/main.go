package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/krich11/mls-delivery-service/internal/config"
	"github.com/krich11/mls-delivery-service/internal/discovery"
	"github.com/krich11/mls-delivery-service/internal/relay"
	"github.com/krich11/mls-delivery-service/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := relay.New(logger)

	var srv *transport.Server
	switch cfg.Transport {
	case "quic":
		srv, err = transport.ListenQUIC(ctx, cfg.ListenAddr(), svc.HandleConn)
	default:
		srv, err = transport.ListenTCP(ctx, cfg.ListenAddr(), svc.HandleConn)
	}
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr(), err)
	}
	defer srv.Close()
	logger.Info("delivery service listening", "addr", srv.LocalAddr(), "transport", cfg.Transport)

	if _, err := svc.StartHealth(ctx, cfg.HealthAddr()); err != nil {
		return fmt.Errorf("health endpoint on %s: %w", cfg.HealthAddr(), err)
	}

	if cfg.EnableMDNS {
		_, port, err := discovery.ParseAddr(srv.LocalAddr())
		if err != nil {
			return err
		}
		adv, err := discovery.Advertise(cfg.ServiceName, port)
		if err != nil {
			return fmt.Errorf("mdns advertise: %w", err)
		}
		defer adv.Close()
		logger.Info("advertising over mDNS", "name", cfg.ServiceName, "port", port)
	}

	<-ctx.Done()
	logger.Info("delivery service shutting down")
	return nil
}
