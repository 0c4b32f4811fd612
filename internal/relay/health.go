package relay

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"
)

// StartHealth serves the supervisory liveness endpoint on its own port,
// outside the wire protocol. GET /health answers 200 with registry
// counters. Returns the bound address.
func (s *Service) StartHealth(ctx context.Context, addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Status string `json:"status"`
			Stats
		}{Status: "ok", Stats: s.Stats()})
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	context.AfterFunc(ctx, func() { _ = srv.Close() })
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("health server stopped", "err", err)
		}
	}()
	s.log.Info("health endpoint listening", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}
