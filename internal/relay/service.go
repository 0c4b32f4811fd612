// Package relay implements the delivery service engine: the protocol
// dispatcher, the message router and the per-connection handler, wired
// over the three registries. The relay never interprets payloads; it
// routes by group membership only.
package relay

import (
	"log/slog"

	"github.com/krich11/mls-delivery-service/internal/registry"
)

// Service holds the shared state of one delivery service instance. The
// three registries are the only state shared across connections, each
// guarded by its own lock.
type Service struct {
	log         *slog.Logger
	keyPackages *registry.KeyPackages
	groups      *registry.Groups
	directory   *registry.Directory
}

func New(log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		log:         log,
		keyPackages: registry.NewKeyPackages(),
		groups:      registry.NewGroups(),
		directory:   registry.NewDirectory(),
	}
}

// Stats is a point-in-time view of registry sizes, exposed through the
// health endpoint.
type Stats struct {
	KeyPackages  int `json:"key_packages"`
	Groups       int `json:"groups"`
	BoundClients int `json:"bound_clients"`
}

func (s *Service) Stats() Stats {
	return Stats{
		KeyPackages:  s.keyPackages.Len(),
		Groups:       s.groups.Len(),
		BoundClients: s.directory.Len(),
	}
}
