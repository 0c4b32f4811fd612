package relay

import (
	"github.com/krich11/mls-delivery-service/internal/proto"
	"github.com/krich11/mls-delivery-service/internal/registry"
)

// dispatch maps one decoded request to exactly one registry or router
// operation and returns the reply frame. The acting identity carried by
// the request is bound to the connection first, so a client is routable
// from its first identifying request onward.
func (s *Service) dispatch(connID string, sink registry.Sink, req proto.Request) *proto.Response {
	if actor := req.Actor(); actor != "" {
		s.directory.Bind(actor, connID, sink)
	}

	switch r := req.(type) {
	case proto.StoreKeyPackage:
		s.keyPackages.Store(r.ClientID, r.KeyPackage)
		s.log.Info("stored KeyPackage", "client", r.ClientID, "bytes", len(r.KeyPackage))
		return proto.Ack("KeyPackage stored for " + r.ClientID)

	case proto.FetchKeyPackage:
		payload, err := s.keyPackages.Fetch(r.ClientID)
		if err != nil {
			return proto.ErrorResponse(proto.KindNotFound, "no KeyPackage for "+r.ClientID)
		}
		return proto.KeyPackageResponse(r.ClientID, payload)

	case proto.ListKeyPackages:
		return proto.KeyPackageListResponse(s.keyPackages.List())

	case proto.CreateGroup:
		members, err := s.groups.Create(r.GroupID, r.CreatorID)
		if err != nil {
			return proto.ErrorResponse(proto.KindAlreadyExists, "group already exists: "+r.GroupID)
		}
		s.log.Info("created group", "group", r.GroupID, "creator", r.CreatorID)
		return proto.GroupResponse(r.GroupID, members)

	case proto.JoinGroup:
		members, err := s.groups.Join(r.GroupID, r.ClientID)
		if err != nil {
			return proto.ErrorResponse(proto.KindNotFound, "group not found: "+r.GroupID)
		}
		s.log.Info("client joined group", "group", r.GroupID, "client", r.ClientID)
		return proto.GroupResponse(r.GroupID, members)

	case proto.RelayMessage:
		return s.relay(r)
	}
	// The request variant set is closed; DecodeRequest rejects anything
	// else before dispatch.
	return proto.ErrorResponse(proto.KindMalformed, "unhandled request")
}
