package relay

import (
	"errors"
	"fmt"

	"github.com/krich11/mls-delivery-service/internal/proto"
	"github.com/krich11/mls-delivery-service/internal/registry"
)

// relay appends the message to the group's log and fans it out to every
// other member with a live connection. The member snapshot comes out of
// the same lock acquisition as the log append; the channel writes happen
// with no registry lock held, so a stalled peer cannot block registry
// operations for unrelated clients.
func (s *Service) relay(r proto.RelayMessage) *proto.Response {
	members, err := s.groups.Append(r.GroupID, r.SenderID, r.MessageType, r.Message)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return proto.ErrorResponse(proto.KindNotFound, "group not found: "+r.GroupID)
	case errors.Is(err, registry.ErrNotMember):
		return proto.ErrorResponse(proto.KindNotMember, "sender not in group: "+r.SenderID)
	case err != nil:
		return proto.ErrorResponse(proto.KindNotFound, err.Error())
	}

	frame := proto.Delivery(r.GroupID, r.SenderID, r.MessageType, r.Message)
	delivered, recipients := 0, 0
	for _, member := range members {
		if member == r.SenderID {
			continue
		}
		recipients++
		sink, ok := s.directory.Lookup(member)
		if !ok {
			// Offline member: best effort only, no queueing.
			continue
		}
		if err := sink.Send(frame); err != nil {
			s.log.Warn("delivery failed", "group", r.GroupID, "member", member, "err", err)
			continue
		}
		delivered++
	}
	s.log.Info("relayed message",
		"group", r.GroupID,
		"sender", r.SenderID,
		"message_type", r.MessageType,
		"delivered", delivered,
		"recipients", recipients)
	return proto.RelayAck(
		fmt.Sprintf("relayed to %d of %d members", delivered, recipients),
		delivered, recipients)
}
