package registry

import (
	"sync"
	"time"

	"github.com/krich11/mls-delivery-service/internal/proto"
)

// LogRecord is one relayed message as recorded in a group's log. Records
// are append-only and never read back over the wire; the log exists for
// audit and future offline delivery.
type LogRecord struct {
	Seq         uint64
	Sender      string
	MessageType proto.MessageType
	Payload     []byte
	At          time.Time
}

// group membership only ever grows and the creator is always a member.
type group struct {
	creator   string
	members   []string // join order, creator first
	memberSet map[string]struct{}
	log       []LogRecord
}

func (g *group) isMember(clientID string) bool {
	_, ok := g.memberSet[clientID]
	return ok
}

func (g *group) snapshot() []string {
	return append([]string(nil), g.members...)
}

// Groups tracks group membership and per-group message logs. Groups are
// created, joined and written to; they are never deleted and members are
// never removed.
type Groups struct {
	mu     sync.RWMutex
	groups map[string]*group
}

func NewGroups() *Groups {
	return &Groups{groups: make(map[string]*group)}
}

// Create registers a new group with the creator as its only member. It
// returns the member snapshot, or ErrGroupExists if the id is taken.
func (r *Groups) Create(groupID, creatorID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.groups[groupID]; ok {
		return nil, ErrGroupExists
	}
	r.groups[groupID] = &group{
		creator:   creatorID,
		members:   []string{creatorID},
		memberSet: map[string]struct{}{creatorID: {}},
	}
	return []string{creatorID}, nil
}

// Join adds clientID to the group and returns the member snapshot.
// Joining a group one is already in is a no-op success. Returns
// ErrNotFound for an unknown group.
func (r *Groups) Join(groupID, clientID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if !ok {
		return nil, ErrNotFound
	}
	if !g.isMember(clientID) {
		g.members = append(g.members, clientID)
		g.memberSet[clientID] = struct{}{}
	}
	return g.snapshot(), nil
}

// Members returns the member snapshot in join order.
func (r *Groups) Members(groupID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[groupID]
	if !ok {
		return nil, ErrNotFound
	}
	return g.snapshot(), nil
}

// IsMember reports whether clientID belongs to the group.
func (r *Groups) IsMember(groupID, clientID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[groupID]
	if !ok {
		return false, ErrNotFound
	}
	return g.isMember(clientID), nil
}

// Append records a relayed message in the group's log after checking the
// sender's membership, and returns the member snapshot taken under the
// same lock acquisition. The caller fans out to that snapshot without
// holding any registry lock.
func (r *Groups) Append(groupID, senderID string, messageType proto.MessageType, payload []byte) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[groupID]
	if !ok {
		return nil, ErrNotFound
	}
	if !g.isMember(senderID) {
		return nil, ErrNotMember
	}
	g.log = append(g.log, LogRecord{
		Seq:         uint64(len(g.log) + 1),
		Sender:      senderID,
		MessageType: messageType,
		Payload:     append([]byte(nil), payload...),
		At:          time.Now(),
	})
	return g.snapshot(), nil
}

// LogLen returns the number of messages recorded for the group.
func (r *Groups) LogLen(groupID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[groupID]
	if !ok {
		return 0, ErrNotFound
	}
	return len(g.log), nil
}

// Len returns the number of groups.
func (r *Groups) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups)
}
