package registry

import (
	"sync"

	"github.com/krich11/mls-delivery-service/internal/proto"
)

// Sink is the non-owning handle for pushing frames to a connected client.
// The connection handler owns the underlying connection; a sink left in
// the directory after its connection died just fails its sends until the
// handler's teardown unbinds it.
type Sink interface {
	Send(resp *proto.Response) error
}

type binding struct {
	connID string
	sink   Sink
}

// Directory maps a client identity to the connection it was last seen on.
// A client reconnecting supersedes its old binding; a closing connection
// removes every binding still pointing at it.
type Directory struct {
	mu       sync.RWMutex
	byClient map[string]binding
}

func NewDirectory() *Directory {
	return &Directory{byClient: make(map[string]binding)}
}

// Bind associates clientID with the given connection, replacing any
// earlier binding for the same client.
func (d *Directory) Bind(clientID, connID string, sink Sink) {
	d.mu.Lock()
	d.byClient[clientID] = binding{connID: connID, sink: sink}
	d.mu.Unlock()
}

// Lookup returns the sink for clientID, or false when the client has no
// live connection.
func (d *Directory) Lookup(clientID string) (Sink, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.byClient[clientID]
	if !ok {
		return nil, false
	}
	return b.sink, true
}

// UnbindConn removes every binding that still points at connID. Called
// from connection teardown; bindings already superseded by a newer
// connection are left alone.
func (d *Directory) UnbindConn(connID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for clientID, b := range d.byClient {
		if b.connID == connID {
			delete(d.byClient, clientID)
		}
	}
}

// Len returns the number of bound clients.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byClient)
}
