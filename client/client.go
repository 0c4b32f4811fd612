// Package client provides the delivery service SDK: typed operations for
// KeyPackages, groups and relaying, with channel-based delivery of
// messages relayed by other group members and context.Context for
// timeouts.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/krich11/mls-delivery-service/internal/discovery"
	"github.com/krich11/mls-delivery-service/internal/proto"
	"github.com/krich11/mls-delivery-service/internal/transport"
)

// DefaultDeliveryBuffer is the buffer size for the Deliveries() channel.
const DefaultDeliveryBuffer = 64

// ErrClosed is returned when using a client after Close, or after the
// server ended the connection.
var ErrClosed = errors.New("client closed")

// MessageType classifies a relayed message (re-exported for callers).
type MessageType = proto.MessageType

const (
	MessageWelcome     = proto.MessageWelcome
	MessageAdd         = proto.MessageAdd
	MessageApplication = proto.MessageApplication
	MessageCommit      = proto.MessageCommit
	MessageProposal    = proto.MessageProposal
)

// Delivery is a message relayed to this client by another group member.
type Delivery struct {
	GroupID     string
	Sender      string
	MessageType MessageType
	Payload     []byte
}

// ServiceError is a failure reported by the delivery service.
type ServiceError struct {
	Kind   proto.ErrorKind
	Detail string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("delivery service: %s: %s", e.Kind, e.Detail)
}

// Config configures the client.
type Config struct {
	// Addr is the service address ("host:port"). Empty means locate one
	// on the local network via mDNS.
	Addr string
	// Transport is "tcp" (default) or "quic".
	Transport string
	// DeliveryBuffer sets the Deliveries() channel capacity; 0 uses
	// DefaultDeliveryBuffer. When the buffer is full further deliveries
	// are dropped, matching the relay's best-effort contract.
	DeliveryBuffer int
}

// Client is one connection to a delivery service. Operations are
// serialized per client; deliveries arrive on Deliveries() regardless of
// in-flight operations.
type Client struct {
	conn       *transport.Conn
	deliveries chan Delivery
	replies    chan *proto.Response
	done       chan struct{}

	reqMu  sync.Mutex // one outstanding request at a time
	stateM sync.Mutex
	closed bool
}

// New connects to a delivery service.
func New(ctx context.Context, cfg Config) (*Client, error) {
	addr := cfg.Addr
	if addr == "" {
		relay, err := discovery.Locate(ctx)
		if err != nil {
			return nil, fmt.Errorf("locate delivery service: %w", err)
		}
		addr = relay.Addr
	}
	network := cfg.Transport
	if network == "" {
		network = "tcp"
	}
	conn, err := transport.Dial(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	buf := cfg.DeliveryBuffer
	if buf <= 0 {
		buf = DefaultDeliveryBuffer
	}
	c := &Client{
		conn:       conn,
		deliveries: make(chan Delivery, buf),
		replies:    make(chan *proto.Response, 1),
		done:       make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// readLoop splits incoming frames into request replies and pushed
// deliveries until the connection ends.
func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.deliveries)
	for {
		raw, err := c.conn.ReadFrame()
		if err != nil {
			return
		}
		resp, err := proto.DecodeResponse(raw)
		if err != nil {
			continue
		}
		if resp.Type == proto.TypeMessageDelivery {
			select {
			case c.deliveries <- Delivery{
				GroupID:     resp.GroupID,
				Sender:      resp.Sender,
				MessageType: resp.MessageType,
				Payload:     resp.Payload,
			}:
			default:
				// buffer full; the relay makes no delivery guarantee
			}
			continue
		}
		select {
		case c.replies <- resp:
		default:
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, req proto.Request) (*proto.Response, error) {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	// Drop a reply left behind by an earlier timed-out request.
	select {
	case <-c.replies:
	default:
	}

	data, err := proto.EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	if err := c.conn.WriteRawFrame(data); err != nil {
		return nil, err
	}
	select {
	case resp := <-c.replies:
		if resp.Type == proto.TypeError {
			return nil, &ServiceError{Kind: resp.Error, Detail: resp.Message}
		}
		return resp, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// StoreKeyPackage uploads (or replaces) this client's key-exchange blob.
func (c *Client) StoreKeyPackage(ctx context.Context, clientID string, keyPackage []byte) error {
	_, err := c.roundTrip(ctx, proto.StoreKeyPackage{ClientID: clientID, KeyPackage: proto.Bytes(keyPackage)})
	return err
}

// FetchKeyPackage retrieves the stored blob for clientID.
func (c *Client) FetchKeyPackage(ctx context.Context, clientID string) ([]byte, error) {
	resp, err := c.roundTrip(ctx, proto.FetchKeyPackage{ClientID: clientID})
	if err != nil {
		return nil, err
	}
	return resp.KeyPackage, nil
}

// ListKeyPackages returns the identifiers of all clients with a stored
// blob.
func (c *Client) ListKeyPackages(ctx context.Context) ([]string, error) {
	resp, err := c.roundTrip(ctx, proto.ListKeyPackages{})
	if err != nil {
		return nil, err
	}
	return resp.Clients, nil
}

// CreateGroup registers a new group with creatorID as its first member
// and returns the member list.
func (c *Client) CreateGroup(ctx context.Context, groupID, creatorID string) ([]string, error) {
	resp, err := c.roundTrip(ctx, proto.CreateGroup{GroupID: groupID, CreatorID: creatorID})
	if err != nil {
		return nil, err
	}
	return resp.Members, nil
}

// JoinGroup adds clientID to the group and returns the member list.
func (c *Client) JoinGroup(ctx context.Context, groupID, clientID string) ([]string, error) {
	resp, err := c.roundTrip(ctx, proto.JoinGroup{GroupID: groupID, ClientID: clientID})
	if err != nil {
		return nil, err
	}
	return resp.Members, nil
}

// Relay forwards an opaque payload to the other connected members of the
// group. It returns how many members it reached out of how many other
// members the group has; there is no delivery guarantee for the rest.
func (c *Client) Relay(ctx context.Context, groupID, senderID string, messageType MessageType, payload []byte) (delivered, recipients int, err error) {
	resp, err := c.roundTrip(ctx, proto.RelayMessage{
		GroupID:     groupID,
		SenderID:    senderID,
		Message:     proto.Bytes(payload),
		MessageType: messageType,
	})
	if err != nil {
		return 0, 0, err
	}
	return resp.Delivered, resp.Recipients, nil
}

// Deliveries returns the channel of messages relayed to this client.
// It is closed when the connection ends.
func (c *Client) Deliveries() <-chan Delivery {
	return c.deliveries
}

// Close shuts the connection down.
func (c *Client) Close() error {
	c.stateM.Lock()
	if c.closed {
		c.stateM.Unlock()
		return nil
	}
	c.closed = true
	c.stateM.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}
