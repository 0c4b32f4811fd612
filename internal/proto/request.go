package proto

import (
	"encoding/json"
	"fmt"
)

// MessageType classifies a relayed MLS message. The relay never inspects
// the payload; the type travels alongside it so receivers can route.
type MessageType string

const (
	MessageWelcome     MessageType = "Welcome"
	MessageAdd         MessageType = "Add"
	MessageApplication MessageType = "Application"
	MessageCommit      MessageType = "Commit"
	MessageProposal    MessageType = "Proposal"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageWelcome, MessageAdd, MessageApplication, MessageCommit, MessageProposal:
		return true
	}
	return false
}

// Request is one decoded wire request. The variant set is closed: the
// dispatcher switches over the concrete types and treats anything else
// as malformed.
type Request interface {
	// Type is the wire tag for this variant.
	Type() string
	// Actor is the client identity the request acts as, or "" when the
	// variant carries none. The dispatcher binds the connection to it.
	Actor() string
}

type StoreKeyPackage struct {
	ClientID   string
	KeyPackage Bytes
}

func (StoreKeyPackage) Type() string    { return "StoreKeyPackage" }
func (r StoreKeyPackage) Actor() string { return r.ClientID }

type FetchKeyPackage struct {
	ClientID string
}

func (FetchKeyPackage) Type() string { return "FetchKeyPackage" }

// Actor is empty: client_id names the lookup target, not the requester.
func (FetchKeyPackage) Actor() string { return "" }

type ListKeyPackages struct{}

func (ListKeyPackages) Type() string  { return "ListKeyPackages" }
func (ListKeyPackages) Actor() string { return "" }

type CreateGroup struct {
	GroupID   string
	CreatorID string
}

func (CreateGroup) Type() string    { return "CreateGroup" }
func (r CreateGroup) Actor() string { return r.CreatorID }

type JoinGroup struct {
	GroupID  string
	ClientID string
}

func (JoinGroup) Type() string    { return "JoinGroup" }
func (r JoinGroup) Actor() string { return r.ClientID }

type RelayMessage struct {
	GroupID     string
	SenderID    string
	Message     Bytes
	MessageType MessageType
}

func (RelayMessage) Type() string    { return "RelayMessage" }
func (r RelayMessage) Actor() string { return r.SenderID }

// requestEnvelope is the flat wire form shared by all request variants.
// Byte fields are pointers so a missing field can be told apart from an
// empty one.
type requestEnvelope struct {
	Type        string      `json:"type"`
	ClientID    string      `json:"client_id,omitempty"`
	KeyPackage  *Bytes      `json:"key_package,omitempty"`
	GroupID     string      `json:"group_id,omitempty"`
	CreatorID   string      `json:"creator_id,omitempty"`
	SenderID    string      `json:"sender_id,omitempty"`
	Message     *Bytes      `json:"message,omitempty"`
	MessageType MessageType `json:"message_type,omitempty"`
}

// DecodeRequest parses one raw frame into a request variant. Any parse
// failure, unknown type or missing required field yields ErrMalformed.
func DecodeRequest(raw []byte) (Request, error) {
	var env requestEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	switch env.Type {
	case "StoreKeyPackage":
		if env.ClientID == "" || env.KeyPackage == nil {
			return nil, fmt.Errorf("%w: StoreKeyPackage requires client_id and key_package", ErrMalformed)
		}
		return StoreKeyPackage{ClientID: env.ClientID, KeyPackage: *env.KeyPackage}, nil
	case "FetchKeyPackage":
		if env.ClientID == "" {
			return nil, fmt.Errorf("%w: FetchKeyPackage requires client_id", ErrMalformed)
		}
		return FetchKeyPackage{ClientID: env.ClientID}, nil
	case "ListKeyPackages":
		return ListKeyPackages{}, nil
	case "CreateGroup":
		if env.GroupID == "" || env.CreatorID == "" {
			return nil, fmt.Errorf("%w: CreateGroup requires group_id and creator_id", ErrMalformed)
		}
		return CreateGroup{GroupID: env.GroupID, CreatorID: env.CreatorID}, nil
	case "JoinGroup":
		if env.GroupID == "" || env.ClientID == "" {
			return nil, fmt.Errorf("%w: JoinGroup requires group_id and client_id", ErrMalformed)
		}
		return JoinGroup{GroupID: env.GroupID, ClientID: env.ClientID}, nil
	case "RelayMessage":
		if env.GroupID == "" || env.SenderID == "" || env.Message == nil {
			return nil, fmt.Errorf("%w: RelayMessage requires group_id, sender_id and message", ErrMalformed)
		}
		if !env.MessageType.Valid() {
			return nil, fmt.Errorf("%w: unknown message_type %q", ErrMalformed, env.MessageType)
		}
		return RelayMessage{
			GroupID:     env.GroupID,
			SenderID:    env.SenderID,
			Message:     *env.Message,
			MessageType: env.MessageType,
		}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
	}
}

// EncodeRequest renders a request variant back to its flat wire form.
func EncodeRequest(req Request) ([]byte, error) {
	env := requestEnvelope{Type: req.Type()}
	switch r := req.(type) {
	case StoreKeyPackage:
		kp := r.KeyPackage
		env.ClientID, env.KeyPackage = r.ClientID, &kp
	case FetchKeyPackage:
		env.ClientID = r.ClientID
	case ListKeyPackages:
	case CreateGroup:
		env.GroupID, env.CreatorID = r.GroupID, r.CreatorID
	case JoinGroup:
		env.GroupID, env.ClientID = r.GroupID, r.ClientID
	case RelayMessage:
		msg := r.Message
		env.GroupID, env.SenderID = r.GroupID, r.SenderID
		env.Message, env.MessageType = &msg, r.MessageType
	default:
		return nil, fmt.Errorf("unsupported request type %T", req)
	}
	return json.Marshal(env)
}
