package proto

import "encoding/json"

// Response wire tags. Tag names are fixed by the existing protocol.
const (
	TypeMessageResponse        = "MessageResponse"
	TypeKeyPackageResponse     = "KeyPackageResponse"
	TypeKeyPackageListResponse = "KeyPackageListResponse"
	TypeGroupResponse          = "GroupResponse"
	TypeError                  = "Error"
	TypeMessageDelivery        = "MessageDelivery"
)

// ErrorKind is the machine-readable failure class carried by an Error
// response.
type ErrorKind string

const (
	KindNotFound      ErrorKind = "NotFound"
	KindAlreadyExists ErrorKind = "AlreadyExists"
	KindNotMember     ErrorKind = "NotMember"
	KindMalformed     ErrorKind = "Malformed"
	KindOversized     ErrorKind = "Oversized"
)

// Response is the flat wire form of every server-to-client frame: replies
// to requests and pushed MessageDelivery frames alike. Which fields are
// populated depends on Type.
type Response struct {
	Type string `json:"type"`

	// MessageResponse
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	// RelayMessage acknowledgements only: how many members the message
	// reached out of how many other members the group has.
	Delivered  int `json:"delivered,omitempty"`
	Recipients int `json:"recipients,omitempty"`

	// KeyPackageResponse / KeyPackageListResponse
	ClientID   string   `json:"client_id,omitempty"`
	KeyPackage Bytes    `json:"key_package,omitempty"`
	Clients    []string `json:"clients,omitempty"`

	// GroupResponse
	GroupID string   `json:"group_id,omitempty"`
	Members []string `json:"members,omitempty"`

	// Error
	Error ErrorKind `json:"error,omitempty"`

	// MessageDelivery
	Sender      string      `json:"sender,omitempty"`
	MessageType MessageType `json:"message_type,omitempty"`
	Payload     Bytes       `json:"payload,omitempty"`
}

func Ack(detail string) *Response {
	return &Response{Type: TypeMessageResponse, Success: true, Message: detail}
}

// RelayAck acknowledges a relay with its delivery counts.
func RelayAck(detail string, delivered, recipients int) *Response {
	return &Response{
		Type:       TypeMessageResponse,
		Success:    true,
		Message:    detail,
		Delivered:  delivered,
		Recipients: recipients,
	}
}

func ErrorResponse(kind ErrorKind, detail string) *Response {
	return &Response{Type: TypeError, Error: kind, Message: detail}
}

func KeyPackageResponse(clientID string, keyPackage Bytes) *Response {
	return &Response{Type: TypeKeyPackageResponse, ClientID: clientID, KeyPackage: keyPackage}
}

func KeyPackageListResponse(clients []string) *Response {
	return &Response{Type: TypeKeyPackageListResponse, Clients: clients}
}

func GroupResponse(groupID string, members []string) *Response {
	return &Response{Type: TypeGroupResponse, GroupID: groupID, Members: members}
}

// Delivery is the frame pushed to each connected group member during a
// relay fan-out.
func Delivery(groupID, sender string, messageType MessageType, payload Bytes) *Response {
	return &Response{
		Type:        TypeMessageDelivery,
		GroupID:     groupID,
		Sender:      sender,
		MessageType: messageType,
		Payload:     payload,
	}
}

// DecodeResponse parses one raw frame into a Response. Used by the client
// SDK and test tooling.
func DecodeResponse(raw []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
