// Package protocol defines the typed message envelopes exchanged
// between queue members after frame decoding.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	TypeAuthRequest   = "auth_request"
	TypeAuthResponse  = "auth_response"
	TypeClipboardItem = "clipboard_item"
	TypeMemberUpdate  = "member_update"
)

var (
	ErrMalformedMessage = errors.New("protocol: malformed message")
	ErrUnknownMessage   = errors.New("protocol: unknown message type")
	ErrInvalidMessage   = errors.New("protocol: invalid message")
)

// AuthRequest is the first frame a client sends after connecting.
type AuthRequest struct {
	Password   string  `json:"password"`
	ClientID   string  `json:"client_id"`
	ClientName *string `json:"client_name"`
}

func (m AuthRequest) Validate() error {
	if strings.TrimSpace(m.ClientID) == "" {
		return fmt.Errorf("%w: auth_request missing client_id", ErrInvalidMessage)
	}
	return nil
}

// AuthResponse is the host's verdict on an AuthRequest.
type AuthResponse struct {
	OK     bool    `json:"ok"`
	Reason *string `json:"reason"`
}

// ClipboardItem is one shared clipboard entry.
type ClipboardItem struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"`
	Payload    string  `json:"payload"`
	Timestamp  string  `json:"timestamp"`
	Origin     string  `json:"origin"`
	SenderName *string `json:"sender_name"`
}

// Member is one entry of a membership snapshot.
type Member struct {
	ID     string  `json:"id"`
	Name   *string `json:"name"`
	Addr   *string `json:"addr"`
	IsSelf bool    `json:"is_self"`
}

// MemberUpdate is a full replacement snapshot, never a delta.
type MemberUpdate struct {
	Members []Member `json:"members"`
}

type envelope struct {
	Type string `json:"type"`

	Password   *string        `json:"password,omitempty"`
	ClientID   *string        `json:"client_id,omitempty"`
	ClientName *string        `json:"client_name,omitempty"`
	OK         *bool          `json:"ok,omitempty"`
	Reason     *string        `json:"reason,omitempty"`
	Item       *ClipboardItem `json:"item,omitempty"`
	Members    *[]Member      `json:"members,omitempty"`
}

// Message is the closed union of decodable envelope payloads.
type Message interface{ messageType() string }

func (AuthRequest) messageType() string   { return TypeAuthRequest }
func (AuthResponse) messageType() string  { return TypeAuthResponse }
func (ClipboardItem) messageType() string { return TypeClipboardItem }
func (MemberUpdate) messageType() string  { return TypeMemberUpdate }

func EncodeAuthRequest(m AuthRequest) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		AuthRequest
	}{Type: TypeAuthRequest, AuthRequest: m})
}

func EncodeAuthResponse(m AuthResponse) ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		AuthResponse
	}{Type: TypeAuthResponse, AuthResponse: m})
}

func EncodeClipboardItem(item ClipboardItem) ([]byte, error) {
	return json.Marshal(struct {
		Type string        `json:"type"`
		Item ClipboardItem `json:"item"`
	}{Type: TypeClipboardItem, Item: item})
}

func EncodeMemberUpdate(members []Member) ([]byte, error) {
	if members == nil {
		members = []Member{}
	}
	return json.Marshal(struct {
		Type    string   `json:"type"`
		Members []Member `json:"members"`
	}{Type: TypeMemberUpdate, Members: members})
}

// Decode parses one envelope payload and returns the concrete message.
func Decode(payload []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	switch env.Type {
	case TypeAuthRequest:
		m := AuthRequest{
			ClientName: env.ClientName,
		}
		if env.Password != nil {
			m.Password = *env.Password
		}
		if env.ClientID != nil {
			m.ClientID = *env.ClientID
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		return m, nil
	case TypeAuthResponse:
		m := AuthResponse{Reason: env.Reason}
		if env.OK != nil {
			m.OK = *env.OK
		}
		return m, nil
	case TypeClipboardItem:
		if env.Item == nil {
			return nil, fmt.Errorf("%w: clipboard_item missing item", ErrInvalidMessage)
		}
		return *env.Item, nil
	case TypeMemberUpdate:
		m := MemberUpdate{}
		if env.Members != nil {
			m.Members = *env.Members
		} else {
			m.Members = []Member{}
		}
		return m, nil
	case "":
		return nil, fmt.Errorf("%w: missing type discriminator", ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}

// DecodeAuthRequest parses a payload that must be an auth_request.
// Anything else is a handshake protocol violation.
func DecodeAuthRequest(payload []byte) (AuthRequest, error) {
	msg, err := Decode(payload)
	if err != nil {
		return AuthRequest{}, err
	}
	req, ok := msg.(AuthRequest)
	if !ok {
		return AuthRequest{}, fmt.Errorf("%w: expected auth_request", ErrInvalidMessage)
	}
	return req, nil
}

// DecodeAuthResponse parses a payload that must be an auth_response.
func DecodeAuthResponse(payload []byte) (AuthResponse, error) {
	msg, err := Decode(payload)
	if err != nil {
		return AuthResponse{}, err
	}
	resp, ok := msg.(AuthResponse)
	if !ok {
		return AuthResponse{}, fmt.Errorf("%w: expected auth_response", ErrInvalidMessage)
	}
	return resp, nil
}
