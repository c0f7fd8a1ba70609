/*
Package protocol defines the wire format for all client-server communication.

A packet is one self-describing JSON object tagged by type. On the TCP
transport each packet occupies exactly one newline-terminated line; on the
WebSocket bridge each packet occupies one text frame. Payloads form a closed
set: every type tag maps to exactly one payload shape.
*/
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// PacketType identifies what kind of packet is being sent.
type PacketType string

const (
	// Client → Server
	TypeRegister PacketType = "register"
	TypeLogin    PacketType = "login"
	TypeChat     PacketType = "chat"
	TypeSearch   PacketType = "search"
	TypeHistory  PacketType = "history"
	TypeUsers    PacketType = "users"
	TypeQuit     PacketType = "quit"

	// Server → Client
	TypeResponse  PacketType = "response"
	TypeBroadcast PacketType = "broadcast"
	TypeSystem    PacketType = "system"
)

// Packet is the top-level wire format.
type Packet struct {
	Type    PacketType      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewPacket marshals payload and returns a ready-to-encode Packet.
func NewPacket(t PacketType, payload any) (*Packet, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %s payload: %w", t, err)
	}
	return &Packet{Type: t, Payload: raw}, nil
}

// Encode returns the JSON bytes for p, without transport framing.
func (p *Packet) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// Decode parses one packet from raw JSON bytes.
func Decode(data []byte) (*Packet, error) {
	var pkt Packet
	if err := json.Unmarshal(data, &pkt); err != nil {
		return nil, fmt.Errorf("protocol: decode packet: %w", err)
	}
	return &pkt, nil
}

// AuthPayload is used for both register and login. Login alternatively
// accepts a session token issued by a previous successful auth, in which
// case username and password stay empty.
type AuthPayload struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// ChatPayload carries a user's chat message.
type ChatPayload struct {
	Content string `json:"content"`
}

// SearchPayload carries search criteria. Non-empty fields combine with AND
// logic; at least one must be present.
type SearchPayload struct {
	Query    string     `json:"query,omitempty"`    // case-insensitive content substring
	Username string     `json:"username,omitempty"` // exact username (case-insensitive)
	From     *time.Time `json:"from,omitempty"`     // inclusive start of timestamp range
	To       *time.Time `json:"to,omitempty"`       // inclusive end of timestamp range
}

// Empty reports whether every search criterion is unset.
func (p SearchPayload) Empty() bool {
	return p.Query == "" && p.Username == "" && p.From == nil && p.To == nil
}

// HistoryPayload requests the most recent messages. Limit <= 0 means the
// entire log.
type HistoryPayload struct {
	Limit int `json:"limit"`
}

// ResponsePayload is the generic server acknowledgement. Data carries the
// result payload for search, history, users, and auth (session token).
type ResponsePayload struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// BroadcastPayload is fanned out to every connected client when a chat
// message is accepted.
type BroadcastPayload struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SystemPayload carries server-originated notices (welcome, join/leave).
type SystemPayload struct {
	Message string `json:"message"`
}

// StoredMessage is the durable representation of a chat message. IDs are
// opaque, unique, and strictly increasing in insertion order.
type StoredMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// UserInfo describes a currently online user.
type UserInfo struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}
