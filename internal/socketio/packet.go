package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// EngineType is the first byte of every Engine.IO frame.
type EngineType byte

const (
	EngineOpen    EngineType = '0'
	EngineClose   EngineType = '1'
	EnginePing    EngineType = '2'
	EnginePong    EngineType = '3'
	EngineMessage EngineType = '4'
	EngineUpgrade EngineType = '5'
	EngineNoop    EngineType = '6'
)

// PacketType identifies a Socket.IO packet carried in an Engine.IO message.
type PacketType byte

const (
	PacketConnect      PacketType = '0'
	PacketDisconnect   PacketType = '1'
	PacketEvent        PacketType = '2'
	PacketAck          PacketType = '3'
	PacketConnectError PacketType = '4'
	PacketBinaryEvent  PacketType = '5'
	PacketBinaryAck    PacketType = '6'
)

// DefaultNamespace is the namespace used when none is given.
const DefaultNamespace = "/"

var (
	ErrEmptyPacket       = errors.New("socketio: empty packet")
	ErrUnknownPacketType = errors.New("socketio: unknown packet type")
	ErrBinaryUnsupported = errors.New("socketio: binary packets are not supported")
)

// Handshake is the payload of the Engine.IO open packet.
type Handshake struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	MaxPayload   int64    `json:"maxPayload,omitempty"`
}

// Packet is a decoded Socket.IO packet.
type Packet struct {
	Type      PacketType
	Namespace string
	// ID is the ack id; -1 when absent.
	ID   int
	Data json.RawMessage
}

// Frame prefixes an encoded packet with the Engine.IO message type.
func (p Packet) Frame() string {
	return string(EngineMessage) + p.Encode()
}

// Encode renders the packet as <type>[<namespace>,][<id>][<data>].
func (p Packet) Encode() string {
	var b strings.Builder
	b.WriteByte(byte(p.Type))
	if p.Namespace != "" && p.Namespace != DefaultNamespace {
		b.WriteString(p.Namespace)
		b.WriteByte(',')
	}
	if p.ID >= 0 {
		b.WriteString(strconv.Itoa(p.ID))
	}
	b.Write(p.Data)
	return b.String()
}

// DecodePacket parses the Socket.IO part of an Engine.IO message.
func DecodePacket(s string) (Packet, error) {
	p := Packet{Namespace: DefaultNamespace, ID: -1}
	if s == "" {
		return p, ErrEmptyPacket
	}
	p.Type = PacketType(s[0])
	switch p.Type {
	case PacketConnect, PacketDisconnect, PacketEvent, PacketAck, PacketConnectError:
	case PacketBinaryEvent, PacketBinaryAck:
		return p, ErrBinaryUnsupported
	default:
		return p, fmt.Errorf("%w %q", ErrUnknownPacketType, s[0])
	}
	rest := s[1:]

	if strings.HasPrefix(rest, "/") {
		if i := strings.IndexByte(rest, ','); i >= 0 {
			p.Namespace, rest = rest[:i], rest[i+1:]
		} else {
			p.Namespace, rest = rest, ""
		}
	}

	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > 0 {
		id, err := strconv.Atoi(rest[:i])
		if err != nil {
			return p, fmt.Errorf("socketio: ack id: %w", err)
		}
		p.ID, rest = id, rest[i:]
	}

	if rest != "" {
		if !json.Valid([]byte(rest)) {
			return p, fmt.Errorf("socketio: invalid packet data %q", rest)
		}
		p.Data = json.RawMessage(rest)
	}
	return p, nil
}

// NewEvent builds an event packet for name with JSON-encoded args.
func NewEvent(namespace, name string, args ...any) (Packet, error) {
	parts := make([]any, 0, len(args)+1)
	parts = append(parts, name)
	parts = append(parts, args...)
	data, err := json.Marshal(parts)
	if err != nil {
		return Packet{}, fmt.Errorf("socketio: encode %s: %w", name, err)
	}
	return Packet{Type: PacketEvent, Namespace: namespace, ID: -1, Data: data}, nil
}

// Event splits an event packet into its name and arguments.
func (p Packet) Event() (string, []json.RawMessage, error) {
	if p.Type != PacketEvent {
		return "", nil, fmt.Errorf("socketio: packet type %q is not an event", p.Type)
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(p.Data, &parts); err != nil {
		return "", nil, fmt.Errorf("socketio: event data: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, errors.New("socketio: event without name")
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("socketio: event name: %w", err)
	}
	return name, parts[1:], nil
}

// ConnectPacket is the namespace connect request sent by a client.
func ConnectPacket(namespace string) Packet {
	return Packet{Type: PacketConnect, Namespace: namespace, ID: -1}
}

// DisconnectPacket leaves namespace.
func DisconnectPacket(namespace string) Packet {
	return Packet{Type: PacketDisconnect, Namespace: namespace, ID: -1}
}

// ParseFrame splits an Engine.IO frame into its type and payload.
func ParseFrame(data []byte) (EngineType, string, error) {
	if len(data) == 0 {
		return 0, "", ErrEmptyPacket
	}
	return EngineType(data[0]), string(data[1:]), nil
}
