package connection

import (
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrAlreadyClosed = errors.New("already closed")
	ErrDisconnected  = errors.New("disconnected during connect")
)

// Close codes passed to Conn.Close.
const (
	CloseNormalClosure = websocket.CloseNormalClosure
	CloseGoingAway     = websocket.CloseGoingAway
)

// FrameKind classifies an inbound frame.
type FrameKind uint8

const (
	FrameUnknown FrameKind = iota
	FrameText
	FrameBinary
)

func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Frame is one unit of data received from the transport.
type Frame struct {
	Kind       FrameKind
	Text       string    // Set for FrameText
	Data       []byte    // Set for FrameBinary
	ReceivedAt time.Time // Local timestamp when the read returned
}

// Phase is the coarse connection lifecycle position.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseOpen
	PhaseReconnecting
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseConnecting:
		return "Connecting"
	case PhaseOpen:
		return "Open"
	case PhaseReconnecting:
		return "Reconnecting"
	case PhaseClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// State is the manager's lifecycle state. Attempt is only set while
// Reconnecting and counts consecutive retries.
type State struct {
	Phase   Phase
	Attempt uint
}

func (s State) String() string {
	if s.Phase == PhaseReconnecting {
		return fmt.Sprintf("Reconnecting(%d)", s.Attempt)
	}
	return s.Phase.String()
}

// ClientConfig configures the WebSocket transport.
type ClientConfig struct {
	Header           map[string]string // Extra handshake headers
	HandshakeTimeout time.Duration     // Max time for the opening handshake
	PingInterval     time.Duration     // How often to ping the server (0 = never)
	ReadTimeout      time.Duration     // Max silence before a read fails (0 = no deadline)
	WriteTimeout     time.Duration     // Write deadline for sends
	ReadLimit        int64             // Max inbound frame size in bytes (0 = unlimited)
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     15 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadLimit:        1 << 20,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	Endpoint   string        // Remote endpoint (e.g., wss://relay.example.com/ws)
	EventName  string        // Event name stamped on messages built by SendMessage
	MaxRetries uint          // Consecutive failures before automatic reconnection stops
	BaseDelay  time.Duration // First backoff delay; doubles per retry
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		EventName:  DefaultEventName,
		MaxRetries: 5,
		BaseDelay:  2 * time.Second,
	}
}

// DefaultEventName is stamped on messages sent with SendMessage.
const DefaultEventName = "message"

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	State       State
	RetryCount  uint
	Session     string // ID of the current transport handle ("" when none)
	Subscribers int
	Published   int64
	Backlog     int // events queued for subscribers but not yet delivered
}
