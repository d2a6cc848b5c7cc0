package events

import (
	"encoding/json"
	"fmt"
)

// Protocol version
const (
	ProtocolVersion = "1.0"
	ProtocolName    = "expense-websocket-protocol"
)

// ClientCommand is a message sent by a dashboard client
type ClientCommand struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Protocol error codes
const (
	ErrCodeInvalidFrame    = "INVALID_FRAME"
	ErrCodeUnsupportedType = "UNSUPPORTED_TYPE"
	ErrCodeMessageTooLarge = "MESSAGE_TOO_LARGE"
)

// ProtocolError represents a protocol-level error
type ProtocolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ParseClientCommand decodes a client frame. Only heartbeats are accepted.
func ParseClientCommand(raw []byte) (ClientCommand, error) {
	var cmd ClientCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return cmd, &ProtocolError{Code: ErrCodeInvalidFrame, Message: "frame is not valid JSON"}
	}
	switch cmd.Type {
	case MessageTypeHeartbeat:
		return cmd, nil
	case "":
		return cmd, &ProtocolError{Code: ErrCodeInvalidFrame, Message: "frame has no type"}
	default:
		return cmd, &ProtocolError{Code: ErrCodeUnsupportedType, Message: fmt.Sprintf("unsupported message type %q", cmd.Type)}
	}
}
