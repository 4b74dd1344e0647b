package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownType marks a frame whose type this build does not understand.
	// Callers drop the frame and continue.
	ErrUnknownType = errors.New("unknown message type")
	// ErrMalformed marks a frame that failed to decode.
	ErrMalformed = errors.New("malformed message")
)

var serverTypes = map[MessageType]struct{}{
	MsgDevices:          {},
	MsgDeviceJoined:     {},
	MsgDeviceLeft:       {},
	MsgNowPlayingUpdate: {},
	MsgTransfer:         {},
	MsgCommand:          {},
	MsgControlClaimed:   {},
	MsgControlReleased:  {},
	MsgBrowseRequest:    {},
	MsgBrowseResponse:   {},
	MsgNotification:     {},
	MsgQueueUpdated:     {},
	MsgError:            {},
}

type envelope struct {
	Type MessageType `json:"type"`
}

// Parse decodes a raw frame into a ServerMessage. The type field is decoded
// first so malformed bodies of known types and bodies of unknown types can be
// told apart.
func Parse(data []byte) (*ServerMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if _, ok := serverTypes[env.Type]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &msg, nil
}

// Encode serializes an outbound frame.
func Encode(msg *ClientMessage) ([]byte, error) {
	return json.Marshal(msg)
}
