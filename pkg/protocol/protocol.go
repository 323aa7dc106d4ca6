// Package protocol defines the JSON frame schema spoken over the Sesame
// voice websocket. Client frames carry a type tag plus routing ids
// (session_id, call_id) and a type-specific content payload; server frames
// are decoded through the ServerMessage envelope and the typed content
// helpers below.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	TypeInitialize             = "initialize"
	TypePing                   = "ping"
	TypePingResponse           = "ping_response"
	TypeClientLocationState    = "client_location_state"
	TypeCallConnect            = "call_connect"
	TypeCallConnectResponse    = "call_connect_response"
	TypeAudio                  = "audio"
	TypeCallDisconnect         = "call_disconnect"
	TypeCallDisconnectResponse = "call_disconnect_response"
	TypeWebRTCConfig           = "webrtc_config"
	TypeChat                   = "chat"
	TypeError                  = "error"
	TypeAgent                  = "agent"
)

const (
	// AudioCodecNone is the only codec the service accepts from this client:
	// raw 16-bit little-endian PCM with no container.
	AudioCodecNone = "none"

	PingContent                 = "ping"
	DisconnectReasonUserRequest = "user_request"

	DefaultTimezone = "America/Chicago"
	DefaultLanguage = "en-US"
)

// FillerAudioData is a base64 chunk of 1280 zero bytes (40 ms of silence at
// 16 kHz mono s16le). The service does not start streaming speech until it
// has received client audio, so two of these are sent as soon as the first
// server audio frame arrives.
var FillerAudioData = strings.Repeat("A", 1707) + "="

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badFrame(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_frame", Message: message, Param: param}
}

// Ping is the keep-alive frame. The service closes calls whose clients go
// quiet, so one of these precedes bursts of other traffic (see the session's
// send tracking). CallID is null before a call is established.
type Ping struct {
	Type      string  `json:"type"`
	SessionID string  `json:"session_id"`
	CallID    *string `json:"call_id"`
	RequestID string  `json:"request_id"`
	Content   string  `json:"content"`
}

type LocationState struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
	Timezone  string  `json:"timezone"`
}

// ClientLocationState reports coarse client locale right after initialize.
// The service only ever sees a zero location and a timezone. Carries no
// request_id and a null call_id.
type ClientLocationState struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id"`
	CallID    *string       `json:"call_id"`
	Content   LocationState `json:"content"`
}

type AudioContent struct {
	AudioData string `json:"audio_data"`
}

// Audio carries one base64 PCM chunk from client to server. No request_id.
type Audio struct {
	Type      string       `json:"type"`
	SessionID string       `json:"session_id"`
	CallID    string       `json:"call_id"`
	Content   AudioContent `json:"content"`
}

type CallSettings struct {
	Character string `json:"character"`
}

type MediaDevice struct {
	DeviceID string `json:"deviceId"`
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	GroupID  string `json:"groupId"`
}

// DefaultMediaDevices returns the fixed device list reported in call_connect
// metadata. The service expects a browser-shaped enumeration, not real
// hardware.
func DefaultMediaDevices() []MediaDevice {
	return []MediaDevice{
		{DeviceID: "default", Kind: "audioinput", Label: "Default - Microphone", GroupID: "default"},
		{DeviceID: "default", Kind: "audiooutput", Label: "Default - Speaker", GroupID: "default"},
	}
}

type ClientMetadata struct {
	Language      string        `json:"language"`
	UserAgent     string        `json:"user_agent"`
	MobileBrowser bool          `json:"mobile_browser"`
	MediaDevices  []MediaDevice `json:"media_devices"`
}

type CallConnectContent struct {
	SampleRate     int            `json:"sample_rate"`
	AudioCodec     string         `json:"audio_codec"`
	Reconnect      bool           `json:"reconnect"`
	IsPrivate      bool           `json:"is_private"`
	ClientName     string         `json:"client_name"`
	Settings       CallSettings   `json:"settings"`
	ClientMetadata ClientMetadata `json:"client_metadata"`
}

// CallConnect opens a call on an initialized session. CallID is always null
// here; the server assigns one in call_connect_response.
type CallConnect struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id"`
	CallID    *string            `json:"call_id"`
	RequestID string             `json:"request_id"`
	Content   CallConnectContent `json:"content"`
}

type CallDisconnectContent struct {
	Reason string `json:"reason"`
}

type CallDisconnect struct {
	Type      string                `json:"type"`
	SessionID string                `json:"session_id"`
	CallID    string                `json:"call_id"`
	RequestID string                `json:"request_id"`
	Content   CallDisconnectContent `json:"content"`
}

// ServerMessage is the envelope every inbound frame is probed into. Content
// stays raw until the frame type is known; the Decode* helpers unmarshal it.
type ServerMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// CallConnectResponseContent uses pointers so the session can tell an absent
// field from a zero one: a missing sample_rate keeps the previous value,
// while a missing audio_codec resets to AudioCodecNone.
type CallConnectResponseContent struct {
	SampleRate *int    `json:"sample_rate"`
	AudioCodec *string `json:"audio_codec"`
}

func DecodeServerMessage(data []byte) (*ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, badFrame("invalid json frame", "")
	}
	return &msg, nil
}

func (m *ServerMessage) DecodeAudio() (AudioContent, error) {
	var content AudioContent
	if len(m.Content) == 0 {
		return content, badFrame("audio frame has no content", "content")
	}
	if err := json.Unmarshal(m.Content, &content); err != nil {
		return content, badFrame("invalid audio content", "content")
	}
	return content, nil
}

func (m *ServerMessage) DecodeCallConnectResponse() (CallConnectResponseContent, error) {
	var content CallConnectResponseContent
	if len(m.Content) == 0 {
		return content, nil
	}
	if err := json.Unmarshal(m.Content, &content); err != nil {
		return content, badFrame("invalid call_connect_response content", "content")
	}
	return content, nil
}
