package sesame

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ijub/sesame-go/pkg/protocol"
)

const (
	// ClientSampleRate is the PCM rate the service expects from the client:
	// 16 kHz mono s16le, declared in call_connect and never negotiated.
	ClientSampleRate = 16000

	// defaultServerSampleRate is assumed for agent audio until
	// call_connect_response reports the real rate.
	defaultServerSampleRate = 24000

	defaultConnectTimeout = 10 * time.Second
)

// VoiceService establishes real-time voice conversations with a Sesame
// character. Access it via Client.Voice.
type VoiceService struct {
	client *Client
}

// VoiceSessionConfig configures a voice session.
type VoiceSessionConfig struct {
	// IDToken authenticates the connection. Required; obtain one through
	// AuthService or TokenManager.
	IDToken string

	// Character selects the voice agent. Defaults to "Miles"; see Characters
	// for the known set.
	Character string

	// ClientName identifies the client build to the service. Defaults to
	// "RP-Web".
	ClientName string

	// Timezone is reported in the dial user context and the location state
	// frame. Defaults to "America/Chicago".
	Timezone string

	// OnConnect fires from the session's read goroutine once the call is
	// established.
	OnConnect func()

	// OnDisconnect fires when the call ends, either on a disconnect
	// acknowledgment or when the transport closes.
	OnDisconnect func()

	// ConnectTimeout bounds the dial and call handshake when the Connect
	// context carries no deadline. Defaults to 10 seconds.
	ConnectTimeout time.Duration
}

// NewSession prepares a voice session. No network traffic happens until
// Connect.
func (s *VoiceService) NewSession(cfg VoiceSessionConfig) (*VoiceSession, error) {
	if cfg.IDToken == "" {
		return nil, NewInvalidRequestError("id token is required")
	}
	if cfg.Character == "" {
		cfg.Character = DefaultCharacter
	}
	if cfg.ClientName == "" {
		cfg.ClientName = DefaultClientName
	}
	if cfg.Timezone == "" {
		cfg.Timezone = protocol.DefaultTimezone
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	return &VoiceSession{
		cfg:              cfg,
		url:              s.client.voiceURL,
		tlsVerify:        s.client.tlsVerify,
		logger:           s.client.logger,
		frames:           newFrameBuffer(audioFrameCapacity),
		connected:        make(chan struct{}),
		done:             make(chan struct{}),
		serverSampleRate: defaultServerSampleRate,
		audioCodec:       protocol.AudioCodecNone,
	}, nil
}

// VoiceSession is a live, bidirectional voice conversation. Stream
// microphone PCM in with SendAudio and drain agent PCM with
// NextAudioChunk. Sessions are single-shot: once closed they cannot be
// reconnected.
type VoiceSession struct {
	cfg       VoiceSessionConfig
	url       string
	tlsVerify bool
	logger    *slog.Logger

	conn   *websocket.Conn
	frames *frameBuffer

	// connected is closed when call_connect_response arrives.
	connected     chan struct{}
	connectedOnce sync.Once

	// done is closed when the read loop exits (or when Connect fails
	// before starting it).
	done chan struct{}

	started   atomic.Bool
	closeOnce sync.Once
	closed    atomic.Bool

	// disconnectOnce guards the transport-close notification. The
	// call_disconnect_response handler notifies directly, matching the
	// service's own double signal on a clean hang-up.
	disconnectOnce sync.Once

	// firstAudio is owned by the read loop.
	firstAudio bool

	// mu guards the call identifiers and negotiated audio parameters.
	mu               sync.RWMutex
	sessionID        string
	callID           string
	serverSampleRate int
	audioCodec       string

	// writeMu serializes socket writes and guards lastSentType. The
	// keep-alive ping and the message it precedes go out under one hold.
	writeMu      sync.Mutex
	lastSentType string

	receivedSinceLastSent atomic.Bool

	errMu sync.Mutex
	err   error
}

// Connect dials the voice service and performs the call handshake,
// returning once the agent accepts the call. A handshake timeout returns
// an error but leaves the background transport running: a late
// acceptance still fires OnConnect and the session becomes usable.
// Callers that give up must Close the session.
//
// Connect may be called once per session.
func (s *VoiceSession) Connect(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("voice session already started")
	}

	wsURL, err := s.dialURL()
	if err != nil {
		s.abort()
		return err
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
	}
	if !s.tlsVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	header := http.Header{}
	header.Set("Origin", VoiceOrigin)
	header.Set("User-Agent", BrowserUserAgent)

	dialCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
	}

	conn, resp, err := dialer.DialContext(dialCtx, wsURL, header)
	if err != nil {
		s.abort()
		if resp != nil {
			return &TransportError{Op: "GET", URL: wsURL, Err: fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)}
		}
		return &TransportError{Op: "GET", URL: wsURL, Err: err}
	}
	s.writeMu.Lock()
	s.conn = conn
	s.writeMu.Unlock()
	if s.closed.Load() {
		conn.Close()
		s.abort()
		return fmt.Errorf("voice session closed")
	}
	s.logger.Debug("voice websocket connected", "character", s.cfg.Character)

	go s.readLoop()

	timer := time.NewTimer(s.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case <-s.connected:
		return nil
	case <-s.done:
		if err := s.Err(); err != nil {
			return err
		}
		return fmt.Errorf("connection closed before call was established")
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("no call_connect_response within %s", s.cfg.ConnectTimeout)
	}
}

// abort settles the session channels when Connect fails before the read
// loop starts.
func (s *VoiceSession) abort() {
	s.frames.close()
	close(s.done)
}

func (s *VoiceSession) dialURL() (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", NewInvalidRequestError(fmt.Sprintf("invalid voice URL %q: %v", s.url, err))
	}
	userContext, err := json.Marshal(map[string]string{"timezone": s.cfg.Timezone})
	if err != nil {
		return "", fmt.Errorf("encode usercontext: %w", err)
	}
	q := url.Values{}
	q.Set("id_token", s.cfg.IDToken)
	q.Set("client_name", s.cfg.ClientName)
	q.Set("usercontext", string(userContext))
	q.Set("character", s.cfg.Character)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SendAudio transmits one chunk of ClientSampleRate mono s16le PCM. It
// reports false before the call is established or when the write fails;
// chunks are never queued client-side.
func (s *VoiceSession) SendAudio(pcm []byte) bool {
	sessionID, callID := s.ids()
	if sessionID == "" || callID == "" {
		return false
	}
	msg := protocol.Audio{
		Type:      protocol.TypeAudio,
		SessionID: sessionID,
		CallID:    callID,
		Content: protocol.AudioContent{
			AudioData: base64.StdEncoding.EncodeToString(pcm),
		},
	}
	return s.sendTracked(protocol.TypeAudio, msg)
}

// Disconnect asks the service to end the call. It reports false when no
// call is active and does not wait for the acknowledgment; the service
// answers with call_disconnect_response and closes from its side.
func (s *VoiceSession) Disconnect() bool {
	sessionID, callID := s.ids()
	if sessionID == "" || callID == "" {
		return false
	}
	msg := protocol.CallDisconnect{
		Type:      protocol.TypeCallDisconnect,
		SessionID: sessionID,
		CallID:    callID,
		RequestID: uuid.NewString(),
		Content: protocol.CallDisconnectContent{
			Reason: protocol.DisconnectReasonUserRequest,
		},
	}
	return s.sendTracked(protocol.TypeCallDisconnect, msg)
}

// NextAudioChunk pops the next agent audio frame, waiting up to timeout
// (without bound when timeout <= 0). Returns false on expiry, or after
// the session closes and the buffer drains.
func (s *VoiceSession) NextAudioChunk(timeout time.Duration) ([]byte, bool) {
	return s.frames.pop(timeout)
}

// IsConnected reports whether a call is established.
func (s *VoiceSession) IsConnected() bool {
	sessionID, callID := s.ids()
	return sessionID != "" && callID != ""
}

// ServerSampleRate is the PCM rate of agent audio in Hz, valid once the
// call is established. Defaults to 24000.
func (s *VoiceSession) ServerSampleRate() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverSampleRate
}

// AudioCodec is the negotiated codec name; "none" means raw PCM.
func (s *VoiceSession) AudioCodec() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audioCodec
}

// Done returns a channel that is closed once the session has ended for
// any reason. Callers can select on it alongside their own cancellation.
func (s *VoiceSession) Done() <-chan struct{} {
	return s.done
}

// Err blocks until the session ends and reports the terminal transport
// error. It returns nil after a clean shutdown.
func (s *VoiceSession) Err() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close tears down the transport and waits for the read loop to drain.
// It is safe to call at any time, including before Connect, and is
// idempotent.
func (s *VoiceSession) Close() error {
	if s == nil {
		return nil
	}
	if !s.started.Load() {
		s.closed.Store(true)
		return nil
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.writeMu.Lock()
		conn := s.conn
		s.writeMu.Unlock()
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(2*time.Second))
			_ = conn.Close()
		}
	})
	<-s.done
	return nil
}

func (s *VoiceSession) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *VoiceSession) ids() (sessionID, callID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID, s.callID
}

// notifyDisconnect fires the disconnect callback once per transport
// close.
func (s *VoiceSession) notifyDisconnect() {
	s.disconnectOnce.Do(func() {
		if s.cfg.OnDisconnect != nil {
			s.cfg.OnDisconnect()
		}
	})
}

// clearCall drops the call identifiers so IsConnected reports false once
// the transport is gone.
func (s *VoiceSession) clearCall() {
	s.mu.Lock()
	s.sessionID = ""
	s.callID = ""
	s.mu.Unlock()
}

func (s *VoiceSession) readLoop() {
	defer close(s.done)
	defer s.frames.close()
	defer s.notifyDisconnect()
	defer s.clearCall()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			if s.closed.Load() {
				return
			}
			s.setErr(err)
			return
		}
		s.receivedSinceLastSent.Store(true)
		s.handleMessage(data)
	}
}

func (s *VoiceSession) handleMessage(data []byte) {
	msg, err := protocol.DecodeServerMessage(data)
	if err != nil {
		s.logger.Warn("dropping malformed frame", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeInitialize:
		s.handleInitialize(msg)
	case protocol.TypeCallConnectResponse:
		s.handleCallConnectResponse(msg)
	case protocol.TypePingResponse:
		// Keep-alive acknowledged, nothing to do.
	case protocol.TypeAudio:
		s.handleAudio(msg)
	case protocol.TypeCallDisconnectResponse:
		s.handleCallDisconnectResponse()
	case protocol.TypeWebRTCConfig:
		s.logger.Debug("webrtc config received")
	case protocol.TypeChat:
		s.logger.Debug("chat message received", "content", string(msg.Content))
	case protocol.TypeAgent:
		s.logger.Debug("agent message received", "content", string(msg.Content))
	case protocol.TypeError:
		s.logger.Error("server reported error", "content", string(msg.Content))
	default:
		s.logger.Debug("ignoring unhandled message", "type", msg.Type)
	}
}

// handleInitialize captures the session id and kicks off the call
// handshake: location state first, then call_connect.
func (s *VoiceSession) handleInitialize(msg *protocol.ServerMessage) {
	s.mu.Lock()
	s.sessionID = msg.SessionID
	s.mu.Unlock()
	s.logger.Debug("session initialized", "session_id", msg.SessionID)

	s.sendLocationState()
	s.sendCallConnect()
}

func (s *VoiceSession) handleCallConnectResponse(msg *protocol.ServerMessage) {
	content, err := msg.DecodeCallConnectResponse()
	if err != nil {
		s.logger.Warn("dropping malformed frame", "error", err)
		return
	}

	s.mu.Lock()
	s.sessionID = msg.SessionID
	s.callID = msg.CallID
	if content.SampleRate != nil {
		s.serverSampleRate = *content.SampleRate
	}
	if content.AudioCodec != nil {
		s.audioCodec = *content.AudioCodec
	} else {
		s.audioCodec = protocol.AudioCodecNone
	}
	sampleRate := s.serverSampleRate
	s.mu.Unlock()

	s.logger.Debug("call connected",
		"session_id", msg.SessionID,
		"call_id", msg.CallID,
		"sample_rate", sampleRate)

	s.connectedOnce.Do(func() {
		close(s.connected)
		if s.cfg.OnConnect != nil {
			s.cfg.OnConnect()
		}
	})
}

func (s *VoiceSession) handleAudio(msg *protocol.ServerMessage) {
	content, err := msg.DecodeAudio()
	if err != nil {
		s.logger.Warn("dropping malformed frame", "error", err)
		return
	}
	if content.AudioData == "" {
		return
	}
	pcm, err := base64.StdEncoding.DecodeString(content.AudioData)
	if err != nil {
		s.logger.Warn("dropping undecodable audio", "error", err)
		return
	}
	s.frames.push(pcm)

	if !s.firstAudio {
		s.firstAudio = true
		s.sendInitialAudio()
	}
}

func (s *VoiceSession) handleCallDisconnectResponse() {
	s.mu.Lock()
	s.callID = ""
	s.mu.Unlock()
	s.logger.Debug("call disconnected")

	if s.cfg.OnDisconnect != nil {
		s.cfg.OnDisconnect()
	}
}

func (s *VoiceSession) sendLocationState() {
	sessionID, _ := s.ids()
	if sessionID == "" {
		return
	}
	msg := protocol.ClientLocationState{
		Type:      protocol.TypeClientLocationState,
		SessionID: sessionID,
		Content: protocol.LocationState{
			Timezone: s.cfg.Timezone,
		},
	}
	s.sendTracked(protocol.TypeClientLocationState, msg)
}

func (s *VoiceSession) sendCallConnect() {
	sessionID, _ := s.ids()
	if sessionID == "" {
		return
	}
	msg := protocol.CallConnect{
		Type:      protocol.TypeCallConnect,
		SessionID: sessionID,
		RequestID: uuid.NewString(),
		Content: protocol.CallConnectContent{
			SampleRate: ClientSampleRate,
			AudioCodec: protocol.AudioCodecNone,
			ClientName: s.cfg.ClientName,
			Settings:   protocol.CallSettings{Character: s.cfg.Character},
			ClientMetadata: protocol.ClientMetadata{
				Language:     protocol.DefaultLanguage,
				UserAgent:    BrowserUserAgent,
				MediaDevices: protocol.DefaultMediaDevices(),
			},
		},
	}
	s.sendTracked(protocol.TypeCallConnect, msg)
}

// sendInitialAudio primes the outbound stream with two frames of silence.
// The service does not start the conversation until it hears the client.
func (s *VoiceSession) sendInitialAudio() {
	sessionID, callID := s.ids()
	if sessionID == "" || callID == "" {
		return
	}
	msg := protocol.Audio{
		Type:      protocol.TypeAudio,
		SessionID: sessionID,
		CallID:    callID,
		Content:   protocol.AudioContent{AudioData: protocol.FillerAudioData},
	}
	for i := 0; i < 2; i++ {
		s.sendTracked(protocol.TypeAudio, msg)
	}
}

// sendTracked writes msg, first inserting a keep-alive ping when an
// established call has gone quiet or is switching message types. Returns
// false when the write fails.
func (s *VoiceSession) sendTracked(msgType string, msg any) bool {
	if s.closed.Load() {
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, callID := s.ids()
	if callID != "" && !isControlType(msgType) {
		if s.lastSentType == "" || s.receivedSinceLastSent.Load() || msgType != s.lastSentType {
			s.writePing()
		}
		s.lastSentType = msgType
		s.receivedSinceLastSent.Store(false)
	}

	return s.writeJSON(msgType, msg)
}

// writePing sends the keep-alive frame. Caller holds writeMu.
func (s *VoiceSession) writePing() bool {
	sessionID, callID := s.ids()
	msg := protocol.Ping{
		Type:      protocol.TypePing,
		SessionID: sessionID,
		CallID:    &callID,
		RequestID: uuid.NewString(),
		Content:   protocol.PingContent,
	}
	return s.writeJSON(protocol.TypePing, msg)
}

// writeJSON performs the raw socket write. Caller holds writeMu.
func (s *VoiceSession) writeJSON(msgType string, msg any) bool {
	if err := s.conn.WriteJSON(msg); err != nil {
		s.logger.Warn("websocket write failed", "type", msgType, "error", err)
		return false
	}
	return true
}

// Control traffic is exempt from the keep-alive ping rule.
func isControlType(msgType string) bool {
	switch msgType {
	case protocol.TypePing, protocol.TypeCallConnect, protocol.TypeCallDisconnect:
		return true
	}
	return false
}
