// Package session implements the proxy's per-connection state machine: it
// owns both sockets, enforces the readiness contract, and drives the
// translate package in both directions. One goroutine drives the whole
// lifecycle; outbound writes to the client are serialized through a single
// mutex-guarded send path.
package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/yourusername/realtime-voice-proxy/internal/agentproto"
	"github.com/yourusername/realtime-voice-proxy/internal/audio"
	"github.com/yourusername/realtime-voice-proxy/internal/config"
	"github.com/yourusername/realtime-voice-proxy/internal/errs"
	"github.com/yourusername/realtime-voice-proxy/internal/realtime"
	"github.com/yourusername/realtime-voice-proxy/internal/translate"
	"github.com/yourusername/realtime-voice-proxy/internal/upstream"
)

// Phase is a state of the session lifecycle.
type Phase int

const (
	AwaitingSettings Phase = iota
	UpstreamConnecting
	AwaitingSessionUpdated
	InjectingHistory
	Ready
	Closing
	Closed
)

func (p Phase) String() string {
	switch p {
	case AwaitingSettings:
		return "AwaitingSettings"
	case UpstreamConnecting:
		return "UpstreamConnecting"
	case AwaitingSessionUpdated:
		return "AwaitingSessionUpdated"
	case InjectingHistory:
		return "InjectingHistory"
	case Ready:
		return "Ready"
	case Closing:
		return "Closing"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Dialer abstracts upstream.Dial so tests can substitute a fake upstream
// connection without a real network dial.
type Dialer func(ctx context.Context, url, apiKey string, queueSize int, log zerolog.Logger) (UpstreamConn, error)

// UpstreamConn is the subset of *upstream.Client the session depends on.
type UpstreamConn interface {
	Send(event realtime.ClientEvent) error
	Events() <-chan []byte
	Closed() <-chan struct{}
	Close(code int, reason string) error
}

func defaultDialer(ctx context.Context, url, apiKey string, queueSize int, log zerolog.Logger) (UpstreamConn, error) {
	return upstream.Dial(ctx, url, apiKey, queueSize, log)
}

// Session owns one client WebSocket and the upstream connection translated
// on its behalf. One goroutine (Run) drives the whole lifecycle; outbound
// writes to the client are serialized through sendClient.
type Session struct {
	id  string
	cfg *config.Config
	log zerolog.Logger

	clientConn *websocket.Conn
	dial       Dialer

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	phase Phase

	pendingClient []agentproto.ClientMessage // buffered before Ready
	pendingUser   []string                   // queued InjectUserMessage while a response is in flight

	responses map[string]*translate.ResponseState
	state     translate.SessionState

	pendingSessionUpdate realtime.SessionUpdateEvent

	errMapper         *errs.Mapper
	audioBuf          *audio.Buffer
	upstreamC         UpstreamConn
	awaitingResponse  bool
	awaitingItemAdded bool // set while a user item's conversation.item.added is still outstanding
}

// New constructs a Session bound to an already-upgraded client connection.
func New(cfg *config.Config, clientConn *websocket.Conn, log zerolog.Logger, dial Dialer) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	if dial == nil {
		dial = defaultDialer
	}

	return &Session{
		id:         id,
		cfg:        cfg,
		log:        log.With().Str("session_id", id).Logger(),
		clientConn: clientConn,
		dial:       dial,
		ctx:        ctx,
		cancel:     cancel,
		phase:      AwaitingSettings,
		responses:  make(map[string]*translate.ResponseState),
		errMapper:  errs.NewMapper(cfg.UpstreamKey),
	}
}

// Run drives the session until the client or upstream connection closes. It
// blocks until the session has fully wound down.
func (s *Session) Run() {
	defer s.teardown()

	clientMsgs := make(chan clientFrame, 16)
	go s.readClientLoop(clientMsgs)

	timeout := time.NewTimer(s.cfg.SessionUpdatedTimeout)
	defer timeout.Stop()
	timeoutC := timeout.C

	var upstreamEvents <-chan []byte
	var upstreamClosed <-chan struct{}

	for {
		select {
		case <-s.ctx.Done():
			return

		case frame, ok := <-clientMsgs:
			if !ok {
				return
			}
			if frame.binary {
				s.handleClientAudio(frame.data)
				continue
			}
			s.handleClientMessage(frame.data)
			if s.currentPhase() == UpstreamConnecting {
				// Settings just arrived; dial synchronously on this same
				// goroutine so event ordering stays deterministic.
				if err := s.connectUpstream(); err != nil {
					s.fatalf("failed to reach upstream: %v", err)
					return
				}
				// The session.updated bound starts now, not at session start.
				if !timeout.Stop() {
					select {
					case <-timeoutC:
					default:
					}
				}
				timeout.Reset(s.cfg.SessionUpdatedTimeout)
				upstreamEvents = s.upstreamC.Events()
				upstreamClosed = s.upstreamC.Closed()
			}

		case raw, ok := <-upstreamEvents:
			if !ok {
				upstreamEvents = nil
				continue
			}
			s.handleUpstreamEvent(raw)
			if s.currentPhase() != AwaitingSessionUpdated {
				timeout.Stop()
			}

		case <-upstreamClosed:
			if s.currentPhase() != Closing && s.currentPhase() != Closed {
				s.fatalf("upstream connection closed")
			}
			return

		case <-timeoutC:
			if s.currentPhase() == AwaitingSessionUpdated {
				s.fatalf("timed out waiting for session.updated")
				return
			}
		}
	}
}

type clientFrame struct {
	binary bool
	data   []byte
}

func (s *Session) readClientLoop(out chan<- clientFrame) {
	defer close(out)
	for {
		msgType, data, err := s.clientConn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case out <- clientFrame{binary: msgType == websocket.BinaryMessage, data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) currentPhase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// handleClientMessage decodes and dispatches one text frame from the client.
func (s *Session) handleClientMessage(raw []byte) {
	msg, err := agentproto.DecodeClientMessage(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("dropping unrecognized client message")
		return
	}

	phase := s.currentPhase()

	if phase == AwaitingSettings {
		settings, ok := msg.(agentproto.Settings)
		if !ok {
			// Buffer non-Settings messages until Ready rather than fatally
			// closing the session.
			s.mu.Lock()
			s.pendingClient = append(s.pendingClient, msg)
			s.mu.Unlock()
			return
		}
		s.applySettings(settings)
		return
	}

	if phase != Ready {
		// Still connecting upstream or replaying history: queue it.
		s.mu.Lock()
		s.pendingClient = append(s.pendingClient, msg)
		s.mu.Unlock()
		return
	}

	s.dispatchReady(msg)
}

func (s *Session) applySettings(settings agentproto.Settings) {
	update, state := translate.BuildSessionUpdate(settings)
	s.state = state
	s.pendingSessionUpdate = update
	s.setPhase(UpstreamConnecting)
}

func (s *Session) connectUpstream() error {
	s.log.Debug().Msg("dialing upstream")
	conn, err := s.dial(s.ctx, s.cfg.UpstreamURL, s.cfg.UpstreamKey, s.cfg.OutboundQueueSize, s.log)
	if err != nil {
		return err
	}
	s.upstreamC = conn

	s.audioBuf = audio.New(audio.RealClock, audio.Config{
		Debounce:       s.cfg.AudioCommitDebounce,
		MinCommitBytes: s.cfg.AudioCommitMinBytes,
	}, s.onAudioCommitFire)

	s.setPhase(AwaitingSessionUpdated)
	return s.upstreamC.Send(s.pendingSessionUpdate)
}

func (s *Session) dispatchReady(msg agentproto.ClientMessage) {
	switch m := msg.(type) {
	case agentproto.InjectUserMessage:
		s.injectUserMessage(m.Content)
	case agentproto.InjectAgentMessage:
		item, echo := translate.InjectAgentMessageEvent(m.Content)
		s.sendUpstream(item)
		s.sendClient(echo)
	case agentproto.UpdatePrompt:
		s.sendUpstream(translate.UpdatePromptEvent(m.Prompt))
	case agentproto.UpdateSpeak:
		s.sendUpstream(translate.UpdateSpeakEvent(m.Speak))
	case agentproto.FunctionCallResponse:
		itemEvent, responseEvent := translate.FunctionCallResponseEvents(m.ID, m.Content)
		s.sendUpstream(itemEvent)
		s.sendUpstream(responseEvent)
	case agentproto.KeepAlive:
		// No-op; the upstream connection is kept alive independently.
	case agentproto.CloseStream:
		s.beginClosing("client requested close")
	case agentproto.Settings:
		s.log.Warn().Msg("ignoring duplicate Settings after Ready")
	}
}

// injectUserMessage serializes user turns: only one InjectUserMessage may be
// in flight awaiting a response at a time, later ones queue until the prior
// response completes. (The readiness contract itself is enforced earlier, by
// handleClientMessage buffering everything that arrives before Ready.)
func (s *Session) injectUserMessage(content string) {
	s.mu.Lock()
	if s.awaitingResponse {
		s.pendingUser = append(s.pendingUser, content)
		s.mu.Unlock()
		return
	}
	s.awaitingResponse = true
	s.awaitingItemAdded = true
	s.mu.Unlock()

	item, echo := translate.InjectUserMessageEvent(content)
	s.sendUpstream(item)
	s.sendClient(echo)
	// response.create is deferred until conversation.item.added confirms this
	// user item landed (handled in handleUpstreamEvent).
}

func (s *Session) handleClientAudio(frame []byte) {
	if s.currentPhase() != Ready {
		s.log.Warn().Msg("dropping audio received before session ready")
		return
	}
	s.sendUpstream(translate.AudioAppendEvent(frame))
	if s.audioBuf != nil {
		s.audioBuf.Append(len(frame))
	}
}

func (s *Session) onAudioCommitFire(committedBytes int) {
	s.sendUpstream(realtime.NewInputAudioBufferCommitEvent())
	s.sendUpstream(realtime.NewResponseCreateEvent())
	s.log.Debug().Int("bytes", committedBytes).Msg("committed buffered audio")
}

func (s *Session) handleUpstreamEvent(raw []byte) {
	event, err := realtime.Decode(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("dropping unrecognized upstream event")
		return
	}

	switch e := event.(type) {
	case realtime.SessionCreatedEvent:
		s.sendClient(translate.TranslateSessionCreated(e))

	case realtime.SessionUpdatedEvent:
		// Only the first session.updated ends the handshake; later ones
		// (acks of UpdatePrompt/UpdateSpeak) must not replay history.
		if s.currentPhase() == AwaitingSessionUpdated {
			s.handleSessionUpdated()
		}

	case realtime.ConversationItemAddedEvent:
		// Only a user item whose response.create is still outstanding
		// unblocks one here: history replay, the greeting, InjectAgentMessage,
		// and FunctionCallResponse's function_call_output item all land their
		// own conversation.item.added too, but none of them owe a
		// response.create from this path (FunctionCallResponse already sent
		// its own, explicitly, right after its item).
		s.mu.Lock()
		trigger := s.awaitingItemAdded && e.Item.Role == "user"
		if trigger {
			s.awaitingItemAdded = false
		}
		s.mu.Unlock()
		if trigger {
			s.sendUpstream(realtime.NewResponseCreateEvent())
		}

	case realtime.ResponseCreatedEvent:
		s.sendClient(translate.TranslateResponseCreated(e))

	case realtime.ResponseContentPartAddedEvent:
		if translate.TranslateContentPartAdded(s.responseState(e.ResponseID)) {
			s.sendClient(agentproto.NewAgentStartedSpeaking())
		}

	case realtime.ResponseOutputAudioDeltaEvent:
		state := s.responseState(e.ResponseID)
		if translate.TranslateAudioDelta(state) {
			s.sendClient(agentproto.NewAgentStartedSpeaking())
		}
		s.sendClientBinary(e.Delta)

	case realtime.ResponseOutputAudioDoneEvent:
		s.sendClient(translate.TranslateAudioDone(e))

	case realtime.ResponseOutputTextDoneEvent:
		s.sendClient(translate.TranslateOutputTextDone(e))

	case realtime.ResponseOutputAudioTranscriptDoneEvent:
		s.sendClient(translate.TranslateTranscriptDone(s.responseState(e.ResponseID), e))

	case realtime.ResponseFunctionCallArgumentsDoneEvent:
		req, echo, hasEcho := translate.TranslateFunctionCallArgumentsDone(s.responseState(e.ResponseID), e)
		s.sendClient(req)
		if hasEcho {
			s.sendClient(echo)
		}

	case realtime.ResponseDoneEvent:
		delete(s.responses, e.Response.ID)
		s.onResponseDone()

	case realtime.InputAudioBufferSpeechStartedEvent:
		s.sendClient(translate.TranslateSpeechStarted(e))

	case realtime.InputAudioBufferSpeechStoppedEvent:
		stopped, end := translate.TranslateSpeechStopped(e)
		s.sendClient(stopped)
		s.sendClient(end)

	case realtime.ErrorEvent:
		msg, fatal := translate.TranslateError(s.errMapper, e)
		s.sendClient(msg)
		if fatal {
			s.beginClosing("fatal upstream error")
		}

	default:
		s.log.Debug().Str("type", event.ServerEventType()).Msg("unhandled upstream event")
	}
}

func (s *Session) handleSessionUpdated() {
	s.setPhase(InjectingHistory)
	for _, h := range s.state.History {
		s.sendUpstream(translate.HistoryItemEvent(h))
	}
	if s.state.Greeting != "" {
		item, echo := translate.GreetingItemEvent(s.state.Greeting)
		s.sendUpstream(item)
		s.sendClient(echo)
	}

	s.setPhase(Ready)
	s.sendClient(agentproto.NewSettingsApplied())
	s.flushPendingClient()
}

func (s *Session) flushPendingClient() {
	s.mu.Lock()
	pending := s.pendingClient
	s.pendingClient = nil
	s.mu.Unlock()

	for _, msg := range pending {
		s.dispatchReady(msg)
	}
}

// onResponseDone releases the next queued InjectUserMessage, if any, now
// that the prior response has fully completed.
func (s *Session) onResponseDone() {
	s.mu.Lock()
	s.awaitingResponse = false
	var next string
	haveNext := len(s.pendingUser) > 0
	if haveNext {
		next = s.pendingUser[0]
		s.pendingUser = s.pendingUser[1:]
	}
	s.mu.Unlock()

	if haveNext {
		s.injectUserMessage(next)
	}
}

func (s *Session) responseState(responseID string) *translate.ResponseState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.responses[responseID]
	if !ok {
		st = &translate.ResponseState{}
		s.responses[responseID] = st
	}
	return st
}

func (s *Session) beginClosing(reason string) {
	s.log.Info().Str("reason", reason).Msg("closing session")
	s.setPhase(Closing)
	if s.audioBuf != nil {
		s.audioBuf.Cancel()
	}
	s.mu.Lock()
	responseInFlight := s.awaitingResponse
	s.mu.Unlock()
	if responseInFlight {
		s.sendUpstream(realtime.NewResponseCancelEvent())
	}
	s.cancel()
}

func (s *Session) fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.log.Error().Msg(msg)
	s.sendClient(agentproto.NewError(s.errMapper.Redact(msg), "internal_error"))
	s.beginClosing(msg)
}

func (s *Session) teardown() {
	s.setPhase(Closed)
	if s.audioBuf != nil {
		s.audioBuf.Cancel()
	}
	if s.upstreamC != nil {
		s.upstreamC.Close(websocket.CloseNormalClosure, "session ended")
	}
	s.clientConn.Close()
	s.log.Info().Msg("session closed")
}

// sendUpstream enqueues one event for the upstream connection.
func (s *Session) sendUpstream(event realtime.ClientEvent) {
	if s.upstreamC == nil {
		return
	}
	if err := s.upstreamC.Send(event); err != nil {
		s.fatalf("upstream send failed: %v", err)
	}
}

// sendClient serializes and writes one JSON message to the client. This is
// the only place that calls clientConn.WriteMessage for text frames.
func (s *Session) sendClient(msg agentproto.ServerMessage) {
	raw, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode client message")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.clientConn.WriteMessage(websocket.TextMessage, raw); err != nil {
		s.log.Warn().Err(err).Msg("client write failed")
	}
}

// sendClientBinary writes one base64-decoded audio delta to the client as a
// binary frame: audio never travels wrapped in JSON.
func (s *Session) sendClientBinary(base64Delta string) {
	decoded, err := base64.StdEncoding.DecodeString(base64Delta)
	if err != nil {
		s.log.Warn().Err(err).Msg("dropping malformed audio delta")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.clientConn.WriteMessage(websocket.BinaryMessage, decoded); err != nil {
		s.log.Warn().Err(err).Msg("client binary write failed")
	}
}
