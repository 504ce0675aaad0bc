package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/realtime-voice-proxy/internal/agentproto"
	"github.com/yourusername/realtime-voice-proxy/internal/config"
	"github.com/yourusername/realtime-voice-proxy/internal/realtime"
)

// fakeUpstream is a test double for UpstreamConn: every Send is captured on
// sent, and events can be pushed in by the test to simulate provider
// traffic.
type fakeUpstream struct {
	mu     sync.Mutex
	sent   []realtime.ClientEvent
	events chan []byte
	closed chan struct{}
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		events: make(chan []byte, 32),
		closed: make(chan struct{}),
	}
}

func (f *fakeUpstream) Send(event realtime.ClientEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, event)
	return nil
}

func (f *fakeUpstream) Events() <-chan []byte      { return f.events }
func (f *fakeUpstream) Closed() <-chan struct{}    { return f.closed }
func (f *fakeUpstream) Close(int, string) error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func (f *fakeUpstream) sentTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, len(f.sent))
	for i, e := range f.sent {
		types[i] = e.EventType()
	}
	return types
}

func (f *fakeUpstream) push(t *testing.T, event realtime.ServerEvent) {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	f.events <- raw
}

// testHarness runs a real WebSocket server backed by a Session, dialed with
// a real gorilla client, and a fake upstream the test fully controls.
type testHarness struct {
	server   *httptest.Server
	client   *websocket.Conn
	upstream *fakeUpstream
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	upstream := newFakeUpstream()
	cfg := &config.Config{
		SessionUpdatedTimeout: 2 * time.Second,
		OutboundQueueSize:     32,
		AudioCommitDebounce:   250 * time.Millisecond,
		AudioCommitMinBytes:   100,
	}

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		dial := func(ctx context.Context, url, apiKey string, queueSize int, log zerolog.Logger) (UpstreamConn, error) {
			return upstream, nil
		}

		sess := New(cfg, conn, zerolog.Nop(), dial)
		sess.Run()
	})

	srv := httptest.NewServer(mux)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	return &testHarness{server: srv, client: client, upstream: upstream}
}

func (h *testHarness) close() {
	h.client.Close()
	h.server.Close()
}

func (h *testHarness) sendClientJSON(t *testing.T, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, h.client.WriteMessage(websocket.TextMessage, raw))
}

func (h *testHarness) readClientMessage(t *testing.T) map[string]interface{} {
	t.Helper()
	h.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := h.client.ReadMessage()
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestSession_SettingsDialsUpstreamAndEmitsSettingsAppliedOnceReady(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	h.sendClientJSON(t, agentproto.Settings{
		Type: agentproto.TypeSettings,
		Agent: agentproto.AgentSettings{
			Think:    agentproto.ThinkConfig{Prompt: "be helpful"},
			Greeting: "hello there",
		},
	})

	require.Eventually(t, func() bool {
		return len(h.upstream.sentTypes()) > 0
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"session.update"}, h.upstream.sentTypes())

	h.upstream.push(t, realtime.SessionUpdatedEvent{Type: "session.updated"})

	greeting := h.readClientMessage(t)
	require.Equal(t, "ConversationText", greeting["type"])
	require.Equal(t, "hello there", greeting["content"])

	applied := h.readClientMessage(t)
	require.Equal(t, "SettingsApplied", applied["type"])
}

func TestSession_BuffersNonSettingsMessagesBeforeReady(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	// InjectUserMessage arrives before Settings; it must not reach upstream
	// or the client until the session becomes Ready.
	h.sendClientJSON(t, agentproto.InjectUserMessage{Type: agentproto.TypeInjectUserMessage, Content: "too early"})
	h.sendClientJSON(t, agentproto.Settings{
		Type:  agentproto.TypeSettings,
		Agent: agentproto.AgentSettings{Think: agentproto.ThinkConfig{Prompt: "be helpful"}},
	})

	require.Eventually(t, func() bool {
		return len(h.upstream.sentTypes()) > 0
	}, time.Second, 10*time.Millisecond)

	h.upstream.push(t, realtime.SessionUpdatedEvent{Type: "session.updated"})

	applied := h.readClientMessage(t)
	require.Equal(t, "SettingsApplied", applied["type"])

	// The buffered InjectUserMessage is now released: its echo follows.
	echo := h.readClientMessage(t)
	require.Equal(t, "ConversationText", echo["type"])
	require.Equal(t, "too early", echo["content"])

	require.Eventually(t, func() bool {
		types := h.upstream.sentTypes()
		return len(types) >= 2 && types[len(types)-1] == "conversation.item.create"
	}, time.Second, 10*time.Millisecond)
}

func TestSession_FunctionCallArgumentsDoneEchoesTranscriptAfterFunctionCallRequest(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	h.sendClientJSON(t, agentproto.Settings{
		Type:  agentproto.TypeSettings,
		Agent: agentproto.AgentSettings{Think: agentproto.ThinkConfig{Prompt: "be helpful"}},
	})
	require.Eventually(t, func() bool { return len(h.upstream.sentTypes()) > 0 }, time.Second, 10*time.Millisecond)
	h.upstream.push(t, realtime.SessionUpdatedEvent{Type: "session.updated"})
	require.Equal(t, "SettingsApplied", h.readClientMessage(t)["type"])

	h.upstream.push(t, realtime.ResponseOutputAudioTranscriptDoneEvent{
		Type:       "response.output_audio_transcript.done",
		ResponseID: "resp_1",
		Transcript: "checking on that",
	})
	transcriptMsg := h.readClientMessage(t)
	require.Equal(t, "ConversationText", transcriptMsg["type"])
	require.Equal(t, "checking on that", transcriptMsg["content"])

	h.upstream.push(t, realtime.ResponseFunctionCallArgumentsDoneEvent{
		Type:       "response.function_call_arguments.done",
		ResponseID: "resp_1",
		CallID:     "call_1",
		Name:       "get_weather",
		Arguments:  `{"city":"nyc"}`,
	})

	callMsg := h.readClientMessage(t)
	require.Equal(t, "FunctionCallRequest", callMsg["type"])

	echoMsg := h.readClientMessage(t)
	require.Equal(t, "ConversationText", echoMsg["type"])
	require.Equal(t, "checking on that", echoMsg["content"])
}

// countResponseCreate reports how many response.create events have been sent
// upstream so far.
func countResponseCreate(types []string) int {
	n := 0
	for _, ty := range types {
		if ty == "response.create" {
			n++
		}
	}
	return n
}

func TestSession_UserTurnItemAddedTriggersExactlyOneResponseCreate(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	h.sendClientJSON(t, agentproto.Settings{
		Type:  agentproto.TypeSettings,
		Agent: agentproto.AgentSettings{Think: agentproto.ThinkConfig{Prompt: "be helpful"}},
	})
	require.Eventually(t, func() bool { return len(h.upstream.sentTypes()) > 0 }, time.Second, 10*time.Millisecond)
	h.upstream.push(t, realtime.SessionUpdatedEvent{Type: "session.updated"})
	require.Equal(t, "SettingsApplied", h.readClientMessage(t)["type"])

	h.sendClientJSON(t, agentproto.InjectUserMessage{Type: agentproto.TypeInjectUserMessage, Content: "what's the weather"})
	require.Equal(t, "ConversationText", h.readClientMessage(t)["type"])

	require.Eventually(t, func() bool {
		types := h.upstream.sentTypes()
		return len(types) >= 2 && types[len(types)-1] == "conversation.item.create"
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, 0, countResponseCreate(h.upstream.sentTypes()), "response.create must not fire before conversation.item.added")

	itemAdded := realtime.ConversationItemAddedEvent{Type: "conversation.item.added"}
	itemAdded.Item.Role = "user"
	h.upstream.push(t, itemAdded)

	require.Eventually(t, func() bool {
		return countResponseCreate(h.upstream.sentTypes()) == 1
	}, time.Second, 10*time.Millisecond)

	// A second, spurious item.added ack for the same turn (e.g. a history
	// item created elsewhere with the user role) must not trigger another.
	secondItemAdded := realtime.ConversationItemAddedEvent{Type: "conversation.item.added"}
	secondItemAdded.Item.Role = "user"
	h.upstream.push(t, secondItemAdded)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, countResponseCreate(h.upstream.sentTypes()))
}

func TestSession_FunctionCallResponseSendsExactlyOneResponseCreate(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	h.sendClientJSON(t, agentproto.Settings{
		Type:  agentproto.TypeSettings,
		Agent: agentproto.AgentSettings{Think: agentproto.ThinkConfig{Prompt: "be helpful"}},
	})
	require.Eventually(t, func() bool { return len(h.upstream.sentTypes()) > 0 }, time.Second, 10*time.Millisecond)
	h.upstream.push(t, realtime.SessionUpdatedEvent{Type: "session.updated"})
	require.Equal(t, "SettingsApplied", h.readClientMessage(t)["type"])

	h.sendClientJSON(t, agentproto.FunctionCallResponse{
		Type:    agentproto.TypeFunctionCallResponse,
		ID:      "call_1",
		Name:    "get_weather",
		Content: `{"tempF":72}`,
	})

	require.Eventually(t, func() bool {
		return countResponseCreate(h.upstream.sentTypes()) == 1
	}, time.Second, 10*time.Millisecond)
	types := h.upstream.sentTypes()
	require.Equal(t, "conversation.item.create", types[len(types)-2])
	require.Equal(t, "response.create", types[len(types)-1])

	// Upstream now acknowledges the function_call_output item landing. Its
	// item carries no role, and no InjectUserMessage is in flight, so this
	// must not trigger a second response.create.
	itemAdded := realtime.ConversationItemAddedEvent{Type: "conversation.item.added"}
	itemAdded.Item.Type = "function_call_output"
	h.upstream.push(t, itemAdded)

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, countResponseCreate(h.upstream.sentTypes()))
}

func TestSession_HistoryAndGreetingReplayEmitNoResponseCreate(t *testing.T) {
	h := newHarness(t)
	defer h.close()

	h.sendClientJSON(t, agentproto.Settings{
		Type: agentproto.TypeSettings,
		Agent: agentproto.AgentSettings{
			Think:    agentproto.ThinkConfig{Prompt: "be helpful"},
			Greeting: "hello there",
			Context: &agentproto.ContextConfig{
				Messages: []agentproto.HistoryMessage{
					{Role: "user", Content: "hi from before"},
					{Role: "assistant", Content: "hello again"},
				},
			},
		},
	})
	require.Eventually(t, func() bool { return len(h.upstream.sentTypes()) > 0 }, time.Second, 10*time.Millisecond)
	h.upstream.push(t, realtime.SessionUpdatedEvent{Type: "session.updated"})

	// Greeting echo precedes SettingsApplied; both arrive regardless of
	// whether upstream has acked the history/greeting items yet.
	require.Equal(t, "ConversationText", h.readClientMessage(t)["type"])
	require.Equal(t, "SettingsApplied", h.readClientMessage(t)["type"])

	require.Eventually(t, func() bool {
		n := 0
		for _, ty := range h.upstream.sentTypes() {
			if ty == "conversation.item.create" {
				n++
			}
		}
		return n == 3 // two history items plus the greeting
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, 0, countResponseCreate(h.upstream.sentTypes()))

	// Upstream acks each replayed item; none of them owe a response.create
	// since no InjectUserMessage was ever in flight.
	for _, role := range []string{"user", "assistant", "assistant"} {
		itemAdded := realtime.ConversationItemAddedEvent{Type: "conversation.item.added"}
		itemAdded.Item.Role = role
		h.upstream.push(t, itemAdded)
	}

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 0, countResponseCreate(h.upstream.sentTypes()))
}
