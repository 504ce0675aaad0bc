// Package translate implements the two pure, stateless translation
// directions between the Agent protocol and the Realtime protocol.
// Functions here do no I/O; the session applies their return values to the
// two sockets.
package translate

import (
	"encoding/base64"

	"github.com/yourusername/realtime-voice-proxy/internal/agentproto"
	"github.com/yourusername/realtime-voice-proxy/internal/realtime"
)

// SessionState is the subset of Settings the session must remember beyond
// the initial session-update, for history replay and greeting injection in
// the InjectingHistory phase.
type SessionState struct {
	History  []agentproto.HistoryMessage
	Greeting string
}

// StripClientSideTools converts client function definitions into the
// upstream Tool shape, dropping the client_side auxiliary flag the upstream
// API rejects as an unknown field. An empty input yields a nil slice so the
// caller can omit the "tools" field entirely.
func StripClientSideTools(defs []agentproto.FunctionDefinition) []realtime.Tool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]realtime.Tool, len(defs))
	for i, d := range defs {
		tools[i] = realtime.Tool{
			Type:        "function",
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		}
	}
	return tools
}

// BuildSessionUpdate translates a Settings message into the upstream
// session-update event plus the SessionState the session must hold onto
// for later history/greeting injection. It does not itself emit history or
// greeting events — those happen in the InjectingHistory phase, after the
// session has observed session.updated.
func BuildSessionUpdate(s agentproto.Settings) (realtime.SessionUpdateEvent, SessionState) {
	cfg := realtime.SessionConfig{
		Instructions: s.Agent.Think.Prompt,
		Voice:        s.Agent.Speak,
		Tools:        StripClientSideTools(s.Agent.Think.Functions),
	}
	if s.Audio.Input != nil {
		cfg.InputAudioFormat = s.Audio.Input.Encoding
	}
	if s.Audio.Output != nil {
		cfg.OutputAudioFormat = s.Audio.Output.Encoding
	}

	state := SessionState{Greeting: s.Agent.Greeting}
	if s.Agent.Context != nil {
		state.History = s.Agent.Context.Messages
	}

	return realtime.NewSessionUpdateEvent(cfg), state
}

// UpdatePromptEvent translates UpdatePrompt: only instructions changes,
// every other upstream session field is left as-is.
func UpdatePromptEvent(prompt string) realtime.SessionUpdateEvent {
	return realtime.NewSessionUpdateEvent(realtime.SessionConfig{Instructions: prompt})
}

// UpdateSpeakEvent translates UpdateSpeak: only voice changes.
func UpdateSpeakEvent(voice string) realtime.SessionUpdateEvent {
	return realtime.NewSessionUpdateEvent(realtime.SessionConfig{Voice: voice})
}

// InjectUserMessageEvent translates InjectUserMessage into the upstream
// item-create event plus the client-facing echo. The caller is responsible
// for NOT emitting response.create until conversation.item.added arrives
// for this item — that ordering lives in the session, not here.
func InjectUserMessageEvent(content string) (realtime.ConversationItemCreateEvent, agentproto.ConversationText) {
	return realtime.NewMessageItemEvent("user", content), agentproto.NewConversationText("user", content)
}

// InjectAgentMessageEvent translates InjectAgentMessage into the upstream
// item-create event plus the client-facing echo.
func InjectAgentMessageEvent(content string) (realtime.ConversationItemCreateEvent, agentproto.ConversationText) {
	return realtime.NewMessageItemEvent("assistant", content), agentproto.NewConversationText("assistant", content)
}

// FunctionCallResponseEvents translates FunctionCallResponse into the
// ordered pair of upstream events it requires: the function-call-output
// item, followed by the response trigger.
func FunctionCallResponseEvents(callID, content string) (realtime.ConversationItemCreateEvent, realtime.ResponseCreateEvent) {
	return realtime.NewFunctionCallOutputItemEvent(callID, content), realtime.NewResponseCreateEvent()
}

// AudioAppendEvent base64-encodes a raw PCM frame for
// input_audio_buffer.append.
func AudioAppendEvent(frame []byte) realtime.InputAudioBufferAppendEvent {
	return realtime.NewInputAudioBufferAppendEvent(base64.StdEncoding.EncodeToString(frame))
}

// HistoryItemEvent translates one history message into a
// conversation.item.create event with the role-appropriate content type:
// user maps to input_text, assistant to output_text, never the reverse.
func HistoryItemEvent(msg agentproto.HistoryMessage) realtime.ConversationItemCreateEvent {
	return realtime.NewMessageItemEvent(msg.Role, msg.Content)
}

// GreetingItemEvent translates the configured greeting into the upstream
// assistant item-create event plus the client-facing echo.
func GreetingItemEvent(greeting string) (realtime.ConversationItemCreateEvent, agentproto.ConversationText) {
	return realtime.NewMessageItemEvent("assistant", greeting), agentproto.NewConversationText("assistant", greeting)
}
