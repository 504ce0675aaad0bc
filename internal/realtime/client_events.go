// Package realtime implements the upstream Realtime protocol: the
// event-driven JSON+base64 message set the proxy exchanges with the cloud
// realtime-speech provider.
package realtime

import "encoding/json"

// ClientEvent is every event the proxy may send upstream.
type ClientEvent interface {
	EventType() string
}

// Tool is the upstream shape of a function definition; unlike
// agentproto.FunctionDefinition it carries no client_side field — the
// translator strips it.
type Tool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// SessionConfig is the body of a session.update event. Zero-value fields are
// omitted, so a partial update (e.g. UpdatePrompt) leaves the rest of the
// upstream session configuration untouched.
type SessionConfig struct {
	Instructions      string `json:"instructions,omitempty"`
	Voice             string `json:"voice,omitempty"`
	Tools             []Tool `json:"tools,omitempty"`
	InputAudioFormat  string `json:"input_audio_format,omitempty"`
	OutputAudioFormat string `json:"output_audio_format,omitempty"`
}

// SessionUpdateEvent is client-side event "session.update".
type SessionUpdateEvent struct {
	Type    string        `json:"type"`
	Session SessionConfig `json:"session"`
}

func (SessionUpdateEvent) EventType() string { return "session.update" }

// NewSessionUpdateEvent builds a session.update event.
func NewSessionUpdateEvent(cfg SessionConfig) SessionUpdateEvent {
	return SessionUpdateEvent{Type: "session.update", Session: cfg}
}

// ContentPart is one entry of a conversation item's content array.
type ContentPart struct {
	Type string `json:"type"` // "input_text" | "output_text" | "input_audio"
	Text string `json:"text,omitempty"`
}

const (
	ContentTypeInputText  = "input_text"
	ContentTypeOutputText = "output_text"
)

// ConversationItem is the body of a conversation.item.create event.
type ConversationItem struct {
	Type    string        `json:"type"` // "message" | "function_call_output"
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
	CallID  string        `json:"call_id,omitempty"`
	Output  string        `json:"output,omitempty"`
}

// ConversationItemCreateEvent is client-side event "conversation.item.create".
type ConversationItemCreateEvent struct {
	Type string           `json:"type"`
	Item ConversationItem `json:"item"`
}

func (ConversationItemCreateEvent) EventType() string { return "conversation.item.create" }

// NewMessageItemEvent builds a conversation.item.create for a user or
// assistant text message with the role-appropriate content type: user maps
// to input_text, assistant to output_text.
func NewMessageItemEvent(role, content string) ConversationItemCreateEvent {
	contentType := ContentTypeInputText
	if role == "assistant" {
		contentType = ContentTypeOutputText
	}
	return ConversationItemCreateEvent{
		Type: "conversation.item.create",
		Item: ConversationItem{
			Type:    "message",
			Role:    role,
			Content: []ContentPart{{Type: contentType, Text: content}},
		},
	}
}

// NewFunctionCallOutputItemEvent builds a conversation.item.create for the
// client's result of a function call.
func NewFunctionCallOutputItemEvent(callID, output string) ConversationItemCreateEvent {
	return ConversationItemCreateEvent{
		Type: "conversation.item.create",
		Item: ConversationItem{
			Type:   "function_call_output",
			CallID: callID,
			Output: output,
		},
	}
}

// ResponseCreateEvent is client-side event "response.create".
type ResponseCreateEvent struct {
	Type string `json:"type"`
}

func (ResponseCreateEvent) EventType() string { return "response.create" }

// NewResponseCreateEvent builds a response.create event.
func NewResponseCreateEvent() ResponseCreateEvent {
	return ResponseCreateEvent{Type: "response.create"}
}

// InputAudioBufferAppendEvent is client-side event
// "input_audio_buffer.append". Audio is base64-encoded PCM.
type InputAudioBufferAppendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

func (InputAudioBufferAppendEvent) EventType() string { return "input_audio_buffer.append" }

// NewInputAudioBufferAppendEvent builds an input_audio_buffer.append event
// from a base64-encoded audio payload.
func NewInputAudioBufferAppendEvent(base64Audio string) InputAudioBufferAppendEvent {
	return InputAudioBufferAppendEvent{Type: "input_audio_buffer.append", Audio: base64Audio}
}

// InputAudioBufferCommitEvent is client-side event
// "input_audio_buffer.commit".
type InputAudioBufferCommitEvent struct {
	Type string `json:"type"`
}

func (InputAudioBufferCommitEvent) EventType() string { return "input_audio_buffer.commit" }

// NewInputAudioBufferCommitEvent builds an input_audio_buffer.commit event.
func NewInputAudioBufferCommitEvent() InputAudioBufferCommitEvent {
	return InputAudioBufferCommitEvent{Type: "input_audio_buffer.commit"}
}

// ResponseCancelEvent is client-side event "response.cancel", sent when the
// session closes while a response is still in flight so the provider stops
// generating for a client that is no longer listening.
type ResponseCancelEvent struct {
	Type string `json:"type"`
}

func (ResponseCancelEvent) EventType() string { return "response.cancel" }

// NewResponseCancelEvent builds a response.cancel event.
func NewResponseCancelEvent() ResponseCancelEvent {
	return ResponseCancelEvent{Type: "response.cancel"}
}
