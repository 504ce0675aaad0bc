package agentproto

// ServerMessage is every JSON message the proxy may send to the client.
// Audio chunks are sent as binary frames, not as a ServerMessage, and are
// handled separately by the session.
type ServerMessage interface {
	serverMessage()
}

// Welcome is an optional readiness preamble sent on session.created. The
// client tolerates its absence.
type Welcome struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

func (Welcome) serverMessage() {}

// NewWelcome builds a Welcome keyed off the upstream session id.
func NewWelcome(requestID string) Welcome {
	return Welcome{Type: "Welcome", RequestID: requestID}
}

// SettingsApplied is the readiness signal: the client must not have its
// first user message processed before observing this.
type SettingsApplied struct {
	Type string `json:"type"`
}

// NewSettingsApplied builds the readiness-signal message.
func NewSettingsApplied() SettingsApplied {
	return SettingsApplied{Type: "SettingsApplied"}
}

func (SettingsApplied) serverMessage() {}

// ConversationText is a display string attributed to either speaker.
type ConversationText struct {
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewConversationText builds a ConversationText for role ("user" or
// "assistant") with the given content.
func NewConversationText(role, content string) ConversationText {
	return ConversationText{Type: "ConversationText", Role: role, Content: content}
}

func (ConversationText) serverMessage() {}

// UserStartedSpeaking mirrors upstream input_audio_buffer.speech_started.
type UserStartedSpeaking struct {
	Type string `json:"type"`
}

func NewUserStartedSpeaking() UserStartedSpeaking {
	return UserStartedSpeaking{Type: "UserStartedSpeaking"}
}

func (UserStartedSpeaking) serverMessage() {}

// UserStoppedSpeaking mirrors upstream input_audio_buffer.speech_stopped.
type UserStoppedSpeaking struct {
	Type      string `json:"type"`
	Timestamp *int64 `json:"timestamp,omitempty"`
}

func NewUserStoppedSpeaking(timestamp *int64) UserStoppedSpeaking {
	return UserStoppedSpeaking{Type: "UserStoppedSpeaking", Timestamp: timestamp}
}

func (UserStoppedSpeaking) serverMessage() {}

// UtteranceEnd is synthesized alongside UserStoppedSpeaking, carrying the
// upstream's end-of-speech timing.
type UtteranceEnd struct {
	Type        string `json:"type"`
	Channel     [2]int `json:"channel"`
	LastWordEnd float64 `json:"last_word_end"`
}

func NewUtteranceEnd(lastWordEnd float64) UtteranceEnd {
	return UtteranceEnd{Type: "UtteranceEnd", Channel: [2]int{0, 1}, LastWordEnd: lastWordEnd}
}

func (UtteranceEnd) serverMessage() {}

// AgentThinking mirrors upstream response.created.
type AgentThinking struct {
	Type string `json:"type"`
}

func NewAgentThinking() AgentThinking { return AgentThinking{Type: "AgentThinking"} }

func (AgentThinking) serverMessage() {}

// AgentStartedSpeaking is emitted at most once per response, on the first
// audio delta or content-part event.
type AgentStartedSpeaking struct {
	Type string `json:"type"`
}

func NewAgentStartedSpeaking() AgentStartedSpeaking {
	return AgentStartedSpeaking{Type: "AgentStartedSpeaking"}
}

func (AgentStartedSpeaking) serverMessage() {}

// AgentAudioDone mirrors the end of an audio response.
type AgentAudioDone struct {
	Type string `json:"type"`
}

func NewAgentAudioDone() AgentAudioDone { return AgentAudioDone{Type: "AgentAudioDone"} }

func (AgentAudioDone) serverMessage() {}

// FunctionCallItem is one entry of a FunctionCallRequest.
type FunctionCallItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
	ClientSide bool   `json:"client_side,omitempty"`
}

// FunctionCallRequest asks the client to execute a function and report back
// via FunctionCallResponse.
type FunctionCallRequest struct {
	Type      string             `json:"type"`
	Functions []FunctionCallItem `json:"functions"`
}

// NewFunctionCallRequest builds a single-function FunctionCallRequest.
func NewFunctionCallRequest(id, name, arguments string) FunctionCallRequest {
	return FunctionCallRequest{
		Type:      "FunctionCallRequest",
		Functions: []FunctionCallItem{{ID: id, Name: name, Arguments: arguments}},
	}
}

func (FunctionCallRequest) serverMessage() {}

// Error is fatal: it is always followed by the proxy closing the socket.
type Error struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Code        string `json:"code"`
}

// NewError builds an Error message. description must already be scrubbed of
// the upstream credential by the caller (internal/errs.Mapper).
func NewError(description, code string) Error {
	return Error{Type: "Error", Description: description, Code: code}
}

func (Error) serverMessage() {}

// Warning is recoverable: the session remains Ready after it is sent.
type Warning struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Code        string `json:"code"`
}

// NewWarning builds a Warning message. description must already be scrubbed
// of the upstream credential by the caller.
func NewWarning(description, code string) Warning {
	return Warning{Type: "Warning", Description: description, Code: code}
}

func (Warning) serverMessage() {}
