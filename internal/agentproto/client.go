// Package agentproto implements the client-facing Agent protocol: the
// JSON+binary message set exchanged between the proxy and the voice-agent
// client.
package agentproto

import (
	"encoding/json"
	"fmt"
)

// ClientMessage is implemented by every JSON message a client may send. It
// carries no behavior — translation is the translate package's job, this
// type exists purely to let the session dispatch on concrete type via a
// type switch.
type ClientMessage interface {
	clientMessage()
}

// AudioFormat describes a PCM stream's encoding.
type AudioFormat struct {
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// AudioSettings is the "audio" block of a Settings message.
type AudioSettings struct {
	Input  *AudioFormat `json:"input,omitempty"`
	Output *AudioFormat `json:"output,omitempty"`
}

// FunctionDefinition is one entry of agent.think.functions. ClientSide is an
// auxiliary flag the proxy must strip before forwarding upstream — upstream
// rejects unknown fields on a tool definition.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
	ClientSide  bool            `json:"client_side,omitempty"`
}

// HistoryMessage is one entry of agent.context.messages, replayed upstream
// at session start with role-dependent content type.
type HistoryMessage struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// ThinkConfig configures the upstream LLM/session.
type ThinkConfig struct {
	Provider  string               `json:"provider,omitempty"`
	Model     string               `json:"model,omitempty"`
	Prompt    string               `json:"prompt"`
	Functions []FunctionDefinition `json:"functions,omitempty"`
}

// ListenConfig names the upstream's speech-recognition provider. The proxy
// decodes it but neither interprets it nor forwards it upstream.
type ListenConfig struct {
	Provider string `json:"provider,omitempty"`
}

// ContextConfig carries conversation history to replay at session start.
type ContextConfig struct {
	Messages []HistoryMessage `json:"messages,omitempty"`
}

// AgentSettings is the "agent" block of a Settings message.
type AgentSettings struct {
	Language string         `json:"language,omitempty"`
	Listen   *ListenConfig  `json:"listen,omitempty"`
	Think    ThinkConfig    `json:"think"`
	Speak    string         `json:"speak,omitempty"`
	Greeting string         `json:"greeting,omitempty"`
	Context  *ContextConfig `json:"context,omitempty"`
}

// Settings is the first message a client must send. It carries the full
// session configuration: audio format, prompt, tools, voice, greeting, and
// history to replay.
type Settings struct {
	Type  string        `json:"type"`
	Audio AudioSettings `json:"audio,omitempty"`
	Agent AgentSettings `json:"agent"`
}

func (Settings) clientMessage() {}

// InjectUserMessage asks the proxy to treat content as if the user had said
// it.
type InjectUserMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (InjectUserMessage) clientMessage() {}

// UpdatePrompt replaces the session's instructions without touching any
// other configured field.
type UpdatePrompt struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt"`
}

func (UpdatePrompt) clientMessage() {}

// UpdateSpeak replaces the session's voice without touching any other
// configured field.
type UpdateSpeak struct {
	Type  string `json:"type"`
	Speak string `json:"speak"`
}

func (UpdateSpeak) clientMessage() {}

// InjectAgentMessage asks the proxy to treat content as if the assistant had
// said it.
type InjectAgentMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (InjectAgentMessage) clientMessage() {}

// FunctionCallResponse returns the client-side result of a function call the
// proxy previously requested via FunctionCallRequest.
type FunctionCallResponse struct {
	Type    string `json:"type"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (FunctionCallResponse) clientMessage() {}

// KeepAlive is a no-op heartbeat; the upstream connection keeps itself alive
// on its own.
type KeepAlive struct {
	Type string `json:"type"`
}

func (KeepAlive) clientMessage() {}

// CloseStream asks the proxy to close the session in an orderly fashion.
type CloseStream struct {
	Type string `json:"type"`
}

func (CloseStream) clientMessage() {}

const (
	TypeSettings             = "Settings"
	TypeInjectUserMessage    = "InjectUserMessage"
	TypeUpdatePrompt         = "UpdatePrompt"
	TypeUpdateSpeak          = "UpdateSpeak"
	TypeInjectAgentMessage   = "InjectAgentMessage"
	TypeFunctionCallResponse = "FunctionCallResponse"
	TypeKeepAlive            = "KeepAlive"
	TypeCloseStream          = "CloseStream"
)

type envelope struct {
	Type string `json:"type"`
}

// DecodeClientMessage dispatches on the "type" discriminator and unmarshals
// raw into the matching concrete type. An unrecognized type is a translation
// error: the caller logs a Warning and drops the message, the session
// continues.
func DecodeClientMessage(raw []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("agentproto: malformed client message: %w", err)
	}

	switch env.Type {
	case TypeSettings:
		var m Settings
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeInjectUserMessage:
		var m InjectUserMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeUpdatePrompt:
		var m UpdatePrompt
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeUpdateSpeak:
		var m UpdateSpeak
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeInjectAgentMessage:
		var m InjectAgentMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeFunctionCallResponse:
		var m FunctionCallResponse
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeKeepAlive:
		var m KeepAlive
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeCloseStream:
		var m CloseStream
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("agentproto: unrecognized client message type %q", env.Type)
	}
}
