package realtime

import (
	"encoding/json"
	"fmt"
)

// ServerEvent is every event the upstream provider may send.
type ServerEvent interface {
	ServerEventType() string
}

type envelope struct {
	Type string `json:"type"`
}

// SessionCreatedEvent is server-side event "session.created".
type SessionCreatedEvent struct {
	Type    string `json:"type"`
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
}

func (SessionCreatedEvent) ServerEventType() string { return "session.created" }

// SessionUpdatedEvent is server-side event "session.updated".
type SessionUpdatedEvent struct {
	Type    string `json:"type"`
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
}

func (SessionUpdatedEvent) ServerEventType() string { return "session.updated" }

// ConversationItemAddedEvent is server-side event "conversation.item.added".
type ConversationItemAddedEvent struct {
	Type string `json:"type"`
	Item struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Role string `json:"role"`
	} `json:"item"`
}

func (ConversationItemAddedEvent) ServerEventType() string { return "conversation.item.added" }

// ConversationItemDoneEvent is server-side event "conversation.item.done".
type ConversationItemDoneEvent struct {
	Type string `json:"type"`
	Item struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Role string `json:"role"`
	} `json:"item"`
}

func (ConversationItemDoneEvent) ServerEventType() string { return "conversation.item.done" }

// ResponseCreatedEvent is server-side event "response.created".
type ResponseCreatedEvent struct {
	Type     string `json:"type"`
	Response struct {
		ID string `json:"id"`
	} `json:"response"`
}

func (ResponseCreatedEvent) ServerEventType() string { return "response.created" }

// ResponseDoneEvent is server-side event "response.done".
type ResponseDoneEvent struct {
	Type     string `json:"type"`
	Response struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"response"`
}

func (ResponseDoneEvent) ServerEventType() string { return "response.done" }

// ResponseContentPartAddedEvent is server-side event
// "response.content_part.added".
type ResponseContentPartAddedEvent struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id"`
}

func (ResponseContentPartAddedEvent) ServerEventType() string { return "response.content_part.added" }

// ResponseOutputAudioDeltaEvent is server-side event
// "response.output_audio.delta". Delta is base64-encoded PCM.
type ResponseOutputAudioDeltaEvent struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id"`
	Delta      string `json:"delta"`
}

func (ResponseOutputAudioDeltaEvent) ServerEventType() string { return "response.output_audio.delta" }

// ResponseOutputAudioDoneEvent is server-side event
// "response.output_audio.done".
type ResponseOutputAudioDoneEvent struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id"`
}

func (ResponseOutputAudioDoneEvent) ServerEventType() string { return "response.output_audio.done" }

// ResponseOutputTextDoneEvent is server-side event
// "response.output_text.done".
type ResponseOutputTextDoneEvent struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id"`
	Text       string `json:"text"`
}

func (ResponseOutputTextDoneEvent) ServerEventType() string { return "response.output_text.done" }

// ResponseOutputAudioTranscriptDoneEvent is server-side event
// "response.output_audio_transcript.done".
type ResponseOutputAudioTranscriptDoneEvent struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id"`
	Transcript string `json:"transcript"`
}

func (ResponseOutputAudioTranscriptDoneEvent) ServerEventType() string {
	return "response.output_audio_transcript.done"
}

// ResponseFunctionCallArgumentsDoneEvent is server-side event
// "response.function_call_arguments.done".
type ResponseFunctionCallArgumentsDoneEvent struct {
	Type       string `json:"type"`
	ResponseID string `json:"response_id"`
	CallID     string `json:"call_id"`
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
}

func (ResponseFunctionCallArgumentsDoneEvent) ServerEventType() string {
	return "response.function_call_arguments.done"
}

// InputAudioBufferSpeechStartedEvent is server-side event
// "input_audio_buffer.speech_started".
type InputAudioBufferSpeechStartedEvent struct {
	Type string `json:"type"`
}

func (InputAudioBufferSpeechStartedEvent) ServerEventType() string {
	return "input_audio_buffer.speech_started"
}

// InputAudioBufferSpeechStoppedEvent is server-side event
// "input_audio_buffer.speech_stopped".
type InputAudioBufferSpeechStoppedEvent struct {
	Type       string `json:"type"`
	AudioEndMs int    `json:"audio_end_ms"`
}

func (InputAudioBufferSpeechStoppedEvent) ServerEventType() string {
	return "input_audio_buffer.speech_stopped"
}

// ErrorEvent is server-side event "error". Message may contain the upstream
// credential if the provider echoes request headers back in diagnostics;
// the error mapper is responsible for scrubbing it before it reaches the
// client.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (ErrorEvent) ServerEventType() string { return "error" }

// Decode dispatches on the "type" discriminator and unmarshals raw into the
// matching concrete ServerEvent. An unrecognized type is a translation
// error: the caller logs a Warning and drops the event.
func Decode(raw []byte) (ServerEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("realtime: malformed upstream event: %w", err)
	}

	switch env.Type {
	case "session.created":
		var e SessionCreatedEvent
		return e, json.Unmarshal(raw, &e)
	case "session.updated":
		var e SessionUpdatedEvent
		return e, json.Unmarshal(raw, &e)
	case "conversation.item.added":
		var e ConversationItemAddedEvent
		return e, json.Unmarshal(raw, &e)
	case "conversation.item.done":
		var e ConversationItemDoneEvent
		return e, json.Unmarshal(raw, &e)
	case "response.created":
		var e ResponseCreatedEvent
		return e, json.Unmarshal(raw, &e)
	case "response.done":
		var e ResponseDoneEvent
		return e, json.Unmarshal(raw, &e)
	case "response.content_part.added":
		var e ResponseContentPartAddedEvent
		return e, json.Unmarshal(raw, &e)
	case "response.output_audio.delta":
		var e ResponseOutputAudioDeltaEvent
		return e, json.Unmarshal(raw, &e)
	case "response.output_audio.done":
		var e ResponseOutputAudioDoneEvent
		return e, json.Unmarshal(raw, &e)
	case "response.output_text.done":
		var e ResponseOutputTextDoneEvent
		return e, json.Unmarshal(raw, &e)
	case "response.output_audio_transcript.done":
		var e ResponseOutputAudioTranscriptDoneEvent
		return e, json.Unmarshal(raw, &e)
	case "response.function_call_arguments.done":
		var e ResponseFunctionCallArgumentsDoneEvent
		return e, json.Unmarshal(raw, &e)
	case "input_audio_buffer.speech_started":
		var e InputAudioBufferSpeechStartedEvent
		return e, json.Unmarshal(raw, &e)
	case "input_audio_buffer.speech_stopped":
		var e InputAudioBufferSpeechStoppedEvent
		return e, json.Unmarshal(raw, &e)
	case "error":
		var e ErrorEvent
		return e, json.Unmarshal(raw, &e)
	default:
		return nil, fmt.Errorf("realtime: unrecognized upstream event type %q", env.Type)
	}
}
