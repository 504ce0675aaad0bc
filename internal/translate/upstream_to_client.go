package translate

import (
	"github.com/yourusername/realtime-voice-proxy/internal/agentproto"
	"github.com/yourusername/realtime-voice-proxy/internal/errs"
	"github.com/yourusername/realtime-voice-proxy/internal/realtime"
)

// ResponseState tracks the ephemeral, per-response-id bookkeeping the
// translator needs to get AgentStartedSpeaking and function-call ordering
// right. The session owns one of these per in-flight response id and
// discards it on response.done.
type ResponseState struct {
	startedSpeaking bool
	transcript      string
	haveTranscript  bool
}

// TranslateSessionCreated builds the optional Welcome preamble from
// session.created.
func TranslateSessionCreated(e realtime.SessionCreatedEvent) agentproto.Welcome {
	return agentproto.NewWelcome(e.Session.ID)
}

// TranslateSessionUpdated builds the readiness signal from session.updated.
// The readiness signal is sent only once per session: for the session.updated
// that ends AwaitingSessionUpdated, not for later ones.
func TranslateSessionUpdated(realtime.SessionUpdatedEvent) agentproto.SettingsApplied {
	return agentproto.NewSettingsApplied()
}

// TranslateResponseCreated mirrors response.created as AgentThinking.
func TranslateResponseCreated(realtime.ResponseCreatedEvent) agentproto.AgentThinking {
	return agentproto.NewAgentThinking()
}

// TranslateAudioDelta handles the speaking latch for one audio delta; the
// delta's bytes are not touched here — the session decodes them and sends
// them as a binary frame, never wrapped in JSON. The bool return reports
// whether this is the first speaking signal observed for the response, in
// which case the session must also send AgentStartedSpeaking before the
// audio frame.
func TranslateAudioDelta(state *ResponseState) (startedSpeaking bool) {
	if state.startedSpeaking {
		return false
	}
	state.startedSpeaking = true
	return true
}

// TranslateContentPartAdded reports whether response.content_part.added is
// this response's first speaking signal — upstream may emit this before
// the first audio delta, so both events are valid AgentStartedSpeaking
// triggers, but only the first of either ever fires it.
func TranslateContentPartAdded(state *ResponseState) (startedSpeaking bool) {
	if state.startedSpeaking {
		return false
	}
	state.startedSpeaking = true
	return true
}

// TranslateAudioDone mirrors response.output_audio.done as AgentAudioDone.
func TranslateAudioDone(realtime.ResponseOutputAudioDoneEvent) agentproto.AgentAudioDone {
	return agentproto.NewAgentAudioDone()
}

// TranslateOutputTextDone mirrors a text-only response's completed text as
// ConversationText, attributed to the assistant.
func TranslateOutputTextDone(e realtime.ResponseOutputTextDoneEvent) agentproto.ConversationText {
	return agentproto.NewConversationText("assistant", e.Text)
}

// TranslateTranscriptDone records the transcript on state and always emits
// the corresponding ConversationText immediately: the transcript-derived
// ConversationText must precede any FunctionCallRequest for the same
// response.
func TranslateTranscriptDone(state *ResponseState, e realtime.ResponseOutputAudioTranscriptDoneEvent) agentproto.ConversationText {
	state.transcript = e.Transcript
	state.haveTranscript = true
	return agentproto.NewConversationText("assistant", e.Transcript)
}

// TranslateFunctionCallArgumentsDone builds the FunctionCallRequest for a
// function call, plus — when a transcript was already captured for this
// response — a second, repeated ConversationText emitted immediately after
// it: transcript ConversationText, then FunctionCallRequest, then the same
// ConversationText again. The second bool reports whether that echo
// applies.
func TranslateFunctionCallArgumentsDone(state *ResponseState, e realtime.ResponseFunctionCallArgumentsDoneEvent) (agentproto.FunctionCallRequest, agentproto.ConversationText, bool) {
	req := agentproto.NewFunctionCallRequest(e.CallID, e.Name, e.Arguments)
	if !state.haveTranscript {
		return req, agentproto.ConversationText{}, false
	}
	return req, agentproto.NewConversationText("assistant", state.transcript), true
}

// TranslateSpeechStarted mirrors input_audio_buffer.speech_started.
func TranslateSpeechStarted(realtime.InputAudioBufferSpeechStartedEvent) agentproto.UserStartedSpeaking {
	return agentproto.NewUserStartedSpeaking()
}

// TranslateSpeechStopped builds the UserStoppedSpeaking/UtteranceEnd pair
// synthesized from a single upstream speech_stopped event.
func TranslateSpeechStopped(e realtime.InputAudioBufferSpeechStoppedEvent) (agentproto.UserStoppedSpeaking, agentproto.UtteranceEnd) {
	ts := int64(e.AudioEndMs)
	lastWordEnd := float64(e.AudioEndMs) / 1000.0
	return agentproto.NewUserStoppedSpeaking(&ts), agentproto.NewUtteranceEnd(lastWordEnd)
}

// TranslateError classifies and scrubs an upstream error event, returning
// the client-facing message and whether the session must close afterward.
func TranslateError(mapper *errs.Mapper, e realtime.ErrorEvent) (msg agentproto.ServerMessage, fatal bool) {
	description := mapper.Description(e.Error.Message)
	if mapper.ClassifyCode(e.Error.Code) == errs.Fatal {
		return agentproto.NewError(description, e.Error.Code), true
	}
	return agentproto.NewWarning(description, e.Error.Code), false
}
