package translate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/realtime-voice-proxy/internal/agentproto"
	"github.com/yourusername/realtime-voice-proxy/internal/realtime"
)

func TestBuildSessionUpdate_MapsPromptVoiceFormatsAndTools(t *testing.T) {
	settings := agentproto.Settings{
		Audio: agentproto.AudioSettings{
			Input:  &agentproto.AudioFormat{Encoding: "linear16"},
			Output: &agentproto.AudioFormat{Encoding: "mulaw"},
		},
		Agent: agentproto.AgentSettings{
			Greeting: "hi there",
			Think: agentproto.ThinkConfig{
				Prompt: "be helpful",
				Functions: []agentproto.FunctionDefinition{
					{Name: "lookup", Description: "looks stuff up", ClientSide: true},
				},
			},
			Speak: "aura-asteria",
			Context: &agentproto.ContextConfig{
				Messages: []agentproto.HistoryMessage{{Role: "user", Content: "hello"}},
			},
		},
	}

	event, state := BuildSessionUpdate(settings)

	require.Equal(t, "session.update", event.EventType())
	require.Equal(t, "be helpful", event.Session.Instructions)
	require.Equal(t, "aura-asteria", event.Session.Voice)
	require.Equal(t, "linear16", event.Session.InputAudioFormat)
	require.Equal(t, "mulaw", event.Session.OutputAudioFormat)
	require.Len(t, event.Session.Tools, 1)
	require.Equal(t, "lookup", event.Session.Tools[0].Name)

	require.Equal(t, "hi there", state.Greeting)
	require.Len(t, state.History, 1)
}

func TestBuildSessionUpdate_NoToolsOmitsField(t *testing.T) {
	event, _ := BuildSessionUpdate(agentproto.Settings{})
	require.Nil(t, event.Session.Tools)
}

func TestInjectUserMessageEvent_RoleAndContentType(t *testing.T) {
	event, echo := InjectUserMessageEvent("what's the weather")

	require.Equal(t, "conversation.item.create", event.EventType())
	require.Equal(t, "message", event.Item.Type)
	require.Equal(t, "user", event.Item.Role)
	require.Len(t, event.Item.Content, 1)
	require.Equal(t, realtime.ContentTypeInputText, event.Item.Content[0].Type)

	require.Equal(t, "user", echo.Role)
	require.Equal(t, "what's the weather", echo.Content)
}

func TestInjectAgentMessageEvent_UsesOutputTextContentType(t *testing.T) {
	event, echo := InjectAgentMessageEvent("on it")
	require.Equal(t, "assistant", event.Item.Role)
	require.Equal(t, realtime.ContentTypeOutputText, event.Item.Content[0].Type)
	require.Equal(t, "assistant", echo.Role)
}

func TestFunctionCallResponseEvents_OrderedItemThenResponse(t *testing.T) {
	itemEvent, responseEvent := FunctionCallResponseEvents("call_123", `{"ok":true}`)

	require.Equal(t, "conversation.item.create", itemEvent.EventType())
	require.Equal(t, "function_call_output", itemEvent.Item.Type)
	require.Equal(t, "call_123", itemEvent.Item.CallID)
	require.Equal(t, `{"ok":true}`, itemEvent.Item.Output)

	require.Equal(t, "response.create", responseEvent.EventType())
}

func TestAudioAppendEvent_Base64Encodes(t *testing.T) {
	event := AudioAppendEvent([]byte{0x00, 0xFF, 0x10})

	raw, err := json.Marshal(event)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"audio":"AP8Q"`)
}

func TestStripClientSideTools_EmptyYieldsNil(t *testing.T) {
	require.Nil(t, StripClientSideTools(nil))
}

func TestHistoryItemEvent_PreservesRole(t *testing.T) {
	event := HistoryItemEvent(agentproto.HistoryMessage{Role: "assistant", Content: "earlier reply"})
	require.Equal(t, "assistant", event.Item.Role)
	require.Equal(t, "earlier reply", event.Item.Content[0].Text)
}
