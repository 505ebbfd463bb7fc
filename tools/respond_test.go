package tools

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgate/graphgate/errcode"
)

func respondGraphStub() (http.Handler, *[]string) {
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /me/events/evt-1/accept", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "accept")
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["sendResponse"] == true {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	})
	mux.HandleFunc("POST /me/events/evt-1/cancel", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "cancel")
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("GET /me/events/evt-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "evt-1",
			"subject": "Budget sync",
			"organizer": map[string]interface{}{
				"emailAddress": map[string]interface{}{"name": "Boss", "address": "boss@contoso.com"},
			},
		})
	})
	mux.HandleFunc("GET /me/messages", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "searchMail")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []map[string]interface{}{{"id": "invite-1", "subject": "Budget sync"}},
		})
	})
	mux.HandleFunc("POST /me/messages/invite-1/createReplyAll", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "createReplyAll")
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "reply-draft-9"})
	})
	return mux, &calls
}

func TestRespondAccept(t *testing.T) {
	handler, calls := respondGraphStub()
	s := newTestService(t, nil, handler)

	result := callTool(t, s, "respond_to_meeting", map[string]interface{}{
		"event_id": "evt-1",
		"action":   "accept",
		"confirm":  true,
	})
	require.False(t, isToolError(result))
	assert.Equal(t, []string{"accept"}, *calls)

	entries, err := s.audit.List(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "respond_to_meeting", entries[0].Action)
}

func TestRespondCancelGate(t *testing.T) {
	handler, calls := respondGraphStub()
	s := newTestService(t, nil, handler)

	result := callTool(t, s, "respond_to_meeting", map[string]interface{}{
		"event_id": "evt-1",
		"action":   "cancel",
	})
	require.False(t, isToolError(result))
	assert.Equal(t, true, result.StructuredContent["requires_confirmation"])
	assert.Empty(t, *calls)

	result = callTool(t, s, "respond_to_meeting", map[string]interface{}{
		"event_id": "evt-1",
		"action":   "cancel",
		"confirm":  true,
	})
	require.False(t, isToolError(result))
	assert.Equal(t, []string{"cancel"}, *calls)
}

func TestRespondReplyAllDraft(t *testing.T) {
	handler, calls := respondGraphStub()
	s := newTestService(t, nil, handler)

	result := callTool(t, s, "respond_to_meeting", map[string]interface{}{
		"event_id":  "evt-1",
		"action":    "reply_all_draft",
		"body_html": "",
	})
	require.False(t, isToolError(result))
	assert.Equal(t, "reply-draft-9", result.StructuredContent["id"])
	assert.Equal(t, "invite-1", result.StructuredContent["source_message_id"])
	assert.Equal(t, []string{"searchMail", "createReplyAll"}, *calls)
}

func TestRespondUnknownAction(t *testing.T) {
	handler, _ := respondGraphStub()
	s := newTestService(t, nil, handler)

	result := callTool(t, s, "respond_to_meeting", map[string]interface{}{
		"event_id": "evt-1",
		"action":   "maybe",
	})
	require.True(t, isToolError(result))
	assert.Equal(t, errcode.Validation, errorCode(result))
}
