package tools

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgate/graphgate/audit"
	"github.com/graphgate/graphgate/errcode"
)

func TestAuthWhoami(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":                "u1",
			"displayName":       "Test User",
			"mail":              "user@contoso.com",
			"userPrincipalName": "user@contoso.com",
		})
	})
	s := newTestService(t, nil, mux)

	result := callTool(t, s, "auth", map[string]interface{}{"action": "whoami"})
	require.False(t, isToolError(result))
	assert.Equal(t, "Test User", result.StructuredContent["display_name"])
	assert.Equal(t, "u1", result.StructuredContent["id"])
}

func TestAuthLogout(t *testing.T) {
	s := newTestService(t, nil, emptyGraphHandler())
	result := callTool(t, s, "auth", map[string]interface{}{"action": "logout"})
	require.False(t, isToolError(result))

	result = callTool(t, s, "auth", map[string]interface{}{"action": "whoami"})
	require.True(t, isToolError(result))
	assert.Equal(t, errcode.AuthRequired, errorCode(result))
}

func TestAuthValidation(t *testing.T) {
	s := newTestService(t, nil, emptyGraphHandler())
	result := callTool(t, s, "auth", map[string]interface{}{"action": "refresh"})
	require.True(t, isToolError(result))
	assert.Equal(t, errcode.Validation, errorCode(result))
}

func TestAuditList(t *testing.T) {
	s := newTestService(t, nil, emptyGraphHandler())
	for i := 0; i < 3; i++ {
		require.NoError(t, s.audit.Log(audit.Entry{
			Action: "schedule_meeting",
			User:   "user@contoso.com",
			Status: audit.StatusSuccess,
		}))
	}

	result := callTool(t, s, "audit_list", map[string]interface{}{"limit": 2})
	require.False(t, isToolError(result))
	assert.Equal(t, 2, result.StructuredContent["count"])
	items, _ := result.StructuredContent["items"].([]audit.Entry)
	require.Len(t, items, 2)
	assert.Equal(t, "schedule_meeting", items[0].Action)
}
