package tools

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgate/graphgate/auth"
	"github.com/graphgate/graphgate/errcode"
)

func emptyGraphHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
}

func TestFindPartialFailure(t *testing.T) {
	s := newTestService(t, nil, emptyGraphHandler())
	s.searchMail = func(ctx context.Context, query string, top int) ([]map[string]interface{}, error) {
		return []map[string]interface{}{
			{"type": "mail", "id": "m1", "subject": "Budget review", "snippet": "numbers"},
			{"type": "mail", "id": "m2", "subject": "Budget follow-up"},
		}, nil
	}
	s.searchFilesHybrid = func(ctx context.Context, query string, top int) (string, []map[string]interface{}, error) {
		return "", nil, errcode.New(errcode.RetrievalError, "Copilot Retrieval API failed: throttled")
	}
	s.searchEventsText = func(ctx context.Context, query string, top int) ([]map[string]interface{}, error) {
		return []map[string]interface{}{
			{"type": "event", "id": "e1", "subject": "Budget sync"},
		}, nil
	}

	result := callTool(t, s, "find", map[string]interface{}{"query": "budget"})
	require.False(t, isToolError(result))

	structured := result.StructuredContent
	assert.Equal(t, 3, structured["result_count"])
	assert.Equal(t, []string{"graph-search"}, structured["providers"])
	errs, _ := structured["errors"].([]string)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "throttled")
	summary, _ := structured["summary"].(string)
	assert.Contains(t, summary, "Budget review")
	assert.Contains(t, summary, "Budget sync")
}

func TestFindEventsDateRange(t *testing.T) {
	s := newTestService(t, nil, emptyGraphHandler())
	textSearched := false
	var gotStart, gotEnd string
	s.searchEventsText = func(ctx context.Context, query string, top int) ([]map[string]interface{}, error) {
		textSearched = true
		return nil, nil
	}
	s.listEventsRange = func(ctx context.Context, start, end string, top int) ([]map[string]interface{}, error) {
		gotStart, gotEnd = start, end
		return []map[string]interface{}{
			{"type": "event", "id": "e1", "subject": "Standup", "start": "2026-03-02T09:00:00"},
		}, nil
	}

	result := callTool(t, s, "find", map[string]interface{}{
		"query":        "standup",
		"entity_types": []string{"events"},
		"start_date":   "2026-03-02",
		"end_date":     "2026-03-06",
	})
	require.False(t, isToolError(result))
	assert.False(t, textSearched)
	assert.Equal(t, "2026-03-02", gotStart)
	assert.Equal(t, "2026-03-06", gotEnd)
	assert.Equal(t, []string{"calendar-view"}, result.StructuredContent["providers"])
	assert.Equal(t, "UTC", result.StructuredContent["timezone"])
}

func TestFindValidation(t *testing.T) {
	s := newTestService(t, nil, emptyGraphHandler())
	result := callTool(t, s, "find", map[string]interface{}{"query": "  "})
	require.True(t, isToolError(result))
	assert.Equal(t, errcode.Validation, errorCode(result))

	result = callTool(t, s, "find", map[string]interface{}{"query": "x", "entity_types": []string{"contacts"}})
	require.True(t, isToolError(result))
	assert.Equal(t, errcode.Validation, errorCode(result))
}

func TestFindRequiresLogin(t *testing.T) {
	cfg := testConfig()
	s := &Service{
		cfg:     cfg,
		session: auth.NewSession(cfg, auth.NewStore("mem://localhost/empty/"+t.Name()), nil, discardLogger()),
		logger:  discardLogger(),
		now:     time.Now,
	}
	result := callTool(t, s, "find", map[string]interface{}{"query": "budget"})
	require.True(t, isToolError(result))
	assert.Equal(t, errcode.AuthRequired, errorCode(result))
}
