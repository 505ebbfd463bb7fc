package graph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileSearchServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/query", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[{"hitsContainers":[{"hits":[
			{"summary":"quarterly budget figures",
			 "resource":{"id":"f1","name":"notes.txt","lastModifiedDateTime":"2026-01-01T00:00:00Z",
			             "parentReference":{"driveId":"d1","path":"/drive/root:/docs"}}},
			{"summary":"unrelated text",
			 "resource":{"id":"f2","name":"budget.xlsx","lastModifiedDateTime":"2026-02-01T00:00:00Z",
			             "parentReference":{"driveId":"d1","path":"/drive/root:/docs"}}}
		]}]}]}`))
	}))
}

func TestFileSearchModes(t *testing.T) {
	server := fileSearchServer(t)
	defer server.Close()
	files := NewFilesService(newTestClient(server.URL))

	both, err := files.Search(context.Background(), "budget", 10, FileSearchBoth, false)
	require.NoError(t, err)
	require.Len(t, both, 2)
	// newest first
	assert.Equal(t, "budget.xlsx", both[0]["name"])
	assert.Equal(t, "unrelated text", both[0]["snippet"])

	byName, err := files.Search(context.Background(), "budget", 10, FileSearchName, false)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "budget.xlsx", byName[0]["name"])

	byContent, err := files.Search(context.Background(), "budget", 10, FileSearchContent, false)
	require.NoError(t, err)
	require.Len(t, byContent, 1)
	assert.Equal(t, "notes.txt", byContent[0]["name"])
}

func TestPickFile(t *testing.T) {
	item := map[string]interface{}{
		"id":   "f1",
		"name": "doc.docx",
		"size": float64(1024),
		"parentReference": map[string]interface{}{
			"driveId": "d1",
			"path":    "/drive/root:/docs",
		},
		"createdBy": map[string]interface{}{"user": map[string]interface{}{"displayName": "A"}},
	}
	minimal := PickFile(item, false)
	assert.Equal(t, "d1", minimal["drive_id"])
	assert.NotContains(t, minimal, "created_by")

	full := PickFile(item, true)
	assert.Contains(t, full, "created_by")
}
