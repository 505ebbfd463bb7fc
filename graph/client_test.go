package graph

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgate/graphgate/errcode"
)

type staticToken string

func (s staticToken) GetAccessToken(ctx context.Context) (string, error) {
	return string(s), nil
}

func newTestClient(serverURL string) *Client {
	return &Client{tokens: staticToken("test-token"), httpc: http.DefaultClient, baseURL: serverURL}
}

func TestClientErrorMapping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/me/messages/missing":
			http.Error(w, `{"error":{"code":"ErrorItemNotFound"}}`, http.StatusNotFound)
		case "/me/messages/broken":
			http.Error(w, `{"error":{"code":"InternalServerError"}}`, http.StatusInternalServerError)
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"m1"}`))
		}
	}))
	defer server.Close()
	client := newTestClient(server.URL)

	out := map[string]interface{}{}
	require.NoError(t, client.get(context.Background(), "/me/messages/m1", nil, nil, &out))
	assert.Equal(t, "m1", out["id"])

	err := client.get(context.Background(), "/me/messages/missing", nil, nil, &out)
	require.Error(t, err)
	code, _ := errcode.Classify(err)
	assert.Equal(t, errcode.NotFound, code)

	err = client.get(context.Background(), "/me/messages/broken", nil, nil, &out)
	require.Error(t, err)
	code, _ = errcode.Classify(err)
	assert.Equal(t, errcode.Upstream, code)
}

func TestMailSearchRequestShape(t *testing.T) {
	var gotSearch, gotConsistency string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSearch = r.URL.Query().Get("$search")
		gotConsistency = r.Header.Get("ConsistencyLevel")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value":[{"id":"m1","subject":"Budget"},{"id":"m2","subject":"Budget v2"}]}`))
	}))
	defer server.Close()

	mail := NewMailService(newTestClient(server.URL), 4000, 20000)
	messages, err := mail.Search(context.Background(), `budget "Q3"`, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, `"budget \"Q3\""`, gotSearch)
	assert.Equal(t, "eventual", gotConsistency)
	assert.Equal(t, "m1", messages[0]["id"])
}

func TestPickMessage(t *testing.T) {
	message := map[string]interface{}{
		"id":      "m1",
		"subject": "Status",
		"from":    map[string]interface{}{"emailAddress": map[string]interface{}{"address": "a@contoso.com"}},
		"isRead":  true,
		"body":    map[string]interface{}{"content": "<p>Hello <b>world</b></p>"},
		"webLink": "https://outlook.example/m1",
		"toRecipients": []interface{}{
			map[string]interface{}{"emailAddress": map[string]interface{}{"address": "b@contoso.com"}},
		},
	}
	mail := NewMailService(nil, 4000, 20000)

	minimal := mail.PickMessage(message, false)
	assert.Equal(t, "m1", minimal["id"])
	assert.NotContains(t, minimal, "body_text")

	full := mail.PickMessage(message, true)
	assert.Equal(t, "Hello  world", full["body_text"])
	assert.Equal(t, false, full["body_truncated"])
	assert.Equal(t, "https://outlook.example/m1", full["web_link"])
}
