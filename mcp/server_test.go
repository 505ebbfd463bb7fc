package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphgate/graphgate/config"
)

type fakeStatus struct {
	loggedIn bool
	user     string
	prompt   string
}

func (f *fakeStatus) LoggedIn(ctx context.Context) bool      { return f.loggedIn }
func (f *fakeStatus) CurrentUser(ctx context.Context) string { return f.user }
func (f *fakeStatus) DevicePrompt() string                   { return f.prompt }

func newTestServer() *Server {
	cfg := config.Default()
	return NewServer(newEchoRegistry(), &fakeStatus{loggedIn: true, user: "user@contoso.com"}, cfg, slog.Default())
}

func TestHandleRequestMethods(t *testing.T) {
	server := newTestServer()

	response := server.HandleRequest(context.Background(), &Request{Jsonrpc: "2.0", ID: json.RawMessage(`1`), Method: "tools/list"})
	require.Nil(t, response.Error)
	result, ok := response.Result.(map[string]interface{})
	require.True(t, ok)
	tools, ok := result["tools"].([]ToolInfo)
	require.True(t, ok)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)

	response = server.HandleRequest(context.Background(), &Request{Jsonrpc: "2.0", ID: json.RawMessage(`2`), Method: "nope"})
	require.NotNil(t, response.Error)
	assert.Equal(t, -32601, response.Error.Code)
	assert.Contains(t, response.Error.Message, "nope")
}

func TestHTTPMCPEndpoint(t *testing.T) {
	server := httptest.NewServer(newTestServer().HTTPHandler())
	defer server.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}`
	resp, err := http.Post(server.URL+"/mcp", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))

	var decoded struct {
		Result struct {
			StructuredContent map[string]interface{} `json:"structuredContent"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Nil(t, decoded.Error)
	assert.Equal(t, "hi", decoded.Result.StructuredContent["message"])
}

func TestHTTPMCPEnvelopeErrors(t *testing.T) {
	server := httptest.NewServer(newTestServer().HTTPHandler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/mcp", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// tool-level failure still travels as HTTP 200
	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"missing"}}`
	resp, err = http.Post(server.URL+"/mcp", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// unknown method is an envelope error
	body = `{"jsonrpc":"2.0","id":1,"method":"bogus"}`
	resp, err = http.Post(server.URL+"/mcp", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	oversized := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"message":"` +
		strings.Repeat("x", maxRequestBytes) + `"}}}`
	resp, err = http.Post(server.URL+"/mcp", "application/json", strings.NewReader(oversized))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestHTTPStatusEndpoints(t *testing.T) {
	server := httptest.NewServer(newTestServer().HTTPHandler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "user@contoso.com", health["user"])

	resp, err = http.Get(server.URL + "/auth/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status struct {
		Graph struct {
			Authenticated bool   `json:"authenticated"`
			User          string `json:"user"`
		} `json:"graph"`
		Retrieval struct {
			Enabled    bool   `json:"enabled"`
			DataSource string `json:"dataSource"`
		} `json:"retrieval"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.True(t, status.Graph.Authenticated)
	assert.Equal(t, "sharePoint", status.Retrieval.DataSource)

	resp, err = http.Get(server.URL + "/nowhere")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeStdio(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}`,
		`this is not json`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	server := newTestServer()
	require.NoError(t, server.ServeStdio(context.Background(), strings.NewReader(input), &out))

	var ids []float64
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var response struct {
			ID    float64   `json:"id"`
			Error *RPCError `json:"error"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &response))
		require.Nil(t, response.Error)
		ids = append(ids, response.ID)
	}
	assert.ElementsMatch(t, []float64{1, 2}, ids)
}

func TestReadLimitedLine(t *testing.T) {
	reader := bufio.NewReaderSize(strings.NewReader(strings.Repeat("a", 3000)+"\nshort\n"), 16)
	line, tooLong, err := readLimitedLine(reader, 1024)
	require.NoError(t, err)
	assert.True(t, tooLong)
	assert.Nil(t, line)

	line, tooLong, err = readLimitedLine(reader, 1024)
	require.NoError(t, err)
	assert.False(t, tooLong)
	assert.Equal(t, "short", string(line))
}
