package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/viant/mcp-protocol/schema"

	"github.com/graphgate/graphgate/audit"
	"github.com/graphgate/graphgate/auth"
	"github.com/graphgate/graphgate/config"
	"github.com/graphgate/graphgate/graph"
	"github.com/graphgate/graphgate/guard"
	"github.com/graphgate/graphgate/mcp"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Azure.ClientID = "client"
	cfg.Azure.TenantID = "tenant"
	cfg.Guardrails.Email.AllowDomains = []string{"contoso.com", "*.gov.ae"}
	cfg.Calendar.DefaultTimezone = "UTC"
	return cfg
}

func seededSession(t *testing.T, cfg *config.Config) *auth.Session {
	t.Helper()
	store := auth.NewStore("mem://localhost/tools/" + t.Name())
	require.NoError(t, store.Save(context.Background(), &auth.Credential{
		Account:     "user@contoso.com",
		AccessToken: "test-token",
		ExpiresAt:   time.Now().Add(time.Hour),
		AuthRecord:  json.RawMessage(`{}`),
	}))
	return auth.NewSession(cfg, store, nil, discardLogger())
}

// newTestService wires a Service against an in-process Graph stub and a
// temp-dir audit log.
func newTestService(t *testing.T, cfg *config.Config, handler http.Handler) *Service {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	session := seededSession(t, cfg)
	client := graph.NewClientWithBaseURL(session, server.URL)
	auditLog, err := audit.New(filepath.Join(t.TempDir(), "audit.jsonl"), true)
	require.NoError(t, err)
	return NewService(cfg, session, client, guard.New(cfg), auditLog, discardLogger())
}

func newRegistry(s *Service) *mcp.Registry {
	registry := mcp.NewRegistry(discardLogger())
	s.Register(registry)
	return registry
}

func callTool(t *testing.T, s *Service, name string, args interface{}) *schema.CallToolResult {
	t.Helper()
	registry := newRegistry(s)
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return registry.Call(context.Background(), name, raw)
}

func isToolError(result *schema.CallToolResult) bool {
	return result.IsError != nil && *result.IsError
}

func errorCode(result *schema.CallToolResult) string {
	code, _ := result.StructuredContent["error_code"].(string)
	return code
}
