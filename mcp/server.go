package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/graphgate/graphgate/config"
)

const maxRequestBytes = 1 << 20

// Request is one JSON-RPC request envelope.
type Request struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// RPCError is a protocol-level error: unknown method or dispatch crash.
// Tool failures never use it.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is one JSON-RPC response envelope.
type Response struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// Status exposes session state to the health and auth-status endpoints.
type Status interface {
	LoggedIn(ctx context.Context) bool
	CurrentUser(ctx context.Context) string
	DevicePrompt() string
}

// Server ties the registry to its transports.
type Server struct {
	registry *Registry
	status   Status
	cfg      *config.Config
	logger   *slog.Logger
}

func NewServer(registry *Registry, status Status, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{registry: registry, status: status, cfg: cfg, logger: logger}
}

// HandleRequest dispatches one envelope. A panic below the registry maps to
// a -32000 protocol error.
func (s *Server) HandleRequest(ctx context.Context, request *Request) (response *Response) {
	response = &Response{Jsonrpc: request.Jsonrpc, ID: request.ID}
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("request panic", "method", request.Method, "panic", recovered)
			response.Result = nil
			response.Error = &RPCError{Code: -32000, Message: fmt.Sprint(recovered)}
		}
	}()
	switch request.Method {
	case "tools/list":
		response.Result = map[string]interface{}{"tools": s.registry.List()}
	case "tools/call":
		params := &callParams{}
		if len(request.Params) > 0 {
			if err := json.Unmarshal(request.Params, params); err != nil {
				response.Error = &RPCError{Code: -32602, Message: "invalid params: " + err.Error()}
				return response
			}
		}
		response.Result = s.registry.Call(ctx, params.Name, params.Arguments)
	default:
		response.Error = &RPCError{Code: -32601, Message: "Method not found: " + request.Method}
	}
	return response
}

// ServeStdio reads newline-delimited requests from r and writes responses to
// w. Lines beyond the request size cap are discarded whole; requests run
// concurrently with serialized writes.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReaderSize(r, 64*1024)
	var writeMu sync.Mutex
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		line, tooLong, err := readLimitedLine(reader, maxRequestBytes)
		if tooLong {
			s.logger.Warn("stdin line exceeds request cap, discarding", "cap", maxRequestBytes)
			continue
		}
		if len(line) > 0 {
			request := &Request{}
			if jsonErr := json.Unmarshal(line, request); jsonErr != nil {
				s.logger.Warn("stdin parse error", "error", jsonErr)
			} else {
				wg.Add(1)
				go func() {
					defer wg.Done()
					response := s.HandleRequest(ctx, request)
					payload, marshalErr := json.Marshal(response)
					if marshalErr != nil {
						s.logger.Error("response marshal failed", "error", marshalErr)
						return
					}
					writeMu.Lock()
					_, _ = w.Write(append(payload, '\n'))
					writeMu.Unlock()
				}()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// readLimitedLine reads one line, reporting oversized lines after consuming
// them entirely so the stream stays aligned.
func readLimitedLine(reader *bufio.Reader, limit int) ([]byte, bool, error) {
	var line []byte
	tooLong := false
	for {
		chunk, isPrefix, err := reader.ReadLine()
		if len(chunk) > 0 && !tooLong {
			line = append(line, chunk...)
			if len(line) > limit {
				tooLong = true
				line = nil
			}
		}
		if err != nil {
			return line, tooLong, err
		}
		if !isPrefix {
			return line, tooLong, nil
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// HTTPHandler serves /health, /auth/status, and the /mcp JSON-RPC endpoint.
func (s *Server) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"user":   s.status.CurrentUser(r.Context()),
			"retrieval": map[string]interface{}{
				"enabled": *s.cfg.Retrieval.Enabled,
			},
		})
	})
	mux.HandleFunc("/auth/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
			return
		}
		graphStatus := map[string]interface{}{
			"authenticated": s.status.LoggedIn(r.Context()),
			"user":          s.status.CurrentUser(r.Context()),
		}
		if prompt := s.status.DevicePrompt(); prompt != "" {
			graphStatus["device_prompt"] = prompt
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"graph": graphStatus,
			"retrieval": map[string]interface{}{
				"enabled":    *s.cfg.Retrieval.Enabled,
				"dataSource": s.cfg.Retrieval.DataSource,
			},
		})
	})
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Request body too large"})
				return
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Stream error"})
			return
		}
		request := &Request{}
		if err := json.Unmarshal(body, request); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON"})
			return
		}
		response := s.HandleRequest(r.Context(), request)
		status := http.StatusOK
		if response.Error != nil {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, response)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	})
	return mux
}

// ListenAndServe runs the HTTP transport until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       5 * time.Second,
		ReadTimeout:       180 * time.Second,
		WriteTimeout:      180 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()
	s.logger.Info("HTTP server started", "addr", addr)
	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
