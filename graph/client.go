// Package graph talks to Microsoft Graph: a thin authenticated REST client
// plus mail, calendar, file search, and retrieval operations built on it.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/graphgate/graphgate/errcode"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// TokenSource yields a valid delegated access token for each request.
type TokenSource interface {
	GetAccessToken(ctx context.Context) (string, error)
}

type Client struct {
	tokens  TokenSource
	httpc   *http.Client
	baseURL string
}

func NewClient(tokens TokenSource) *Client {
	return &Client{
		tokens:  tokens,
		httpc:   &http.Client{Timeout: 60 * time.Second},
		baseURL: defaultBaseURL,
	}
}

// NewClientWithBaseURL targets a non-default Graph endpoint.
func NewClientWithBaseURL(tokens TokenSource, baseURL string) *Client {
	client := NewClient(tokens)
	client.baseURL = strings.TrimRight(baseURL, "/")
	return client
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, headers map[string]string, body, out interface{}) error {
	token, err := c.tokens.GetAccessToken(ctx)
	if err != nil {
		return err
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return errcode.Wrap(errcode.Upstream, fmt.Errorf("Graph request %s %s: %w", method, path, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errcode.New(errcode.NotFound, "Graph resource not found: %s", path)
	}
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errcode.New(errcode.Upstream, "Graph %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errcode.Wrap(errcode.Upstream, fmt.Errorf("decode Graph response %s %s: %w", method, path, err))
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, headers map[string]string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, headers, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, nil, body, out)
}

func (c *Client) patch(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, nil, nil, body, out)
}

// getRaw downloads a resource body without JSON decoding, honoring limit as
// a hard byte cap.
func (c *Client) getRaw(ctx context.Context, path string, limit int64) ([]byte, string, error) {
	token, err := c.tokens.GetAccessToken(ctx)
	if err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, "", errcode.Wrap(errcode.Upstream, fmt.Errorf("Graph request GET %s: %w", path, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, "", errcode.New(errcode.NotFound, "Graph resource not found: %s", path)
	}
	if resp.StatusCode >= 300 {
		return nil, "", errcode.New(errcode.Upstream, "Graph GET %s returned %d", path, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", errcode.Wrap(errcode.Upstream, fmt.Errorf("read Graph response GET %s: %w", path, err))
	}
	if int64(len(data)) > limit {
		return nil, "", errcode.New(errcode.Validation, "download exceeds %d bytes", limit)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// Me fetches the signed-in user's profile.
func (c *Client) Me(ctx context.Context) (map[string]interface{}, error) {
	values := url.Values{}
	values.Set("$select", "displayName,mail,userPrincipalName,id")
	out := map[string]interface{}{}
	if err := c.get(ctx, "/me", values, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// listValue is the common {"value": [...]} collection envelope.
type listValue struct {
	Value []map[string]interface{} `json:"value"`
}

func pathEscape(s string) string { return url.PathEscape(s) }

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func nested(m map[string]interface{}, keys ...string) interface{} {
	var current interface{} = m
	for _, key := range keys {
		asMap, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = asMap[key]
	}
	return current
}
