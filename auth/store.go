package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

const credentialFile = "credential.json"

// Credential is the persisted login state: who is signed in, the last access
// token, and the azidentity authentication record used to rebuild a silent
// credential after restart.
type Credential struct {
	Account     string          `json:"account"`
	AccessToken string          `json:"accessToken"`
	ExpiresAt   time.Time       `json:"expiresAt"`
	AuthRecord  json.RawMessage `json:"authRecord,omitempty"`
}

// Valid reports whether the credential carries enough state to be usable.
func (c *Credential) Valid() bool {
	return c != nil && c.Account != "" && c.AccessToken != "" && len(c.AuthRecord) > 0
}

// Store persists a single credential document under a base URL. Any afs
// scheme works; tests use mem://.
type Store struct {
	fs       afs.Service
	location string
}

func NewStore(baseURL string) *Store {
	return &Store{fs: afs.New(), location: url.Join(baseURL, credentialFile)}
}

func (s *Store) Save(ctx context.Context, cred *Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}
	if err := s.fs.Upload(ctx, s.location, 0o600, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("store credential %v: %w", s.location, err)
	}
	return nil
}

// Load returns the stored credential, or nil when none exists or the stored
// document is missing required fields.
func (s *Store) Load(ctx context.Context) (*Credential, error) {
	ok, err := s.fs.Exists(ctx, s.location)
	if err != nil || !ok {
		return nil, err
	}
	data, err := s.fs.DownloadWithURL(ctx, s.location)
	if err != nil {
		return nil, fmt.Errorf("read credential %v: %w", s.location, err)
	}
	cred := &Credential{}
	if err := json.Unmarshal(data, cred); err != nil {
		return nil, fmt.Errorf("decode credential %v: %w", s.location, err)
	}
	if !cred.Valid() {
		return nil, nil
	}
	return cred, nil
}

// Delete removes the stored credential; a missing file is not an error.
func (s *Store) Delete(ctx context.Context) error {
	ok, err := s.fs.Exists(ctx, s.location)
	if err != nil || !ok {
		return nil
	}
	return s.fs.Delete(ctx, s.location)
}
