package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"

	"github.com/graphgate/graphgate/config"
	"github.com/graphgate/graphgate/errcode"
)

// refreshSkew is how long before expiry a token is already treated as stale.
const refreshSkew = 60 * time.Second

const graphResource = "https://graph.microsoft.com/"

// Session owns the signed-in user's credential. It hydrates the persisted
// credential once per process, serves cached access tokens, and refreshes a
// stale token at most once regardless of how many tool calls race for it.
type Session struct {
	cfg     *config.Config
	store   *Store
	factory ProviderFactory
	logger  *slog.Logger

	mu           sync.Mutex
	provider     TokenProvider
	cred         *Credential
	hydrated     bool
	refresh      *refreshCall
	devicePrompt string
	graphClient  *msgraphsdk.GraphServiceClient
}

// refreshCall lets concurrent callers wait for one in-flight refresh.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

func NewSession(cfg *config.Config, store *Store, factory ProviderFactory, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{cfg: cfg, store: store, factory: factory, logger: logger}
}

// scopes qualifies bare Graph scope names with the resource URI. Reserved
// OpenID scopes are attached by the identity library itself.
func (s *Session) scopes() []string {
	out := make([]string, 0, len(s.cfg.Scopes))
	for _, scope := range s.cfg.Scopes {
		switch {
		case scope == "offline_access", scope == "openid", scope == "profile":
			continue
		case strings.Contains(scope, "://"):
			out = append(out, scope)
		default:
			out = append(out, graphResource+scope)
		}
	}
	return out
}

// Login runs the interactive flow for mode, then persists the resulting
// credential. Device-code messages are captured and readable via
// DevicePrompt while the flow is pending.
func (s *Session) Login(ctx context.Context, mode LoginMode) (*Credential, error) {
	prompt := func(message string) {
		s.mu.Lock()
		s.devicePrompt = message
		s.mu.Unlock()
	}
	provider, err := s.factory(azidentity.AuthenticationRecord{}, mode, prompt)
	if err != nil {
		return nil, fmt.Errorf("create credential provider: %w", err)
	}
	record, err := provider.Authenticate(ctx, &policy.TokenRequestOptions{Scopes: s.scopes()})
	if err != nil {
		return nil, errcode.Wrap(errcode.AuthRequired, fmt.Errorf("authentication failed: %w", err))
	}
	token, err := provider.GetToken(ctx, policy.TokenRequestOptions{Scopes: s.scopes()})
	if err != nil {
		return nil, errcode.Wrap(errcode.AuthRequired, fmt.Errorf("token acquisition failed: %w", err))
	}
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	account := record.Username
	if account == "" {
		account = PrincipalFromToken(token.Token)
	}
	cred := &Credential{
		Account:     account,
		AccessToken: token.Token,
		ExpiresAt:   token.ExpiresOn,
		AuthRecord:  recordJSON,
	}
	if err := s.store.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("persist credential: %w", err)
	}
	s.mu.Lock()
	s.provider = provider
	s.cred = cred
	s.hydrated = true
	s.devicePrompt = ""
	s.graphClient = nil
	s.mu.Unlock()
	s.logger.Info("login complete", "account", account, "mode", string(mode))
	return cred, nil
}

// Logout drops the in-memory session and deletes the persisted credential.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	account := ""
	if s.cred != nil {
		account = s.cred.Account
	}
	s.provider = nil
	s.cred = nil
	s.graphClient = nil
	s.hydrated = true
	s.devicePrompt = ""
	s.mu.Unlock()
	if err := s.store.Delete(ctx); err != nil {
		return fmt.Errorf("remove stored credential: %w", err)
	}
	s.logger.Info("logout complete", "account", account)
	return nil
}

// GetAccessToken returns a token valid for at least refreshSkew, refreshing
// silently when needed. Concurrent callers share one refresh.
func (s *Session) GetAccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.hydrateLocked(ctx)
	if s.cred == nil {
		s.mu.Unlock()
		return "", errcode.New(errcode.AuthRequired, "not logged in. Use the login tool to sign in first")
	}
	if time.Until(s.cred.ExpiresAt) > refreshSkew {
		token := s.cred.AccessToken
		s.mu.Unlock()
		return token, nil
	}
	if s.refresh != nil {
		call := s.refresh
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.token, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	s.refresh = call
	s.mu.Unlock()

	token, err := s.doRefresh(ctx)

	s.mu.Lock()
	call.token, call.err = token, err
	s.refresh = nil
	s.mu.Unlock()
	close(call.done)
	return token, err
}

func (s *Session) doRefresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	provider, err := s.ensureProviderLocked()
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	token, err := provider.GetToken(ctx, policy.TokenRequestOptions{Scopes: s.scopes()})
	if err != nil {
		var required *azidentity.AuthenticationRequiredError
		if errors.As(err, &required) {
			return "", errcode.New(errcode.AuthExpired, "session expired. Use the login tool to sign in again")
		}
		return "", errcode.Wrap(errcode.AuthExpired, fmt.Errorf("token refresh failed: %w", err))
	}
	s.mu.Lock()
	var snapshot *Credential
	if s.cred != nil {
		s.cred.AccessToken = token.Token
		s.cred.ExpiresAt = token.ExpiresOn
		copied := *s.cred
		snapshot = &copied
	}
	s.mu.Unlock()
	if snapshot != nil {
		if err := s.store.Save(ctx, snapshot); err != nil {
			s.logger.Warn("credential persist failed", "error", err)
		}
	}
	s.logger.Debug("access token refreshed", "expiresAt", token.ExpiresOn)
	return token.Token, nil
}

// hydrateLocked loads the persisted credential exactly once per process.
func (s *Session) hydrateLocked(ctx context.Context) {
	if s.hydrated {
		return
	}
	s.hydrated = true
	cred, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("credential load failed", "error", err)
		return
	}
	s.cred = cred
}

// ensureProviderLocked rebuilds the silent credential provider from the
// stored authentication record after a restart.
func (s *Session) ensureProviderLocked() (TokenProvider, error) {
	if s.provider != nil {
		return s.provider, nil
	}
	if s.cred == nil || len(s.cred.AuthRecord) == 0 {
		return nil, errcode.New(errcode.AuthRequired, "not logged in. Use the login tool to sign in first")
	}
	var record azidentity.AuthenticationRecord
	if err := json.Unmarshal(s.cred.AuthRecord, &record); err != nil {
		return nil, errcode.New(errcode.AuthExpired, "stored credential is unreadable. Use the login tool to sign in again")
	}
	provider, err := s.factory(record, ModeDeviceCode, nil)
	if err != nil {
		return nil, fmt.Errorf("rebuild credential provider: %w", err)
	}
	s.provider = provider
	return provider, nil
}

// GraphClient returns a memoized Microsoft Graph SDK client backed by this
// session's provider. Logout invalidates it.
func (s *Session) GraphClient(ctx context.Context) (*msgraphsdk.GraphServiceClient, error) {
	s.mu.Lock()
	if s.graphClient != nil {
		client := s.graphClient
		s.mu.Unlock()
		return client, nil
	}
	s.hydrateLocked(ctx)
	provider, err := s.ensureProviderLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(provider, s.scopes())
	if err != nil {
		return nil, fmt.Errorf("create graph client: %w", err)
	}
	s.mu.Lock()
	if s.graphClient == nil {
		s.graphClient = client
	}
	client = s.graphClient
	s.mu.Unlock()
	return client, nil
}

// LoggedIn reports whether a credential is present.
func (s *Session) LoggedIn(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrateLocked(ctx)
	return s.cred != nil
}

// CurrentUser returns the signed-in account, or "" when logged out.
func (s *Session) CurrentUser(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrateLocked(ctx)
	if s.cred == nil {
		return ""
	}
	return s.cred.Account
}

// Current returns a copy of the stored credential, or nil when logged out.
func (s *Session) Current(ctx context.Context) *Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrateLocked(ctx)
	if s.cred == nil {
		return nil
	}
	copied := *s.cred
	return &copied
}

// DevicePrompt returns the pending device-code message, if any.
func (s *Session) DevicePrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.devicePrompt
}
