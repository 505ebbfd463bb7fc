// Package auth manages the gateway's delegated Microsoft identity: the
// device-code and browser login flows, the persisted credential, and a
// single-flight refreshing access-token source.
package auth

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity/cache"
)

// LoginMode selects how the user proves their identity on login.
type LoginMode string

const (
	ModeDeviceCode  LoginMode = "deviceCode"
	ModeInteractive LoginMode = "interactive"
)

// TokenProvider is the slice of an azidentity credential the session uses:
// explicit interactive authentication plus silent token acquisition.
type TokenProvider interface {
	Authenticate(ctx context.Context, opts *policy.TokenRequestOptions) (azidentity.AuthenticationRecord, error)
	GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error)
}

// ProviderFactory builds a TokenProvider primed with a previously saved
// authentication record (zero value for a fresh login). prompt receives the
// device-code message when the flow requires one.
type ProviderFactory func(record azidentity.AuthenticationRecord, mode LoginMode, prompt func(string)) (TokenProvider, error)

// AzureProviderFactory returns the production factory. Refresh tokens live in
// the azidentity persistent cache under cacheName; automatic authentication
// is disabled so a silent failure surfaces as AuthenticationRequiredError
// instead of blocking a tool call on an interactive prompt.
func AzureProviderFactory(clientID, tenantID, cacheName string) ProviderFactory {
	return func(record azidentity.AuthenticationRecord, mode LoginMode, prompt func(string)) (TokenProvider, error) {
		tokenCache, err := cache.New(&cache.Options{Name: cacheName})
		if err != nil {
			return nil, err
		}
		if mode == ModeInteractive {
			return azidentity.NewInteractiveBrowserCredential(&azidentity.InteractiveBrowserCredentialOptions{
				TenantID:                       tenantID,
				ClientID:                       clientID,
				Cache:                          tokenCache,
				AuthenticationRecord:           record,
				DisableAutomaticAuthentication: true,
			})
		}
		userPrompt := func(_ context.Context, message azidentity.DeviceCodeMessage) error {
			if prompt != nil {
				prompt(message.Message)
			}
			return nil
		}
		return azidentity.NewDeviceCodeCredential(&azidentity.DeviceCodeCredentialOptions{
			TenantID:                       tenantID,
			ClientID:                       clientID,
			Cache:                          tokenCache,
			AuthenticationRecord:           record,
			DisableAutomaticAuthentication: true,
			UserPrompt:                     userPrompt,
		})
	}
}
