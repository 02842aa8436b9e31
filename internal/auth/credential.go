// Package auth obtains app-only access tokens for the target tenant and
// verifies the bearer tokens presented to the status endpoint.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// defaultTokenLifetime is assumed when the token endpoint omits expires_in.
const defaultTokenLifetime = time.Hour

// TokenURL returns the Microsoft identity platform v2 token endpoint of tenantID.
func TokenURL(tenantID string) string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID)
}

// ClientCredentials implements azcore.TokenCredential with the OAuth2 client
// credentials grant. Tokens are cached and refreshed shortly before expiry.
type ClientCredentials struct {
	source oauth2.TokenSource
}

var _ azcore.TokenCredential = (*ClientCredentials)(nil)

// NewClientCredentials creates a credential for the app registration
// clientID in tenantID.
func NewClientCredentials(tenantID, clientID, clientSecret string, scopes []string) *ClientCredentials {
	return FromConfig(context.Background(), &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     TokenURL(tenantID),
		Scopes:       scopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	})
}

// FromConfig creates a credential from an explicit client credentials
// configuration. ctx carries the HTTP client used for token requests
// (see oauth2.HTTPClient) and must outlive the credential.
func FromConfig(ctx context.Context, cfg *clientcredentials.Config) *ClientCredentials {
	return &ClientCredentials{source: cfg.TokenSource(ctx)}
}

// GetToken returns a cached token or requests a new one. The scopes in opts
// are ignored; the configured scopes are always requested.
func (c *ClientCredentials) GetToken(_ context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	tok, err := c.source.Token()
	if err != nil {
		return azcore.AccessToken{}, fmt.Errorf("acquire token: %w", err)
	}
	expires := tok.Expiry
	if expires.IsZero() {
		expires = time.Now().Add(defaultTokenLifetime)
	}
	return azcore.AccessToken{Token: tok.AccessToken, ExpiresOn: expires}, nil
}
