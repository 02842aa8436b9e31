package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Caller is the authenticated principal behind a status request.
type Caller struct {
	Subject string `json:"sub"`
	Name    string `json:"name,omitempty"`
	AppID   string `json:"appid,omitempty"`
}

// KeysURL is the signing key set of tokens issued by tenantID.
func KeysURL(tenantID string) string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/discovery/v2.0/keys", tenantID)
}

// Verifier validates bearer tokens against a cached JWKS.
type Verifier struct {
	jwksURL  string
	audience string
	keySet   jwk.Set
}

// NewVerifier registers jwksURL with an auto-refreshing cache and fetches it
// once. The cache refreshes in the background until ctx is done. An empty
// audience skips the aud check.
func NewVerifier(ctx context.Context, jwksURL, audience string) (*Verifier, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(5*time.Minute)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}

	warmCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cache.Refresh(warmCtx, jwksURL); err != nil {
		return nil, fmt.Errorf("failed initial JWKS fetch: %w", err)
	}

	return &Verifier{
		jwksURL:  jwksURL,
		audience: audience,
		keySet:   jwk.NewCachedSet(cache, jwksURL),
	}, nil
}

// CallerFromRequest validates the Authorization header of r.
func (v *Verifier) CallerFromRequest(r *http.Request) (*Caller, error) {
	opts := []jwt.ParseOption{
		jwt.WithKeySet(v.keySet),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(time.Minute),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.ParseRequest(r, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}
	if token.Subject() == "" {
		return nil, errors.New("token missing subject")
	}

	caller := &Caller{Subject: token.Subject()}
	if name, ok := token.Get("name"); ok {
		caller.Name, _ = name.(string)
	}
	if appID, ok := token.Get("appid"); ok {
		caller.AppID, _ = appID.(string)
	}
	return caller, nil
}
