package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyServer struct {
	key jwk.Key
	srv *httptest.Server
}

func newKeyServer(t *testing.T) *keyServer {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))

	pub, err := key.PublicKey()
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(srv.Close)
	return &keyServer{key: key, srv: srv}
}

func (k *keyServer) sign(t *testing.T, build func(*jwt.Builder) *jwt.Builder) string {
	t.Helper()
	tok, err := build(jwt.NewBuilder().IssuedAt(time.Now())).Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, k.key))
	require.NoError(t, err)
	return string(signed)
}

func bearerRequest(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/status", nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func TestKeysURL(t *testing.T) {
	assert.Equal(t, "https://login.microsoftonline.com/t1/discovery/v2.0/keys", KeysURL("t1"))
}

func TestVerifierAcceptsValidToken(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ks := newKeyServer(t)

	v, err := NewVerifier(ctx, ks.srv.URL, "api://pst-migrate")
	require.NoError(t, err)

	token := ks.sign(t, func(b *jwt.Builder) *jwt.Builder {
		return b.Subject("operator-1").
			Audience([]string{"api://pst-migrate"}).
			Expiration(time.Now().Add(time.Hour)).
			Claim("name", "Ops").
			Claim("appid", "app-123")
	})

	caller, err := v.CallerFromRequest(bearerRequest(token))
	require.NoError(t, err)
	assert.Equal(t, &Caller{Subject: "operator-1", Name: "Ops", AppID: "app-123"}, caller)
}

func TestVerifierRejects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ks := newKeyServer(t)
	other := newKeyServer(t)

	v, err := NewVerifier(ctx, ks.srv.URL, "api://pst-migrate")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"missing header", ""},
		{"expired", ks.sign(t, func(b *jwt.Builder) *jwt.Builder {
			return b.Subject("s").Audience([]string{"api://pst-migrate"}).Expiration(time.Now().Add(-time.Hour))
		})},
		{"wrong audience", ks.sign(t, func(b *jwt.Builder) *jwt.Builder {
			return b.Subject("s").Audience([]string{"api://other"}).Expiration(time.Now().Add(time.Hour))
		})},
		{"unknown key", other.sign(t, func(b *jwt.Builder) *jwt.Builder {
			return b.Subject("s").Audience([]string{"api://pst-migrate"}).Expiration(time.Now().Add(time.Hour))
		})},
		{"no subject", ks.sign(t, func(b *jwt.Builder) *jwt.Builder {
			return b.Audience([]string{"api://pst-migrate"}).Expiration(time.Now().Add(time.Hour))
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.CallerFromRequest(bearerRequest(tt.token))
			assert.Error(t, err)
		})
	}
}

func TestNewVerifierFailsOnUnreachableKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := NewVerifier(ctx, srv.URL, "")
	assert.ErrorContains(t, err, "initial JWKS fetch")
}
