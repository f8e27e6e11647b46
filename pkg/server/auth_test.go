package server

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://issuer.example.com"
	testAudience = "test-audience"
)

type tokenSigner struct {
	signer jose.Signer
}

func newTokenSigner(t *testing.T) (*tokenSigner, tokenVerifier) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)

	verifier := oidc.NewVerifier(
		testIssuer,
		&oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}},
		&oidc.Config{ClientID: testAudience},
	)
	return &tokenSigner{signer: signer}, verifier.Verify
}

func (ts *tokenSigner) sign(t *testing.T, claims map[string]any) string {
	base := map[string]any{
		"iss": testIssuer,
		"aud": testAudience,
		"sub": "subject",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range claims {
		base[k] = v
	}
	raw, err := jwt.Signed(ts.signer).Claims(base).Serialize()
	require.NoError(t, err)
	return raw
}

func TestAuthMiddleware(t *testing.T) {
	signer, verifier := newTokenSigner(t)

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if email, ok := r.Context().Value(emailContextKey).(string); ok {
			w.Header().Set("X-Email", email)
		}
		w.WriteHeader(http.StatusOK)
	})

	serve := func(srv *Server, authHeader string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
		if authHeader != "" {
			req.Header.Set("Authorization", authHeader)
		}
		rr := httptest.NewRecorder()
		srv.authMiddleware(testHandler).ServeHTTP(rr, req)
		return rr
	}

	t.Run("No Verifier Allows All", func(t *testing.T) {
		rr := serve(&Server{}, "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Empty(t, rr.Header().Get("X-Email"))
	})

	srv := &Server{
		verifier:    verifier,
		adminEmails: []string{"parent@example.com"},
	}

	t.Run("Missing Header", func(t *testing.T) {
		rr := serve(srv, "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Bad Prefix", func(t *testing.T) {
		rr := serve(srv, "Basic abc")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Garbage Token", func(t *testing.T) {
		rr := serve(srv, "Bearer not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Wrong Audience", func(t *testing.T) {
		token := signer.sign(t, map[string]any{"aud": "other", "email": "parent@example.com"})
		rr := serve(srv, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Expired", func(t *testing.T) {
		token := signer.sign(t, map[string]any{
			"email": "parent@example.com",
			"exp":   time.Now().Add(-time.Hour).Unix(),
		})
		rr := serve(srv, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Unverified Email", func(t *testing.T) {
		token := signer.sign(t, map[string]any{"email": "parent@example.com", "email_verified": false})
		rr := serve(srv, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Not Admin", func(t *testing.T) {
		token := signer.sign(t, map[string]any{"email": "someone@example.com", "email_verified": true})
		rr := serve(srv, "Bearer "+token)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("Admin", func(t *testing.T) {
		token := signer.sign(t, map[string]any{"email": "Parent@Example.com", "email_verified": true})
		rr := serve(srv, "Bearer "+token)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "Parent@Example.com", rr.Header().Get("X-Email"))
	})

	t.Run("Empty Admin List Allows Verified", func(t *testing.T) {
		open := &Server{verifier: verifier}
		token := signer.sign(t, map[string]any{"email": "someone@example.com"})
		rr := serve(open, "Bearer "+token)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
