package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return priv, &priv.PublicKey
}

func TestIssueAndVerifyToken(t *testing.T) {
	priv, pub := testKeyPair(t)
	issuer := NewIssuer(priv, time.Hour)
	validator := NewBaseValidator(pub)

	token, err := issuer.IssueToken("client-42", map[string]bool{"process": true})
	require.NoError(t, err)

	claims, err := validator.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "client-42", claims.ClientID)
	assert.True(t, claims.Scopes["process"])
	assert.False(t, claims.Scopes["admin"])
}

// Префикс Bearer обрезается валидатором, заголовок можно отдавать как есть.
func TestVerifyToken_BearerPrefix(t *testing.T) {
	priv, pub := testKeyPair(t)
	token, err := NewIssuer(priv, time.Hour).IssueToken("client-1", nil)
	require.NoError(t, err)

	claims, err := NewBaseValidator(pub).VerifyToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "client-1", claims.ClientID)
}

func TestVerifyToken_WrongKeyRejected(t *testing.T) {
	priv, _ := testKeyPair(t)
	_, otherPub := testKeyPair(t)

	token, err := NewIssuer(priv, time.Hour).IssueToken("client-1", nil)
	require.NoError(t, err)

	_, err = NewBaseValidator(otherPub).VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyToken_ExpiredRejected(t *testing.T) {
	priv, pub := testKeyPair(t)
	issuer := &Issuer{privateKey: priv, ttl: -time.Minute}

	token, err := issuer.IssueToken("client-1", nil)
	require.NoError(t, err)

	_, err = NewBaseValidator(pub).VerifyToken(token)
	assert.Error(t, err)
}

func TestVerifyToken_GarbageRejected(t *testing.T) {
	_, pub := testKeyPair(t)
	_, err := NewBaseValidator(pub).VerifyToken("not.a.token")
	assert.Error(t, err)
}

func TestAPIKeyHashRoundtrip(t *testing.T) {
	hash, err := HashAPIKey("sk-secret-key", 4)
	require.NoError(t, err)
	assert.NotEqual(t, "sk-secret-key", hash)

	assert.True(t, VerifyAPIKey("sk-secret-key", hash))
	assert.False(t, VerifyAPIKey("sk-wrong-key", hash))
	assert.False(t, VerifyAPIKey("sk-secret-key", "not-a-bcrypt-hash"))
}

func TestMiddleware_APIKeyPath(t *testing.T) {
	hash, err := HashAPIKey("sk-live-1", 4)
	require.NoError(t, err)

	var gotClient string
	handler := NewMiddleware(nil, map[string]string{"client-7": hash}, zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotClient = ClientIDFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/v1/process", nil)
	req.Header.Set("X-API-Key", "sk-live-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "client-7", gotClient)
}

func TestMiddleware_RejectsUnknownKeyAndMissingAuth(t *testing.T) {
	hash, err := HashAPIKey("sk-live-1", 4)
	require.NoError(t, err)
	handler := NewMiddleware(nil, map[string]string{"client-7": hash}, zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	req := httptest.NewRequest(http.MethodGet, "/v1/process", nil)
	req.Header.Set("X-API-Key", "sk-forged")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/process", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_JWTPath(t *testing.T) {
	priv, pub := testKeyPair(t)
	token, err := NewIssuer(priv, time.Hour).IssueToken("client-9", map[string]bool{"validate": true})
	require.NoError(t, err)

	var scopeOK bool
	handler := NewMiddleware(NewBaseValidator(pub), nil, zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scopeOK = HasScope(r.Context(), "validate")
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/v1/validate/signal", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, scopeOK)
}

func TestHasScope_AdminOverride(t *testing.T) {
	priv, pub := testKeyPair(t)
	token, err := NewIssuer(priv, time.Hour).IssueToken("root", map[string]bool{"admin": true})
	require.NoError(t, err)

	var ok bool
	handler := NewMiddleware(NewBaseValidator(pub), nil, zap.NewNop())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok = HasScope(r.Context(), "process")
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/v1/process", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, ok)
}
