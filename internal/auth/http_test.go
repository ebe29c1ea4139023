// ABOUTME: Tests for the HTTP JWT middleware
// ABOUTME: Covers header parsing, unknown users, and identity propagation

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/amity-gateway/internal/store"
)

type fakeUserStore struct {
	users map[string]*store.User
}

func (f *fakeUserStore) CreateUser(ctx context.Context, user *store.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) GetUser(ctx context.Context, id string) (*store.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserStore) ListUsers(ctx context.Context) ([]*store.User, error) {
	var users []*store.User
	for _, u := range f.users {
		users = append(users, u)
	}
	return users, nil
}

func (f *fakeUserStore) TouchLastActive(ctx context.Context, userID string, at time.Time) error {
	if _, ok := f.users[userID]; !ok {
		return store.ErrNotFound
	}
	return nil
}

func setupMiddlewareTest(t *testing.T) (*JWTVerifier, http.Handler, *string) {
	t.Helper()

	verifier := NewJWTVerifier([]byte("test-secret"))
	users := &fakeUserStore{users: map[string]*store.User{
		"user-1": {ID: "user-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
	}}

	var seenUserID string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := FromContext(r.Context())
		require.NotNil(t, authCtx)
		seenUserID = authCtx.UserID
		w.WriteHeader(http.StatusOK)
	})

	handler := HTTPAuthMiddleware(users, verifier)(inner)
	return verifier, handler, &seenUserID
}

func TestHTTPAuthMiddleware_ValidToken(t *testing.T) {
	verifier, handler, seenUserID := setupMiddlewareTest(t)

	token, err := verifier.Generate("user-1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", *seenUserID)
}

func TestHTTPAuthMiddleware_MissingHeader(t *testing.T) {
	_, handler, _ := setupMiddlewareTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestHTTPAuthMiddleware_MalformedHeader(t *testing.T) {
	_, handler, _ := setupMiddlewareTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid authorization header format")
}

func TestHTTPAuthMiddleware_InvalidToken(t *testing.T) {
	_, handler, _ := setupMiddlewareTest(t)

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestHTTPAuthMiddleware_UnknownUser(t *testing.T) {
	verifier, handler, _ := setupMiddlewareTest(t)

	// Token is valid but the subject has no roster row
	token, err := verifier.Generate("user-ghost", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown user")
}

func TestExtractBearerToken(t *testing.T) {
	token, errMsg := ExtractBearerToken("Bearer abc123")
	assert.Empty(t, errMsg)
	assert.Equal(t, "abc123", token)

	_, errMsg = ExtractBearerToken("")
	assert.Equal(t, "missing authorization header", errMsg)

	_, errMsg = ExtractBearerToken("Bearer ")
	assert.Equal(t, "empty token", errMsg)
}
