package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

type fakeVerifier map[string]*Claims

func (f fakeVerifier) Verify(_ context.Context, raw string) (*Claims, error) {
	if c, ok := f[raw]; ok {
		return c, nil
	}
	return nil, errors.New("oidc: token is expired")
}

func newClaims(sub string, roles ...string) *Claims {
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: sub}, PreferredUsername: "clerk"}
	c.RealmAccess.Roles = roles
	return c
}

func serve(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	a := NewAuthenticatorWithVerifier(fakeVerifier{"good": newClaims("user-1", "uploader")})

	var seen UserInfo
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserInfo(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic Zm9v", http.StatusUnauthorized},
		{"no token", "Bearer", http.StatusUnauthorized},
		{"bad token", "Bearer expired", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, serve(h, tt.header).Code)
		})
	}

	assert.Equal(t, "user-1", seen.ID)
	assert.Equal(t, "clerk", seen.Username)
}

func TestRequireRole(t *testing.T) {
	a := NewAuthenticatorWithVerifier(fakeVerifier{
		"clerk":   newClaims("user-1", "uploader"),
		"visitor": newClaims("user-2"),
	})
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := a.Middleware(RequireRole("uploader")(ok))

	assert.Equal(t, http.StatusOK, serve(h, "Bearer clerk").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer visitor").Code)
}

func TestGetUserID(t *testing.T) {
	assert.Equal(t, "", GetUserID(context.Background()))
	assert.Equal(t, "u", GetUserID(WithUser(context.Background(), UserInfo{ID: "u"})))
}
