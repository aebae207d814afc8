package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	apperrors "uploader/internal/errors"
)

type userContextKey struct{}

// Verifier turns a raw bearer token into verified claims.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

type oidcVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func (v oidcVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

type Authenticator struct {
	verifier Verifier
}

// NewAuthenticator runs OIDC discovery against issuerURL and checks that tokens
// were issued for clientID. Call it once at startup.
func NewAuthenticator(ctx context.Context, issuerURL, clientID string) (*Authenticator, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, err
	}

	return NewAuthenticatorWithVerifier(oidcVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}), nil
}

func NewAuthenticatorWithVerifier(v Verifier) *Authenticator {
	return &Authenticator{verifier: v}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			apperrors.RespondError(w, r, apperrors.New(apperrors.ErrUnauthorized, "Missing Authorization header", nil))
			return
		}

		scheme, rawToken, ok := strings.Cut(authHeader, " ")
		if !ok || scheme != "Bearer" || rawToken == "" {
			apperrors.RespondError(w, r, apperrors.New(apperrors.ErrUnauthorized, "Invalid header format", nil))
			return
		}

		// Covers expired tokens, bad signatures and wrong issuer
		claims, err := a.verifier.Verify(r.Context(), rawToken)
		if err != nil {
			apperrors.RespondError(w, r, apperrors.New(apperrors.ErrUnauthorized, "Invalid or expired token", err))
			return
		}

		ctx := WithUser(r.Context(), claims.UserInfo())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects users lacking role. It must run after Middleware.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasRole(r.Context(), role) {
				apperrors.RespondError(w, r, apperrors.New(apperrors.ErrUnauthorized, "Missing required role", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithUser(ctx context.Context, user UserInfo) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

func GetUserInfo(ctx context.Context) (UserInfo, error) {
	if user, ok := ctx.Value(userContextKey{}).(UserInfo); ok {
		return user, nil
	}
	return UserInfo{}, errors.New("no user found in context")
}

// GetUserID returns the subject of the authenticated user, or "" when auth is off.
func GetUserID(ctx context.Context) string {
	user, err := GetUserInfo(ctx)
	if err != nil {
		return ""
	}
	return user.ID
}

func HasRole(ctx context.Context, role string) bool {
	user, err := GetUserInfo(ctx)
	if err != nil {
		return false
	}
	return slices.Contains(user.Roles, role)
}
