package middleware

import (
	"context"
	"net/http"
	"strings"

	"campustrade-api/internal/model"
	"campustrade-api/pkg/apierror"
	"campustrade-api/pkg/response"
)

// TokenDataKey is the key for storing the caller's identity in request context.
const TokenDataKey contextKey = "token_data"

// Authenticator resolves a bearer token to an identity.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.TokenData, error)
}

// NewAuthMiddleware rejects requests without a valid token.
func NewAuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				response.Error(w, apierror.Unauthorized("Authentication required. Use X-Token or Authorization: Bearer."))
				return
			}

			data, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				response.Error(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), TokenDataKey, data)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalAuthMiddleware attaches the identity when a valid token is
// present and lets anonymous requests through.
func NewOptionalAuthMiddleware(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := TokenFromRequest(r); token != "" {
				if data, err := auth.Authenticate(r.Context(), token); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), TokenDataKey, data))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects callers whose token does not carry administrator
// rights. It must run after NewAuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := GetTokenDataFromContext(r.Context())
		if data == nil {
			response.Error(w, apierror.Unauthorized(""))
			return
		}
		if !data.IsAdmin {
			response.Error(w, apierror.Forbidden("Administrator access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TokenFromRequest reads X-Token, then the bearer header, then the token
// query parameter used by websocket clients.
func TokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get("X-Token")); token != "" {
		return token
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// GetTokenDataFromContext retrieves the caller's identity from request context.
func GetTokenDataFromContext(ctx context.Context) *model.TokenData {
	if data, ok := ctx.Value(TokenDataKey).(*model.TokenData); ok {
		return data
	}
	return nil
}

// UserID returns the caller's user id, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if data := GetTokenDataFromContext(ctx); data != nil {
		return data.UserID
	}
	return ""
}
