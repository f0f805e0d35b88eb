package middleware

import (
	"context"
	"net/http"
	"strings"

	"patrolchat/pkg/api"
)

type contextKey string

const uidKey contextKey = "UID"

// UIDFromContext returns the authenticated user id set by Authenticator.
func UIDFromContext(ctx context.Context) string {
	if uid, ok := ctx.Value(uidKey).(string); ok {
		return uid
	}
	return ""
}

// Authenticator verifies the caller's identity token and stores the
// resulting user id on the request context. Requests without a valid
// token never reach the chat handlers.
func Authenticator(verifier api.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idToken := findToken(r, tokenFromHeader, tokenFromQuery)

			uid, err := verifier.Verify(r.Context(), idToken)
			if err != nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), uidKey, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromHeader(r *http.Request) string {
	// Get token from authorization header.
	bearer := r.Header.Get("Authorization")
	if len(bearer) > 7 && strings.ToUpper(bearer[0:6]) == "BEARER" {
		return bearer[7:]
	}
	return ""
}

func tokenFromQuery(r *http.Request) string {
	// Get token from query param named "token".
	return r.URL.Query().Get("token")
}

func findToken(r *http.Request, findTokenFns ...func(r *http.Request) string) string {
	var tokenString string

	for _, fn := range findTokenFns {
		tokenString = fn(r)
		if tokenString != "" {
			break
		}
	}

	return tokenString
}
