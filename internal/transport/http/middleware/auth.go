package middleware

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"recipehub/internal/httputil"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ViewerIDKey is the context key for the authenticated viewer's UID
	ViewerIDKey contextKey = "viewer_id"
)

// ErrInvalidToken is returned by verifiers for any token that cannot be
// trusted.
var ErrInvalidToken = errors.New("invalid authentication token")

// TokenVerifier turns a bearer token into a viewer UID.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// JWTVerifier verifies HMAC-signed tokens. The viewer is read from the
// "uid" claim, falling back to "sub".
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(_ context.Context, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if uid, ok := claims["uid"].(string); ok && uid != "" {
		return uid, nil
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing uid claim", ErrInvalidToken)
	}
	return sub, nil
}

// RequireAuth rejects requests without a valid bearer token and stores
// the viewer UID in the request context.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				httputil.WriteUnauthorized(w, "Missing authentication token")
				return
			}

			uid, err := verifier.Verify(r.Context(), tokenString)
			if err != nil {
				if strings.Contains(err.Error(), "expired") {
					httputil.WriteUnauthorized(w, "Access token has expired")
					return
				}
				httputil.WriteUnauthorized(w, "Invalid authentication token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithViewerID(r.Context(), uid)))
		})
	}
}

// OptionalAuth attaches the viewer when a valid token is present and lets
// anonymous requests through. Invalid tokens are treated as anonymous.
func OptionalAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			uid, err := verifier.Verify(r.Context(), tokenString)
			if err != nil {
				log.Printf("[Auth] Ignoring invalid token on optional route: path=%s err=%v", r.URL.Path, err)
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithViewerID(r.Context(), uid)))
		})
	}
}

// bearerToken reads the Authorization header, falling back to the
// access_token cookie for browsers.
func bearerToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// WithViewerID returns a context carrying uid as the viewer.
func WithViewerID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, ViewerIDKey, uid)
}

// GetViewerIDFromContext extracts the viewer UID from the request context.
// Returns "" and false for anonymous requests.
func GetViewerIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(ViewerIDKey).(string)
	return uid, ok && uid != ""
}
