package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/frisbee-cz/evidence/services"
	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const callerContextKey contextKey = "caller"

var ErrNoCaller = errors.New("no authenticated caller in context")

// Authenticator validates bearer tokens and stores the resulting caller in
// the request context.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(jwtSecret string) *Authenticator {
	return &Authenticator{secret: []byte(jwtSecret)}
}

func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "missing or invalid authorization header", http.StatusUnauthorized)
			return
		}

		caller, err := a.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), callerContextKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin gates federation office endpoints. Must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := CallerFromContext(r.Context())
		if err != nil || !caller.IsAdmin {
			http.Error(w, "admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CallerFromContext(ctx context.Context) (services.Caller, error) {
	caller, ok := ctx.Value(callerContextKey).(services.Caller)
	if !ok {
		return services.Caller{}, ErrNoCaller
	}
	return caller, nil
}

// ParseToken validates a raw JWT and extracts the caller identity. Exposed so
// the websocket upgrade handler can authenticate via query parameter, where
// browsers cannot set an Authorization header.
func (a *Authenticator) ParseToken(raw string) (services.Caller, error) {
	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return services.Caller{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return services.Caller{}, errors.New("invalid token claims")
	}

	agentIDClaim, ok := claims["agent_id"].(float64)
	if !ok || agentIDClaim <= 0 {
		return services.Caller{}, errors.New("missing agent_id claim")
	}
	isAdmin, _ := claims["is_admin"].(bool)

	return services.Caller{
		AgentID: int(agentIDClaim),
		IsAdmin: isAdmin,
	}, nil
}
