package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/payroll-ledger/payroll"
)

type ctxKey string

const ctxKeyCaller ctxKey = "caller"

var errNoCaller = errors.New("missing bearer token")

// IssueToken mints an HS256 token whose subject is caller. The server
// never issues tokens itself; operators and tests do.
func IssueToken(secret string, caller payroll.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   caller.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func parseToken(secret, tokenString string) (payroll.Identity, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", errors.New("invalid token")
	}
	return payroll.Identity(claims.Subject), nil
}

// Authenticate puts the token subject in the request context. Requests
// without a token pass through anonymously; a bad token is rejected.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				writeError(w, http.StatusUnauthorized, "Malformed Authorization header", nil)
				return
			}

			caller, err := parseToken(secret, parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token", err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyCaller, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireCaller rejects anonymous requests.
func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := Caller(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required", errNoCaller)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Caller returns the authenticated identity, if any.
func Caller(ctx context.Context) (payroll.Identity, bool) {
	caller, ok := ctx.Value(ctxKeyCaller).(payroll.Identity)
	return caller, ok
}
