package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// Caller is the resolved identity of a request.
type Caller struct {
	ID        string // user ID, or the client IP for anonymous callers
	Plan      string
	Anonymous bool
}

// callerKey is a context key for the resolved caller.
type callerKey struct{}

// CallerFromContext returns the caller resolved by Middleware.
// The zero Caller is returned if the middleware did not run.
func CallerFromContext(ctx context.Context) Caller {
	if c, ok := ctx.Value(callerKey{}).(Caller); ok {
		return c
	}
	return Caller{Anonymous: true}
}

// WithCaller returns a context carrying the given caller. Used by tests.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// Middleware resolves the caller for API routes. A missing Authorization
// header yields an anonymous caller keyed by client IP; a present but
// invalid token is rejected outright so a broken client cannot silently
// drop to the anonymous tier.
func Middleware(verifier *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				caller := Caller{ID: clientIP(r), Anonymous: true}
				next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
				return
			}
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized, "malformed authorization header")
				return
			}

			claims, err := verifier.Verify(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid or expired access token")
				return
			}

			caller := Caller{ID: claims.UserID, Plan: claims.Plan}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// clientIP extracts the client address, preferring X-Forwarded-For when
// the gateway sits behind a trusted proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}

func writeAuthError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://lingora.app/problems/auth-error",
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
