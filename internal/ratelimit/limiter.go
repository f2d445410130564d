// Package ratelimit provides per-identifier sliding-window admission
// control for the gateway. The shared counter lives in Redis so all
// instances see the same windows; a single-process fallback exists for
// development only.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reason explains a denied admission.
type Reason string

const (
	ReasonLimited            Reason = "rate_limited"
	ReasonBackendUnavailable Reason = "backend_unavailable"
)

// Decision is the result of an admission check.
type Decision struct {
	Allowed    bool
	Remaining  int           // Requests left in the window (0 when denied).
	RetryAfter time.Duration // Hint for the Retry-After header when denied.
	Reason     Reason        // Set only when denied.
}

// CounterStore records one request for an identifier and returns the
// number of requests in the trailing window, including this one.
// Implementations must be safe for concurrent use.
type CounterStore interface {
	Record(ctx context.Context, key string, window time.Duration) (count int, err error)
}

// Limiter performs sliding-window admission control with two independent
// windows (standard and strict) selected per call.
type Limiter struct {
	store  CounterStore
	local  *localCounter
	cfg    Config
	logger *zap.Logger

	fallbackWarn sync.Once
}

// NewLimiter creates a Limiter over the given shared counter store.
func NewLimiter(store CounterStore, cfg Config, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:  store,
		local:  newLocalCounter(),
		cfg:    cfg,
		logger: logger,
	}
}

// Admit checks whether the identifier may proceed under the selected
// window. The strict window is for expensive or abuse-prone operations.
//
// Backend failure policy: in production the limiter fails closed and the
// decision carries ReasonBackendUnavailable -- allowing by default on a
// broken limiter defeats its purpose under real abuse. Outside production
// the limiter degrades to an in-process counter so local development keeps
// working; that fallback is single-instance only.
func (l *Limiter) Admit(ctx context.Context, identifier string, strict bool) Decision {
	limit, window := l.cfg.StandardLimit, l.cfg.StandardWindow
	kind := "std"
	if strict {
		limit, window = l.cfg.StrictLimit, l.cfg.StrictWindow
		kind = "strict"
	}
	key := l.cfg.KeyPrefix + kind + ":" + identifier

	count, err := l.store.Record(ctx, key, window)
	if err != nil {
		if l.cfg.Production() {
			l.logger.Error("rate limit backend unavailable, failing closed",
				zap.String("identifier", identifier),
				zap.Error(err),
			)
			return Decision{Allowed: false, RetryAfter: window, Reason: ReasonBackendUnavailable}
		}

		l.fallbackWarn.Do(func() {
			l.logger.Warn("rate limit backend unavailable, using in-process fallback (single instance only, never use in production)",
				zap.Error(err),
			)
		})
		count = l.local.Record(key, window, time.Now())
	}

	if count > limit {
		return Decision{Allowed: false, RetryAfter: window, Reason: ReasonLimited}
	}
	return Decision{Allowed: true, Remaining: limit - count}
}
