package gateway

import "time"

// attemptPhase distinguishes primary retries from the single fallback shot.
type attemptPhase int

const (
	phasePrimary attemptPhase = iota
	phaseFallback
)

// action is what the orchestrator does after a failed attempt.
type action int

const (
	actionRetryPrimary action = iota
	actionFallback
	actionTerminate
)

// nextAction is the pure retry policy: given how many primary attempts
// have run, the budget, and whether the last failure is worth retrying
// the same provider, it returns the next step. Keeping this a pure
// function makes the policy testable without timers or networks.
func nextAction(phase attemptPhase, primaryAttempts, primaryBudget int, lastRetryable bool) action {
	if phase == phaseFallback {
		// The fallback gets exactly one shot.
		return actionTerminate
	}
	if !lastRetryable {
		// A non-retryable primary failure (bad credentials, model not
		// found) will not heal with repetition. Skip straight to the
		// other provider.
		return actionFallback
	}
	if primaryAttempts < primaryBudget {
		return actionRetryPrimary
	}
	return actionFallback
}

// backoffFor computes the exponential delay before primary retry n
// (0-based): base, 2*base, 4*base, ...
func backoffFor(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > 30*time.Second {
			return 30 * time.Second
		}
	}
	return d
}
