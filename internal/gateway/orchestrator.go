package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lingora-app/llmgate/internal/calllog"
	"github.com/lingora-app/llmgate/internal/ratelimit"
	"github.com/lingora-app/llmgate/internal/schema"
	"github.com/lingora-app/llmgate/internal/usage"
	"github.com/lingora-app/llmgate/pkg/llm"
	"github.com/lingora-app/llmgate/pkg/module"
)

// Admitter gates calls by request rate.
type Admitter interface {
	Admit(ctx context.Context, identifier string, strict bool) ratelimit.Decision
}

// Ledger gates and commits per-user daily quota.
type Ledger interface {
	CheckAllowed(ctx context.Context, userID string, plan usage.Plan) (usage.Decision, error)
	Consume(ctx context.Context, userID string, plan usage.Plan, messages, tokens int) (usage.Decision, error)
}

// CallRecorder persists attempt outcomes, best effort.
type CallRecorder interface {
	Record(ctx context.Context, e calllog.Entry)
}

// SchemaSource resolves validators for structured tasks.
type SchemaSource interface {
	Lookup(task string, version int) (*schema.Validator, bool)
}

// EventSink receives call-completion events. Handlers run outside the
// request path so a slow subscriber cannot delay the caller.
type EventSink interface {
	PublishAsync(ctx context.Context, event module.Event)
}

// Config tunes the orchestrator's retry behavior.
type Config struct {
	PrimaryAttempts  int           `mapstructure:"primary_attempts"`
	RetryBaseBackoff time.Duration `mapstructure:"retry_base_backoff"`
	CallTimeout      time.Duration `mapstructure:"call_timeout"`
}

func DefaultOrchestratorConfig() Config {
	return Config{
		PrimaryAttempts:  3,
		RetryBaseBackoff: 500 * time.Millisecond,
		CallTimeout:      2 * time.Minute,
	}
}

// Orchestrator drives one gateway call through admission, provider
// attempts, validation, and quota commit. It holds no per-call state;
// concurrent calls share nothing but the injected collaborators.
type Orchestrator struct {
	providers map[string]llm.Provider
	limiter   Admitter
	ledger    Ledger
	recorder  CallRecorder
	schemas   SchemaSource
	bus       EventSink
	logger    *zap.Logger
	cfg       Config

	// sleep is swapped out by tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(providers map[string]llm.Provider, limiter Admitter, ledger Ledger, recorder CallRecorder, schemas SchemaSource, logger *zap.Logger, cfg Config) *Orchestrator {
	if cfg.PrimaryAttempts <= 0 {
		cfg.PrimaryAttempts = DefaultOrchestratorConfig().PrimaryAttempts
	}
	if cfg.RetryBaseBackoff <= 0 {
		cfg.RetryBaseBackoff = DefaultOrchestratorConfig().RetryBaseBackoff
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultOrchestratorConfig().CallTimeout
	}
	return &Orchestrator{
		providers: providers,
		limiter:   limiter,
		ledger:    ledger,
		recorder:  recorder,
		schemas:   schemas,
		logger:    logger,
		cfg:       cfg,
		sleep:     sleepCtx,
	}
}

// SetEventSink installs the bus on which completed calls are announced.
// A nil sink (the default) disables publication.
func (o *Orchestrator) SetEventSink(bus EventSink) {
	o.bus = bus
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// attemptResult carries one provider attempt's outcome through the loop.
type attemptResult struct {
	resp      *llm.Response
	data      json.RawMessage
	err       error
	retryable bool
}

// Call runs the full orchestration. It returns either a validated result
// or a classified *Error, never a raw provider or store error.
func (o *Orchestrator) Call(ctx context.Context, req CallRequest) (*CallResult, *Error) {
	routing, ok := RoutingFor(req.Task)
	if !ok {
		return nil, &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf("unknown task %q", req.Task), Task: req.Task}
	}
	if len(req.Messages) == 0 {
		return nil, &Error{Code: CodeInvalidRequest, Message: "messages must not be empty", Task: req.Task}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	// Admission gates. No provider attempt is consumed past this point
	// unless both gates pass.
	if gerr := o.admit(ctx, req, routing); gerr != nil {
		callsTotal.WithLabelValues(string(req.Task), string(gerr.Code)).Inc()
		return nil, gerr
	}

	var validator *schema.Validator
	schemaVersion := 0
	if routing.Structured {
		schemaVersion = req.SchemaVersion
		if schemaVersion == 0 {
			schemaVersion = 1
		}
		validator, ok = o.schemas.Lookup(string(req.Task), schemaVersion)
		if !ok {
			return nil, &Error{
				Code:    CodeInvalidRequest,
				Message: fmt.Sprintf("no schema registered for %s v%d", req.Task, schemaVersion),
				Task:    req.Task,
			}
		}
	}

	result, gerr := o.attemptLoop(ctx, req, routing, validator, schemaVersion)

	callDuration.WithLabelValues(string(req.Task)).Observe(time.Since(start).Seconds())
	if gerr != nil {
		callsTotal.WithLabelValues(string(req.Task), string(gerr.Code)).Inc()
		return nil, gerr
	}
	callsTotal.WithLabelValues(string(req.Task), "ok").Inc()
	return result, nil
}

// admit runs the rate-limit and quota prechecks.
func (o *Orchestrator) admit(ctx context.Context, req CallRequest, routing Routing) *Error {
	d := o.limiter.Admit(ctx, req.CallerID, routing.Strict)
	if !d.Allowed {
		if d.Reason == ratelimit.ReasonBackendUnavailable {
			return &Error{Code: CodeRateLimitUnavailable, Message: "rate limiter backend unavailable", Task: req.Task, RetryAfter: d.RetryAfter}
		}
		return &Error{Code: CodeRateLimited, Message: "request rate exceeded", Task: req.Task, RetryAfter: d.RetryAfter}
	}

	if req.Anonymous {
		// Anonymous callers are exempt from quota; the rate limiter is
		// their only gate.
		return nil
	}

	ud, err := o.ledger.CheckAllowed(ctx, req.CallerID, usage.Plan(req.Plan))
	if err != nil {
		return &Error{Code: CodeUsageUnavailable, Message: "usage ledger unavailable", Task: req.Task}
	}
	if !ud.Allowed {
		if ud.Reason == usage.ReasonUnavailable {
			return &Error{Code: CodeUsageUnavailable, Message: "usage ledger unavailable", Task: req.Task}
		}
		return &Error{Code: CodeUsageLimitExceeded, Message: "daily quota exceeded", Task: req.Task}
	}
	return nil
}

// attemptLoop runs primary attempts with backoff, then one fallback.
func (o *Orchestrator) attemptLoop(ctx context.Context, req CallRequest, routing Routing, validator *schema.Validator, schemaVersion int) (*CallResult, *Error) {
	attempts := 0
	phase := phasePrimary
	primaryTried := 0
	model := routing.Primary

	for {
		attempts++
		if phase == phasePrimary {
			primaryTried++
		}

		res := o.attempt(ctx, model, req, validator)
		o.recordAttempt(ctx, req, model, attempts, phase, res)

		if res.err == nil {
			return o.commit(ctx, req, model, attempts, phase, schemaVersion, res)
		}

		o.logger.Warn("attempt failed",
			zap.String("task", string(req.Task)),
			zap.String("provider", model.Provider),
			zap.Int("attempt", attempts),
			zap.Bool("retryable", res.retryable),
			zap.Error(res.err))

		if ctx.Err() != nil {
			return nil, &Error{Code: CodeProviderUnavailable, Message: "call deadline exceeded", Task: req.Task, Attempts: attempts}
		}

		switch nextAction(phase, primaryTried, o.cfg.PrimaryAttempts, res.retryable) {
		case actionRetryPrimary:
			if err := o.sleep(ctx, backoffFor(o.cfg.RetryBaseBackoff, primaryTried-1)); err != nil {
				return nil, &Error{Code: CodeProviderUnavailable, Message: "call deadline exceeded", Task: req.Task, Attempts: attempts}
			}
		case actionFallback:
			phase = phaseFallback
			model = routing.Fallback
		case actionTerminate:
			return nil, &Error{
				Code:     CodeProviderUnavailable,
				Message:  fmt.Sprintf("all providers failed for task %s", req.Task),
				Task:     req.Task,
				Attempts: attempts,
			}
		}
	}
}

// attempt makes one provider call and validates the output if required.
func (o *Orchestrator) attempt(ctx context.Context, model ModelConfig, req CallRequest, validator *schema.Validator) attemptResult {
	provider, ok := o.providers[model.Provider]
	if !ok {
		return attemptResult{
			err:       fmt.Errorf("provider %q not configured", model.Provider),
			retryable: false,
		}
	}

	opts := []llm.CallOption{
		llm.WithModel(model.Model),
		llm.WithTemperature(model.Temperature),
		llm.WithMaxTokens(model.MaxTokens),
	}
	if validator != nil {
		opts = append(opts, llm.WithJSONMode())
	}
	resp, err := provider.Chat(ctx, req.Messages, opts...)
	if err != nil {
		attemptsTotal.WithLabelValues(model.Provider, "provider_error").Inc()
		return attemptResult{err: err, retryable: llm.IsRetryable(err)}
	}

	if validator != nil {
		data, verr := validator.ExtractAndValidate(resp.Content)
		if verr != nil {
			// Invalid output is an attempt failure like any other:
			// the next try may produce conforming JSON.
			attemptsTotal.WithLabelValues(model.Provider, "validation_error").Inc()
			return attemptResult{resp: resp, err: verr, retryable: true}
		}
		attemptsTotal.WithLabelValues(model.Provider, "ok").Inc()
		return attemptResult{resp: resp, data: data}
	}

	attemptsTotal.WithLabelValues(model.Provider, "ok").Inc()
	return attemptResult{resp: resp}
}

// commit accounts a validated attempt's usage and assembles the result.
// A consume rejection here means the caller lost a last-moment quota
// race: the validated data is discarded and a quota error returned.
func (o *Orchestrator) commit(ctx context.Context, req CallRequest, model ModelConfig, attempts int, phase attemptPhase, schemaVersion int, res attemptResult) (*CallResult, *Error) {
	resp := res.resp

	if !req.Anonymous {
		ud, err := o.ledger.Consume(ctx, req.CallerID, usage.Plan(req.Plan), 1, resp.Usage.TotalTokens)
		if err != nil {
			o.recorder.Record(ctx, calllog.Entry{
				CallerID:     req.CallerID,
				Task:         string(req.Task),
				Provider:     resp.Provider,
				Model:        resp.Model,
				LatencyMS:    resp.Latency.Milliseconds(),
				Status:       calllog.StatusQuotaRejected,
				ErrorMessage: "usage ledger unavailable",
				Attempt:      attempts,
				UsedFallback: phase == phaseFallback,
			})
			return nil, &Error{Code: CodeUsageUnavailable, Message: "usage ledger unavailable", Task: req.Task, Attempts: attempts}
		}
		if !ud.Allowed {
			o.recorder.Record(ctx, calllog.Entry{
				CallerID:         req.CallerID,
				Task:             string(req.Task),
				Provider:         resp.Provider,
				Model:            resp.Model,
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				LatencyMS:        resp.Latency.Milliseconds(),
				Status:           calllog.StatusQuotaRejected,
				Attempt:          attempts,
				UsedFallback:     phase == phaseFallback,
			})
			return nil, &Error{Code: CodeUsageLimitExceeded, Message: "daily quota exceeded", Task: req.Task, Attempts: attempts}
		}
	}

	o.recorder.Record(ctx, calllog.Entry{
		CallerID:         req.CallerID,
		Task:             string(req.Task),
		Provider:         resp.Provider,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		LatencyMS:        resp.Latency.Milliseconds(),
		Status:           calllog.StatusOK,
		Attempt:          attempts,
		UsedFallback:     phase == phaseFallback,
	})

	tokensTotal.WithLabelValues(resp.Provider, "input").Add(float64(resp.Usage.PromptTokens))
	tokensTotal.WithLabelValues(resp.Provider, "output").Add(float64(resp.Usage.CompletionTokens))

	result := &CallResult{
		Data: res.data,
		Meta: CallMeta{
			Model:         resp.Model,
			Provider:      resp.Provider,
			InputTokens:   resp.Usage.PromptTokens,
			OutputTokens:  resp.Usage.CompletionTokens,
			LatencyMS:     resp.Latency.Milliseconds(),
			SchemaVersion: schemaVersion,
			Attempts:      attempts,
			UsedFallback:  phase == phaseFallback,
		},
	}
	if res.data == nil {
		result.Text = resp.Content
	}

	if o.bus != nil {
		// Detach from the request context so async handlers survive the
		// response being written.
		o.bus.PublishAsync(context.WithoutCancel(ctx), module.Event{
			Topic:     TopicCallCompleted,
			Source:    "gateway",
			Timestamp: time.Now(),
			Payload: CallCompleted{
				CallerID: req.CallerID,
				Task:     req.Task,
				Meta:     result.Meta,
			},
		})
	}
	return result, nil
}

// recordAttempt logs one attempt outcome. Success here means the attempt
// produced validated (or unvalidated free-text) output; the quota commit
// may still reject it afterwards, which commit records separately.
func (o *Orchestrator) recordAttempt(ctx context.Context, req CallRequest, model ModelConfig, attempt int, phase attemptPhase, res attemptResult) {
	e := calllog.Entry{
		CallerID:     req.CallerID,
		Task:         string(req.Task),
		Provider:     model.Provider,
		Model:        model.Model,
		Attempt:      attempt,
		UsedFallback: phase == phaseFallback,
	}
	if res.resp != nil {
		e.Model = res.resp.Model
		e.PromptTokens = res.resp.Usage.PromptTokens
		e.CompletionTokens = res.resp.Usage.CompletionTokens
		e.LatencyMS = res.resp.Latency.Milliseconds()
	}
	switch {
	case res.err == nil:
		// Successful attempts are recorded by commit with their final
		// status so a quota rejection is not double-counted as ok.
		return
	case isValidationError(res.err):
		e.Status = calllog.StatusValidationError
		e.ErrorMessage = res.err.Error()
	default:
		e.Status = calllog.StatusProviderError
		e.ErrorMessage = res.err.Error()
	}
	o.recorder.Record(ctx, e)
}

func isValidationError(err error) bool {
	var verr *schema.ValidationError
	return errors.As(err, &verr)
}
