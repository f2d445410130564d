// Package gateway orchestrates LLM calls: admission, provider dispatch
// with retry and fallback, output validation, and quota commit. It is the
// only package that touches every other module.
package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/lingora-app/llmgate/pkg/llm"
)

// Task is a named unit of work routed to a provider/model pair.
type Task string

const (
	TaskOnboardingChat    Task = "onboarding_chat"
	TaskLevelAssessment   Task = "level_assessment"
	TaskRoadmapGeneration Task = "roadmap_generation"
	TaskQuizGeneration    Task = "quiz_generation"
	TaskVocabDrill        Task = "vocab_drill"
)

// ParseTask validates a task name from the wire.
func ParseTask(s string) (Task, error) {
	t := Task(s)
	if _, ok := routingTable[t]; !ok {
		return "", fmt.Errorf("unknown task %q", s)
	}
	return t, nil
}

// Tasks returns all routable tasks in a stable order.
func Tasks() []Task {
	return []Task{
		TaskOnboardingChat,
		TaskLevelAssessment,
		TaskRoadmapGeneration,
		TaskQuizGeneration,
		TaskVocabDrill,
	}
}

// ModelConfig selects a provider, model, and generation parameters.
type ModelConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// Routing is a task's primary and fallback model configuration.
// The table is static and never mutated at runtime.
type Routing struct {
	Primary  ModelConfig `json:"primary"`
	Fallback ModelConfig `json:"fallback"`
	// Strict selects the tighter rate-limit window. Set for tasks that
	// are expensive enough to invite abuse.
	Strict bool `json:"strict"`
	// Structured means the task's output must validate against a
	// registered schema. Unstructured tasks return plain text.
	Structured bool `json:"structured"`
}

// CallRequest is one inbound gateway call. The gateway never mutates it.
type CallRequest struct {
	Task          Task
	Locale        string
	CallerID      string // user ID, or client IP for anonymous callers
	Plan          string
	Anonymous     bool
	SchemaVersion int // 0 means latest registered
	Messages      []llm.Message
}

// CallMeta describes how a result was produced.
type CallMeta struct {
	Model         string `json:"model"`
	Provider      string `json:"provider"`
	InputTokens   int    `json:"input_tokens"`
	OutputTokens  int    `json:"output_tokens"`
	LatencyMS     int64  `json:"latency_ms"`
	SchemaVersion int    `json:"schema_version,omitempty"`
	Attempts      int    `json:"attempts"`
	UsedFallback  bool   `json:"used_fallback"`
}

// CallResult is a validated gateway response. Structured tasks populate
// Data; unstructured tasks populate Text.
type CallResult struct {
	Data json.RawMessage `json:"data,omitempty"`
	Text string          `json:"text,omitempty"`
	Meta CallMeta        `json:"meta"`
}

// TopicCallCompleted is published on the event bus after a call commits.
const TopicCallCompleted = "gateway.call.completed"

// CallCompleted is the payload carried by TopicCallCompleted events.
type CallCompleted struct {
	CallerID string
	Task     Task
	Meta     CallMeta
}
