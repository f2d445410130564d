package gateway

// routingTable maps each task to its primary and fallback models.
// Conversational tasks ride on Anthropic first for tone; structured
// generation tasks ride on OpenAI first for JSON discipline.
var routingTable = map[Task]Routing{
	TaskOnboardingChat: {
		Primary:  ModelConfig{Provider: "anthropic", Model: "claude-3-5-haiku-latest", MaxTokens: 1024, Temperature: 0.8},
		Fallback: ModelConfig{Provider: "openai", Model: "gpt-4o-mini", MaxTokens: 1024, Temperature: 0.8},
	},
	TaskLevelAssessment: {
		Primary:    ModelConfig{Provider: "openai", Model: "gpt-4o", MaxTokens: 2048, Temperature: 0.2},
		Fallback:   ModelConfig{Provider: "anthropic", Model: "claude-sonnet-4-20250514", MaxTokens: 2048, Temperature: 0.2},
		Strict:     true,
		Structured: true,
	},
	TaskRoadmapGeneration: {
		Primary:    ModelConfig{Provider: "openai", Model: "gpt-4o", MaxTokens: 4096, Temperature: 0.4},
		Fallback:   ModelConfig{Provider: "anthropic", Model: "claude-sonnet-4-20250514", MaxTokens: 4096, Temperature: 0.4},
		Strict:     true,
		Structured: true,
	},
	TaskQuizGeneration: {
		Primary:    ModelConfig{Provider: "openai", Model: "gpt-4o-mini", MaxTokens: 2048, Temperature: 0.7},
		Fallback:   ModelConfig{Provider: "anthropic", Model: "claude-3-5-haiku-latest", MaxTokens: 2048, Temperature: 0.7},
		Structured: true,
	},
	TaskVocabDrill: {
		Primary:    ModelConfig{Provider: "openai", Model: "gpt-4o-mini", MaxTokens: 1024, Temperature: 0.6},
		Fallback:   ModelConfig{Provider: "anthropic", Model: "claude-3-5-haiku-latest", MaxTokens: 1024, Temperature: 0.6},
		Structured: true,
	},
}

// RoutingFor returns the routing for a task.
func RoutingFor(task Task) (Routing, bool) {
	r, ok := routingTable[task]
	return r, ok
}
