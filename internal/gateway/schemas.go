package gateway

import (
	"fmt"

	"github.com/lingora-app/llmgate/internal/schema"
)

// builtinSchemas holds version 1 of each structured task's output schema.
// New versions are appended, never edited: published versions are frozen.
var builtinSchemas = map[Task]string{
	TaskLevelAssessment: `{
		"type": "object",
		"properties": {
			"level": {"type": "string", "enum": ["A1", "A2", "B1", "B2", "C1", "C2"]},
			"confidence": {"type": "number", "minimum": 0, "maximum": 1},
			"strengths": {"type": "array", "items": {"type": "string"}},
			"weaknesses": {"type": "array", "items": {"type": "string"}},
			"rationale": {"type": "string"}
		},
		"required": ["level", "confidence", "rationale"],
		"additionalProperties": false
	}`,
	TaskRoadmapGeneration: `{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"nodes": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"properties": {
						"id": {"type": "string"},
						"title": {"type": "string"},
						"description": {"type": "string"},
						"depends_on": {"type": "array", "items": {"type": "string"}}
					},
					"required": ["id", "title"],
					"additionalProperties": false
				}
			}
		},
		"required": ["title", "nodes"],
		"additionalProperties": false
	}`,
	TaskQuizGeneration: `{
		"type": "object",
		"properties": {
			"questions": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"properties": {
						"prompt": {"type": "string"},
						"options": {"type": "array", "items": {"type": "string"}, "minItems": 2},
						"answer": {"type": "integer", "minimum": 0},
						"explanation": {"type": "string"}
					},
					"required": ["prompt", "options", "answer"],
					"additionalProperties": false
				}
			}
		},
		"required": ["questions"],
		"additionalProperties": false
	}`,
	TaskVocabDrill: `{
		"type": "object",
		"properties": {
			"words": {
				"type": "array",
				"minItems": 1,
				"items": {
					"type": "object",
					"properties": {
						"word": {"type": "string"},
						"translation": {"type": "string"},
						"example": {"type": "string"}
					},
					"required": ["word", "translation"],
					"additionalProperties": false
				}
			}
		},
		"required": ["words"],
		"additionalProperties": false
	}`,
}

// RegisterBuiltinSchemas loads version 1 of every structured task schema
// into the registry.
func RegisterBuiltinSchemas(r *schema.Registry) error {
	for task, raw := range builtinSchemas {
		if err := r.Register(string(task), 1, []byte(raw)); err != nil {
			return fmt.Errorf("register schema for %s: %w", task, err)
		}
	}
	return nil
}
