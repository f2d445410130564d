package calllog

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/lingora-app/llmgate/internal/store"
)

func testRecorder(t *testing.T) (*Recorder, *sqlStore) {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background(), "calllog", migrations()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	sql := newSQLStore(s.DB())
	return NewRecorder(sql, zap.NewNop()), sql
}

func TestRecordAndList(t *testing.T) {
	rec, sqls := testRecorder(t)
	ctx := context.Background()

	rec.Record(ctx, Entry{
		CallerID:         "user-1",
		Task:             "quiz_generation",
		Provider:         "openai",
		Model:            "gpt-4o-mini",
		PromptTokens:     120,
		CompletionTokens: 80,
		LatencyMS:        450,
		Status:           StatusOK,
		Attempt:          1,
	})
	rec.Record(ctx, Entry{
		CallerID:     "user-1",
		Task:         "quiz_generation",
		Provider:     "anthropic",
		Model:        "claude-3-5-haiku-latest",
		Status:       StatusProviderError,
		ErrorMessage: "rate limited",
		Attempt:      2,
		UsedFallback: true,
	})

	entries, err := sqls.list(ctx, ListFilter{CallerID: "user-1"})
	if err != nil {
		t.Fatalf("list() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.ID.String() == "00000000-0000-0000-0000-000000000000" {
			t.Error("entry ID not assigned")
		}
		if e.CreatedAt.IsZero() {
			t.Error("CreatedAt not assigned")
		}
	}
}

func TestRecordWithCancelledContext(t *testing.T) {
	rec, sqls := testRecorder(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Record(ctx, Entry{
		CallerID: "user-1",
		Task:     "onboarding_chat",
		Provider: "openai",
		Status:   StatusProviderError,
	})

	entries, err := sqls.list(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("list() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d, want 1: logging must survive a dead request context", len(entries))
	}
}

func TestRecordTruncatesError(t *testing.T) {
	rec, sqls := testRecorder(t)
	ctx := context.Background()

	rec.Record(ctx, Entry{
		CallerID:     "user-1",
		Task:         "vocab_drill",
		Provider:     "openai",
		Status:       StatusProviderError,
		ErrorMessage: strings.Repeat("x", 2000),
	})

	entries, err := sqls.list(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("list() error = %v", err)
	}
	if got := len(entries[0].ErrorMessage); got != maxErrorLen {
		t.Errorf("error length = %d, want %d", got, maxErrorLen)
	}
}

func TestTruncateErrorKeepsValidUTF8(t *testing.T) {
	// Multi-byte runes straddling the cutoff must not be split.
	msg := strings.Repeat("é", maxErrorLen) // 2 bytes per rune
	got := truncateError(msg)
	if len(got) > maxErrorLen {
		t.Errorf("len = %d, want <= %d", len(got), maxErrorLen)
	}
	if !utf8.ValidString(got) {
		t.Error("truncated message is not valid UTF-8")
	}

	if short := truncateError("boom"); short != "boom" {
		t.Errorf("truncateError(boom) = %q", short)
	}
}

func TestRecordOnNilRecorder(t *testing.T) {
	// A disabled module hands out a nil recorder; logging must stay a no-op.
	var rec *Recorder
	rec.Record(context.Background(), Entry{
		CallerID: "user-1",
		Task:     "vocab_drill",
		Status:   StatusOK,
	})
}

func TestListFilters(t *testing.T) {
	rec, sqls := testRecorder(t)
	ctx := context.Background()

	rec.Record(ctx, Entry{CallerID: "a", Task: "quiz_generation", Provider: "openai", Status: StatusOK})
	rec.Record(ctx, Entry{CallerID: "b", Task: "quiz_generation", Provider: "openai", Status: StatusValidationError})
	rec.Record(ctx, Entry{CallerID: "a", Task: "level_assessment", Provider: "openai", Status: StatusOK})

	tests := []struct {
		name   string
		filter ListFilter
		want   int
	}{
		{"by caller", ListFilter{CallerID: "a"}, 2},
		{"by task", ListFilter{Task: "quiz_generation"}, 2},
		{"by status", ListFilter{Status: StatusValidationError}, 1},
		{"combined", ListFilter{CallerID: "a", Task: "quiz_generation"}, 1},
		{"no match", ListFilter{CallerID: "c"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := sqls.list(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list() error = %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("len(entries) = %d, want %d", len(entries), tt.want)
			}
		})
	}
}

func TestDeleteOlderThan(t *testing.T) {
	rec, sqls := testRecorder(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	rec.now = func() time.Time { return old }
	rec.Record(ctx, Entry{CallerID: "a", Task: "quiz_generation", Provider: "openai", Status: StatusOK})

	rec.now = time.Now
	rec.Record(ctx, Entry{CallerID: "a", Task: "quiz_generation", Provider: "openai", Status: StatusOK})

	n, err := sqls.deleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("deleteOlderThan() error = %v", err)
	}
	if n != 1 {
		t.Errorf("removed = %d, want 1", n)
	}
	entries, _ := sqls.list(ctx, ListFilter{})
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d, want 1", len(entries))
	}
}
