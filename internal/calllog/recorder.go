package calllog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder writes call log entries without ever failing its caller.
type Recorder struct {
	store  *sqlStore
	logger *zap.Logger
	now    func() time.Time
}

func NewRecorder(store *sqlStore, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger, now: time.Now}
}

// Record persists one attempt. The entry's ID, CreatedAt, and error
// truncation are filled in here. Insert failures are logged and swallowed:
// an unloggable call must still return its result to the user.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	// A nil recorder means the module was disabled; logging stays a no-op.
	if r == nil || r.store == nil {
		return
	}

	e.ID = uuid.New()
	e.CreatedAt = r.now()
	e.ErrorMessage = truncateError(e.ErrorMessage)

	// The request context may already be cancelled when logging a
	// timed-out attempt. Use a short detached deadline instead.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if err := r.store.insert(ctx, e); err != nil {
		r.logger.Warn("call log write failed",
			zap.String("task", e.Task),
			zap.String("provider", e.Provider),
			zap.String("status", string(e.Status)),
			zap.Error(err))
	}
}
