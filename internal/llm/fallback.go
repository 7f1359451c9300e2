package llm

import (
	"context"
	"log/slog"
)

// FallbackCompleter sends every request to Primary and retries on Secondary
// only when Primary fails with a *TransientError.
type FallbackCompleter struct {
	Primary   Completer
	Secondary Completer
	Logger    *slog.Logger
}

func NewFallbackCompleter(primary, secondary Completer, logger *slog.Logger) Completer {
	if secondary == nil {
		return primary
	}
	if primary == nil {
		return secondary
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackCompleter{Primary: primary, Secondary: secondary, Logger: logger}
}

func (f *FallbackCompleter) Complete(ctx context.Context, req ChatRequest) (string, error) {
	out, err := f.Primary.Complete(ctx, req)
	if err == nil || !IsTransient(err) {
		return out, err
	}
	f.Logger.Warn("llm.fallback", "error", err)
	return f.Secondary.Complete(ctx, req)
}
