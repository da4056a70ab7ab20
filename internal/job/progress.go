package job

import "context"

// ProgressFunc receives intermediate progress messages from a running handler.
type ProgressFunc func(message string)

type progressKeyType struct{}

var progressKey = progressKeyType{}

// WithProgress returns a context carrying a progress reporter. The queue
// installs one around every handler invocation so long-running work can
// surface intermediate state.
func WithProgress(ctx context.Context, fn ProgressFunc) context.Context {
	return context.WithValue(ctx, progressKey, fn)
}

// ReportProgress sends a progress message to the context's reporter. A no-op
// when the context carries none, so callers never need to guard it.
func ReportProgress(ctx context.Context, message string) {
	if fn, ok := ctx.Value(progressKey).(ProgressFunc); ok && fn != nil {
		fn(message)
	}
}
