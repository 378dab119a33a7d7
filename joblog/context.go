package joblog

import "context"

type ctxKey int

const (
	ctxJobID ctxKey = iota
	ctxStepID
	ctxExternalJobID
)

// WithJobID attaches a tracked job ID to ctx.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, ctxJobID, jobID)
}

// JobIDFromCtx retrieves a job ID attached by WithJobID.
func JobIDFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxJobID).(string)
	return v, ok
}

// WithStepID attaches a tracked step ID to ctx.
func WithStepID(ctx context.Context, stepID int64) context.Context {
	return context.WithValue(ctx, ctxStepID, stepID)
}

// StepIDFromCtx retrieves a step ID attached by WithStepID.
func StepIDFromCtx(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(ctxStepID).(int64)
	return v, ok
}

// WithExternalJobID attaches a caller-supplied correlation ID to ctx, used
// when a peer server or client tracks the same job under its own ID.
func WithExternalJobID(ctx context.Context, externalJobID string) context.Context {
	return context.WithValue(ctx, ctxExternalJobID, externalJobID)
}

// ExternalJobIDFromCtx retrieves an external job ID attached by
// WithExternalJobID.
func ExternalJobIDFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxExternalJobID).(string)
	return v, ok
}
