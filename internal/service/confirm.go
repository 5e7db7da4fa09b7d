package service

import "context"

// Confirmer is the operator yes/no gate in front of destructive commands.
type Confirmer interface {
	Confirm(ctx context.Context, message string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, message string) bool

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, message string) bool { return f(ctx, message) }

type confirmKey struct{}

// WithConfirmation attaches a per-request answer to the confirmation gate.
func WithConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmKey{}, confirmed)
}

// ContextConfirmer answers the gate from the value set by WithConfirmation.
// A context without one declines.
type ContextConfirmer struct{}

// Confirm implements Confirmer.
func (ContextConfirmer) Confirm(ctx context.Context, _ string) bool {
	ok, _ := ctx.Value(confirmKey{}).(bool)
	return ok
}
