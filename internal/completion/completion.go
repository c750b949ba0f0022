// Package completion wraps the hosted chat model used to generate
// answers. The model is an opaque text-completion service; only the
// request/response plumbing lives here.
package completion

import "context"

// Completer produces a text completion for a system instruction and a
// user message. Failures are transient service errors the caller is
// expected to recover from.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
