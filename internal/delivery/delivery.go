// Package delivery abstracts the outbound messaging provider.
//
// The scheduler only sees the Adapter interface plus the error
// classification helpers; the concrete REST client below is one
// implementation of it.
package delivery

import (
	"context"
	"errors"
)

// Adapter sends a single text to a recipient handle.
type Adapter interface {
	// Send returns nil on accepted delivery. Errors are classified with
	// Permanent() / Fatal(); anything else is transient and retry-eligible.
	Send(ctx context.Context, to, text string) error

	// Verify checks credentials against the provider. It is called once at
	// startup so a misconfigured process refuses to run instead of failing
	// on every fire.
	Verify(ctx context.Context) error
}

var (
	// ErrNotOptedIn: the recipient never opted in or has unsubscribed.
	// Retrying can never succeed.
	ErrNotOptedIn = errors.New("delivery: recipient not opted in")

	// ErrAuth: the provider rejected our credentials. Every send will fail
	// until the operator fixes the account, so this is process-level.
	ErrAuth = errors.New("delivery: authentication failed")

	// ErrSenderConfig: the configured sender identity is not valid for this
	// account (wrong or unprovisioned number).
	ErrSenderConfig = errors.New("delivery: invalid sender configuration")
)

// Permanent reports whether the error can never be resolved by retrying
// this particular reminder.
func Permanent(err error) bool {
	return errors.Is(err, ErrNotOptedIn)
}

// Fatal reports whether the error indicates the whole process is
// misconfigured (credentials/sender), not just this one send.
func Fatal(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrSenderConfig)
}
