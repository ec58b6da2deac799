// Package outcome tags collaborator results as live, placeholder, or failed.
package outcome

// Kind discriminates an Outcome.
type Kind string

const (
	KindLive     Kind = "live"
	KindFallback Kind = "fallback"
	KindFailed   Kind = "failed"
)

// Outcome is the result of a call that may degrade to a local placeholder.
// Err is set for Failed, and for Fallback it records why the live call
// was abandoned.
type Outcome[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// Live wraps a value returned by the collaborator.
func Live[T any](value T) Outcome[T] {
	return Outcome[T]{Kind: KindLive, Value: value}
}

// Fallback wraps a locally synthesized placeholder and the failure that caused it.
func Fallback[T any](value T, cause error) Outcome[T] {
	return Outcome[T]{Kind: KindFallback, Value: value, Err: cause}
}

// Failed carries a recoverable failure with no usable value.
func Failed[T any](err error) Outcome[T] {
	return Outcome[T]{Kind: KindFailed, Err: err}
}

func (o Outcome[T]) IsLive() bool     { return o.Kind == KindLive }
func (o Outcome[T]) IsFallback() bool { return o.Kind == KindFallback }
func (o Outcome[T]) IsFailed() bool   { return o.Kind == KindFailed }

// Usable reports whether Value can be shown to the user.
func (o Outcome[T]) Usable() bool {
	return o.Kind == KindLive || o.Kind == KindFallback
}
