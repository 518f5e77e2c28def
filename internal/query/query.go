// Package query models the lifecycle of a remote read as an explicit tagged
// state instead of chained nil checks on possibly-absent data.
package query

// Kind enumerates the phases of a remote query.
type Kind int

const (
	KindNotAsked Kind = iota
	KindLoading
	KindLoaded
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindLoaded:
		return "loaded"
	case KindFailed:
		return "failed"
	default:
		return "not_asked"
	}
}

// State holds the current phase of one remote query and, once loaded, its
// value. The zero value is NotAsked.
type State[T any] struct {
	kind  Kind
	value T
	err   error
}

// NotAsked returns the initial state: no request has been issued.
func NotAsked[T any]() State[T] { return State[T]{} }

// Loading marks a request in flight. A previously loaded value, if any, is
// discarded; refreshes are full replaces, not merges.
func Loading[T any]() State[T] { return State[T]{kind: KindLoading} }

// Loaded wraps a successfully fetched value.
func Loaded[T any](v T) State[T] { return State[T]{kind: KindLoaded, value: v} }

// Failed wraps a fetch error.
func Failed[T any](err error) State[T] { return State[T]{kind: KindFailed, err: err} }

// Kind returns the query phase.
func (s State[T]) Kind() Kind { return s.kind }

// Get returns the loaded value and whether one is present.
func (s State[T]) Get() (T, bool) {
	if s.kind != KindLoaded {
		var zero T
		return zero, false
	}
	return s.value, true
}

// OrZero returns the loaded value, or the zero value for any other phase.
func (s State[T]) OrZero() T {
	v, _ := s.Get()
	return v
}

// Err returns the failure cause, or nil outside the Failed phase.
func (s State[T]) Err() error {
	if s.kind != KindFailed {
		return nil
	}
	return s.err
}

func (s State[T]) IsNotAsked() bool { return s.kind == KindNotAsked }
func (s State[T]) IsLoading() bool  { return s.kind == KindLoading }
func (s State[T]) IsLoaded() bool   { return s.kind == KindLoaded }
func (s State[T]) IsFailed() bool   { return s.kind == KindFailed }
