package hooks

// Source tells where a Result's value came from.
type Source int

const (
	SourceRemote Source = iota
	// SourceFallback marks a client-synthesized placeholder. It must never
	// be written back to the store.
	SourceFallback
)

func (s Source) String() string {
	if s == SourceFallback {
		return "fallback"
	}
	return "remote"
}

// Result is the outcome of a read that may substitute a placeholder.
//
//   - Ok:       Source == SourceRemote, Err == nil
//   - Fallback: Source == SourceFallback, Cause holds the masked failure
//   - Err:      Err != nil, Value is the zero value
type Result[T any] struct {
	Value  T
	Source Source
	Cause  error
	Err    error
}

func Ok[T any](v T) Result[T] { return Result[T]{Value: v} }

func Fallback[T any](v T, cause error) Result[T] {
	return Result[T]{Value: v, Source: SourceFallback, Cause: cause}
}

func Fail[T any](err error) Result[T] { return Result[T]{Err: err} }

// IsFallback reports whether Value is a placeholder.
func (r Result[T]) IsFallback() bool { return r.Err == nil && r.Source == SourceFallback }
