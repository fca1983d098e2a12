package gateway

import "errors"

var (
	// ErrMissingCredential means no API key was configured. Every call
	// degrades to its fallback without touching the network.
	ErrMissingCredential = errors.New("gateway: missing API credential")

	// ErrEmptyResponse means the provider answered without usable content.
	ErrEmptyResponse = errors.New("gateway: empty response")

	// ErrProvider wraps transport and API failures.
	ErrProvider = errors.New("gateway: provider error")
)

// Outcome is the result of one gateway call.
//
// Value is only meaningful when Err is nil. Fallback is the placeholder the
// user should see when the call failed; the gateway fills it in for every
// failure so presentation code never has to know the fallback strings.
//
//	out := gw.Summarize(ctx, text, model.LanguageEnglish)
//	if !out.OK() {
//	    log.Warn("summary failed", "err", out.Err)
//	}
//	render(out.Get())
type Outcome[T any] struct {
	Value    T
	Fallback T
	Err      error
}

// OK reports whether Value holds a real provider answer.
func (o Outcome[T]) OK() bool {
	return o.Err == nil
}

// Get returns Value on success and Fallback otherwise.
// Call it at the presentation boundary only.
func (o Outcome[T]) Get() T {
	if o.Err != nil {
		return o.Fallback
	}
	return o.Value
}

func succeed[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

func fail[T any](err error, fallback T) Outcome[T] {
	return Outcome[T]{Err: err, Fallback: fallback}
}
