package invoker

import "github.com/cryguy/rtcbridge/internal/core"

// Handler is one native method. A method may accept the zero-argument call
// shape, the one-mapping shape, or both; the invoker picks the arm matching
// the caller's shape and never substitutes an empty mapping for absent args.
type Handler struct {
	NoArgs   func(done core.Completion)
	WithArgs func(args core.Args, done core.Completion)
}

// Registry is the method table of one native target, keyed by method name.
type Registry map[string]Handler

// NoArgs registers the zero-argument shape of name.
func (r Registry) NoArgs(name string, fn func(done core.Completion)) Registry {
	h := r[name]
	h.NoArgs = fn
	r[name] = h
	return r
}

// WithArgs registers the one-mapping shape of name.
func (r Registry) WithArgs(name string, fn func(args core.Args, done core.Completion)) Registry {
	h := r[name]
	h.WithArgs = fn
	r[name] = h
	return r
}

// Methods returns the registered method names.
func (r Registry) Methods() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	return names
}
