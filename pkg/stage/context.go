package stage

import "context"

type optionsKey struct{}

// WithOptions attaches a task's Options to ctx so stage agents can read
// per-task configuration (disable_web_search, thresholds, mode, ...)
// without AgentState owning fields that are really request parameters,
// not pipeline outputs.
func WithOptions(ctx context.Context, opts Options) context.Context {
	return context.WithValue(ctx, optionsKey{}, opts)
}

// OptionsFromContext returns the Options attached by WithOptions, or the
// zero value (after SetDefaults semantics are applied by the caller) if
// none were attached.
func OptionsFromContext(ctx context.Context) Options {
	opts, _ := ctx.Value(optionsKey{}).(Options)
	return opts
}
