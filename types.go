package observe

import (
	"time"

	"github.com/rip-projects/pants-observe/graph"
	"github.com/rip-projects/pants-observe/keypath"
	"github.com/rip-projects/pants-observe/notify"
	"github.com/rip-projects/pants-observe/pkg/activity"
)

// Callback receives the change records delivered for one registration.
type Callback func(changes []graph.Change)

// FilterContext carries the inputs a filter expression is evaluated against.
type FilterContext struct {
	Change   graph.Change
	Path     string
	Value    any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

func (ctx FilterContext) withDefaults() FilterContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx FilterContext) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

func (ctx FilterContext) pathLabel() string {
	if ctx.Path == "" {
		return "<root>"
	}
	return ctx.Path
}

// changeBinding renders the record as plain values under the names filter
// expressions use: change.type, change.name, change.oldValue and so on.
func (ctx FilterContext) changeBinding() map[string]any {
	c := ctx.Change
	binding := map[string]any{
		"type":       string(c.Type),
		"name":       c.Name,
		"oldValue":   graph.Export(c.OldValue),
		"hasOld":     c.HasOld,
		"index":      c.Index,
		"addedCount": c.AddedCount,
	}
	removed := make([]any, len(c.Removed))
	for i, value := range c.Removed {
		removed[i] = graph.Export(value)
	}
	binding["removed"] = removed
	return binding
}

// bindings returns every variable visible to filter expressions.
func (ctx FilterContext) bindings() map[string]any {
	ctx = ctx.withDefaults()
	return map[string]any{
		"change":   ctx.changeBinding(),
		"value":    graph.Export(ctx.Value),
		"path":     ctx.Path,
		"now":      ctx.timestamp(),
		"args":     ctx.Args,
		"metadata": ctx.Metadata,
	}
}

// Evaluator executes filter expressions against a filter context.
type Evaluator interface {
	Evaluate(ctx FilterContext, expr string) (any, error)
	Compile(expr string) (CompiledFilter, error)
}

// CompiledFilter is a reusable expression program.
type CompiledFilter interface {
	Evaluate(ctx FilterContext) (any, error)
}

// Option configures a Context.
type Option func(*config)

type config struct {
	notifier        notify.Notifier
	strategy        string
	interval        time.Duration
	manualTicks     bool
	compiler        *keypath.Compiler
	getter          keypath.Getter
	logger          Logger
	evaluator       Evaluator
	filterEngine    string
	programCache    ProgramCache
	functions       *FunctionRegistry
	activityHooks   activity.Hooks
	activityChannel string
	newID           func() string
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg config) loggerOrNoop() Logger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return noopLogger{}
}

// ObserveOption configures a single registration.
type ObserveOption func(*registration)

type registration struct {
	filter   string
	args     map[string]any
	metadata map[string]any
	actor    activity.Actor
}

func applyObserveOptions(opts []ObserveOption) registration {
	reg := registration{}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	return reg
}

// WithFilter keeps only the records for which expr evaluates to true. The
// expression sees change, value, path, now, args and metadata.
func WithFilter(expr string) ObserveOption {
	return func(reg *registration) {
		reg.filter = expr
	}
}

// WithFilterArgs exposes args to the filter expression.
func WithFilterArgs(args map[string]any) ObserveOption {
	return func(reg *registration) {
		reg.args = copyMetadata(args)
	}
}

// WithMetadata attaches metadata to the registration. It is visible to the
// filter and carried on activity events.
func WithMetadata(metadata map[string]any) ObserveOption {
	return func(reg *registration) {
		reg.metadata = copyMetadata(metadata)
	}
}

func copyMetadata(src map[string]any) map[string]any {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
