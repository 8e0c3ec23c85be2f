package observe

import (
	"errors"
	"fmt"
	"time"

	"github.com/rip-projects/pants-observe/graph"
)

// ErrNoEvaluator is returned when a filter is requested but no engine can
// compile it.
var ErrNoEvaluator = errors.New("observe: evaluator not configured")

// Filter engine names accepted by WithFilterEngine.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// WithEvaluator configures the evaluator used for filters. It takes
// precedence over WithFilterEngine.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

// WithFilterEngine selects the built-in evaluator for filters: expr (the
// default), cel, or js when built with the js_eval tag.
func WithFilterEngine(engine string) Option {
	return func(cfg *config) {
		cfg.filterEngine = engine
	}
}

// Evaluate runs expr against fc with the Context's evaluator.
func (c *Context) Evaluate(fc FilterContext, expr string) (any, error) {
	if expr == "" {
		return nil, fmt.Errorf("expression must not be empty")
	}
	evaluator, err := c.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	engine := evaluatorEngineName(evaluator)
	start := time.Now()
	value, evalErr := evaluator.Evaluate(fc, expr)
	evalErr = wrapEvaluationError(engine, expr, fc.pathLabel(), evalErr)
	c.logger.LogEvent(LogEvent{
		Op:       OpFilter,
		Path:     fc.Path,
		Engine:   engine,
		Expr:     expr,
		Duration: time.Since(start),
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

// resolveEvaluator returns the configured evaluator, building the one named
// by the filter engine on first use.
func (c *Context) resolveEvaluator() (Evaluator, error) {
	c.evalMu.Lock()
	defer c.evalMu.Unlock()
	if c.evaluator != nil {
		return c.evaluator, nil
	}
	if c.cfg.evaluator != nil {
		c.evaluator = c.cfg.evaluator
		return c.evaluator, nil
	}
	var evaluator Evaluator
	switch c.cfg.filterEngine {
	case "", EngineExpr:
		var exprOpts []ExprEvaluatorOption
		if c.cfg.programCache != nil {
			exprOpts = append(exprOpts, ExprWithProgramCache(c.cfg.programCache))
		}
		if c.cfg.functions != nil {
			exprOpts = append(exprOpts, ExprWithFunctionRegistry(c.cfg.functions))
		}
		evaluator = NewExprEvaluator(exprOpts...)
	case EngineCEL:
		var celOpts []CELEvaluatorOption
		if c.cfg.programCache != nil {
			celOpts = append(celOpts, CELWithProgramCache(c.cfg.programCache))
		}
		if c.cfg.functions != nil {
			celOpts = append(celOpts, CELWithFunctionRegistry(c.cfg.functions))
		}
		evaluator = NewCELEvaluator(celOpts...)
	case EngineJS:
		var jsOpts []JSEvaluatorOption
		if c.cfg.programCache != nil {
			jsOpts = append(jsOpts, JSWithProgramCache(c.cfg.programCache))
		}
		if c.cfg.functions != nil {
			jsOpts = append(jsOpts, JSWithFunctionRegistry(c.cfg.functions))
		}
		evaluator = NewJSEvaluator(jsOpts...)
	default:
		return nil, fmt.Errorf("%w: unknown filter engine %q", ErrNoEvaluator, c.cfg.filterEngine)
	}
	if evaluator == nil {
		return nil, fmt.Errorf("%w: %s engine unavailable in this build", ErrNoEvaluator, c.cfg.filterEngine)
	}
	c.evaluator = evaluator
	return evaluator, nil
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*observe.exprEvaluator":
		return EngineExpr
	case "*observe.celEvaluator":
		return EngineCEL
	case "*observe.jsEvaluator":
		return EngineJS
	default:
		return "custom"
	}
}

// recordFilter is a compiled per-registration predicate.
type recordFilter struct {
	expr     string
	engine   string
	compiled CompiledFilter
}

func (c *Context) compileFilter(expr string) (*recordFilter, error) {
	if expr == "" {
		return nil, nil
	}
	evaluator, err := c.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	engine := evaluatorEngineName(evaluator)
	compiled, err := evaluator.Compile(expr)
	if err != nil {
		return nil, wrapEvaluationError(engine, expr, "", err)
	}
	return &recordFilter{expr: expr, engine: engine, compiled: compiled}, nil
}

// applyFilter keeps the records the filter accepts. A record whose evaluation
// fails, or yields something other than a bool, is logged and dropped.
func (c *Context) applyFilter(h *Handle, changes []graph.Change) []graph.Change {
	f := h.filter
	if f == nil {
		return changes
	}
	value := h.Value()
	path := h.path.String()
	kept := make([]graph.Change, 0, len(changes))
	for _, change := range changes {
		fc := FilterContext{
			Change:   change,
			Path:     path,
			Value:    value,
			Args:     h.args,
			Metadata: h.metadata,
		}
		start := time.Now()
		out, err := f.compiled.Evaluate(fc)
		if err == nil {
			if _, ok := out.(bool); !ok {
				err = fmt.Errorf("filter returned %T, want bool", out)
			}
		}
		if err != nil {
			c.logger.LogEvent(LogEvent{
				Op:       OpFilter,
				ID:       h.id,
				Path:     path,
				Engine:   f.engine,
				Expr:     f.expr,
				Duration: time.Since(start),
				Err:      wrapEvaluationError(f.engine, f.expr, fc.pathLabel(), err),
			})
			continue
		}
		if out.(bool) {
			kept = append(kept, change)
		}
	}
	return kept
}
