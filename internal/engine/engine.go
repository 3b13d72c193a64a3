// internal/engine/engine.go

// Package engine executes generated action snippets against a browser
// environment. Snippets are written in a small line-oriented script language
// (see script.go); every statement dispatches through the
// schemas.Environment interface, so a snippet can only ever do what that
// surface allows.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pilotweb/pilot-cli/api/schemas"
)

const (
	// maxCallDepth bounds proc invocation nesting.
	maxCallDepth = 16
	// traceTailLen is how many proximate lines a failure carries.
	traceTailLen = 4
)

// Config controls engine side behavior.
type Config struct {
	// ScreenshotOnError captures a page screenshot whenever an execution
	// attempt fails.
	ScreenshotOnError bool
	// ScreenshotDir is where error screenshots land.
	ScreenshotDir string
}

// Engine runs parsed snippets. Safe for sequential reuse across a run; the
// execution counter is monotonic over the engine's lifetime.
type Engine struct {
	env       schemas.Environment
	cfg       Config
	logger    *zap.Logger
	execCount atomic.Int64
}

// New creates an Engine bound to an environment.
func New(env schemas.Environment, cfg Config, logger *zap.Logger) *Engine {
	if cfg.ScreenshotDir == "" {
		cfg.ScreenshotDir = "error_screenshots"
	}
	return &Engine{
		env:    env,
		cfg:    cfg,
		logger: logger.Named("engine"),
	}
}

// ExecutionCount reports how many snippets have been attempted so far,
// including failures.
func (e *Engine) ExecutionCount() int64 {
	return e.execCount.Load()
}

// Execute parses and runs one snippet. bindings seed the variable scope, so
// the orchestrator can pass values between instructions. Every attempt bumps
// the execution counter, parse failures included.
func (e *Engine) Execute(ctx context.Context, snippet string, bindings map[string]any) (out schemas.Outcome) {
	count := e.execCount.Add(1)
	e.logger.Debug("Executing snippet", zap.Int64("execution", count))

	s, err := parseScript(snippet)
	if err != nil {
		return e.fail(ctx, count, &schemas.Failure{
			Kind:    schemas.FailureParse,
			Message: err.Error(),
		})
	}

	r := &runner{
		engine: e,
		script: s,
		vars:   make(map[string]any, len(bindings)),
	}
	for k, v := range bindings {
		r.vars[k] = v
	}

	defer func() {
		if rec := recover(); rec != nil {
			out = e.fail(ctx, count, &schemas.Failure{
				Kind:    schemas.FailureEnvironment,
				Message: fmt.Sprintf("panic during execution: %v", rec),
				Trace:   r.traceTail(),
			})
		}
	}()

	if f := r.run(ctx, s.top); f != nil {
		return e.fail(ctx, count, f)
	}
	return schemas.OK()
}

// fail logs the failure, optionally captures a screenshot, and wraps the
// failure into an outcome.
func (e *Engine) fail(ctx context.Context, count int64, f *schemas.Failure) schemas.Outcome {
	e.logger.Warn("Snippet execution failed",
		zap.Int64("execution", count),
		zap.String("kind", string(f.Kind)),
		zap.String("message", f.Message))

	if e.cfg.ScreenshotOnError {
		e.captureErrorScreenshot(ctx, count)
	}
	return schemas.Failed(f)
}

// captureErrorScreenshot is best effort; capture problems are logged, never
// surfaced as execution failures.
func (e *Engine) captureErrorScreenshot(ctx context.Context, count int64) {
	// The run context may already be dead when we get here.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	path := filepath.Join(e.cfg.ScreenshotDir, fmt.Sprintf("error_%d.png", count))
	if err := e.env.Screenshot(ctx, path); err != nil {
		e.logger.Warn("Could not capture error screenshot", zap.String("path", path), zap.Error(err))
		return
	}
	e.logger.Info("Saved error screenshot", zap.String("path", path))
}

// runner holds the mutable state of one snippet execution.
type runner struct {
	engine *Engine
	script *script
	vars   map[string]any
	stack  []statement // statements currently executing, outermost first
	depth  int         // proc nesting depth
}

// run executes a statement sequence, stopping at the first failure.
func (r *runner) run(ctx context.Context, stmts []statement) *schemas.Failure {
	for _, stmt := range stmts {
		if f := r.exec(ctx, stmt); f != nil {
			return f
		}
	}
	return nil
}

// exec executes a single statement.
func (r *runner) exec(ctx context.Context, stmt statement) *schemas.Failure {
	if err := ctx.Err(); err != nil {
		return &schemas.Failure{
			Kind:    schemas.FailureEnvironment,
			Message: fmt.Sprintf("execution context ended: %v", err),
			Trace:   r.traceTail(),
		}
	}

	r.stack = append(r.stack, stmt)
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	// A bare proc name invokes the proc.
	if p, ok := r.script.procs[stmt.command]; ok {
		if stmt.assign != "" || len(stmt.args) > 0 {
			return r.failure(schemas.FailureArgument,
				fmt.Sprintf("procedure %q takes no arguments and returns nothing", stmt.command))
		}
		if r.depth >= maxCallDepth {
			return r.failure(schemas.FailureScript,
				fmt.Sprintf("procedure call depth exceeded %d", maxCallDepth))
		}
		r.depth++
		defer func() { r.depth-- }()
		return r.run(ctx, p.body)
	}

	value, f := r.dispatch(ctx, stmt)
	if f != nil {
		return f
	}
	if stmt.assign != "" {
		r.vars[stmt.assign] = value
	}
	return nil
}

// failure builds a Failure carrying the current trace tail.
func (r *runner) failure(kind schemas.FailureKind, msg string) *schemas.Failure {
	return &schemas.Failure{Kind: kind, Message: msg, Trace: r.traceTail()}
}

// traceTail renders the most proximate executing lines, innermost last. Only
// snippet text appears here; interpreter frames are not script lines.
func (r *runner) traceTail() []string {
	start := 0
	if len(r.stack) > traceTailLen {
		start = len(r.stack) - traceTailLen
	}
	var tail []string
	for _, stmt := range r.stack[start:] {
		tail = append(tail, fmt.Sprintf("line %d: %s", stmt.line, stmt.text))
	}
	return tail
}

// dispatch maps a statement onto the environment capability surface. The
// returned value feeds an assignment when the statement has one.
func (r *runner) dispatch(ctx context.Context, stmt statement) (any, *schemas.Failure) {
	c := &callArgs{r: r, stmt: stmt}
	env := r.engine.env

	switch stmt.command {

	// Navigation.
	case "navigate":
		if f := c.exactly(1); f != nil {
			return nil, f
		}
		url, f := c.str(0)
		if f != nil {
			return nil, f
		}
		return nil, c.env(env.Navigate(ctx, url))
	case "wait":
		if f := c.exactly(1); f != nil {
			return nil, f
		}
		secs, f := c.num(0)
		if f != nil {
			return nil, f
		}
		return nil, c.env(env.Wait(ctx, secs))
	case "refresh":
		if f := c.exactly(0); f != nil {
			return nil, f
		}
		return nil, c.env(env.Refresh(ctx))

	// Element lookup.
	case "find_element":
		by, value, f := c.locator()
		if f != nil {
			return nil, f
		}
		el, err := env.FindElement(ctx, by, value)
		return el, c.env(err)
	case "find_elements":
		by, value, f := c.locator()
		if f != nil {
			return nil, f
		}
		els, err := env.FindElements(ctx, by, value)
		return els, c.env(err)
	case "find_visible_element":
		by, value, f := c.locator()
		if f != nil {
			return nil, f
		}
		el, err := env.FindVisibleElement(ctx, by, value)
		return el, c.env(err)
	case "find_element_by_text":
		if f := c.require(1, 2); f != nil {
			return nil, f
		}
		text, f := c.str(0)
		if f != nil {
			return nil, f
		}
		tag := "*"
		if len(stmt.args) == 2 {
			if tag, f = c.str(1); f != nil {
				return nil, f
			}
		}
		el, err := env.FindElementByText(ctx, text, tag)
		return el, c.env(err)

	// Element interaction.
	case "click":
		if f := c.exactly(1); f != nil {
			return nil, f
		}
		el, f := c.element(0)
		if f != nil {
			return nil, f
		}
		return nil, c.env(env.Click(ctx, el))
	case "type_text":
		el, text, f := c.elementAndText()
		if f != nil {
			return nil, f
		}
		return nil, c.env(env.TypeText(ctx, el, text))
	case "clear_and_type":
		el, text, f := c.elementAndText()
		if f != nil {
			return nil, f
		}
		return nil, c.env(env.ClearAndType(ctx, el, text))
	case "select_option":
		el, value, f := c.elementAndText()
		if f != nil {
			return nil, f
		}
		return nil, c.env(env.SelectOption(ctx, el, value))
	case "check_checkbox":
		if f := c.exactly(2); f != nil {
			return nil, f
		}
		el, f := c.element(0)
		if f != nil {
			return nil, f
		}
		checked, f := c.boolean(1)
		if f != nil {
			return nil, f
		}
		return nil, c.env(env.CheckCheckbox(ctx, el, checked))

	// Page interaction.
	case "scroll":
		dir, f := c.scrollDirection()
		if f != nil {
			return nil, f
		}
		return nil, c.env(env.Scroll(ctx, dir))
	case "screenshot":
		if f := c.exactly(1); f != nil {
			return nil, f
		}
		path, f := c.str(0)
		if f != nil {
			return nil, f
		}
		return nil, c.env(env.Screenshot(ctx, path))
	case "get_page_text":
		if f := c.exactly(0); f != nil {
			return nil, f
		}
		text, err := env.GetPageText(ctx)
		return text, c.env(err)
	case "execute_script":
		if f := c.require(1, -1); f != nil {
			return nil, f
		}
		src, f := c.str(0)
		if f != nil {
			return nil, f
		}
		var extra []any
		for i := 1; i < len(stmt.args); i++ {
			v, f := c.value(i)
			if f != nil {
				return nil, f
			}
			extra = append(extra, v)
		}
		result, err := env.ExecuteScript(ctx, src, extra...)
		return result, c.env(err)

	// Element properties.
	case "get_text":
		if f := c.exactly(1); f != nil {
			return nil, f
		}
		el, f := c.element(0)
		if f != nil {
			return nil, f
		}
		text, err := env.GetText(ctx, el)
		return text, c.env(err)
	case "get_attribute":
		if f := c.exactly(2); f != nil {
			return nil, f
		}
		el, f := c.element(0)
		if f != nil {
			return nil, f
		}
		name, f := c.str(1)
		if f != nil {
			return nil, f
		}
		val, err := env.GetAttribute(ctx, el, name)
		return val, c.env(err)
	case "is_visible":
		if f := c.exactly(1); f != nil {
			return nil, f
		}
		el, f := c.element(0)
		if f != nil {
			return nil, f
		}
		ok, err := env.IsVisible(ctx, el)
		return ok, c.env(err)
	case "is_enabled":
		if f := c.exactly(1); f != nil {
			return nil, f
		}
		el, f := c.element(0)
		if f != nil {
			return nil, f
		}
		ok, err := env.IsEnabled(ctx, el)
		return ok, c.env(err)
	case "is_selected":
		if f := c.exactly(1); f != nil {
			return nil, f
		}
		el, f := c.element(0)
		if f != nil {
			return nil, f
		}
		ok, err := env.IsSelected(ctx, el)
		return ok, c.env(err)

	// Waiting.
	case "wait_for_element":
		by, value, timeout, f := c.locatorAndTimeout()
		if f != nil {
			return nil, f
		}
		el, err := env.WaitForElement(ctx, by, value, timeout)
		return el, c.env(err)
	case "wait_for_clickable":
		by, value, timeout, f := c.locatorAndTimeout()
		if f != nil {
			return nil, f
		}
		el, err := env.WaitForClickable(ctx, by, value, timeout)
		return el, c.env(err)

	// Page state.
	case "get_current_url":
		if f := c.exactly(0); f != nil {
			return nil, f
		}
		url, err := env.GetCurrentURL(ctx)
		return url, c.env(err)
	case "get_title":
		if f := c.exactly(0); f != nil {
			return nil, f
		}
		title, err := env.GetTitle(ctx)
		return title, c.env(err)

	// List helpers.
	case "nth":
		if f := c.exactly(2); f != nil {
			return nil, f
		}
		list, f := c.list(0)
		if f != nil {
			return nil, f
		}
		idx, f := c.num(1)
		if f != nil {
			return nil, f
		}
		i := int(idx)
		if i < 0 || i >= len(list) {
			return nil, r.failure(schemas.FailureArgument,
				fmt.Sprintf("index %d out of range for list of %d elements", i, len(list)))
		}
		return list[i], nil
	case "count":
		if f := c.exactly(1); f != nil {
			return nil, f
		}
		list, f := c.list(0)
		if f != nil {
			return nil, f
		}
		return float64(len(list)), nil

	// Control helpers.
	case "log":
		if f := c.exactly(1); f != nil {
			return nil, f
		}
		v, f := c.value(0)
		if f != nil {
			return nil, f
		}
		r.engine.logger.Info("Snippet log", zap.Any("value", v))
		return nil, nil
	case "fail":
		if f := c.exactly(1); f != nil {
			return nil, f
		}
		msg, f := c.str(0)
		if f != nil {
			return nil, f
		}
		return nil, r.failure(schemas.FailureScript, msg)

	default:
		return nil, r.failure(schemas.FailureUnknownCommand,
			fmt.Sprintf("unknown command %q", stmt.command))
	}
}
