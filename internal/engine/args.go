// internal/engine/args.go
package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pilotweb/pilot-cli/api/schemas"

	"go.uber.org/zap"
)

// callArgs coerces a statement's arguments into the shapes the capability
// surface needs, producing ArgumentError or UnknownSymbol failures with the
// current trace attached.
type callArgs struct {
	r    *runner
	stmt statement
}

// exactly fails unless the statement has exactly n arguments.
func (c *callArgs) exactly(n int) *schemas.Failure {
	if len(c.stmt.args) != n {
		return c.r.failure(schemas.FailureArgument,
			fmt.Sprintf("%s expects %d argument(s), got %d", c.stmt.command, n, len(c.stmt.args)))
	}
	return nil
}

// require fails unless the argument count is within [min, max]. max < 0 means
// unbounded.
func (c *callArgs) require(min, max int) *schemas.Failure {
	n := len(c.stmt.args)
	if n < min || (max >= 0 && n > max) {
		return c.r.failure(schemas.FailureArgument,
			fmt.Sprintf("%s expects between %d and %d arguments, got %d", c.stmt.command, min, max, n))
	}
	return nil
}

// value resolves argument i to its runtime value. Identifiers resolve through
// the booleans, the keys.* namespace, then the variable scope.
func (c *callArgs) value(i int) (any, *schemas.Failure) {
	a := c.stmt.args[i]
	switch a.kind {
	case argString:
		return a.str, nil
	case argNumber:
		return a.num, nil
	default:
		switch a.ident {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		if key, ok := keyConstants[a.ident]; ok {
			return key, nil
		}
		if v, ok := c.r.vars[a.ident]; ok {
			return v, nil
		}
		return nil, c.r.failure(schemas.FailureUnknownSymbol,
			fmt.Sprintf("unknown variable %q", a.ident))
	}
}

// str resolves argument i to a string.
func (c *callArgs) str(i int) (string, *schemas.Failure) {
	v, f := c.value(i)
	if f != nil {
		return "", f
	}
	s, ok := v.(string)
	if !ok {
		return "", c.r.failure(schemas.FailureArgument,
			fmt.Sprintf("%s: argument %d must be a string, got %T", c.stmt.command, i+1, v))
	}
	return s, nil
}

// num resolves argument i to a number.
func (c *callArgs) num(i int) (float64, *schemas.Failure) {
	v, f := c.value(i)
	if f != nil {
		return 0, f
	}
	n, ok := v.(float64)
	if !ok {
		return 0, c.r.failure(schemas.FailureArgument,
			fmt.Sprintf("%s: argument %d must be a number, got %T", c.stmt.command, i+1, v))
	}
	return n, nil
}

// boolean resolves argument i to a bool.
func (c *callArgs) boolean(i int) (bool, *schemas.Failure) {
	v, f := c.value(i)
	if f != nil {
		return false, f
	}
	b, ok := v.(bool)
	if !ok {
		return false, c.r.failure(schemas.FailureArgument,
			fmt.Sprintf("%s: argument %d must be true or false, got %T", c.stmt.command, i+1, v))
	}
	return b, nil
}

// element resolves argument i to an element handle.
func (c *callArgs) element(i int) (schemas.Element, *schemas.Failure) {
	v, f := c.value(i)
	if f != nil {
		return schemas.Element{}, f
	}
	el, ok := v.(schemas.Element)
	if !ok {
		return schemas.Element{}, c.r.failure(schemas.FailureArgument,
			fmt.Sprintf("%s: argument %d must be an element handle, got %T", c.stmt.command, i+1, v))
	}
	return el, nil
}

// list resolves argument i to an element list.
func (c *callArgs) list(i int) ([]schemas.Element, *schemas.Failure) {
	v, f := c.value(i)
	if f != nil {
		return nil, f
	}
	list, ok := v.([]schemas.Element)
	if !ok {
		return nil, c.r.failure(schemas.FailureArgument,
			fmt.Sprintf("%s: argument %d must be an element list, got %T", c.stmt.command, i+1, v))
	}
	return list, nil
}

// locator validates the common `<by> <value>` shape.
func (c *callArgs) locator() (by, value string, f *schemas.Failure) {
	if f = c.exactly(2); f != nil {
		return "", "", f
	}
	if by, f = c.str(0); f != nil {
		return "", "", f
	}
	switch by {
	case schemas.ByXPath, schemas.ByCSS, schemas.ByID:
	default:
		return "", "", c.r.failure(schemas.FailureArgument,
			fmt.Sprintf("%s: unknown locator strategy %q", c.stmt.command, by))
	}
	value, f = c.str(1)
	return by, value, f
}

// locatorAndTimeout validates `<by> <value> [timeout-seconds]`.
func (c *callArgs) locatorAndTimeout() (by, value string, timeout time.Duration, f *schemas.Failure) {
	if f = c.require(2, 3); f != nil {
		return
	}
	if by, f = c.str(0); f != nil {
		return
	}
	switch by {
	case schemas.ByXPath, schemas.ByCSS, schemas.ByID:
	default:
		f = c.r.failure(schemas.FailureArgument,
			fmt.Sprintf("%s: unknown locator strategy %q", c.stmt.command, by))
		return
	}
	if value, f = c.str(1); f != nil {
		return
	}
	timeout = 10 * time.Second
	if len(c.stmt.args) == 3 {
		var secs float64
		if secs, f = c.num(2); f != nil {
			return
		}
		timeout = time.Duration(secs * float64(time.Second))
	}
	return
}

// elementAndText validates the common `<element> <text>` shape.
func (c *callArgs) elementAndText() (schemas.Element, string, *schemas.Failure) {
	if f := c.exactly(2); f != nil {
		return schemas.Element{}, "", f
	}
	el, f := c.element(0)
	if f != nil {
		return schemas.Element{}, "", f
	}
	text, f := c.str(1)
	if f != nil {
		return schemas.Element{}, "", f
	}
	return el, text, nil
}

// scrollDirection validates scroll's single argument: a direction word or a
// signed pixel amount.
func (c *callArgs) scrollDirection() (string, *schemas.Failure) {
	if f := c.exactly(1); f != nil {
		return "", f
	}
	v, f := c.value(0)
	if f != nil {
		return "", f
	}
	switch dir := v.(type) {
	case float64:
		return strconv.Itoa(int(dir)), nil
	case string:
		switch dir {
		case "up", "down", "top", "bottom":
			return dir, nil
		}
		return "", c.r.failure(schemas.FailureArgument,
			fmt.Sprintf("scroll: direction must be up, down, top, bottom or a pixel amount, got %q", dir))
	default:
		return "", c.r.failure(schemas.FailureArgument,
			fmt.Sprintf("scroll: direction must be a string or number, got %T", v))
	}
}

// env wraps a capability error into an EnvironmentError failure.
func (c *callArgs) env(err error) *schemas.Failure {
	if err == nil {
		return nil
	}
	c.r.engine.logger.Debug("Environment call failed",
		zap.String("command", c.stmt.command),
		zap.Error(err))
	return c.r.failure(schemas.FailureEnvironment,
		fmt.Sprintf("%s: %v", c.stmt.command, err))
}
