// internal/engine/engine_test.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pilotweb/pilot-cli/api/schemas"
)

// mockEnv records calls and returns scripted results. Zero value succeeds on
// everything.
type mockEnv struct {
	calls       []string
	failOn      string // command name whose env call returns failErr
	failErr     error
	screenshots []string
	findResult  schemas.Element
	findAll     []schemas.Element
	pageText    string
	scriptRet   any
}

func (m *mockEnv) record(name string) error {
	m.calls = append(m.calls, name)
	if m.failOn == name {
		return m.failErr
	}
	return nil
}

func (m *mockEnv) Navigate(_ context.Context, url string) error {
	return m.record("Navigate:" + url)
}
func (m *mockEnv) Wait(_ context.Context, seconds float64) error {
	return m.record(fmt.Sprintf("Wait:%g", seconds))
}
func (m *mockEnv) Refresh(context.Context) error { return m.record("Refresh") }

func (m *mockEnv) FindElement(_ context.Context, by, value string) (schemas.Element, error) {
	return m.findResult, m.record("FindElement:" + by + ":" + value)
}
func (m *mockEnv) FindElements(_ context.Context, by, value string) ([]schemas.Element, error) {
	return m.findAll, m.record("FindElements:" + by + ":" + value)
}
func (m *mockEnv) FindVisibleElement(_ context.Context, by, value string) (schemas.Element, error) {
	return m.findResult, m.record("FindVisibleElement:" + by + ":" + value)
}
func (m *mockEnv) FindElementByText(_ context.Context, text, tag string) (schemas.Element, error) {
	return m.findResult, m.record("FindElementByText:" + text + ":" + tag)
}

func (m *mockEnv) Click(_ context.Context, el schemas.Element) error {
	return m.record("Click:" + el.Value)
}
func (m *mockEnv) TypeText(_ context.Context, el schemas.Element, text string) error {
	return m.record("TypeText:" + el.Value + ":" + text)
}
func (m *mockEnv) ClearAndType(_ context.Context, el schemas.Element, text string) error {
	return m.record("ClearAndType:" + el.Value + ":" + text)
}
func (m *mockEnv) SelectOption(_ context.Context, el schemas.Element, value string) error {
	return m.record("SelectOption:" + el.Value + ":" + value)
}
func (m *mockEnv) CheckCheckbox(_ context.Context, el schemas.Element, checked bool) error {
	return m.record(fmt.Sprintf("CheckCheckbox:%s:%t", el.Value, checked))
}

func (m *mockEnv) Scroll(_ context.Context, direction string) error {
	return m.record("Scroll:" + direction)
}
func (m *mockEnv) Screenshot(_ context.Context, path string) error {
	m.screenshots = append(m.screenshots, path)
	return m.record("Screenshot:" + path)
}
func (m *mockEnv) GetPageText(context.Context) (string, error) {
	return m.pageText, m.record("GetPageText")
}
func (m *mockEnv) ExecuteScript(_ context.Context, script string, args ...any) (any, error) {
	return m.scriptRet, m.record(fmt.Sprintf("ExecuteScript:%s:%d", script, len(args)))
}

func (m *mockEnv) GetText(_ context.Context, el schemas.Element) (string, error) {
	return "text of " + el.Value, m.record("GetText:" + el.Value)
}
func (m *mockEnv) GetAttribute(_ context.Context, el schemas.Element, name string) (string, error) {
	return "attr", m.record("GetAttribute:" + el.Value + ":" + name)
}
func (m *mockEnv) IsVisible(_ context.Context, el schemas.Element) (bool, error) {
	return true, m.record("IsVisible:" + el.Value)
}
func (m *mockEnv) IsEnabled(_ context.Context, el schemas.Element) (bool, error) {
	return true, m.record("IsEnabled:" + el.Value)
}
func (m *mockEnv) IsSelected(_ context.Context, el schemas.Element) (bool, error) {
	return false, m.record("IsSelected:" + el.Value)
}

func (m *mockEnv) WaitForElement(_ context.Context, by, value string, timeout time.Duration) (schemas.Element, error) {
	return m.findResult, m.record(fmt.Sprintf("WaitForElement:%s:%s:%s", by, value, timeout))
}
func (m *mockEnv) WaitForClickable(_ context.Context, by, value string, timeout time.Duration) (schemas.Element, error) {
	return m.findResult, m.record(fmt.Sprintf("WaitForClickable:%s:%s:%s", by, value, timeout))
}

func (m *mockEnv) GetCurrentURL(context.Context) (string, error) {
	return "https://example.com/after", m.record("GetCurrentURL")
}
func (m *mockEnv) GetTitle(context.Context) (string, error) {
	return "Example", m.record("GetTitle")
}

var _ schemas.Environment = (*mockEnv)(nil)

func newTestEngine(env *mockEnv, cfg Config) *Engine {
	return New(env, cfg, zap.NewNop())
}

func TestExecute_SuccessFlow(t *testing.T) {
	env := &mockEnv{findResult: schemas.Element{By: schemas.ByCSS, Value: "#login"}}
	e := newTestEngine(env, Config{})

	out := e.Execute(context.Background(), `
navigate "https://example.com"
el = find_element "css" "#login"
clear_and_type el "admin"
type_text el keys.ENTER
click el
`, nil)

	require.True(t, out.Success)
	assert.Nil(t, out.Failure)
	assert.Equal(t, []string{
		"Navigate:https://example.com",
		"FindElement:css:#login",
		"ClearAndType:#login:admin",
		"TypeText:#login:\r",
		"Click:#login",
	}, env.calls)
}

func TestExecute_ProcInvokedOnce(t *testing.T) {
	env := &mockEnv{findResult: schemas.Element{By: schemas.ByID, Value: "go"}}
	e := newTestEngine(env, Config{})

	out := e.Execute(context.Background(), `
proc submit
    el = find_element "id" "go"
    click el
end

submit
`, nil)

	require.True(t, out.Success)
	assert.Equal(t, []string{"FindElement:id:go", "Click:go"}, env.calls)
}

func TestExecute_FailStatement(t *testing.T) {
	e := newTestEngine(&mockEnv{}, Config{})

	out := e.Execute(context.Background(), `fail "boom"`, nil)

	require.False(t, out.Success)
	require.NotNil(t, out.Failure)
	assert.Equal(t, schemas.FailureScript, out.Failure.Kind)
	text := out.Failure.Text()
	assert.Contains(t, text, "ScriptError")
	assert.Contains(t, text, "boom")
}

func TestExecute_UnknownCommand(t *testing.T) {
	e := newTestEngine(&mockEnv{}, Config{})

	out := e.Execute(context.Background(), `frobnicate "x"`, nil)

	require.False(t, out.Success)
	assert.Equal(t, schemas.FailureUnknownCommand, out.Failure.Kind)
	assert.Contains(t, out.Failure.Message, "frobnicate")
}

func TestExecute_UnknownVariable(t *testing.T) {
	e := newTestEngine(&mockEnv{}, Config{})

	out := e.Execute(context.Background(), `click missing_el`, nil)

	require.False(t, out.Success)
	assert.Equal(t, schemas.FailureUnknownSymbol, out.Failure.Kind)
	assert.Contains(t, out.Failure.Message, "missing_el")
}

func TestExecute_ParseError(t *testing.T) {
	e := newTestEngine(&mockEnv{}, Config{})

	out := e.Execute(context.Background(), "proc broken\nclick el", nil)

	require.False(t, out.Success)
	assert.Equal(t, schemas.FailureParse, out.Failure.Kind)
}

func TestExecute_EnvironmentError(t *testing.T) {
	env := &mockEnv{failOn: "Navigate:https://down.example", failErr: errors.New("net::ERR_CONNECTION_REFUSED")}
	e := newTestEngine(env, Config{})

	out := e.Execute(context.Background(), `navigate "https://down.example"`, nil)

	require.False(t, out.Success)
	assert.Equal(t, schemas.FailureEnvironment, out.Failure.Kind)
	assert.Contains(t, out.Failure.Message, "ERR_CONNECTION_REFUSED")
}

func TestExecute_ArgumentErrors(t *testing.T) {
	tests := []struct {
		name    string
		snippet string
		wantMsg string
	}{
		{"wrong arity", `navigate`, "expects 1 argument"},
		{"wrong type", `wait "soon"`, "must be a number"},
		{"bad locator strategy", `find_element "link_text" "Sign in"`, "unknown locator strategy"},
		{"bad scroll direction", `scroll "sideways"`, "direction must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(&mockEnv{}, Config{})
			out := e.Execute(context.Background(), tt.snippet, nil)
			require.False(t, out.Success)
			assert.Equal(t, schemas.FailureArgument, out.Failure.Kind)
			assert.Contains(t, out.Failure.Message, tt.wantMsg)
		})
	}
}

func TestExecute_ScrollDirections(t *testing.T) {
	env := &mockEnv{}
	e := newTestEngine(env, Config{})

	out := e.Execute(context.Background(), `
scroll "down"
scroll "top"
scroll -250
`, nil)

	require.True(t, out.Success)
	assert.Equal(t, []string{"Scroll:down", "Scroll:top", "Scroll:-250"}, env.calls)
}

func TestExecute_CounterCountsEveryAttempt(t *testing.T) {
	e := newTestEngine(&mockEnv{}, Config{})

	e.Execute(context.Background(), `refresh`, nil)
	e.Execute(context.Background(), `not a "valid snippet`, nil)
	e.Execute(context.Background(), `refresh`, nil)

	assert.Equal(t, int64(3), e.ExecutionCount())
}

func TestExecute_ErrorScreenshotCapturedOnce(t *testing.T) {
	env := &mockEnv{}
	e := newTestEngine(env, Config{ScreenshotOnError: true, ScreenshotDir: t.TempDir()})

	out := e.Execute(context.Background(), `fail "nope"`, nil)

	require.False(t, out.Success)
	require.Len(t, env.screenshots, 1)
	assert.True(t, strings.HasSuffix(env.screenshots[0], "error_1.png"))
}

func TestExecute_NoScreenshotWhenDisabled(t *testing.T) {
	env := &mockEnv{}
	e := newTestEngine(env, Config{ScreenshotOnError: false})

	e.Execute(context.Background(), `fail "nope"`, nil)

	assert.Empty(t, env.screenshots)
}

func TestExecute_TraceTailHoldsSnippetLines(t *testing.T) {
	e := newTestEngine(&mockEnv{}, Config{})

	out := e.Execute(context.Background(), `
proc inner
    fail "deep failure"
end

proc outer
    inner
end

outer
`, nil)

	require.False(t, out.Success)
	require.NotEmpty(t, out.Failure.Trace)
	// Innermost last.
	last := out.Failure.Trace[len(out.Failure.Trace)-1]
	assert.Contains(t, last, `fail "deep failure"`)
	joined := strings.Join(out.Failure.Trace, "\n")
	assert.Contains(t, joined, "outer")
	assert.Contains(t, joined, "inner")
}

func TestExecute_RunawayRecursionStops(t *testing.T) {
	e := newTestEngine(&mockEnv{}, Config{})

	out := e.Execute(context.Background(), `
proc loop
    loop
end

loop
`, nil)

	require.False(t, out.Success)
	assert.Equal(t, schemas.FailureScript, out.Failure.Kind)
	assert.Contains(t, out.Failure.Message, "depth")
}

func TestExecute_BindingsSeedScope(t *testing.T) {
	env := &mockEnv{}
	e := newTestEngine(env, Config{})

	out := e.Execute(context.Background(), `navigate start_url`, map[string]any{
		"start_url": "https://seeded.example",
	})

	require.True(t, out.Success)
	assert.Equal(t, []string{"Navigate:https://seeded.example"}, env.calls)
}

func TestExecute_ListHelpers(t *testing.T) {
	env := &mockEnv{findAll: []schemas.Element{
		{By: schemas.ByCSS, Value: "a"},
		{By: schemas.ByCSS, Value: "b"},
	}}
	e := newTestEngine(env, Config{})

	out := e.Execute(context.Background(), `
links = find_elements "css" "a.result"
second = nth links 1
click second
n = count links
`, nil)

	require.True(t, out.Success)
	assert.Contains(t, env.calls, "Click:b")
}

func TestExecute_NthOutOfRange(t *testing.T) {
	env := &mockEnv{findAll: []schemas.Element{{By: schemas.ByCSS, Value: "only"}}}
	e := newTestEngine(env, Config{})

	out := e.Execute(context.Background(), `
links = find_elements "css" "a"
el = nth links 5
`, nil)

	require.False(t, out.Success)
	assert.Equal(t, schemas.FailureArgument, out.Failure.Kind)
	assert.Contains(t, out.Failure.Message, "out of range")
}

func TestExecute_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newTestEngine(&mockEnv{}, Config{})

	out := e.Execute(ctx, `refresh`, nil)

	require.False(t, out.Success)
	assert.Equal(t, schemas.FailureEnvironment, out.Failure.Kind)
}

func TestExecute_WaitTimeoutDefaultsAndOverrides(t *testing.T) {
	env := &mockEnv{findResult: schemas.Element{By: schemas.ByCSS, Value: "#x"}}
	e := newTestEngine(env, Config{})

	out := e.Execute(context.Background(), `
wait_for_element "css" "#x"
wait_for_clickable "css" "#x" 2.5
`, nil)

	require.True(t, out.Success)
	assert.Equal(t, []string{
		"WaitForElement:css:#x:10s",
		"WaitForClickable:css:#x:2.5s",
	}, env.calls)
}
