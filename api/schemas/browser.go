// api/schemas/browser.go
package schemas

import (
	"context"
	"time"
)

// Locator strategies understood by the Environment implementations.
const (
	ByXPath = "xpath"
	ByCSS   = "css"
	ByID    = "id"
)

// Element is an opaque handle to a DOM node. It is a locator, not a live
// reference: implementations resolve it on every operation, so a handle stays
// usable across page mutations as long as the node still matches.
type Element struct {
	By    string `json:"by"`
	Value string `json:"value"`
}

// IsZero reports whether the element handle is empty.
func (e Element) IsZero() bool { return e.By == "" && e.Value == "" }

// Environment is the fixed capability surface that generated snippets are
// permitted to drive. The execution engine dispatches exclusively through this
// interface; snippets never see a concrete browser type.
type Environment interface {
	// Navigation.
	Navigate(ctx context.Context, url string) error
	Wait(ctx context.Context, seconds float64) error
	Refresh(ctx context.Context) error

	// Element lookup.
	FindElement(ctx context.Context, by, value string) (Element, error)
	FindElements(ctx context.Context, by, value string) ([]Element, error)
	FindVisibleElement(ctx context.Context, by, value string) (Element, error)
	FindElementByText(ctx context.Context, text, tag string) (Element, error)

	// Element interaction.
	Click(ctx context.Context, el Element) error
	TypeText(ctx context.Context, el Element, text string) error
	ClearAndType(ctx context.Context, el Element, text string) error
	SelectOption(ctx context.Context, el Element, value string) error
	CheckCheckbox(ctx context.Context, el Element, checked bool) error

	// Page interaction.
	Scroll(ctx context.Context, direction string) error
	Screenshot(ctx context.Context, path string) error
	GetPageText(ctx context.Context) (string, error)
	ExecuteScript(ctx context.Context, script string, args ...any) (any, error)

	// Element properties.
	GetText(ctx context.Context, el Element) (string, error)
	GetAttribute(ctx context.Context, el Element, name string) (string, error)
	IsVisible(ctx context.Context, el Element) (bool, error)
	IsEnabled(ctx context.Context, el Element) (bool, error)
	IsSelected(ctx context.Context, el Element) (bool, error)

	// Waiting.
	WaitForElement(ctx context.Context, by, value string, timeout time.Duration) (Element, error)
	WaitForClickable(ctx context.Context, by, value string, timeout time.Duration) (Element, error)

	// Page state.
	GetCurrentURL(ctx context.Context) (string, error)
	GetTitle(ctx context.Context) (string, error)
}
