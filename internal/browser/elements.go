// internal/browser/elements.go
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/pilotweb/pilot-cli/api/schemas"
)

// queryOption maps a locator strategy onto a chromedp query option.
func queryOption(by string) (chromedp.QueryOption, error) {
	switch by {
	case schemas.ByXPath:
		return chromedp.BySearch, nil
	case schemas.ByCSS:
		return chromedp.ByQuery, nil
	case schemas.ByID:
		return chromedp.ByID, nil
	default:
		return nil, fmt.Errorf("unknown locator strategy %q", by)
	}
}

// selector returns the chromedp selector and option for an element handle.
func selector(el schemas.Element) (string, chromedp.QueryOption, error) {
	if el.IsZero() {
		return "", nil, fmt.Errorf("empty element handle")
	}
	opt, err := queryOption(el.By)
	if err != nil {
		return "", nil, err
	}
	return el.Value, opt, nil
}

// nodesToElements converts resolved DOM nodes into stable xpath handles.
func nodesToElements(nodes []*cdp.Node) []schemas.Element {
	els := make([]schemas.Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, schemas.Element{By: schemas.ByXPath, Value: n.FullXPath()})
	}
	return els
}

// FindElement returns a handle to the first matching element. It blocks until
// the element exists or the action timeout expires.
func (s *Session) FindElement(ctx context.Context, by, value string) (schemas.Element, error) {
	opt, err := queryOption(by)
	if err != nil {
		return schemas.Element{}, err
	}

	var nodes []*cdp.Node
	if err := s.runActions(ctx, chromedp.Nodes(value, &nodes, opt)); err != nil {
		return schemas.Element{}, fmt.Errorf("no element matching %s=%q: %w", by, value, err)
	}
	if len(nodes) == 0 {
		return schemas.Element{}, fmt.Errorf("no element matching %s=%q", by, value)
	}
	return nodesToElements(nodes[:1])[0], nil
}

// FindElements returns handles for every matching element. An empty result is
// not an error.
func (s *Session) FindElements(ctx context.Context, by, value string) ([]schemas.Element, error) {
	opt, err := queryOption(by)
	if err != nil {
		return nil, err
	}

	var nodes []*cdp.Node
	if err := s.runActions(ctx, chromedp.Nodes(value, &nodes, opt, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("element query %s=%q failed: %w", by, value, err)
	}
	return nodesToElements(nodes), nil
}

// FindVisibleElement returns the first matching element that is actually
// rendered.
func (s *Session) FindVisibleElement(ctx context.Context, by, value string) (schemas.Element, error) {
	candidates, err := s.FindElements(ctx, by, value)
	if err != nil {
		return schemas.Element{}, err
	}
	for _, el := range candidates {
		visible, err := s.IsVisible(ctx, el)
		if err != nil {
			continue
		}
		if visible {
			return el, nil
		}
	}
	return schemas.Element{}, fmt.Errorf("no visible element matching %s=%q", by, value)
}

// FindElementByText locates an element by its rendered text content. tag
// narrows the search ("*" matches any tag).
func (s *Session) FindElementByText(ctx context.Context, text, tag string) (schemas.Element, error) {
	if tag == "" {
		tag = "*"
	}
	xpath := fmt.Sprintf(`//%s[contains(normalize-space(.), %q)]`, tag, text)
	return s.FindElement(ctx, schemas.ByXPath, xpath)
}

// Click scrolls the element into view and clicks it.
func (s *Session) Click(ctx context.Context, el schemas.Element) error {
	sel, opt, err := selector(el)
	if err != nil {
		return err
	}
	s.logger.Debug("Clicking element", zap.String("selector", sel))

	return s.runActions(ctx,
		chromedp.ScrollIntoView(sel, opt),
		chromedp.WaitVisible(sel, opt),
		chromedp.Click(sel, opt),
	)
}

// TypeText sends keystrokes to the element without clearing it first.
// Key constants (enter, tab, arrows) arrive as their CDP key runes.
func (s *Session) TypeText(ctx context.Context, el schemas.Element, text string) error {
	sel, opt, err := selector(el)
	if err != nil {
		return err
	}
	s.logger.Debug("Typing into element", zap.String("selector", sel), zap.Int("text_length", len(text)))

	return s.runActions(ctx,
		chromedp.ScrollIntoView(sel, opt),
		chromedp.WaitVisible(sel, opt),
		chromedp.SendKeys(sel, text, opt),
	)
}

// ClearAndType empties the field, then types.
func (s *Session) ClearAndType(ctx context.Context, el schemas.Element, text string) error {
	sel, opt, err := selector(el)
	if err != nil {
		return err
	}

	return s.runActions(ctx,
		chromedp.ScrollIntoView(sel, opt),
		chromedp.WaitVisible(sel, opt),
		chromedp.Clear(sel, opt),
		chromedp.SendKeys(sel, text, opt),
	)
}

// SelectOption picks an option from a select element by visible label or by
// value attribute, then fires a change event.
func (s *Session) SelectOption(ctx context.Context, el schemas.Element, value string) error {
	script := fmt.Sprintf(`(function() {
		var el = %s;
		if (!el || el.tagName !== 'SELECT') { return 'not a select element'; }
		for (var i = 0; i < el.options.length; i++) {
			var opt = el.options[i];
			if (opt.label === %q || opt.value === %q || opt.text.trim() === %q) {
				el.selectedIndex = i;
				el.dispatchEvent(new Event('input', {bubbles: true}));
				el.dispatchEvent(new Event('change', {bubbles: true}));
				return '';
			}
		}
		return 'no matching option';
	})()`, resolveJS(el), value, value, value)

	var failure string
	if err := s.runActions(ctx, chromedp.Evaluate(script, &failure)); err != nil {
		return fmt.Errorf("select_option failed: %w", err)
	}
	if failure != "" {
		return fmt.Errorf("select_option: %s for %q", failure, value)
	}
	return nil
}

// CheckCheckbox forces a checkbox or radio into the requested state.
func (s *Session) CheckCheckbox(ctx context.Context, el schemas.Element, checked bool) error {
	script := fmt.Sprintf(`(function() {
		var el = %s;
		if (!el) { return 'element not found'; }
		if (el.checked !== %t) {
			el.click();
		}
		return el.checked === %t ? '' : 'state did not change';
	})()`, resolveJS(el), checked, checked)

	var failure string
	if err := s.runActions(ctx, chromedp.Evaluate(script, &failure)); err != nil {
		return fmt.Errorf("check_checkbox failed: %w", err)
	}
	if failure != "" {
		return fmt.Errorf("check_checkbox: %s", failure)
	}
	return nil
}

// GetText returns the rendered text content of the element.
func (s *Session) GetText(ctx context.Context, el schemas.Element) (string, error) {
	sel, opt, err := selector(el)
	if err != nil {
		return "", err
	}
	var text string
	if err := s.runActions(ctx, chromedp.Text(sel, &text, opt)); err != nil {
		return "", fmt.Errorf("get_text failed for %q: %w", sel, err)
	}
	return text, nil
}

// GetAttribute returns the value of an attribute. A missing attribute is an
// empty string, not an error.
func (s *Session) GetAttribute(ctx context.Context, el schemas.Element, name string) (string, error) {
	sel, opt, err := selector(el)
	if err != nil {
		return "", err
	}
	var value string
	var ok bool
	if err := s.runActions(ctx, chromedp.AttributeValue(sel, name, &value, &ok, opt)); err != nil {
		return "", fmt.Errorf("get_attribute failed for %q: %w", sel, err)
	}
	if !ok {
		s.logger.Debug("Attribute not present", zap.String("selector", sel), zap.String("attribute", name))
		return "", nil
	}
	return value, nil
}

// IsVisible reports whether the element takes up layout space and is not
// hidden by styling.
func (s *Session) IsVisible(ctx context.Context, el schemas.Element) (bool, error) {
	return s.evalElementBool(ctx, el, `(function(el) {
		if (!el) { return false; }
		var style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') { return false; }
		var rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	})`)
}

// IsEnabled reports whether the element accepts interaction.
func (s *Session) IsEnabled(ctx context.Context, el schemas.Element) (bool, error) {
	return s.evalElementBool(ctx, el, `(function(el) {
		return !!el && !el.disabled;
	})`)
}

// IsSelected reports the checked/selected state of the element.
func (s *Session) IsSelected(ctx context.Context, el schemas.Element) (bool, error) {
	return s.evalElementBool(ctx, el, `(function(el) {
		if (!el) { return false; }
		if (el.tagName === 'OPTION') { return el.selected; }
		return !!el.checked;
	})`)
}

// WaitForElement blocks until an element matching the locator exists.
func (s *Session) WaitForElement(ctx context.Context, by, value string, timeout time.Duration) (schemas.Element, error) {
	return s.waitFor(ctx, by, value, timeout, false)
}

// WaitForClickable blocks until a matching element is visible and enabled.
func (s *Session) WaitForClickable(ctx context.Context, by, value string, timeout time.Duration) (schemas.Element, error) {
	return s.waitFor(ctx, by, value, timeout, true)
}

func (s *Session) waitFor(ctx context.Context, by, value string, timeout time.Duration, clickable bool) (schemas.Element, error) {
	opt, err := queryOption(by)
	if err != nil {
		return schemas.Element{}, err
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	actions := chromedp.Tasks{chromedp.WaitReady(value, opt)}
	if clickable {
		actions = append(actions,
			chromedp.WaitVisible(value, opt),
			chromedp.WaitEnabled(value, opt),
		)
	}
	var nodes []*cdp.Node
	actions = append(actions, chromedp.Nodes(value, &nodes, opt))

	if err := s.runActions(waitCtx, actions); err != nil {
		return schemas.Element{}, fmt.Errorf("timed out waiting for %s=%q after %s: %w", by, value, timeout, err)
	}
	if len(nodes) == 0 {
		return schemas.Element{}, fmt.Errorf("no element matching %s=%q", by, value)
	}
	return nodesToElements(nodes[:1])[0], nil
}

// evalElementBool resolves the element in page JS and applies predicate to it.
func (s *Session) evalElementBool(ctx context.Context, el schemas.Element, predicate string) (bool, error) {
	if el.IsZero() {
		return false, fmt.Errorf("empty element handle")
	}
	script := fmt.Sprintf(`%s(%s)`, predicate, resolveJS(el))
	var result bool
	if err := s.runActions(ctx, chromedp.Evaluate(script, &result)); err != nil {
		return false, fmt.Errorf("element state query failed: %w", err)
	}
	return result, nil
}

// resolveJS renders a JS expression that resolves an element handle to a DOM
// node (or null).
func resolveJS(el schemas.Element) string {
	switch el.By {
	case schemas.ByCSS:
		return fmt.Sprintf(`document.querySelector(%q)`, el.Value)
	case schemas.ByID:
		return fmt.Sprintf(`document.getElementById(%q)`, el.Value)
	default:
		return fmt.Sprintf(`document.evaluate(%q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue`, el.Value)
	}
}
