// internal/engine/keys.go
package engine

import "github.com/chromedp/chromedp/kb"

// keyConstants is the whitelisted helper namespace exposed to snippets as
// keys.*. Values are the CDP key runes understood by type_text and
// clear_and_type.
var keyConstants = map[string]string{
	"keys.ENTER":     kb.Enter,
	"keys.TAB":       kb.Tab,
	"keys.BACKSPACE": kb.Backspace,
	"keys.ESCAPE":    kb.Escape,
	"keys.DELETE":    kb.Delete,
	"keys.SPACE":     " ",
	"keys.UP":        kb.ArrowUp,
	"keys.DOWN":      kb.ArrowDown,
	"keys.LEFT":      kb.ArrowLeft,
	"keys.RIGHT":     kb.ArrowRight,
	"keys.HOME":      kb.Home,
	"keys.END":       kb.End,
	"keys.PAGE_UP":   kb.PageUp,
	"keys.PAGE_DOWN": kb.PageDown,
}
