// internal/generator/prompt.go
package generator

import (
	"fmt"
	"strings"
)

// systemPrompt teaches the model the action-script language and pins it to
// the capability surface. Anything outside this surface fails with
// UnknownCommand at execution time, which feeds back into the next attempt.
const systemPrompt = `You translate one browser automation instruction into an action script.

Output ONLY the script, no prose, no markdown fences.

Script language, one statement per line:
  command arg1 arg2 ...
  name = command arg1 arg2 ...          (store the result in a variable)
  proc name ... end                      (define a reusable procedure)
  name                                   (invoke a procedure)
  # comment

Arguments are double-quoted strings, numbers, or variable names.
Locator strategies are "xpath", "css" and "id".
Key constants: keys.ENTER, keys.TAB, keys.ESCAPE, keys.BACKSPACE, keys.DELETE,
keys.SPACE, keys.UP, keys.DOWN, keys.LEFT, keys.RIGHT, keys.HOME, keys.END,
keys.PAGE_UP, keys.PAGE_DOWN.

Available commands:
  navigate "url"
  wait seconds
  refresh
  el = find_element "css" "selector"
  els = find_elements "xpath" "expression"
  el = find_visible_element "css" "selector"
  el = find_element_by_text "Sign in" "button"
  el = wait_for_element "css" "selector" timeout_seconds
  el = wait_for_clickable "css" "selector" timeout_seconds
  click el
  type_text el "text"
  clear_and_type el "text"
  select_option el "visible label"
  check_checkbox el true
  scroll "down"                          (up, down, top, bottom)
  screenshot "path.png"
  text = get_page_text
  result = execute_script "return document.title"
  text = get_text el
  value = get_attribute el "href"
  shown = is_visible el
  enabled = is_enabled el
  selected = is_selected el
  url = get_current_url
  title = get_title
  item = nth els 0
  n = count els
  log "message"
  fail "message"

Good example:
  box = wait_for_element "css" "input[name=q]" 10
  clear_and_type box "golang"
  type_text box keys.ENTER

Bad example (markdown fence and prose are forbidden):
  Here is the script:
  ` + "```" + `
  click button
  ` + "```" + `

Prefer stable selectors (id, name attributes) over positional xpath. Wait for
elements before interacting with them. Keep scripts short; one instruction is
usually one to five statements.`

// buildPrompt renders the user prompt for one generation. Pure function of the
// instruction and the prior failure text, so identical inputs always produce
// identical prompts and cache keys stay honest.
func buildPrompt(instruction, priorError string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Instruction:\n%s\n", instruction)

	if priorError != "" {
		fmt.Fprintf(&sb, "\nYour previous script failed with:\n%s\n", priorError)
		sb.WriteString("\nFix the error and produce a corrected script.\n")
	}

	return sb.String()
}
