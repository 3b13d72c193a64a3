// internal/engine/script.go
package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// The engine interprets a small, line-oriented action script instead of
// running free-form code. Grammar, one statement per line:
//
//	# comment
//	command arg1 arg2 ...
//	name = command arg1 arg2 ...
//	proc name
//	    ...body...
//	end
//	name              (invokes a previously defined proc)
//
// Arguments are double-quoted strings, numbers, or identifiers (variables,
// keys.* constants). The command set is the browser capability surface plus a
// few list/control helpers; nothing else is reachable from a snippet.

// argKind discriminates parsed argument literals.
type argKind int

const (
	argString argKind = iota
	argNumber
	argIdent
)

// arg is a single parsed argument.
type arg struct {
	kind  argKind
	str   string
	num   float64
	ident string
}

// statement is one executable line.
type statement struct {
	line    int    // 1-based line number in the snippet
	text    string // trimmed source, used in failure traces
	assign  string // destination variable, empty for plain statements
	command string
	args    []arg
}

// proc is a named reusable statement sequence.
type proc struct {
	name string
	line int
	body []statement
}

// script is the parsed form of a snippet.
type script struct {
	procs map[string]*proc
	order []string    // proc names in definition order
	top   []statement // top-level statements in source order
}

// parseError carries the offending line for failure classification.
type parseError struct {
	line int
	msg  string
}

func (e *parseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.line, e.msg)
}

// parseScript parses snippet text into a script. It never executes anything.
func parseScript(src string) (*script, error) {
	s := &script{procs: make(map[string]*proc)}
	var current *proc

	for i, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lineNo := i + 1

		tokens, err := tokenize(line)
		if err != nil {
			return nil, &parseError{line: lineNo, msg: err.Error()}
		}

		switch {
		case tokens[0].isWord("proc"):
			if current != nil {
				return nil, &parseError{line: lineNo, msg: "nested proc definitions are not allowed"}
			}
			if len(tokens) != 2 || tokens[1].kind != tokIdent {
				return nil, &parseError{line: lineNo, msg: "proc requires exactly one name"}
			}
			name := tokens[1].text
			current = &proc{name: name, line: lineNo}
			if _, seen := s.procs[name]; !seen {
				s.order = append(s.order, name)
			}
			s.procs[name] = current

		case tokens[0].isWord("end"):
			if current == nil {
				return nil, &parseError{line: lineNo, msg: "end without matching proc"}
			}
			if len(tokens) != 1 {
				return nil, &parseError{line: lineNo, msg: "end takes no arguments"}
			}
			current = nil

		default:
			stmt, err := parseStatement(tokens, lineNo, line)
			if err != nil {
				return nil, err
			}
			if current != nil {
				current.body = append(current.body, stmt)
			} else {
				s.top = append(s.top, stmt)
			}
		}
	}

	if current != nil {
		return nil, &parseError{line: current.line, msg: fmt.Sprintf("proc %q is never closed with end", current.name)}
	}
	return s, nil
}

// parseStatement parses `[name =] command args...` from a token line.
func parseStatement(tokens []token, lineNo int, text string) (statement, error) {
	stmt := statement{line: lineNo, text: text}

	rest := tokens
	if len(tokens) >= 2 && tokens[1].kind == tokAssign {
		if tokens[0].kind != tokIdent {
			return stmt, &parseError{line: lineNo, msg: "assignment target must be an identifier"}
		}
		if len(tokens) < 3 {
			return stmt, &parseError{line: lineNo, msg: "assignment is missing a command"}
		}
		stmt.assign = tokens[0].text
		rest = tokens[2:]
	}

	if rest[0].kind != tokIdent {
		return stmt, &parseError{line: lineNo, msg: "statement must start with a command name"}
	}
	stmt.command = rest[0].text

	for _, tok := range rest[1:] {
		switch tok.kind {
		case tokString:
			stmt.args = append(stmt.args, arg{kind: argString, str: tok.text})
		case tokNumber:
			n, err := strconv.ParseFloat(tok.text, 64)
			if err != nil {
				return stmt, &parseError{line: lineNo, msg: fmt.Sprintf("bad number %q", tok.text)}
			}
			stmt.args = append(stmt.args, arg{kind: argNumber, num: n})
		case tokIdent:
			stmt.args = append(stmt.args, arg{kind: argIdent, ident: tok.text})
		case tokAssign:
			return stmt, &parseError{line: lineNo, msg: "unexpected '=' inside statement"}
		}
	}
	return stmt, nil
}

// -- Tokenizer --

type tokKind int

const (
	tokIdent tokKind = iota
	tokString
	tokNumber
	tokAssign
)

type token struct {
	kind tokKind
	text string
}

func (t token) isWord(w string) bool { return t.kind == tokIdent && t.text == w }

// tokenize splits one line into tokens, honoring double quotes with \", \\
// and \n escapes. It returns at least one token or an error.
func tokenize(line string) ([]token, error) {
	var tokens []token
	runes := []rune(line)
	i := 0

	for i < len(runes) {
		r := runes[i]
		switch {
		case r == ' ' || r == '\t':
			i++

		case r == '=':
			tokens = append(tokens, token{kind: tokAssign, text: "="})
			i++

		case r == '"':
			var sb strings.Builder
			i++
			closed := false
			for i < len(runes) {
				c := runes[i]
				if c == '\\' && i+1 < len(runes) {
					switch runes[i+1] {
					case '"', '\\':
						sb.WriteRune(runes[i+1])
						i += 2
						continue
					case 'n':
						sb.WriteRune('\n')
						i += 2
						continue
					}
				}
				if c == '"' {
					closed = true
					i++
					break
				}
				sb.WriteRune(c)
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string literal")
			}
			tokens = append(tokens, token{kind: tokString, text: sb.String()})

		case r == '-' || (r >= '0' && r <= '9'):
			start := i
			i++
			for i < len(runes) && (runes[i] == '.' || (runes[i] >= '0' && runes[i] <= '9')) {
				i++
			}
			text := string(runes[start:i])
			if text == "-" {
				return nil, fmt.Errorf("stray '-'")
			}
			tokens = append(tokens, token{kind: tokNumber, text: text})

		case isIdentStart(r):
			start := i
			i++
			for i < len(runes) && isIdentPart(runes[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(runes[start:i])})

		default:
			return nil, fmt.Errorf("unexpected character %q", string(r))
		}
	}

	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty statement")
	}
	return tokens, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || r == '.' || (r >= '0' && r <= '9')
}
