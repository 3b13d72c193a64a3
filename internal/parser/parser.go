// internal/parser/parser.go

// Package parser turns raw instruction text into a flat, ordered action queue.
// It understands a minimal macro syntax: DEFINE_FUNCTION <name> opens a named
// block, END_FUNCTION closes it, and CALL <name> expands the recorded body
// inline. Lines starting with '#' are comments.
package parser

import (
	"strings"

	"go.uber.org/zap"
)

// Instruction file markers.
const (
	MacroStart    = "DEFINE_FUNCTION"
	MacroEnd      = "END_FUNCTION"
	MacroCall     = "CALL"
	commentMarker = "#"
)

// continuationCues mark an instruction as belonging to the preceding block
// when grouping related instructions.
var continuationCues = []string{"then", "and", "after that", "next"}

// macroDef is one recorded macro body. closedAt is the line index at which the
// definition completed; calls above that index must not resolve to it.
type macroDef struct {
	body     []string
	closedAt int
}

// Parser parses and expands instruction sequences. It is not safe for
// concurrent use; the orchestrator drives it strictly sequentially.
type Parser struct {
	logger *zap.Logger
	macros map[string][]macroDef
	queue  []string
}

// New creates a Parser.
func New(logger *zap.Logger) *Parser {
	return &Parser{
		logger: logger.Named("parser"),
		macros: make(map[string][]macroDef),
	}
}

// Parse splits a block of text on line breaks and parses it.
func (p *Parser) Parse(source string) []string {
	return p.ParseLines(strings.Split(strings.TrimSpace(source), "\n"))
}

// ParseLines builds the action queue from an already-split line sequence.
// Two passes: macro extraction, then queue construction. The returned slice
// is the canonical execution order for the run.
func (p *Parser) ParseLines(lines []string) []string {
	p.macros = make(map[string][]macroDef)
	p.queue = nil

	p.extractMacros(lines)
	p.buildQueue(lines)

	p.logger.Info("Built action queue", zap.Int("instructions", len(p.queue)))
	return p.queue
}

// Macro returns the latest recorded body for a macro name. Test hook.
func (p *Parser) Macro(name string) ([]string, bool) {
	defs, ok := p.macros[name]
	if !ok || len(defs) == 0 {
		return nil, false
	}
	return defs[len(defs)-1].body, true
}

// extractMacros scans for DEFINE_FUNCTION blocks and records their bodies.
// A missing END_FUNCTION runs the body to end of input.
func (p *Parser) extractMacros(lines []string) {
	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, MacroStart) {
			i++
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			p.logger.Warn("Macro definition is missing a name; skipping", zap.Int("line", i+1))
			i++
			continue
		}
		name := fields[len(fields)-1]

		var body []string
		i++
		for i < len(lines) {
			line = strings.TrimSpace(lines[i])
			if strings.HasPrefix(line, MacroEnd) {
				break
			}
			if line != "" && !strings.HasPrefix(line, commentMarker) {
				body = append(body, line)
			}
			i++
		}

		// i now sits on the end marker, or at len(lines) if it was missing.
		p.macros[name] = append(p.macros[name], macroDef{body: body, closedAt: i})
		p.logger.Debug("Defined macro",
			zap.String("name", name),
			zap.Int("steps", len(body)))
		i++
	}
}

// buildQueue appends plain instructions and expanded macro calls in input
// order, skipping macro definition bodies.
func (p *Parser) buildQueue(lines []string) {
	inMacro := false
	for i, raw := range lines {
		line := strings.TrimSpace(raw)

		if line == "" || strings.HasPrefix(line, commentMarker) {
			continue
		}
		if strings.HasPrefix(line, MacroStart) {
			inMacro = true
			continue
		}
		if strings.HasPrefix(line, MacroEnd) {
			inMacro = false
			continue
		}
		if inMacro {
			continue
		}

		if strings.HasPrefix(line, MacroCall) {
			fields := strings.Fields(line)
			name := fields[len(fields)-1]
			if def, ok := p.resolveMacro(name, i); ok {
				p.queue = append(p.queue, def.body...)
				p.logger.Debug("Expanded macro call", zap.String("name", name))
			}
			continue
		}

		p.queue = append(p.queue, line)
	}
}

// resolveMacro returns the latest definition of name that closed before the
// call site. Undefined names and forward references are reported and skipped;
// surrounding instructions are unaffected.
func (p *Parser) resolveMacro(name string, callLine int) (macroDef, bool) {
	defs, exists := p.macros[name]
	if !exists {
		p.logger.Warn("Call to undefined macro; skipping", zap.String("name", name))
		return macroDef{}, false
	}
	for j := len(defs) - 1; j >= 0; j-- {
		if defs[j].closedAt < callLine {
			return defs[j], true
		}
	}
	p.logger.Warn("Forward reference to macro defined later in input; skipping",
		zap.String("name", name))
	return macroDef{}, false
}

// GroupRelated merges an instruction into the preceding block when it carries
// a continuation cue word, producing multi-line blocks for downstream context.
// The canonical action queue is not mutated.
func GroupRelated(instructions []string) []string {
	var grouped []string
	var block []string

	for _, instr := range instructions {
		lower := strings.ToLower(instr)
		continuation := false
		for _, cue := range continuationCues {
			if strings.Contains(lower, cue) {
				continuation = true
				break
			}
		}

		if continuation && len(block) > 0 {
			block = append(block, instr)
			continue
		}
		if len(block) > 0 {
			grouped = append(grouped, strings.Join(block, "\n"))
		}
		block = []string{instr}
	}

	if len(block) > 0 {
		grouped = append(grouped, strings.Join(block, "\n"))
	}
	return grouped
}
