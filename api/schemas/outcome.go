// api/schemas/outcome.go
package schemas

import "strings"

// FailureKind classifies an execution failure.
type FailureKind string

const (
	// FailureParse means the snippet could not be parsed at all.
	FailureParse FailureKind = "ParseError"
	// FailureUnknownCommand means the snippet invoked a command outside the
	// capability surface.
	FailureUnknownCommand FailureKind = "UnknownCommand"
	// FailureUnknownSymbol means the snippet referenced an unbound variable.
	FailureUnknownSymbol FailureKind = "UnknownSymbol"
	// FailureArgument means a command received the wrong number or type of
	// arguments.
	FailureArgument FailureKind = "ArgumentError"
	// FailureEnvironment means the browser environment itself faulted.
	FailureEnvironment FailureKind = "EnvironmentError"
	// FailureScript is raised by the snippet's own `fail` statement or by a
	// runaway procedure call chain.
	FailureScript FailureKind = "ScriptError"
)

// Failure describes one failed execution attempt. Trace holds the most
// proximate snippet lines, innermost last.
type Failure struct {
	Kind    FailureKind
	Message string
	Trace   []string
}

// Text renders the failure the way it is fed back into the next generation
// attempt: kind, message, then the trace tail.
func (f *Failure) Text() string {
	var sb strings.Builder
	sb.WriteString(string(f.Kind))
	sb.WriteString(": ")
	sb.WriteString(f.Message)
	for _, line := range f.Trace {
		sb.WriteString("\n  ")
		sb.WriteString(line)
	}
	return sb.String()
}

// Outcome is the tagged result of one execution attempt. Exactly one of
// Success or Failure is meaningful.
type Outcome struct {
	Success bool
	Failure *Failure
}

// OK returns a successful outcome.
func OK() Outcome { return Outcome{Success: true} }

// Failed wraps a Failure into an outcome.
func Failed(f *Failure) Outcome { return Outcome{Failure: f} }
