// internal/generator/postprocess.go
package generator

import "strings"

// Postprocess normalizes raw model output into an executable snippet: markdown
// fences are stripped, blank runs collapse to a single blank line, and a
// snippet that only defines procedures gets an invocation of its first
// procedure appended so it actually runs something.
func Postprocess(raw string) string {
	lines := strings.Split(raw, "\n")

	var kept []string
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			continue
		}
		if trimmed == "" {
			blank = true
			continue
		}
		if blank && len(kept) > 0 {
			kept = append(kept, "")
		}
		blank = false
		kept = append(kept, trimmed)
	}

	return ensureInvocation(kept)
}

// ensureInvocation appends a call to the preferred procedure when the snippet
// contains no top-level statements at all. Preference order: a proc named
// main, then automation, then the first proc defined.
func ensureInvocation(lines []string) string {
	var procs []string
	hasTopLevel := false
	inProc := false

	for _, line := range lines {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch {
		case fields[0] == "proc" && len(fields) == 2:
			procs = append(procs, fields[1])
			inProc = true
		case fields[0] == "end":
			inProc = false
		case !inProc:
			hasTopLevel = true
		}
	}

	out := strings.Join(lines, "\n")
	if hasTopLevel || len(procs) == 0 {
		return out
	}

	target := procs[0]
	for _, preferred := range []string{"main", "automation"} {
		for _, name := range procs {
			if name == preferred {
				return out + "\n\n" + preferred
			}
		}
	}
	return out + "\n\n" + target
}
