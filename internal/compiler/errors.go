package compiler

import (
	"fmt"
	"strings"
)

// Problem classifies a validation violation.
type Problem int

const (
	UndefinedLabel Problem = iota
	DuplicateLabel
	UnknownSection
)

func (p Problem) String() string {
	switch p {
	case UndefinedLabel:
		return "undefined-label"
	case DuplicateLabel:
		return "duplicate-label"
	case UnknownSection:
		return "unknown-section"
	}
	return fmt.Sprintf("Problem(%d)", int(p))
}

// Violation is one bad reference found before any byte is produced.
type Violation struct {
	Problem Problem
	Section string
	// Block is the index of the offending block, -1 for flow entries.
	Block int
	Label int
}

func (v Violation) String() string {
	switch v.Problem {
	case UndefinedLabel:
		return fmt.Sprintf("section %q block %d: label %d is not defined", v.Section, v.Block, v.Label)
	case DuplicateLabel:
		return fmt.Sprintf("section %q block %d: label %d is already defined", v.Section, v.Block, v.Label)
	case UnknownSection:
		return fmt.Sprintf("flow names unknown section %q", v.Section)
	}
	return v.Problem.String()
}

// ValidationError lists every violation of one compile. The scene needs
// fixing; nothing was emitted.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	if len(parts) == 1 {
		return "compile: " + parts[0]
	}
	return fmt.Sprintf("compile: %d problems: %s", len(parts), strings.Join(parts, "; "))
}

// Labels returns the undefined label ids, in report order.
func (e *ValidationError) Labels() []int {
	var out []int
	for _, v := range e.Violations {
		if v.Problem == UndefinedLabel {
			out = append(out, v.Label)
		}
	}
	return out
}
