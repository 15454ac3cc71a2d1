// Package lint checks parsed stylesheets against authoring conventions and
// produces ordered, deterministic findings.
package lint

import "fmt"

// Severity of a finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Rule identifiers, stable so reports can be diffed and suppressed by ID.
const (
	RuleSyntax              = "syntax"
	RulePreferClassSelector = "prefer-class-selector"
	RuleFontFaceFirst       = "font-face-first"
	RuleDeclarationOrder    = "declaration-order"
)

// Finding is one diagnostic tied to a source line. Findings are immutable
// once produced; a single run never contains duplicate (RuleID, Line) pairs.
type Finding struct {
	RuleID   string
	Severity Severity
	Message  string
	Line     int
}

func (f Finding) String() string {
	return fmt.Sprintf("%d: %s: %s (%s)", f.Line, f.Severity, f.Message, f.RuleID)
}
