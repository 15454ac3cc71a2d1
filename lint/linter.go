package lint

import (
	"go.uber.org/zap"

	"csslint/css"
)

// Linter runs all convention checks over stylesheets. It holds no mutable
// state across runs, one Linter may serve many inputs concurrently.
type Linter struct {
	policy compiledPolicy
	parser *css.Parser
	log    *zap.Logger
}

// NewLinter validates the policy and creates a Linter. A policy error here
// is fatal to the run but not to the process: no analysis has started and
// no partial report is produced.
func NewLinter(policy Policy, log *zap.Logger) (*Linter, error) {
	if log == nil {
		log = zap.NewNop()
	}
	compiled, err := policy.compile()
	if err != nil {
		return nil, err
	}
	parser := css.NewParser(log)
	parser.MaxDepth = compiled.maxDepth
	return &Linter{policy: compiled, parser: parser, log: log.Named("lint")}, nil
}

// Check is the single analysis entry point: parse, run all checks, report.
// The returned findings are ordered (line asc, rule ID asc); the stylesheet
// model is returned for tooling that wants to inspect structure directly.
func (l *Linter) Check(data []byte, source ...string) ([]Finding, *css.Stylesheet) {
	sheet := l.parser.Parse(data, source...)
	return l.Analyze(sheet), sheet
}

// namedCheck pairs a check with its name for isolation logging. Checks run
// in fixed order; order affects only report tiebreaks, never semantics.
type namedCheck struct {
	name string
	run  func(*css.Stylesheet) []Finding
}

// Analyze runs every check over an already parsed stylesheet and returns
// the ordered findings. Checks are isolated: a panic inside one check is
// recovered and logged, the remaining checks still run.
func (l *Linter) Analyze(sheet *css.Stylesheet) []Finding {
	findings := make([]Finding, 0, len(sheet.Structural))

	for _, se := range sheet.Structural {
		findings = append(findings, Finding{
			RuleID:   RuleSyntax,
			Severity: SeverityError,
			Message:  se.Message,
			Line:     se.Line,
		})
	}

	checks := []namedCheck{
		{RulePreferClassSelector, l.checkSelectors},
		{RuleFontFaceFirst, l.checkFontFaceOrder},
		{RuleDeclarationOrder, l.checkDeclarationOrder},
	}
	for _, c := range checks {
		findings = append(findings, l.isolate(c, sheet)...)
	}

	return Report(dedupe(findings))
}

// isolate runs one check and converts a panic into a logged skip so no
// single check can suppress the findings of the others.
func (l *Linter) isolate(c namedCheck, sheet *css.Stylesheet) (findings []Finding) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("check failed, skipping", zap.String("check", c.name), zap.Any("panic", r))
			findings = nil
		}
	}()
	return c.run(sheet)
}

// dedupe drops later findings with an already seen (RuleID, Line) pair,
// keeping emission order otherwise.
func dedupe(findings []Finding) []Finding {
	type key struct {
		rule string
		line int
	}
	seen := make(map[key]struct{}, len(findings))
	out := findings[:0]
	for _, f := range findings {
		k := key{f.RuleID, f.Line}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, f)
	}
	return out
}
