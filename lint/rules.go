package lint

import (
	"fmt"
	"strings"

	"csslint/css"
)

// forEachBlock visits every rule block in the stylesheet, including blocks
// nested inside at-rules (@media, @supports, @layer), in source order.
func forEachBlock(nodes []css.Node, fn func(*css.RuleBlock)) {
	for _, n := range nodes {
		switch {
		case n.Block != nil:
			fn(n.Block)
		case n.AtRule != nil && len(n.AtRule.Nodes) > 0:
			forEachBlock(n.AtRule.Nodes, fn)
		}
	}
}

// isBareElement reports whether the selector is a standalone element name:
// no class, attribute, pseudo, combinator or universal part. Anything
// qualified (header.foo, header[role], header > p) is exempt.
func isBareElement(sel string) bool {
	if sel == "" {
		return false
	}
	for i := 0; i < len(sel); i++ {
		c := sel[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c == '-' || c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// checkSelectors flags rule blocks that style structural elements bare
// instead of through a reusable class.
func (l *Linter) checkSelectors(sheet *css.Stylesheet) []Finding {
	var findings []Finding
	forEachBlock(sheet.Nodes, func(b *css.RuleBlock) {
		for _, sel := range b.Selectors {
			if !isBareElement(sel) {
				continue
			}
			name := strings.ToLower(sel)
			if _, exempt := l.policy.exceptions[name]; exempt {
				continue
			}
			if _, hit := l.policy.structural[name]; !hit {
				continue
			}
			findings = append(findings, Finding{
				RuleID:   RulePreferClassSelector,
				Severity: SeverityWarning,
				Line:     b.Line,
				Message: fmt.Sprintf("selector %q targets a structural element directly; use a class selector (e.g. %q) so the style stays reusable",
					sel, "."+name),
			})
		}
	})
	return findings
}

// atRuleOrderExempt lists at-rules allowed before @font-face: @charset must
// be first by the CSS grammar, a @layer statement only declares ordering.
func atRuleOrderExempt(at *css.AtRule) bool {
	switch at.Name {
	case "@charset":
		return true
	case "@layer":
		return !at.HasBlock
	}
	return false
}

// checkFontFaceOrder flags the first top-level node that precedes a
// @font-face declared later in the stylesheet. The scan pivots on the last
// @font-face: with several of them interleaved with other rules, anything
// before the final one is still out of order. Only the first violation is
// reported; without any @font-face there is nothing to check.
func (l *Linter) checkFontFaceOrder(sheet *css.Stylesheet) []Finding {
	var ff *css.AtRule
	ffIdx := -1
	for i, n := range sheet.Nodes {
		if n.AtRule != nil && n.AtRule.Name == "@font-face" {
			ff = n.AtRule
			ffIdx = i
		}
	}
	if ff == nil {
		return nil
	}

	for _, n := range sheet.Nodes[:ffIdx] {
		if n.AtRule != nil && (n.AtRule.Name == "@font-face" || atRuleOrderExempt(n.AtRule)) {
			continue
		}
		return []Finding{{
			RuleID:   RuleFontFaceFirst,
			Severity: SeverityWarning,
			Line:     n.Line(),
			Message: fmt.Sprintf("%s appears before @font-face declared on line %d; @font-face blocks should come first",
				describeNode(n), ff.Line),
		}}
	}
	return nil
}

func describeNode(n css.Node) string {
	switch {
	case n.Block != nil:
		return fmt.Sprintf("rule %q", strings.Join(n.Block.Selectors, ", "))
	case n.AtRule != nil:
		return n.AtRule.Name
	}
	return "node"
}

// checkDeclarationOrder verifies that declaration group indices never
// decrease within a block: a single pass comparing each declaration's group
// against the maximum seen so far, not a full reordering suggestion.
func (l *Linter) checkDeclarationOrder(sheet *css.Stylesheet) []Finding {
	var findings []Finding
	forEachBlock(sheet.Nodes, func(b *css.RuleBlock) {
		maxSeen := -1
		prev := 0
		for _, d := range b.Declarations {
			group, known := l.policy.groupOf[strings.ToLower(d.Property)]
			if !known {
				// unrecognized properties inherit the previous
				// declaration's group (group 0 when first)
				group = prev
			}
			prev = group

			if group < maxSeen {
				findings = append(findings, Finding{
					RuleID:   RuleDeclarationOrder,
					Severity: SeverityWarning,
					Line:     d.Line,
					Message: fmt.Sprintf("property %q belongs to the %q group and should appear before %q declarations",
						d.Property, l.policy.groupNames[group], l.policy.groupNames[maxSeen]),
				})
				continue
			}
			maxSeen = group
		}
	})
	return findings
}
