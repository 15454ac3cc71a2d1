package css

import (
	"fmt"
	"io"
	"strings"
)

// Declaration is a single property/value pair inside a rule block, in the
// order it was written. Property and Value are verbatim source text trimmed
// of surrounding whitespace.
type Declaration struct {
	Property string
	Value    string
	Line     int // 1-based line in original source
}

// RuleBlock is a selector list with its braced declarations.
type RuleBlock struct {
	Selectors    []string // split on top-level commas, trimmed
	Declarations []Declaration
	Line         int // line of the first selector
}

// AtRule is a stylesheet directive starting with '@'. Statement at-rules
// (@import, @charset) carry only a prelude. Block at-rules carry either
// nested nodes (@media, @layer, @supports) or declarations (@font-face).
type AtRule struct {
	Name         string // with leading '@', lower case
	Prelude      string
	HasBlock     bool
	Nodes        []Node
	Declarations []Declaration
	Line         int
}

// Node is a single stylesheet item. Exactly one of AtRule or Block is non-nil.
type Node struct {
	AtRule *AtRule
	Block  *RuleBlock
}

// Line returns source line of whichever variant is set.
func (n Node) Line() int {
	switch {
	case n.AtRule != nil:
		return n.AtRule.Line
	case n.Block != nil:
		return n.Block.Line
	}
	return 0
}

// StructuralError describes an unrecoverable malformation found while
// parsing (unbalanced braces, bad token stream). The parser records it and
// keeps the tree built so far, it never aborts.
type StructuralError struct {
	Line    int
	Message string
}

func (e StructuralError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Stylesheet is an ordered sequence of top-level nodes exactly as they
// appear in source. It is built fresh per input and never mutated by
// analysis.
type Stylesheet struct {
	Nodes      []Node
	Structural []StructuralError
}

// FontFaces returns all top-level @font-face at-rules in source order.
func (s *Stylesheet) FontFaces() []*AtRule {
	var faces []*AtRule
	for _, n := range s.Nodes {
		if n.AtRule != nil && n.AtRule.Name == "@font-face" {
			faces = append(faces, n.AtRule)
		}
	}
	return faces
}

// BlocksBySelector returns all top-level rule blocks whose selector list
// contains the given selector string.
func (s *Stylesheet) BlocksBySelector(selector string) []*RuleBlock {
	var matches []*RuleBlock
	for _, n := range s.Nodes {
		if n.Block == nil {
			continue
		}
		for _, sel := range n.Block.Selectors {
			if sel == selector {
				matches = append(matches, n.Block)
				break
			}
		}
	}
	return matches
}

// WriteTo writes the parsed model back as CSS text, implementing
// io.WriterTo. Declaration order is preserved as written - the model never
// reorders anything, it only reports.
func (s *Stylesheet) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for i, node := range s.Nodes {
		n, err := writeNode(w, node, 0)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if i < len(s.Nodes)-1 {
			n, err = fmt.Fprint(w, "\n")
			total += int64(n)
			if err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// String returns the CSS text of the stylesheet.
func (s *Stylesheet) String() string {
	var sb strings.Builder
	s.WriteTo(&sb) //nolint:errcheck
	return sb.String()
}

func writeNode(w io.Writer, node Node, depth int) (int, error) {
	switch {
	case node.AtRule != nil:
		return writeAtRule(w, node.AtRule, depth)
	case node.Block != nil:
		return writeBlock(w, node.Block, depth)
	}
	return 0, nil
}

func writeAtRule(w io.Writer, at *AtRule, depth int) (int, error) {
	var total int
	pad := strings.Repeat("  ", depth)

	head := at.Name
	if len(at.Prelude) > 0 {
		head += " " + at.Prelude
	}
	if !at.HasBlock {
		return fmt.Fprintf(w, "%s%s;\n", pad, head)
	}

	n, err := fmt.Fprintf(w, "%s%s {\n", pad, head)
	total += n
	if err != nil {
		return total, err
	}
	n, err = writeDeclarations(w, at.Declarations, depth+1)
	total += n
	if err != nil {
		return total, err
	}
	for _, child := range at.Nodes {
		n, err = writeNode(w, child, depth+1)
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err = fmt.Fprintf(w, "%s}\n", pad)
	total += n
	return total, err
}

func writeBlock(w io.Writer, block *RuleBlock, depth int) (int, error) {
	var total int
	pad := strings.Repeat("  ", depth)

	n, err := fmt.Fprintf(w, "%s%s {\n", pad, strings.Join(block.Selectors, ", "))
	total += n
	if err != nil {
		return total, err
	}
	n, err = writeDeclarations(w, block.Declarations, depth+1)
	total += n
	if err != nil {
		return total, err
	}
	n, err = fmt.Fprintf(w, "%s}\n", pad)
	total += n
	return total, err
}

func writeDeclarations(w io.Writer, decls []Declaration, depth int) (int, error) {
	var total int
	pad := strings.Repeat("  ", depth)
	for _, d := range decls {
		n, err := fmt.Fprintf(w, "%s%s: %s;\n", pad, d.Property, d.Value)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
