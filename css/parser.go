// Package css parses stylesheet text into an ordered node model suitable
// for convention checking. Parsing is total: malformed input produces a
// best-effort tree plus structural error records, never a failure.
package css

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"go.uber.org/zap"
)

// DefaultMaxDepth bounds at-rule/ruleset nesting so pathological input
// fails with a structural error instead of unbounded recursion.
const DefaultMaxDepth = 64

// Parser parses CSS stylesheets into the Stylesheet model.
type Parser struct {
	log      *zap.Logger
	MaxDepth int
}

// NewParser creates a new CSS parser.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{log: log.Named("css-parser"), MaxDepth: DefaultMaxDepth}
}

// Parse parses CSS text into a Stylesheet. Node order always equals source
// appearance order. The optional source parameter identifies what is being
// parsed (for debug logging only).
func (p *Parser) Parse(data []byte, source ...string) *Stylesheet {
	if len(source) > 0 && source[0] != "" {
		p.log.Debug("Parsing CSS", zap.String("source", source[0]), zap.Int("bytes", len(data)))
	}

	input := parse.NewInput(bytes.NewReader(data))
	run := &parseRun{
		maxDepth: p.MaxDepth,
		log:      p.log,
		parser:   css.NewParser(input, false),
		input:    input,
		src:      data,
		starts:   lineStarts(data),
		sheet:    &Stylesheet{},
	}
	run.sheet.Nodes, _ = run.parseNodes(0)

	p.log.Debug("Parsed stylesheet",
		zap.Int("nodes", len(run.sheet.Nodes)),
		zap.Int("structural_errors", len(run.sheet.Structural)))
	return run.sheet
}

// parseRun holds state for a single Parse call. Nothing survives the call,
// so Parser itself stays safe for concurrent use.
type parseRun struct {
	maxDepth int
	log      *zap.Logger
	parser   *css.Parser
	input    *parse.Input
	src      []byte
	starts   []int // byte offsets of line starts
	sheet    *Stylesheet
	open     []int // lines of currently open blocks
	done     bool
}

// parseNodes consumes grammar events until the enclosing at-rule block ends
// (or input is exhausted at depth 0) and returns child nodes and immediate
// declarations in source order. Declarations only occur inside block
// at-rules like @font-face.
func (r *parseRun) parseNodes(depth int) ([]Node, []Declaration) {
	var nodes []Node
	var decls []Declaration
	var pendingSel []string
	var pendingLine int

	for !r.done {
		startOff := r.offset()
		gt, _, data := r.parser.Next()

		switch gt {
		case css.ErrorGrammar:
			r.finish(startOff)
			return nodes, decls

		case css.EndAtRuleGrammar:
			r.popOpen()
			return nodes, decls

		case css.CommentGrammar, css.TokenGrammar:
			// comments never become nodes and never shift reported lines

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			decls = append(decls, Declaration{
				Property: declProperty(gt, data),
				Value:    tokensText(r.parser.Values()),
				Line:     r.nodeLine(startOff),
			})

		case css.AtRuleGrammar:
			nodes = append(nodes, Node{AtRule: &AtRule{
				Name:    strings.ToLower(string(data)),
				Prelude: tokensText(r.parser.Values()),
				Line:    r.nodeLine(startOff),
			}})

		case css.BeginAtRuleGrammar:
			at := &AtRule{
				Name:     strings.ToLower(string(data)),
				Prelude:  tokensText(r.parser.Values()),
				HasBlock: true,
				Line:     r.nodeLine(startOff),
			}
			r.pushOpen(at.Line)
			if depth+1 > r.maxDepth {
				r.structural(at.Line, fmt.Sprintf("nesting exceeds maximum depth %d", r.maxDepth))
				r.skipBlock()
				r.popOpen()
				continue
			}
			at.Nodes, at.Declarations = r.parseNodes(depth + 1)
			nodes = append(nodes, Node{AtRule: at})

		case css.QualifiedRuleGrammar:
			// one comma-separated selector of a grouped ruleset
			pendingSel = append(pendingSel, selectorText(data, r.parser.Values()))
			if pendingLine == 0 {
				pendingLine = r.nodeLine(startOff)
			}

		case css.BeginRulesetGrammar:
			pendingSel = append(pendingSel, selectorText(data, r.parser.Values()))
			if pendingLine == 0 {
				pendingLine = r.nodeLine(startOff)
			}
			block := &RuleBlock{
				Selectors: splitSelectors(strings.Join(pendingSel, ",")),
				Line:      pendingLine,
			}
			r.pushOpen(pendingLine)
			if depth+1 > r.maxDepth {
				r.structural(pendingLine, fmt.Sprintf("nesting exceeds maximum depth %d", r.maxDepth))
				r.skipBlock()
			} else {
				block.Declarations = r.parseDeclarations()
			}
			nodes = append(nodes, Node{Block: block})
			pendingSel, pendingLine = nil, 0
		}
	}
	return nodes, decls
}

// parseDeclarations consumes declarations until the enclosing ruleset ends.
func (r *parseRun) parseDeclarations() []Declaration {
	var decls []Declaration
	for !r.done {
		startOff := r.offset()
		gt, _, data := r.parser.Next()

		switch gt {
		case css.ErrorGrammar:
			r.finish(startOff)
			return decls

		case css.EndRulesetGrammar:
			r.popOpen()
			return decls

		case css.DeclarationGrammar, css.CustomPropertyGrammar:
			decls = append(decls, Declaration{
				Property: declProperty(gt, data),
				Value:    tokensText(r.parser.Values()),
				Line:     r.nodeLine(startOff),
			})

		case css.CommentGrammar, css.TokenGrammar:
			// declarations are split on top-level semicolons by the
			// tokenizer, anything else inside a block is noise
		}
	}
	return decls
}

// skipBlock consumes tokens until the matching end of the current block.
func (r *parseRun) skipBlock() {
	depth := 1
	for depth > 0 && !r.done {
		startOff := r.offset()
		gt, _, _ := r.parser.Next()
		switch gt {
		case css.ErrorGrammar:
			r.finish(startOff)
			return
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
}

// finish handles the terminal ErrorGrammar event: clean end of input, end
// of input with unclosed blocks, or a genuine tokenizer error.
func (r *parseRun) finish(off int) {
	r.done = true
	err := r.parser.Err()
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if len(r.open) > 0 {
			line := r.open[len(r.open)-1]
			r.structural(line, "unbalanced braces: block is never closed")
		}
	default:
		r.structural(r.lineAt(off), err.Error())
		r.log.Debug("CSS parse error", zap.Error(err))
	}
}

func (r *parseRun) structural(line int, msg string) {
	r.sheet.Structural = append(r.sheet.Structural, StructuralError{Line: line, Message: msg})
}

func (r *parseRun) pushOpen(line int) { r.open = append(r.open, line) }

func (r *parseRun) popOpen() {
	if len(r.open) > 0 {
		r.open = r.open[:len(r.open)-1]
	}
}

func (r *parseRun) offset() int {
	off := r.input.Offset()
	if off > len(r.src) {
		off = len(r.src)
	}
	return off
}

// nodeLine maps the parser offset captured before an item was consumed to
// the line of the item itself, stepping over whitespace and comments so
// stripped comments never shift reported lines.
func (r *parseRun) nodeLine(off int) int {
	return r.lineAt(skipBlanks(r.src, off))
}

func (r *parseRun) lineAt(off int) int {
	return sort.Search(len(r.starts), func(i int) bool { return r.starts[i] > off })
}

// lineStarts returns byte offsets where each line begins.
func lineStarts(data []byte) []int {
	starts := make([]int, 1, 64)
	for i, b := range data {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// skipBlanks advances past whitespace and /* */ comments.
func skipBlanks(src []byte, off int) int {
	for off < len(src) {
		switch {
		case src[off] == ' ' || src[off] == '\t' || src[off] == '\n' || src[off] == '\r' || src[off] == '\f':
			off++
		case src[off] == '/' && off+1 < len(src) && src[off+1] == '*':
			end := bytes.Index(src[off+2:], []byte("*/"))
			if end < 0 {
				return off
			}
			off += 2 + end + 2
		default:
			return off
		}
	}
	return off
}

// declProperty normalizes a declaration property name. Custom properties
// keep their case, regular properties are matched case-insensitively.
func declProperty(gt css.GrammarType, data []byte) string {
	if gt == css.CustomPropertyGrammar {
		return string(data)
	}
	return strings.ToLower(strings.TrimSpace(string(data)))
}

// tokensText joins token data into a single string, collapsing whitespace
// runs so values keep verbatim content with normalized spacing.
func tokensText(tokens []css.Token) string {
	var sb strings.Builder
	space := false
	for _, t := range tokens {
		if t.TokenType == css.WhitespaceToken {
			space = sb.Len() > 0
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.Write(t.Data)
	}
	return strings.TrimSpace(sb.String())
}

// selectorText rebuilds the selector source for a (qualified) ruleset from
// grammar data and values.
func selectorText(data []byte, tokens []css.Token) string {
	var sb strings.Builder
	sb.Write(data)
	space := false
	for _, t := range tokens {
		if t.TokenType == css.WhitespaceToken {
			space = sb.Len() > 0
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.Write(t.Data)
	}
	return strings.TrimSpace(sb.String())
}

// splitSelectors splits a selector list on top-level commas. Commas inside
// parentheses, brackets or quoted strings do not split.
func splitSelectors(list string) []string {
	var selectors []string
	var depth int
	var quote byte
	start := 0

	flush := func(end int) {
		if s := strings.TrimSpace(list[start:end]); s != "" {
			selectors = append(selectors, s)
		}
		start = end + 1
	}

	for i := 0; i < len(list); i++ {
		c := list[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				flush(i)
			}
		}
	}
	flush(len(list))
	return selectors
}
