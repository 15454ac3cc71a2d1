package lint

import (
	"fmt"
	"io"
	"sort"

	"github.com/beevik/etree"
)

// Report orders findings by (line ascending, rule ID ascending), keeping
// engine emission order for equal keys. The result is deterministic for
// identical input across runs, which snapshot tests and CLI diffing rely
// on.
func Report(findings []Finding) []Finding {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].RuleID < findings[j].RuleID
	})
	return findings
}

// RenderText writes findings in the classic one-line-per-finding form:
//
//	path:line: severity: message (rule-id)
func RenderText(w io.Writer, path string, findings []Finding) error {
	for _, f := range findings {
		if _, err := fmt.Fprintf(w, "%s:%d: %s: %s (%s)\n", path, f.Line, f.Severity, f.Message, f.RuleID); err != nil {
			return err
		}
	}
	return nil
}

// FileFindings pairs an input path with its findings for multi-file
// rendering.
type FileFindings struct {
	Path     string
	Findings []Finding
}

// RenderCheckstyle writes findings as a checkstyle XML document, one <file>
// element per input with one <error> per finding - the interchange format
// CI systems ingest.
func RenderCheckstyle(w io.Writer, files []FileFindings) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("checkstyle")
	root.CreateAttr("version", "4.3")

	for _, ff := range files {
		fe := root.CreateElement("file")
		fe.CreateAttr("name", ff.Path)
		for _, f := range ff.Findings {
			ee := fe.CreateElement("error")
			ee.CreateAttr("line", fmt.Sprintf("%d", f.Line))
			ee.CreateAttr("severity", string(f.Severity))
			ee.CreateAttr("message", f.Message)
			ee.CreateAttr("source", f.RuleID)
		}
	}

	doc.Indent(2)
	_, err := doc.WriteTo(w)
	return err
}
