package check

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"csslint/lint"
	"csslint/state"
)

func testContext() context.Context {
	return state.ContextWithEnv(context.Background())
}

func testLinter(t *testing.T) *lint.Linter {
	t.Helper()
	l, err := lint.NewLinter(lint.DefaultPolicy(), zap.NewNop())
	if err != nil {
		t.Fatalf("NewLinter() error = %v", err)
	}
	return l
}

func TestProcessFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "site.css")
	if err := os.WriteFile(path, []byte("header { color: red; }\n"), 0644); err != nil {
		t.Fatalf("Failed to write stylesheet: %v", err)
	}

	res := &results{}
	if err := processFile(testContext(), path, path, encUnknown, testLinter(t), res, zap.NewNop()); err != nil {
		t.Fatalf("processFile() error = %v", err)
	}

	if len(res.files) != 1 {
		t.Fatalf("got %d result files, want 1", len(res.files))
	}
	if res.files[0].Path != path {
		t.Errorf("result path = %s, want %s", res.files[0].Path, path)
	}
	findings := res.files[0].Findings
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	if findings[0].RuleID != lint.RulePreferClassSelector {
		t.Errorf("rule = %s, want %s", findings[0].RuleID, lint.RulePreferClassSelector)
	}
}

func TestProcessFile_Clean(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "clean.css")
	if err := os.WriteFile(path, []byte(".btn { margin: 0; color: red; }\n"), 0644); err != nil {
		t.Fatalf("Failed to write stylesheet: %v", err)
	}

	res := &results{}
	if err := processFile(testContext(), path, path, encUnknown, testLinter(t), res, zap.NewNop()); err != nil {
		t.Fatalf("processFile() error = %v", err)
	}
	if len(res.files) != 0 {
		t.Errorf("clean stylesheet produced %d result files, want 0", len(res.files))
	}
	if res.count() != 0 {
		t.Errorf("count() = %d, want 0", res.count())
	}
}

func TestProcessDir(t *testing.T) {
	tmpDir := t.TempDir()

	// file10 before file9 lexically but after naturally
	files := map[string]string{
		"style9.css":  "header { color: red; }\n",
		"style10.css": "footer { color: blue; }\n",
		"notes.txt":   "not css\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	res := &results{}
	if err := processDir(testContext(), tmpDir, testLinter(t), res, zap.NewNop()); err != nil {
		t.Fatalf("processDir() error = %v", err)
	}

	if len(res.files) != 2 {
		t.Fatalf("got %d result files, want 2", len(res.files))
	}
	if filepath.Base(res.files[0].Path) != "style9.css" {
		t.Errorf("first result = %s, want style9.css (natural order)", res.files[0].Path)
	}
	if filepath.Base(res.files[1].Path) != "style10.css" {
		t.Errorf("second result = %s, want style10.css (natural order)", res.files[1].Path)
	}
}

func TestProcessArchive(t *testing.T) {
	tmpDir := t.TempDir()
	zipPath := filepath.Join(tmpDir, "styles.zip")

	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip: %v", err)
	}
	w := zip.NewWriter(zipFile)
	entries := []struct{ name, content string }{
		{"web/site.css", "header { color: red; }\n"},
		{"web/clean.css", ".btn { color: red; }\n"},
		{"other/readme.txt", "text\n"},
	}
	for _, e := range entries {
		fw, err := w.Create(e.name)
		if err != nil {
			t.Fatalf("Failed to create %s: %v", e.name, err)
		}
		fw.Write([]byte(e.content))
	}
	w.Close()
	zipFile.Close()

	t.Run("whole archive", func(t *testing.T) {
		res := &results{}
		if err := processArchive(testContext(), zipPath, "", testLinter(t), res, zap.NewNop()); err != nil {
			t.Fatalf("processArchive() error = %v", err)
		}
		if len(res.files) != 1 {
			t.Fatalf("got %d result files, want 1", len(res.files))
		}
		if filepath.Base(res.files[0].Path) != "site.css" {
			t.Errorf("result = %s, want site.css", res.files[0].Path)
		}
	})

	t.Run("path inside archive", func(t *testing.T) {
		res := &results{}
		if err := processArchive(testContext(), zipPath, "other/", testLinter(t), res, zap.NewNop()); err != nil {
			t.Fatalf("processArchive() error = %v", err)
		}
		if len(res.files) != 0 {
			t.Errorf("got %d result files, want 0", len(res.files))
		}
	})
}

func TestProcess(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("single file", func(t *testing.T) {
		path := filepath.Join(tmpDir, "one.css")
		if err := os.WriteFile(path, []byte("header { color: red; }\n"), 0644); err != nil {
			t.Fatalf("Failed to write stylesheet: %v", err)
		}
		res := &results{}
		if err := process(testContext(), path, testLinter(t), res, zap.NewNop()); err != nil {
			t.Fatalf("process() error = %v", err)
		}
		if res.count() != 1 {
			t.Errorf("count() = %d, want 1", res.count())
		}
	})

	t.Run("missing source", func(t *testing.T) {
		res := &results{}
		err := process(testContext(), filepath.Join(tmpDir, "nonexistent", "x.css"), testLinter(t), res, zap.NewNop())
		if err == nil {
			t.Error("expected error for missing source")
		}
	})

	t.Run("not a stylesheet", func(t *testing.T) {
		path := filepath.Join(tmpDir, "plain.txt")
		if err := os.WriteFile(path, []byte("text\n"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}
		res := &results{}
		if err := process(testContext(), path, testLinter(t), res, zap.NewNop()); err == nil {
			t.Error("expected error for non-stylesheet input")
		}
	})

	t.Run("archive with inner path", func(t *testing.T) {
		zipPath := filepath.Join(tmpDir, "inner.zip")
		zipFile, err := os.Create(zipPath)
		if err != nil {
			t.Fatalf("Failed to create zip: %v", err)
		}
		w := zip.NewWriter(zipFile)
		fw, err := w.Create("web/site.css")
		if err != nil {
			t.Fatalf("Failed to create entry: %v", err)
		}
		fw.Write([]byte("header { color: red; }\n"))
		w.Close()
		zipFile.Close()

		res := &results{}
		if err := process(testContext(), filepath.Join(zipPath, "web"), testLinter(t), res, zap.NewNop()); err != nil {
			t.Fatalf("process() error = %v", err)
		}
		if res.count() != 1 {
			t.Errorf("count() = %d, want 1", res.count())
		}
	})
}

func TestResults(t *testing.T) {
	res := &results{}
	res.add("a.css", nil)
	if len(res.files) != 0 {
		t.Error("empty findings must not be recorded")
	}

	res.add("b.css", []lint.Finding{{RuleID: lint.RuleSyntax, Line: 1}})
	res.add("c.css", []lint.Finding{{RuleID: lint.RuleDeclarationOrder, Line: 2}, {RuleID: lint.RuleFontFaceFirst, Line: 3}})
	if len(res.files) != 2 {
		t.Errorf("got %d files, want 2", len(res.files))
	}
	if res.count() != 3 {
		t.Errorf("count() = %d, want 3", res.count())
	}
}
