package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func globInput(t *testing.T, in GlobInput) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal input: %v", err)
	}
	return b
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestGlobToolProperties(t *testing.T) {
	gt := NewGlobTool(t.TempDir())

	if gt.ID() != "glob" {
		t.Errorf("expected ID %q, got %q", "glob", gt.ID())
	}
	var schema map[string]any
	if err := json.Unmarshal(gt.Parameters(), &schema); err != nil {
		t.Fatalf("parameters are not valid JSON: %v", err)
	}
}

func TestGlobToolMatchesRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.go"), "package a")
	writeFile(t, filepath.Join(dir, "sub", "b.go"), "package b")
	writeFile(t, filepath.Join(dir, "c.txt"), "text")
	if err := os.MkdirAll(filepath.Join(dir, "dir.go"), 0o755); err != nil {
		t.Fatal(err)
	}

	gt := NewGlobTool(dir)
	res, err := gt.Execute(context.Background(), globInput(t, GlobInput{Pattern: "**/*.go"}), testContext())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if res.Metadata["count"] != 2 {
		t.Errorf("expected 2 matches, got %v", res.Metadata["count"])
	}
	if !strings.Contains(res.Output, filepath.Join(dir, "a.go")) {
		t.Errorf("a.go missing from output: %q", res.Output)
	}
	if !strings.Contains(res.Output, filepath.Join(dir, "sub", "b.go")) {
		t.Errorf("sub/b.go missing from output: %q", res.Output)
	}
	if strings.Contains(res.Output, "c.txt") {
		t.Errorf("c.txt should not match: %q", res.Output)
	}
	if strings.Contains(res.Output, "dir.go") {
		t.Errorf("directories should not match: %q", res.Output)
	}
}

func TestGlobToolNoMatches(t *testing.T) {
	gt := NewGlobTool(t.TempDir())

	res, err := gt.Execute(context.Background(), globInput(t, GlobInput{Pattern: "*.rs"}), testContext())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if res.Output != "No files matched the pattern" {
		t.Errorf("unexpected output: %q", res.Output)
	}
	if res.Metadata["count"] != 0 {
		t.Errorf("expected count 0, got %v", res.Metadata["count"])
	}
}

func TestGlobToolNewestFirst(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "old.go"), "package old")
	writeFile(t, filepath.Join(dir, "new.go"), "package new")

	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(dir, "old.go"), past, past); err != nil {
		t.Fatal(err)
	}

	gt := NewGlobTool(dir)
	res, err := gt.Execute(context.Background(), globInput(t, GlobInput{Pattern: "*.go"}), testContext())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	newIdx := strings.Index(res.Output, "new.go")
	oldIdx := strings.Index(res.Output, "old.go")
	if newIdx < 0 || oldIdx < 0 {
		t.Fatalf("missing matches in output: %q", res.Output)
	}
	if newIdx > oldIdx {
		t.Errorf("expected newest first: %q", res.Output)
	}
}

func TestGlobToolTruncatesResults(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < maxGlobResults+10; i++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("f%03d.txt", i)), "x")
	}

	gt := NewGlobTool(dir)
	res, err := gt.Execute(context.Background(), globInput(t, GlobInput{Pattern: "*.txt"}), testContext())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if res.Metadata["count"] != maxGlobResults {
		t.Errorf("expected %d matches after truncation, got %v", maxGlobResults, res.Metadata["count"])
	}
	if res.Metadata["truncated"] != true {
		t.Errorf("expected truncated metadata, got %v", res.Metadata["truncated"])
	}
	if !strings.Contains(res.Output, "most recently modified matches") {
		t.Error("expected truncation note in output")
	}
}

func TestGlobToolInvalidPattern(t *testing.T) {
	gt := NewGlobTool(t.TempDir())

	if _, err := gt.Execute(context.Background(), globInput(t, GlobInput{Pattern: "["}), testContext()); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestGlobToolMissingPattern(t *testing.T) {
	gt := NewGlobTool(t.TempDir())

	if _, err := gt.Execute(context.Background(), json.RawMessage(`{}`), testContext()); err == nil {
		t.Error("expected error for missing pattern")
	}
}

func TestGlobToolSearchPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.go"), "package top")
	writeFile(t, filepath.Join(dir, "sub", "inner.go"), "package inner")

	gt := NewGlobTool(dir)
	res, err := gt.Execute(context.Background(),
		globInput(t, GlobInput{Pattern: "*.go", Path: "sub"}), testContext())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if res.Metadata["count"] != 1 {
		t.Errorf("expected 1 match under sub, got %v", res.Metadata["count"])
	}
	if !strings.Contains(res.Output, "inner.go") || strings.Contains(res.Output, "top.go") {
		t.Errorf("relative path not honored: %q", res.Output)
	}
}

func TestGlobToolContextWorkDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "here.go"), "package here")

	gt := NewGlobTool(t.TempDir())
	toolCtx := testContext()
	toolCtx.WorkDir = dir

	res, err := gt.Execute(context.Background(), globInput(t, GlobInput{Pattern: "*.go"}), toolCtx)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Metadata["count"] != 1 {
		t.Errorf("context workdir not honored, got %v matches", res.Metadata["count"])
	}
}
