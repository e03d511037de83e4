package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arewefastyet/jsbuild/pkg/utils"
)

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()

	// absent path is fine
	if err := utils.RemoveIfExists(filepath.Join(dir, "missing")); err != nil {
		t.Fatalf("unexpected error for missing path: %v", err)
	}

	tree := filepath.Join(dir, "tree", "nested")
	if err := os.MkdirAll(tree, 0755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(tree, "file"), []byte("x"), 0644)

	if err := utils.RemoveIfExists(filepath.Join(dir, "tree")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if utils.Exists(filepath.Join(dir, "tree")) {
		t.Error("expected tree to be removed")
	}
}

func TestAppendLineIfMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".gclient")
	os.WriteFile(path, []byte("solutions = []"), 0644)

	changed, err := utils.AppendLineIfMissing(path, "target_os = ['android']")
	if err != nil || !changed {
		t.Fatalf("expected first append to modify file, changed=%v err=%v", changed, err)
	}

	changed, err = utils.AppendLineIfMissing(path, "target_os = ['android']")
	if err != nil || changed {
		t.Fatalf("expected second append to be a no-op, changed=%v err=%v", changed, err)
	}

	data, _ := os.ReadFile(path)
	if strings.Count(string(data), "target_os") != 1 {
		t.Errorf("expected exactly one marker, got %q", data)
	}
	if !strings.HasPrefix(string(data), "solutions = []\n") {
		t.Errorf("expected newline inserted before appended line, got %q", data)
	}
}

func TestIsFileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	os.WriteFile(file, nil, 0644)

	if !utils.IsFile(file) || utils.IsDirectory(file) {
		t.Error("file misclassified")
	}
	if utils.IsFile(dir) || !utils.IsDirectory(dir) {
		t.Error("directory misclassified")
	}
}
