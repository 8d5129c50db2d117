package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"wabot/pkg/config"
)

func TestResolveRootExpandsHomeAndCreatesDirectory(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)

	root, err := ResolveRoot("~/bot-state")
	if err != nil {
		t.Fatalf("ResolveRoot error: %v", err)
	}

	want, err := filepath.EvalSymlinks(filepath.Join(homeDir, "bot-state"))
	if err != nil {
		t.Fatalf("EvalSymlinks error: %v", err)
	}
	if root != want {
		t.Fatalf("ResolveRoot root = %q, want %q", root, want)
	}

	if info, statErr := os.Stat(root); statErr != nil || !info.IsDir() {
		t.Fatalf("state directory missing: %v", statErr)
	}
}

func TestResolveRootDefaultsUnderHome(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)

	root, err := ResolveRoot("  ")
	if err != nil {
		t.Fatalf("ResolveRoot error: %v", err)
	}
	if filepath.Base(root) != defaultStateDirName {
		t.Fatalf("ResolveRoot root = %q, want %s suffix", root, defaultStateDirName)
	}
}

func TestPath(t *testing.T) {
	dir := mustDir(t)
	absolute := filepath.Join(t.TempDir(), "elsewhere", "seen.db")

	tests := []struct {
		name     string
		input    string
		want     string
		category string
	}{
		{name: "relative", input: "data/seen.db", want: filepath.Join(dir.Root(), "data", "seen.db")},
		{name: "absolute", input: absolute, want: absolute},
		{name: "empty", input: "  ", category: ErrorInvalidPath},
		{name: "escape", input: "../escape.db", category: ErrorOutsideStateDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dir.Path(tt.input)
			if tt.category != "" {
				if CategoryFromError(err) != tt.category {
					t.Fatalf("Path(%q) category = %q, want %q", tt.input, CategoryFromError(err), tt.category)
				}
				return
			}
			if err != nil {
				t.Fatalf("Path(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("Path(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if info, err := os.Stat(filepath.Dir(got)); err != nil || !info.IsDir() {
				t.Fatalf("parent of %q not created: %v", got, err)
			}
		})
	}
}

func TestApplyStatePaths(t *testing.T) {
	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	cfg.Browser.UserDataDir = "profile"
	cfg.Dedupe.StorePath = "seen.db"

	dir, err := ApplyStatePaths(cfg)
	if err != nil {
		t.Fatalf("ApplyStatePaths error: %v", err)
	}

	if cfg.Browser.UserDataDir != filepath.Join(dir.Root(), "profile") {
		t.Fatalf("user data dir = %q", cfg.Browser.UserDataDir)
	}
	if cfg.Dedupe.StorePath != filepath.Join(dir.Root(), "seen.db") {
		t.Fatalf("store path = %q", cfg.Dedupe.StorePath)
	}
	if cfg.Logging.File != "" {
		t.Fatalf("empty log file rewritten to %q", cfg.Logging.File)
	}
}

func TestApplyStatePathsRejectsEscape(t *testing.T) {
	cfg := config.Default()
	cfg.StateDir = t.TempDir()
	cfg.Dedupe.StorePath = "../../seen.db"

	_, err := ApplyStatePaths(cfg)
	var categorized *Error
	if !errors.As(err, &categorized) || categorized.Category != ErrorOutsideStateDir {
		t.Fatalf("ApplyStatePaths error = %v, want %s", err, ErrorOutsideStateDir)
	}
}

func TestWrapFS(t *testing.T) {
	if err := wrapFS(nil, "x"); err != nil {
		t.Fatalf("wrapFS(nil) = %v", err)
	}

	_, statErr := os.Stat(filepath.Join(t.TempDir(), "missing"))
	err := wrapFS(statErr, "stat")
	if CategoryFromError(err) != ErrorPathNotFound {
		t.Fatalf("category = %q, want %q", CategoryFromError(err), ErrorPathNotFound)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("wrapFS lost the underlying error: %v", err)
	}
	if CategoryFromError(errors.New("plain")) != "" {
		t.Fatal("uncategorized error should have no category")
	}
}

func mustDir(t *testing.T) *Dir {
	t.Helper()

	dir, err := Resolve(t.TempDir())
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	return dir
}
