package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"wabot/pkg/config"
)

const defaultStateDirName = ".wabot"

// Dir is the resolved state directory that holds the browser profile, the
// seen-message store and log files.
type Dir struct {
	rootPath string
}

// Resolve normalizes a state directory path and creates it when missing.
// An empty path selects ~/.wabot.
func Resolve(statePath string) (*Dir, error) {
	root, err := ResolveRoot(statePath)
	if err != nil {
		return nil, err
	}
	return &Dir{rootPath: root}, nil
}

// ResolveRoot normalizes state directory input and creates it when missing.
func ResolveRoot(statePath string) (string, error) {
	trimmed := strings.TrimSpace(statePath)
	if trimmed == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(homeDir, defaultStateDirName)
	}

	expanded, err := expandHome(trimmed)
	if err != nil {
		return "", err
	}

	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve absolute state path: %w", err)
	}

	cleanPath := filepath.Clean(absPath)
	if err := os.MkdirAll(cleanPath, 0o755); err != nil {
		return "", wrapFS(err, "create state directory")
	}

	resolved, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		return "", wrapFS(err, "resolve state directory")
	}

	return filepath.Clean(resolved), nil
}

// Root returns the absolute state directory path.
func (d *Dir) Root() string {
	if d == nil {
		return ""
	}

	return d.rootPath
}

// Path resolves a configured location. Relative paths live under the state
// directory and may not escape it; absolute and ~ paths are used as given.
// The parent directory is created so the caller can open the file.
func (d *Dir) Path(inputPath string) (string, error) {
	if d == nil {
		return "", newError(ErrorIO, "state directory is nil")
	}

	trimmed := strings.TrimSpace(inputPath)
	if trimmed == "" {
		return "", newError(ErrorInvalidPath, "path must not be empty")
	}

	expanded, err := expandHome(trimmed)
	if err != nil {
		return "", err
	}

	candidate := expanded
	relative := !filepath.IsAbs(candidate)
	if relative {
		candidate = filepath.Join(d.rootPath, candidate)
	}

	cleanPath := filepath.Clean(candidate)
	if relative && !isWithin(d.rootPath, cleanPath) {
		return "", newError(ErrorOutsideStateDir, "relative path escapes state directory")
	}

	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return "", wrapFS(err, "create parent directory")
	}

	return cleanPath, nil
}

// ApplyStatePaths rewrites the file locations in cfg against its state
// directory. Empty locations stay empty.
func ApplyStatePaths(cfg *config.Config) (*Dir, error) {
	dir, err := Resolve(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	targets := []struct {
		name  string
		value *string
	}{
		{name: "browser.user_data_dir", value: &cfg.Browser.UserDataDir},
		{name: "dedupe.store_path", value: &cfg.Dedupe.StorePath},
		{name: "logging.file", value: &cfg.Logging.File},
	}

	for _, target := range targets {
		if strings.TrimSpace(*target.value) == "" {
			continue
		}
		resolved, err := dir.Path(*target.value)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", target.name, err)
		}
		*target.value = resolved
	}

	return dir, nil
}

func expandHome(path string) (string, error) {
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}

	prefix := "~" + string(filepath.Separator)
	if strings.HasPrefix(path, prefix) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, prefix)), nil
	}

	return path, nil
}

func isWithin(root string, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." {
		return false
	}
	if strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}

	return !filepath.IsAbs(rel)
}
