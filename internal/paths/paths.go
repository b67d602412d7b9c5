package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// RepoConfigDir is the per-repository configuration directory
	RepoConfigDir = ".gitpack"
	// HistoryDBName is the build history database file name
	HistoryDBName = "history.db"
)

// GetGlobalDir returns ~/.gitpack, creating nothing.
func GetGlobalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".gitpack"), nil
}

// GetUserConfigDir returns the user-level config directory (~/.config/gitpack).
func GetUserConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "gitpack"), nil
}

// GetHistoryDBPath returns the default path of the build history database.
func GetHistoryDBPath() (string, error) {
	dir, err := GetGlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, HistoryDBName), nil
}

// EnsureDir creates dir and its parents if needed and returns it.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// DefaultPackHome resolves the sandbox home directory:
// explicit value, then $HOMEPACK, then ~/pack.
func DefaultPackHome(explicit string) string {
	if explicit != "" {
		return ExpandHome(explicit)
	}
	if env := os.Getenv("HOMEPACK"); env != "" {
		return ExpandHome(env)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "pack"
	}
	return filepath.Join(home, "pack")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// NormalizePath converts backslashes to forward slashes.
func NormalizePath(path string) string {
	return filepath.ToSlash(path)
}

// JoinRepoPath joins root with a slash-separated relative path.
func JoinRepoPath(root string, relPath string) string {
	normalizedPath := strings.ReplaceAll(relPath, "\\", "/")
	parts := strings.Split(normalizedPath, "/")
	return filepath.Join(append([]string{root}, parts...)...)
}

// SafeJoin is JoinRepoPath that refuses absolute paths and paths escaping root.
func SafeJoin(root string, relPath string) (string, error) {
	if relPath == "" || filepath.IsAbs(relPath) || strings.HasPrefix(relPath, "/") {
		return "", fmt.Errorf("path %q is not relative", relPath)
	}
	joined := JoinRepoPath(root, relPath)
	rel, err := filepath.Rel(filepath.Clean(root), joined)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes %s", relPath, root)
	}
	return joined, nil
}
