// Package security keeps store paths inside their configured roots.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// JoinWithin joins elem onto base and rejects results that escape base.
// The check is lexical so it works for in-memory filesystems too; track
// folder names can come from user renames and must not climb out of the
// tracks directory.
func JoinWithin(base string, elem ...string) (string, error) {
	joined := filepath.Join(append([]string{base}, elem...)...)
	if err := within(filepath.Clean(base), joined); err != nil {
		return "", err
	}
	return joined, nil
}

// ValidatePathWithinDirectory resolves both paths to absolute form and
// returns an error when filePath lies outside safeDir.
func ValidatePathWithinDirectory(filePath, safeDir string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	absSafeDir, err := filepath.Abs(safeDir)
	if err != nil {
		return fmt.Errorf("failed to resolve safe directory path: %w", err)
	}
	return within(absSafeDir, absPath)
}

func within(root, path string) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return fmt.Errorf("path is outside safe directory: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("path traversal detected: %s attempts to escape %s", path, root)
	}
	return nil
}
