package indexer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/justin13888/beam/internal/apperr"
)

// ValidateLibraryPath resolves a requested library root against the
// configured videos root and confirms it canonicalizes to a descendant of
// it. Relative paths are resolved against videosRoot. Returns the
// canonical absolute path to persist.
func ValidateLibraryPath(videosRoot, requested string) (string, error) {
	if videosRoot == "" {
		return "", fmt.Errorf("videos root not configured: %w", apperr.ErrValidation)
	}
	if requested == "" {
		return "", fmt.Errorf("library path is empty: %w", apperr.ErrValidation)
	}

	root, err := filepath.EvalSymlinks(videosRoot)
	if err != nil {
		return "", fmt.Errorf("videos root %s: %w", videosRoot, apperr.ErrPathNotFound)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("videos root %s: %w", videosRoot, apperr.ErrValidation)
	}

	target := requested
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target, err = filepath.EvalSymlinks(target)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("library path %s: %w", requested, apperr.ErrPathNotFound)
		}
		return "", fmt.Errorf("library path %s: %w", requested, apperr.ErrValidation)
	}
	target, err = filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("library path %s: %w", requested, apperr.ErrValidation)
	}

	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("library path %s is not a directory: %w", requested, apperr.ErrPathNotFound)
	}

	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("library path %s escapes the videos root: %w", requested, apperr.ErrValidation)
	}
	return target, nil
}
