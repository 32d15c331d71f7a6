// Package filter provides reusable item filtering logic, shared by the CLI
// listing commands and the interactive browser's search.
package filter

import (
	"path/filepath"
	"strings"

	"github.com/studious-lms/studious-files/internal/services"
)

// Config holds filter configuration.
type Config struct {
	// Include patterns (glob-style). Empty means include all.
	// Example: []string{"*.pdf", "*.docx"}
	Include []string

	// Exclude patterns (glob-style). Takes precedence over Include.
	Exclude []string

	// Search terms (case-insensitive substring match).
	// An item must match ALL search terms to be included.
	Search []string

	// FoldersOnly keeps only folders.
	FoldersOnly bool
}

// Apply filters a slice of items. A search with no matches yields an empty
// (non-nil) slice, which frontends render as the empty state.
func Apply(items []services.FileItem, config Config) []services.FileItem {
	filtered := make([]services.FileItem, 0, len(items))
	for _, item := range items {
		if matches(item, config) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func matches(item services.FileItem, config Config) bool {
	if config.FoldersOnly && !item.IsFolder() {
		return false
	}

	for _, pattern := range config.Exclude {
		if ok, _ := filepath.Match(pattern, item.Name); ok {
			return false
		}
	}

	if len(config.Include) > 0 {
		included := false
		for _, pattern := range config.Include {
			if ok, _ := filepath.Match(pattern, item.Name); ok {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	name := strings.ToLower(item.Name)
	for _, term := range config.Search {
		if !strings.Contains(name, strings.ToLower(term)) {
			return false
		}
	}
	return true
}
