package errors

import (
	"strings"
	"unicode"
)

// ValidateEntityName validates a fully-qualified entity name for safety and
// correctness before it is interpolated into catalog requests.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters or null bytes
//   - No path traversal sequences
//   - Maximum length of 512 characters
//
// Catalog-specific naming rules (quoting of dotted segments, reserved
// characters) are the catalog's concern and validated server-side.
func ValidateEntityName(fqn string) error {
	if fqn == "" {
		return New(ErrCodeInvalidEntity, "entity name cannot be empty")
	}

	if len(fqn) > 512 {
		return New(ErrCodeInvalidEntity, "entity name too long (max 512 characters)")
	}

	for _, r := range fqn {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidEntity, "entity name contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash
	}
	for _, pattern := range dangerousPatterns {
		if strings.Contains(fqn, pattern) {
			return New(ErrCodeInvalidEntity, "entity name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateDirection validates a lineage direction string.
func ValidateDirection(dir string) error {
	if dir != "upstream" && dir != "downstream" {
		return New(ErrCodeInvalidDirection, "direction must be %q or %q, got %q", "upstream", "downstream", dir)
	}
	return nil
}

// ValidateDepth validates a traversal depth for a directional fetch.
// Depth 0 means "do not traverse"; negative depths are rejected, and an
// upper bound keeps a single request from walking the whole catalog.
func ValidateDepth(depth int) error {
	const maxDepth = 10
	if depth < 0 {
		return New(ErrCodeInvalidDepth, "depth cannot be negative")
	}
	if depth > maxDepth {
		return New(ErrCodeInvalidDepth, "depth too large (max %d)", maxDepth)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
