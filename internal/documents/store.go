// Package documents stores uploaded resumes and extracts their text.
package documents

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a document key does not exist.
var ErrNotFound = errors.New("document not found")

// Store persists raw document bytes under opaque keys.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// NewKey builds a storage key of the form "{owner}/{uuid}_{filename}".
// The owner is a user ID or a guest namespace.
func NewKey(owner, filename string) (string, error) {
	owner = strings.Trim(strings.TrimSpace(owner), "/")
	if owner == "" {
		return "", errors.New("documents: owner is required")
	}
	return fmt.Sprintf("%s/%s_%s", owner, uuid.NewString(), cleanFilename(filename)), nil
}

// cleanFilename keeps the base name of an uploaded file and replaces
// characters outside [A-Za-z0-9._-] with underscores.
func cleanFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "_" {
		return "resume"
	}
	return name
}

// validateKey rejects keys that could escape the store root.
func validateKey(key string) error {
	if key == "" {
		return errors.New("documents: key is required")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("documents: invalid key %q", key)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return fmt.Errorf("documents: invalid key %q", key)
		}
	}
	return nil
}
