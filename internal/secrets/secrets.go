// Package secrets resolves credentials from inline values, files or the parameter store.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Getter fetches a named parameter. *paramstore.Client satisfies it.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Source describes where a secret may come from. The first non-empty of
// Value, File and Param wins.
type Source struct {
	Name  string
	Value string
	File  string
	Param string
}

// ErrMissing is returned when no source yields a value.
var ErrMissing = errors.New("secret not configured")

// Resolve returns the secret for src. getter may be nil when no parameter store is configured.
func Resolve(ctx context.Context, src Source, getter Getter) (string, error) {
	if v := strings.TrimSpace(src.Value); v != "" {
		return v, nil
	}
	if src.File != "" {
		data, err := os.ReadFile(src.File)
		if err != nil {
			return "", fmt.Errorf("read %s from file: %w", src.Name, err)
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			return v, nil
		}
		return "", fmt.Errorf("%s: file %s is empty", src.Name, src.File)
	}
	if src.Param != "" && getter != nil {
		v, err := getter.GetParameter(ctx, src.Param)
		if err != nil {
			return "", fmt.Errorf("fetch %s from parameter store: %w", src.Name, err)
		}
		if v = strings.TrimSpace(v); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%s: %w", src.Name, ErrMissing)
}
