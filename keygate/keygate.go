// Package keygate decides whether image generation may proceed. Paid image
// models need an explicitly selected API key; the host environment supplies
// that capability, and when no host is present the gate is open.
package keygate

import (
	"context"
	"fmt"
)

// Host is the optional key-selection capability of the environment
type Host interface {
	// HasSelectedAPIKey reports whether a key is currently selected
	HasSelectedAPIKey(ctx context.Context) (bool, error)
	// OpenSelectKey asks the user to pick or enter a key
	OpenSelectKey(ctx context.Context) error
}

// EnsureKeySelected returns true when generation may proceed. With a nil host
// it always does. Otherwise the host is asked once, the selector is opened if
// needed, and the answer of the second check is final.
func EnsureKeySelected(ctx context.Context, host Host) (bool, error) {
	if host == nil {
		return true, nil
	}

	ok, err := host.HasSelectedAPIKey(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check key selection: %w", err)
	}
	if ok {
		return true, nil
	}

	if err := host.OpenSelectKey(ctx); err != nil {
		return false, fmt.Errorf("key selection failed: %w", err)
	}

	ok, err = host.HasSelectedAPIKey(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check key selection: %w", err)
	}
	return ok, nil
}
