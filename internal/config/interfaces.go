package config

import "context"

// SecretProvider resolves secret references to plaintext values. For the
// file provider a reference is a file path.
type SecretProvider interface {
	// Resolve returns plaintext values keyed by reference. References that
	// cannot be found are omitted from the result.
	Resolve(ctx context.Context, refs []string) (map[string]string, error)
}
