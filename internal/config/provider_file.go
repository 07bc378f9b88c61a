package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// FileProvider implements SecretProvider by reading mounted secret files
// (Docker and Kubernetes secrets). Trailing newlines are trimmed.
type FileProvider struct {
	readFile func(name string) ([]byte, error)
}

// NewFileProvider creates a new FileProvider.
func NewFileProvider() *FileProvider {
	return &FileProvider{readFile: os.ReadFile}
}

// Resolve reads each path. Missing files are omitted; other read errors fail
// the whole batch.
func (p *FileProvider) Resolve(ctx context.Context, refs []string) (map[string]string, error) {
	result := make(map[string]string, len(refs))
	for _, path := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := p.readFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read secret %s: %w", path, err)
		}
		result[path] = strings.TrimRight(string(data), "\r\n")
	}
	return result, nil
}
