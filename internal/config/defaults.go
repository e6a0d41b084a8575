package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrExists is returned by WriteDefault when the target exists and force is off.
var ErrExists = errors.New("config already exists")

const defaultTemplate = `[provider]
name = "openai"
fallbacks = ["anthropic", "gemini", "local"]
default_model = "gpt-4.1"
temperature = 0.2
request_timeout_seconds = 30

[provider.role_models]
analyst = "gpt-4.1"
planner = "gpt-4.1-mini"
architect = "gpt-4.1"
implementer = "gpt-4.1"
tester = "gpt-4.1-mini"
security = "gpt-4.1"

[provider.role_fallback_models]
analyst = ["gpt-4.1-mini"]

[storage]
data_dir = %q
`

// DefaultText renders the document written by init.
func DefaultText() string {
	return fmt.Sprintf(defaultTemplate, filepath.ToSlash(UserStatePath()))
}

// WriteDefault writes DefaultText to path, creating parent directories.
func WriteDefault(path string, force bool) error {
	if exists(path) && !force {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(DefaultText()), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
