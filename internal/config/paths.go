package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// AppName names the XDG subdirectories.
	AppName = "starray"

	// EnvConfig overrides config path discovery.
	EnvConfig = "STARRAY_CONFIG"

	// Filename is the default config document name.
	Filename = "starray.toml"
)

// ResolvePath picks the config document to read.
// Order: explicit path, $STARRAY_CONFIG, user config if present, project config if present, user config.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return ExpandTilde(explicit)
	}
	if fromEnv := os.Getenv(EnvConfig); fromEnv != "" {
		return ExpandTilde(fromEnv)
	}

	user := UserConfigPath()
	if exists(user) {
		return user
	}
	if project := ProjectConfigPath(); exists(project) {
		return project
	}
	return user
}

// ResolveInitPath picks where init writes the default document.
func ResolveInitPath(explicit string) string {
	if explicit != "" {
		return ExpandTilde(explicit)
	}
	if fromEnv := os.Getenv(EnvConfig); fromEnv != "" {
		return ExpandTilde(fromEnv)
	}
	return UserConfigPath()
}

// UserConfigPath is $XDG_CONFIG_HOME/starray/starray.toml.
func UserConfigPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), AppName, Filename)
}

// UserStatePath is $XDG_STATE_HOME/starray.
func UserStatePath() string {
	return filepath.Join(xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state")), AppName)
}

// ProjectConfigPath is the repository-local config document.
func ProjectConfigPath() string {
	return filepath.Join("configs", Filename)
}

// ExpandTilde replaces a leading ~ with the home directory.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func xdgDir(envName, homeRelative string) string {
	if dir := os.Getenv(envName); dir != "" {
		return ExpandTilde(dir)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return homeRelative
	}
	return filepath.Join(home, homeRelative)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
