package config

import (
	"os"
	"path/filepath"
)

// KopiPath returns the root directory for Kopi data.
// It uses $KOPI_PATH if set, otherwise defaults to ~/.kopi.
func KopiPath() string {
	if v := os.Getenv("KOPI_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".kopi")
	}
	return filepath.Join(home, ".kopi")
}

// ConfigPath returns the path to the Kopi config file.
func ConfigPath() string {
	return filepath.Join(KopiPath(), "config.jsonc")
}

// DotenvPath returns the path to the Kopi .env file.
func DotenvPath() string {
	return filepath.Join(KopiPath(), ".env")
}
