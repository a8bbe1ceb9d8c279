package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// EnsureDeviceSecret returns the per-installation secret used to derive the
// vault sealing key, creating it on first run. The secret identifies the
// installation, not the user; rotating it discards any sealed credential.
func EnsureDeviceSecret(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}

	path := filepath.Join(dataDir, "device_id")
	if data, err := os.ReadFile(path); err == nil {
		secret := strings.TrimSpace(string(data))
		if secret != "" {
			return secret, nil
		}
	}

	secret := uuid.NewString()
	if err := os.WriteFile(path, []byte(secret+"\n"), 0600); err != nil {
		return "", fmt.Errorf("writing device secret: %w", err)
	}
	return secret, nil
}
