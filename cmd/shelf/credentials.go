package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
)

const credentialsFile = "credentials.json"

// credentials is the saved login of the device user.
type credentials struct {
	Token     string    `json:"access_token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func credentialsPath(dataDir string) string {
	return filepath.Join(dataDir, credentialsFile)
}

// loadCredentials reports ok=false when nobody is logged in.
func loadCredentials(dataDir string) (credentials, bool, error) {
	data, err := os.ReadFile(credentialsPath(dataDir))
	if errors.Is(err, os.ErrNotExist) {
		return credentials{}, false, nil
	}
	if err != nil {
		return credentials{}, false, fmt.Errorf("read credentials: %w", err)
	}
	var c credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return credentials{}, false, fmt.Errorf("decode credentials: %w", err)
	}
	if c.Token == "" {
		return credentials{}, false, nil
	}
	return c, true, nil
}

func saveCredentials(dataDir string, c credentials) error {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	path := credentialsPath(dataDir)
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	// atomic.WriteFile keeps the temp file's mode for new files.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod credentials: %w", err)
	}
	return nil
}

func clearCredentials(dataDir string) error {
	err := os.Remove(credentialsPath(dataDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}
