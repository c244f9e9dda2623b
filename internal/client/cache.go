package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/passman-project/passman/internal/api"
)

// The sealed auth bundle is cached locally so login does not depend on the
// server: auth material is self-readable only, and the session needed to
// read it requires the private key hidden inside it. The cache holds only
// ciphertext and public parameters.

func cacheDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	dir := filepath.Join(base, "passman")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}

func cachePath(userID uuid.UUID) (string, error) {
	dir, err := cacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, userID.String()+".json"), nil
}

// SaveAuth stores the sealed auth bundle for userID.
func SaveAuth(userID uuid.UUID, auth api.UserAuth) error {
	path, err := cachePath(userID)
	if err != nil {
		return err
	}
	buf, err := json.Marshal(auth)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o600)
}

// LoadAuth reads the cached sealed auth bundle for userID.
func LoadAuth(userID uuid.UUID) (api.UserAuth, error) {
	var auth api.UserAuth
	path, err := cachePath(userID)
	if err != nil {
		return auth, err
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return auth, fmt.Errorf("no cached auth material for %s (register or copy it first): %w", userID, err)
	}
	if err := json.Unmarshal(buf, &auth); err != nil {
		return auth, fmt.Errorf("corrupt auth cache for %s: %w", userID, err)
	}
	return auth, nil
}
