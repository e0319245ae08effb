// ABOUTME: Local CLI profile persisted as TOML in the user config directory
// ABOUTME: Remembers the server URL and last-used identifier between invocations

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Profile holds per-user CLI settings. Secrets never land here; the bearer
// token lives in the token database.
type Profile struct {
	ServerURL  string `toml:"server_url"`
	Identifier string `toml:"identifier"`
}

// profilePath returns the TOML profile location under the user config dir.
func profilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config directory: %w", err)
	}
	return filepath.Join(dir, "idfront", "profile.toml"), nil
}

// loadProfile reads the profile, returning an empty one when none exists.
func loadProfile() (*Profile, error) {
	path, err := profilePath()
	if err != nil {
		return nil, err
	}

	var p Profile
	if _, err := toml.DecodeFile(path, &p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Profile{}, nil
		}
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	return &p, nil
}

// saveProfile writes the profile, creating parent directories as needed.
func saveProfile(p *Profile) error {
	path, err := profilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating profile directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("writing profile: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(p); err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	return nil
}
