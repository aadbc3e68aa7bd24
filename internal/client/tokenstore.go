package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Credentials is the persisted client session.
type Credentials struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
}

// TokenStore keeps Credentials in token.json under a private directory.
type TokenStore struct {
	dir string
}

// DefaultDir is $XDG_CONFIG_HOME/profilekeeper, falling back to ~/.config/profilekeeper.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "profilekeeper")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "profilekeeper")
}

// NewTokenStore stores credentials under dir; empty dir means DefaultDir.
func NewTokenStore(dir string) *TokenStore {
	if dir == "" {
		dir = DefaultDir()
	}
	return &TokenStore{dir: dir}
}

// Path is the token file location.
func (s *TokenStore) Path() string { return filepath.Join(s.dir, "token.json") }

// Save replaces the stored credentials atomically with mode 0600.
func (s *TokenStore) Save(c Credentials) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "token-*.json")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path())
}

// Load returns the stored credentials. A missing file yields an error matching fs.ErrNotExist.
func (s *TokenStore) Load() (Credentials, error) {
	b, err := os.ReadFile(s.Path())
	if err != nil {
		return Credentials{}, err
	}
	var c Credentials
	if err := json.Unmarshal(b, &c); err != nil {
		return Credentials{}, fmt.Errorf("decode %s: %w", s.Path(), err)
	}
	return c, nil
}

// Clear removes the stored credentials; a missing file is not an error.
func (s *TokenStore) Clear() error {
	if err := os.Remove(s.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// token returns the stored access token, or "" when none is usable.
func (s *TokenStore) token() string {
	c, err := s.Load()
	if err != nil || time.Now().After(c.ExpiresAt) {
		return ""
	}
	return c.AccessToken
}
