package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"imghost/internal/client"
)

const (
	configDir    = ".imghost" // in the user's home directory
	baseURLFile  = "base_url"
	tokenFile    = "token"
	defaultURL   = "http://localhost:8787"
	envClientURL = "IMGHOST_URL"
	envToken     = "IMGHOST_TOKEN"
)

// Profile is the on-disk client configuration in a single directory.
type Profile struct {
	Dir string
}

// DefaultProfile returns the profile in ~/.imghost.
func DefaultProfile() (Profile, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Profile{}, err
	}
	return Profile{Dir: filepath.Join(home, configDir)}, nil
}

// LoadClient builds the client configuration from the default profile.
// IMGHOST_URL and IMGHOST_TOKEN take precedence over the files.
func LoadClient() (client.Config, error) {
	p, err := DefaultProfile()
	if err != nil {
		return client.Config{}, err
	}
	return p.Load()
}

// Load reads the profile, applying environment overrides.
func (p Profile) Load() (client.Config, error) {
	baseURL, err := p.read(baseURLFile)
	if err != nil {
		return client.Config{}, err
	}
	if env := os.Getenv(envClientURL); env != "" {
		baseURL = env
	}
	if baseURL == "" {
		baseURL = defaultURL
	}
	baseURL, err = normalizeURL(baseURL)
	if err != nil {
		return client.Config{}, err
	}

	token, err := p.read(tokenFile)
	if err != nil {
		return client.Config{}, err
	}
	if env := os.Getenv(envToken); env != "" {
		token = env
	}
	return client.Config{BaseURL: baseURL, Token: token}, nil
}

// SaveToken stores the credential sent with every request.
func (p Profile) SaveToken(token string) error {
	return p.write(tokenFile, token)
}

// RemoveToken forgets the stored credential.
func (p Profile) RemoveToken() error {
	err := os.Remove(filepath.Join(p.Dir, tokenFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// SaveBaseURL stores the server address.
func (p Profile) SaveBaseURL(raw string) error {
	u, err := normalizeURL(raw)
	if err != nil {
		return err
	}
	return p.write(baseURLFile, u)
}

func (p Profile) read(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(p.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (p Profile) write(name, value string) error {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(p.Dir, name), []byte(value+"\n"), 0o600)
}

func normalizeURL(raw string) (string, error) {
	s := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	if _, err := url.ParseRequestURI(s); err != nil {
		return "", fmt.Errorf("config: invalid server URL %q: %w", raw, err)
	}
	return s, nil
}
