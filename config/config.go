// Package config implements the repository-identity configuration the
// Commit Writer reads committer/author identity from, stored as TOML at
// <repo>/config. Grounded on antgroup-hugescm's modules/zeta/config
// package: the User{Name,Email} shape and Overwrite merge convention
// come from config.go, and the atomic-rewrite-via-tempfile-then-rename
// discipline comes from encode.go's atomicEncode.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// User identifies who is making commits, matching the git "Name
// <email>" identity pair.
type User struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

func (u User) Empty() bool {
	return u.Name == "" || u.Email == ""
}

// Config is the repository's persisted configuration.
type Config struct {
	User User `toml:"user,omitempty"`
}

// Load reads <repoRoot>/config, returning a zero-value Config (not an
// error) if the file does not exist yet.
func Load(repoRoot string) (*Config, error) {
	var cfg Config
	path := filepath.Join(repoRoot, "config")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &cfg, nil
}

// Save atomically rewrites <repoRoot>/config via a tempfile-then-rename,
// so a crash mid-write never leaves a truncated config behind.
func Save(repoRoot string, cfg *Config) error {
	path := filepath.Join(repoRoot, "config")
	tmp := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := toml.NewEncoder(f)
	enc.Indent = ""
	if err := enc.Encode(cfg); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// DefaultIdentity falls back to the VOST_AUTHOR_NAME/VOST_AUTHOR_EMAIL
// environment variables, then to "vost@<hostname>" (or plain "vost" if
// the hostname is unavailable) with "<name>@localhost" as email, when the
// repository config carries no identity -- every commit must have a
// committer, so this guarantees one is always available.
func DefaultIdentity() User {
	name := os.Getenv("VOST_AUTHOR_NAME")
	email := os.Getenv("VOST_AUTHOR_EMAIL")
	if name == "" {
		if u, err := os.Hostname(); err == nil {
			name = "vost@" + u
		} else {
			name = "vost"
		}
	}
	if email == "" {
		email = name + "@localhost"
	}
	return User{Name: name, Email: email}
}

// Identity resolves the committer identity to use: the repository
// config's user if set, otherwise DefaultIdentity().
func (c *Config) Identity() User {
	if c != nil && !c.User.Empty() {
		return c.User
	}
	return DefaultIdentity()
}
