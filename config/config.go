// Package config loads the portal credentials and settings for bwcheck.
//
// A config file is TOML:
//
//	username = "jdoe"
//	password = "hunter2"
//
//	[portal]
//	login_url = "https://login.example.net/login"
//	usage_url = "https://customer.example.net/apis/usage"
//
// Files ending in .json or .hujson are read as JSON, with comments and
// trailing commas allowed. The password may be left out of the file, in
// which case it is read from the system keyring (see StorePassword).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/tailscale/hujson"
	"github.com/zalando/go-keyring"
	"kr.dev/errorfmt"

	"bwcheck.dev/envknobs"
)

// Default portal endpoints.
const (
	DefaultLoginURL = "https://login.xfinity.com/login"
	DefaultUsageURL = "https://customer.xfinity.com/apis/services/internet/usage"
)

// KeyringService is the keyring service name passwords are stored under,
// keyed by username.
const KeyringService = "bwcheck.portal"

var ErrMissingCredentials = errors.New("missing username or password in config file")

type Config struct {
	Username string `toml:"username" json:"username"`
	Password string `toml:"password" json:"password"`
	Portal   Portal `toml:"portal" json:"portal"`

	// PasswordSource is "config" or "keyring".
	PasswordSource string `toml:"-" json:"-"`
}

type Portal struct {
	LoginURL string `toml:"login_url" json:"login_url"`
	UsageURL string `toml:"usage_url" json:"usage_url"`
}

// Read reads the config file name without checking credentials. Portal URLs
// missing from the file are taken from the environment, then from the
// defaults.
//
// If the file cannot be read, the error wraps the underlying os error.
func Read(name string) (*Config, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	c := new(Config)
	if err := decode(name, data, c); err != nil {
		return nil, err
	}
	maybeSet(&c.Portal.LoginURL, envknobs.LoginURL(), DefaultLoginURL)
	maybeSet(&c.Portal.UsageURL, envknobs.UsageURL(), DefaultUsageURL)
	return c, nil
}

// Load is like Read but also requires a username and password. A password
// missing from the file is looked up in the keyring.
//
// If no username is set, or no password is set and none is in the keyring,
// Load returns ErrMissingCredentials.
func Load(name string) (*Config, error) {
	c, err := Read(name)
	if err != nil {
		return nil, err
	}
	if c.Username == "" {
		return nil, ErrMissingCredentials
	}

	c.PasswordSource = "config"
	if c.Password == "" {
		c.Password, err = keyring.Get(KeyringService, c.Username)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrMissingCredentials
		}
		if err != nil {
			return nil, fmt.Errorf("keyring: %w", err)
		}
		c.PasswordSource = "keyring"
	}
	return c, nil
}

func decode(name string, data []byte, c *Config) (err error) {
	defer errorfmt.Handlef("%s: %w", name, &err)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".hujson":
		v, err := hujson.Parse(data)
		if err != nil {
			return err
		}
		v.Standardize()
		return json.Unmarshal(v.Pack(), c)
	default:
		_, err := toml.Decode(string(data), c)
		return err
	}
}

// StorePassword saves the password for username in the system keyring, where
// Load finds it when a config file has no password.
func StorePassword(username, password string) error {
	if username == "" || password == "" {
		return ErrMissingCredentials
	}
	return keyring.Set(KeyringService, username, password)
}

// maybeSet sets *v to the first non-empty of its current value and vals.
func maybeSet(v *string, vals ...string) {
	for _, s := range vals {
		if *v != "" {
			return
		}
		*v = s
	}
}
