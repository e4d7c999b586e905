// Package envknobs reads the environment variables that tune bwcheck.
package envknobs

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

func ConfigFile() string { return env("BWCHECK_CONFIG_FILE", "config.toml") }
func LoginURL() string   { return env("BWCHECK_LOGIN_URL", "") }
func UsageURL() string   { return env("BWCHECK_USAGE_URL", "") }

// Debug reports whether very verbose output was requested.
func Debug() bool {
	v, _ := strconv.ParseBool(os.Getenv("BWCHECK_DEBUG"))
	return v
}

// Load adds the variables in the named dotenv files to the environment.
// Variables already set are left alone, and files that do not exist are
// skipped.
func Load(names ...string) error {
	for _, name := range names {
		err := godotenv.Load(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func env(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
