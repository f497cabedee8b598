//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultsDomain = "com.ucportal.app"

// systemDomain is the machine-wide plist a lab admin manages with
// `sudo defaults write /Library/Preferences/com.ucportal.app ...`.
const systemDomain = "/Library/Preferences/" + defaultsDomain

func defaultDataDir() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, "Library", "Application Support", "ucportal")
	}
	return "ucportal-data"
}

func secretHint(account string) string {
	return fmt.Sprintf(" or macOS Keychain (service: %s, account: %s)", keychainService, account)
}

// runDefaults invokes the defaults tool.
var runDefaults = func(args ...string) ([]byte, error) {
	return exec.Command("defaults", args...).CombinedOutput()
}

// darwinBackend reads the user's defaults domain over the system plist and
// writes only the user domain.
type darwinBackend struct {
	domains []string
}

func newPlatformBackend() ConfigBackend {
	return &darwinBackend{domains: []string{defaultsDomain, systemDomain}}
}

func (b *darwinBackend) read(key string) (string, bool, error) {
	for _, d := range b.domains {
		out, err := runDefaults("read", d, key)
		s := strings.TrimSpace(string(out))
		if err == nil {
			return s, true, nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			continue // key or domain does not exist
		}
		return "", false, fmt.Errorf("defaults read %s %s: %w, output: %s", d, key, err, s)
	}
	return "", false, nil
}

// GetString returns the raw value; booleans written with -bool read back as
// 1 or 0, which strconv.ParseBool accepts.
func (b *darwinBackend) GetString(key string) (string, bool, error) {
	return b.read(key)
}

func (b *darwinBackend) GetInt(key string) (int, bool, error) {
	s, ok, err := b.read(key)
	if !ok || err != nil {
		return 0, ok, err
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, true, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return i, true, nil
}

func (b *darwinBackend) write(args ...string) error {
	out, err := runDefaults(args...)
	if err != nil {
		return fmt.Errorf("defaults %s: %w, output: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b *darwinBackend) SetString(key, val string) error {
	return b.write("write", b.domains[0], key, "-string", val)
}

func (b *darwinBackend) SetInt(key string, val int) error {
	return b.write("write", b.domains[0], key, "-int", strconv.Itoa(val))
}

func (b *darwinBackend) Delete(key string) error {
	return b.write("delete", b.domains[0], key)
}
