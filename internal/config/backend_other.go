//go:build !darwin

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
)

// systemConfigPath is the lab-wide file a site admin maintains on a shared
// jump host. UCP_SYSTEM_CONFIG points elsewhere.
const systemConfigPath = "/etc/ucportal/config.json"

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "ucportal")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "ucportal")
	}
	return "ucportal-data"
}

func secretHint(account string) string {
	return fmt.Sprintf(" or %s (%s.%s)", secretsFilePath(), keychainService, account)
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "ucportal", "config.json")
}

// fileLayer is one flat JSON object of config keys.
type fileLayer struct {
	path string
	data map[string]any
}

func readLayer(path string) fileLayer {
	l := fileLayer{path: path, data: make(map[string]any)}
	if path == "" {
		return l
	}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		fmt.Fprintf(os.Stderr, "[WARN] could not read config file %s: %v. Ignoring it.\n", path, err)
	default:
		if err := json.Unmarshal(raw, &l.data); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config file %s: %v. Ignoring it.\n", path, err)
			l.data = make(map[string]any)
		}
	}
	return l
}

// fileBackend reads the user file over the system file, key by key, and
// writes only to the user file.
type fileBackend struct {
	user   fileLayer
	system fileLayer
}

func newPlatformBackend() ConfigBackend {
	sys := os.Getenv("UCP_SYSTEM_CONFIG")
	if sys == "" {
		sys = systemConfigPath
	}
	return newFileBackend(configFilePath(), sys)
}

func newFileBackend(userPath, systemPath string) *fileBackend {
	return &fileBackend{user: readLayer(userPath), system: readLayer(systemPath)}
}

// lookup returns the value of key and the file it came from.
func (b *fileBackend) lookup(key string) (any, string, bool) {
	if v, ok := b.user.data[key]; ok {
		return v, b.user.path, true
	}
	if v, ok := b.system.data[key]; ok {
		return v, b.system.path, true
	}
	return nil, "", false
}

func (b *fileBackend) GetString(key string) (string, bool, error) {
	v, src, ok := b.lookup(key)
	if !ok {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	case bool:
		return strconv.FormatBool(val), true, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true, nil
	default:
		return "", true, fmt.Errorf("%s: %s must be a string, number or boolean", src, key)
	}
}

func (b *fileBackend) GetInt(key string) (int, bool, error) {
	v, src, ok := b.lookup(key)
	if !ok {
		return 0, false, nil
	}
	switch val := v.(type) {
	case float64:
		if val < math.MinInt || val > math.MaxInt || val != math.Trunc(val) {
			return 0, true, fmt.Errorf("%s: %s = %v is not a valid integer", src, key, val)
		}
		return int(val), true, nil
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, true, fmt.Errorf("%s: invalid integer for %s: %w", src, key, err)
		}
		return i, true, nil
	default:
		return 0, true, fmt.Errorf("%s: %s must be an integer", src, key)
	}
}

func (b *fileBackend) SetString(key, val string) error {
	b.user.data[key] = val
	return b.save()
}

func (b *fileBackend) SetInt(key string, val int) error {
	b.user.data[key] = val
	return b.save()
}

// Delete removes key from the user file; a system value shows through again.
func (b *fileBackend) Delete(key string) error {
	delete(b.user.data, key)
	return b.save()
}

func (b *fileBackend) save() error {
	if err := os.MkdirAll(filepath.Dir(b.user.path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := json.MarshalIndent(b.user.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.user.path, data, 0o600)
}
