package config

import (
	"fmt"
	"strconv"
)

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns every config key with its current value. Secrets are
// reported as set or unset, never shown.
func ShowAll(cfg Config) []KeyInfo {
	result := make([]KeyInfo, 0, len(specs))
	for _, s := range specs {
		val := fmt.Sprintf("%v", s.extract(cfg))
		if s.secret {
			if val == "" {
				val = "(unset)"
			} else {
				val = "(set)"
			}
		}
		result = append(result, KeyInfo{Key: s.key, EnvVar: s.env, Value: val})
	}
	return result
}

// SetKey writes a config key to the platform backend. Secrets go to the
// platform secret store instead.
func SetKey(key, value string) error {
	return setKey(newPlatformBackend(), NewKeychain(), key, value)
}

func setKey(b ConfigBackend, kc Keychain, key, value string) error {
	for _, s := range specs {
		if s.key != key {
			continue
		}
		if s.secret {
			return kc.Set(keychainService, key, value)
		}
		v, err := parseValue(s.typ, value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		switch s.typ {
		case kInt:
			return b.SetInt(key, v.(int))
		case kBool:
			return b.SetString(key, strconv.FormatBool(v.(bool)))
		default:
			return b.SetString(key, value)
		}
	}

	return fmt.Errorf("unknown config key: %q", key)
}

// ValidKeys returns every config key name, secrets included.
func ValidKeys() []string {
	keys := make([]string, 0, len(specs))
	for _, s := range specs {
		keys = append(keys, s.key)
	}
	return keys
}
