package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const keychainService = "ucportal"

const apiTokenAccount = "api_token"

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Log      LogConfig
	HTTP     HTTPConfig
	CUCM     CUCMConfig
	CUC      CUCConfig
	CMS      CMSConfig
	Webex    WebexConfig
	Workflow WorkflowConfig
	Flows    FlowsConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type HTTPConfig struct {
	Timeout            string
	InsecureSkipVerify bool
}

// CUCMConfig covers AXL, UDS, RisPort70 and PerfMon, which all live on the
// Unified CM publisher.
type CUCMConfig struct {
	Host       string
	Username   string
	Password   string
	AXLVersion string
}

// CUCConfig is Unity Connection (CUPI).
type CUCConfig struct {
	Host     string
	Username string
	Password string
}

type CMSConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type WebexConfig struct {
	BaseURL string
	Token   string
}

// WorkflowConfig holds defaults for multi-vendor workflows.
type WorkflowConfig struct {
	VoicemailTemplate string
	VoicemailProfile  string
	LinePartition     string
}

type FlowsConfig struct {
	Dir string
}

func (c CUCMConfig) Configured() bool { return c.Host != "" && c.Username != "" }
func (c CUCConfig) Configured() bool { return c.Host != "" && c.Username != "" }
func (c CMSConfig) Configured() bool { return c.Host != "" && c.Username != "" }
func (c WebexConfig) Configured() bool { return c.Token != "" }

const defaultHTTPTimeout = 30 * time.Second

// RequestTimeout parses http.timeout, falling back to 30s when it is empty
// or invalid.
func (c HTTPConfig) RequestTimeout() time.Duration {
	if c.Timeout == "" {
		return defaultHTTPTimeout
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		fmt.Fprintf(os.Stderr, "[WARN] invalid http.timeout %q, using %s\n", c.Timeout, defaultHTTPTimeout)
		return defaultHTTPTimeout
	}
	return d
}

func defaults() Config {
	return Config{
		Server:  ServerConfig{Port: 8443},
		Storage: StorageConfig{DataDir: defaultDataDir()},
		Log:     LogConfig{Level: "info"},
		HTTP:    HTTPConfig{Timeout: "30s"},
		CUCM:    CUCMConfig{AXLVersion: "14.0"},
		CMS:     CMSConfig{Port: 445},
		Webex:   WebexConfig{BaseURL: "https://webexapis.com/v1"},
		Workflow: WorkflowConfig{
			VoicemailTemplate: "voicemailusertemplate",
			VoicemailProfile:  "Voicemail",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and the platform secret store.
//
// A .env file in the working directory is loaded first; it never overrides
// variables already set in the environment.
//
// On macOS the backend is UserDefaults (domain: com.ucportal.app) and
// secrets fall back to the macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/ucportal/config.json
// layered over /etc/ucportal/config.json, and secrets fall back to
// $XDG_DATA_HOME/ucportal/secrets.json.
//
// Environment variables (UCP_*) override backend values on all platforms.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	return loadWith(newPlatformBackend(), NewKeychain())
}

func loadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// Keychain abstracts the platform secret store for testing.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

// NewKeychain returns the platform secret store.
func NewKeychain() Keychain {
	return platformKeychain{}
}

type platformKeychain struct{}

func (platformKeychain) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (platformKeychain) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}

func loadWith(b ConfigBackend, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	applySecrets(&cfg, kc)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applySecrets fills secrets that the environment left empty.
func applySecrets(cfg *Config, kc Keychain) {
	for _, s := range specs {
		if !s.secret || s.extract(*cfg).(string) != "" {
			continue
		}
		if v, err := kc.Get(keychainService, s.key); err == nil && v != "" {
			s.apply(cfg, v)
		}
	}
}

// validate rejects a vendor that has a host but no password.
func validate(cfg Config) error {
	missing := func(host, password, key string) error {
		if host != "" && password == "" {
			return fmt.Errorf("missing required config: %s. Set it via environment variable %s%s",
				key, envFor(key), secretHint(key))
		}
		return nil
	}
	return errors.Join(
		missing(cfg.CUCM.Host, cfg.CUCM.Password, "cucm.password"),
		missing(cfg.CUC.Host, cfg.CUC.Password, "cuc.password"),
		missing(cfg.CMS.Host, cfg.CMS.Password, "cms.password"),
	)
}

// GetAPIToken returns the bearer token protecting the portal API. UCP_API_TOKEN
// wins; otherwise the token is read from the secret store, and generated and
// stored on first use.
func GetAPIToken(kc Keychain) (string, error) {
	if v := os.Getenv("UCP_API_TOKEN"); v != "" {
		return v, nil
	}
	if v, err := kc.Get(keychainService, apiTokenAccount); err == nil && v != "" {
		return v, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating API token: %w", err)
	}
	token := hex.EncodeToString(buf)
	if err := kc.Set(keychainService, apiTokenAccount, token); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return token, nil
}
