package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "UCP_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "UCP_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "UCP_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "http.timeout", typ: kString, env: "UCP_HTTP_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.HTTP.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.HTTP.Timeout },
	},
	{
		key: "http.insecure_skip_verify", typ: kBool, env: "UCP_HTTP_INSECURE_SKIP_VERIFY",
		apply:   func(cfg *Config, v any) { cfg.HTTP.InsecureSkipVerify = v.(bool) },
		extract: func(cfg Config) any { return cfg.HTTP.InsecureSkipVerify },
	},
	{
		key: "cucm.host", typ: kString, env: "UCP_CUCM_HOST",
		apply:   func(cfg *Config, v any) { cfg.CUCM.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.CUCM.Host },
	},
	{
		key: "cucm.username", typ: kString, env: "UCP_CUCM_USERNAME",
		apply:   func(cfg *Config, v any) { cfg.CUCM.Username = v.(string) },
		extract: func(cfg Config) any { return cfg.CUCM.Username },
	},
	{
		key: "cucm.password", typ: kString, env: "UCP_CUCM_PASSWORD",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.CUCM.Password = v.(string) },
		extract: func(cfg Config) any { return cfg.CUCM.Password },
	},
	{
		key: "cucm.axl_version", typ: kString, env: "UCP_CUCM_AXL_VERSION",
		apply:   func(cfg *Config, v any) { cfg.CUCM.AXLVersion = v.(string) },
		extract: func(cfg Config) any { return cfg.CUCM.AXLVersion },
	},
	{
		key: "cuc.host", typ: kString, env: "UCP_CUC_HOST",
		apply:   func(cfg *Config, v any) { cfg.CUC.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.CUC.Host },
	},
	{
		key: "cuc.username", typ: kString, env: "UCP_CUC_USERNAME",
		apply:   func(cfg *Config, v any) { cfg.CUC.Username = v.(string) },
		extract: func(cfg Config) any { return cfg.CUC.Username },
	},
	{
		key: "cuc.password", typ: kString, env: "UCP_CUC_PASSWORD",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.CUC.Password = v.(string) },
		extract: func(cfg Config) any { return cfg.CUC.Password },
	},
	{
		key: "cms.host", typ: kString, env: "UCP_CMS_HOST",
		apply:   func(cfg *Config, v any) { cfg.CMS.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.CMS.Host },
	},
	{
		key: "cms.port", typ: kInt, env: "UCP_CMS_PORT",
		apply:   func(cfg *Config, v any) { cfg.CMS.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.CMS.Port },
	},
	{
		key: "cms.username", typ: kString, env: "UCP_CMS_USERNAME",
		apply:   func(cfg *Config, v any) { cfg.CMS.Username = v.(string) },
		extract: func(cfg Config) any { return cfg.CMS.Username },
	},
	{
		key: "cms.password", typ: kString, env: "UCP_CMS_PASSWORD",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.CMS.Password = v.(string) },
		extract: func(cfg Config) any { return cfg.CMS.Password },
	},
	{
		key: "webex.base_url", typ: kString, env: "UCP_WEBEX_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Webex.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Webex.BaseURL },
	},
	{
		key: "webex.token", typ: kString, env: "UCP_WEBEX_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Webex.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Webex.Token },
	},
	{
		key: "workflow.voicemail_template", typ: kString, env: "UCP_WORKFLOW_VOICEMAIL_TEMPLATE",
		apply:   func(cfg *Config, v any) { cfg.Workflow.VoicemailTemplate = v.(string) },
		extract: func(cfg Config) any { return cfg.Workflow.VoicemailTemplate },
	},
	{
		key: "workflow.voicemail_profile", typ: kString, env: "UCP_WORKFLOW_VOICEMAIL_PROFILE",
		apply:   func(cfg *Config, v any) { cfg.Workflow.VoicemailProfile = v.(string) },
		extract: func(cfg Config) any { return cfg.Workflow.VoicemailProfile },
	},
	{
		key: "workflow.line_partition", typ: kString, env: "UCP_WORKFLOW_LINE_PARTITION",
		apply:   func(cfg *Config, v any) { cfg.Workflow.LinePartition = v.(string) },
		extract: func(cfg Config) any { return cfg.Workflow.LinePartition },
	},
	{
		key: "flows.dir", typ: kString, env: "UCP_FLOWS_DIR",
		apply:   func(cfg *Config, v any) { cfg.Flows.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Flows.Dir },
	},
}

// envFor returns the environment variable that overrides key.
func envFor(key string) string {
	for _, s := range specs {
		if s.key == key {
			return s.env
		}
	}
	return ""
}

// parseValue converts a raw string to the Go type of typ.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}

		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (s.typ == kBool && raw == "") {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}
