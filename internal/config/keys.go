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
		key: "server.port", typ: kInt, env: "ANNEX_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ANNEX_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "upstream.base_url", typ: kString, env: "ANNEX_UPSTREAM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Upstream.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Upstream.BaseURL },
	},
	{
		key: "upstream.domain", typ: kString, env: "ANNEX_UPSTREAM_DOMAIN",
		apply:   func(cfg *Config, v any) { cfg.Upstream.Domain = v.(string) },
		extract: func(cfg Config) any { return cfg.Upstream.Domain },
	},
	{
		key: "segmenter.url", typ: kString, env: "ANNEX_SEGMENTER_URL",
		apply:   func(cfg *Config, v any) { cfg.Segmenter.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Segmenter.URL },
	},
	{
		key: "segmenter.timeout", typ: kString, env: "ANNEX_SEGMENTER_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Segmenter.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Segmenter.Timeout },
	},
	{
		key: "segmenter.api_key", typ: kString, env: "ANNEX_SEGMENTER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Segmenter.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Segmenter.APIKey },
	},
	{
		key: "log.level", typ: kString, env: "ANNEX_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
