package config

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Upstream  UpstreamConfig
	Segmenter SegmenterConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

// UpstreamConfig points at the annotation platform that owns the remote
// documents and issues the per-user API keys this service verifies.
type UpstreamConfig struct {
	BaseURL string
	// Domain is the default value for the X-Api-Domain header when a
	// request omits it. Owner identity is scoped by domain.
	Domain string
}

// SegmenterConfig points at the external segmentation service.
type SegmenterConfig struct {
	URL string
	// Timeout bounds one fetch-and-segment round trip, parsed as a
	// duration string at server start.
	Timeout string
	// APIKey is the service-to-service credential for the segmenter,
	// set only via environment.
	APIKey string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4040,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Upstream: UpstreamConfig{
			Domain: "app.alveo.edu.au",
		},
		Segmenter: SegmenterConfig{
			Timeout: "60s",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration in precedence order: built-in defaults, the
// JSON config file at $XDG_CONFIG_HOME/annex/config.json, then ANNEX_*
// environment variables. Secrets are environment-only. Load never
// validates endpoint presence; the server checks what it needs at
// startup so client commands work against a partial config.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}
