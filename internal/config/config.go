package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds Sentira configuration.
type Config struct {
	Server          Server              `yaml:"server"`
	Detector        Detector            `yaml:"detector"`
	Labeler         Labeler             `yaml:"labeler"`
	Providers       map[string]Provider `yaml:"providers"`
	DefaultProvider string              `yaml:"default_provider"`
	Calibration     Calibration         `yaml:"calibration"`
	Projects        []Project           `yaml:"projects"`
	Security        Security            `yaml:"security"`
	Logging         Logging             `yaml:"logging"`
	Activation      Activation          `yaml:"activation"`
	Telemetry       Telemetry           `yaml:"telemetry"`
}

type Server struct {
	Addr         string `yaml:"addr"`           // HTTP listen address, e.g. ":8080"
	MaxBodyBytes int64  `yaml:"max_body_bytes"` // request body cap, 413 above this
	MaxInFlight  int    `yaml:"max_in_flight"`  // concurrent request cap, 429 above this
}

// Detector selects the crisis detection source. The pattern fallback is
// always active regardless of mode.
type Detector struct {
	Mode      string         `yaml:"mode"` // remote | local | off
	TimeoutMS int            `yaml:"timeout_ms"`
	Remote    RemoteDetector `yaml:"remote"`
	Local     LocalDetector  `yaml:"local"`
}

type RemoteDetector struct {
	BaseURL              string `yaml:"base_url"`
	APIKeyEnv            string `yaml:"api_key_env"`
	MaxResponseBytes     int64  `yaml:"max_response_bytes"`
	AllowPrivateNetworks bool   `yaml:"allow_private_networks"`
}

type LocalDetector struct {
	ModelPath      string `yaml:"model_path"`
	TokenizerPath  string `yaml:"tokenizer_path"`
	LabelMapPath   string `yaml:"label_map_path"`
	ThresholdsPath string `yaml:"thresholds_path"`
	Sessions       int    `yaml:"sessions"` // pooled inference sessions
	SeqLen         int    `yaml:"seq_len"`  // tokenized input length
	// RequireML makes readiness depend on the model having loaded.
	// Without it a load failure degrades to pattern-only service.
	RequireML bool `yaml:"require_ml"`
}

// Labeler configures the optional LLM context-labeling pass.
type Labeler struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"` // provider name from Providers map
	Model    string `yaml:"model"`
}

type Provider struct {
	Type                 string `yaml:"type"`        // e.g. "openai"
	BaseURL              string `yaml:"base_url"`    // e.g. "https://api.openai.com/v1"
	APIKey               string `yaml:"api_key"`     // inline key, prefer api_key_env
	APIKeyEnv            string `yaml:"api_key_env"` // e.g. "OPENAI_API_KEY"
	AllowPrivateNetworks bool   `yaml:"allow_private_networks"`
}

// Calibration overrides the scoring constants. Zero values mean "use
// the built-in default"; these knobs cannot be set to exactly zero.
type Calibration struct {
	CorroborationStep  float64 `yaml:"corroboration_step"`
	CorroborationCap   float64 `yaml:"corroboration_cap"`
	DecayBase          float64 `yaml:"decay_base"`
	SecondaryThreshold float64 `yaml:"secondary_threshold"`
	ImmediateThreshold float64 `yaml:"immediate_threshold"`
	BaseConfidence     float64 `yaml:"base_confidence"`
}

type Project struct {
	ID               string   `yaml:"id"`
	APIKeys          []string `yaml:"api_keys"`
	SensitivityLevel string   `yaml:"sensitivity_level"` // low | standard | high
}

type Security struct {
	Enabled bool `yaml:"enabled"` // require bearer auth on classification routes
}

type Logging struct {
	Level           string `yaml:"level"`            // debug | info | warn | error
	ActivationLevel string `yaml:"activation_level"` // none | metadata | full
}

type Activation struct {
	BufferSize int    `yaml:"buffer_size"`
	Sinks      []Sink `yaml:"sinks"`
}

type Sink struct {
	Type      string `yaml:"type"` // file_jsonl | webhook
	Path      string `yaml:"path"`
	URL       string `yaml:"url"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type Telemetry struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	Protocol    string `yaml:"protocol"` // grpc | http
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// If file doesn't exist, return default config
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func defaultConfig() *Config {
	cfg := &Config{
		Providers: map[string]Provider{},
		Projects:  []Project{},
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MaxInFlight <= 0 {
		cfg.Server.MaxInFlight = 256
	}

	if cfg.Detector.Mode == "" {
		cfg.Detector.Mode = "off"
	}
	if cfg.Detector.TimeoutMS <= 0 {
		cfg.Detector.TimeoutMS = 3000
	}
	if cfg.Detector.Remote.MaxResponseBytes <= 0 {
		cfg.Detector.Remote.MaxResponseBytes = 1 << 20
	}
	if cfg.Detector.Local.Sessions <= 0 {
		cfg.Detector.Local.Sessions = 2
	}

	// If no default provider is set but there's exactly one provider,
	// use that as default.
	if cfg.DefaultProvider == "" && len(cfg.Providers) == 1 {
		for name := range cfg.Providers {
			cfg.DefaultProvider = name
			break
		}
	}
	if cfg.Labeler.Enabled && cfg.Labeler.Provider == "" {
		cfg.Labeler.Provider = cfg.DefaultProvider
	}

	if cfg.Calibration.CorroborationStep == 0 {
		cfg.Calibration.CorroborationStep = 0.1
	}
	if cfg.Calibration.CorroborationCap == 0 {
		cfg.Calibration.CorroborationCap = 1.3
	}
	if cfg.Calibration.DecayBase == 0 {
		cfg.Calibration.DecayBase = 0.7
	}
	if cfg.Calibration.SecondaryThreshold == 0 {
		cfg.Calibration.SecondaryThreshold = 0.3
	}
	if cfg.Calibration.ImmediateThreshold == 0 {
		cfg.Calibration.ImmediateThreshold = 0.8
	}
	if cfg.Calibration.BaseConfidence == 0 {
		cfg.Calibration.BaseConfidence = 0.70
	}

	for i := range cfg.Projects {
		if cfg.Projects[i].SensitivityLevel == "" {
			cfg.Projects[i].SensitivityLevel = "standard"
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ActivationLevel == "" {
		cfg.Logging.ActivationLevel = "metadata"
	}

	if cfg.Activation.BufferSize <= 0 {
		cfg.Activation.BufferSize = 1024
	}
	for i := range cfg.Activation.Sinks {
		if cfg.Activation.Sinks[i].TimeoutMS <= 0 {
			cfg.Activation.Sinks[i].TimeoutMS = 5000
		}
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "sentira"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
}
