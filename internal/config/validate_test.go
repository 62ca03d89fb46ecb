package config

import (
	"strings"
	"testing"
)

func baseConfig() *Config {
	cfg := defaultConfig()
	cfg.Projects = []Project{{ID: "proj", APIKeys: []string{"k"}, SensitivityLevel: "standard"}}
	return cfg
}

func TestValidateFailures(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "missing server addr",
			mutate: func(c *Config) { c.Server.Addr = "" },
			want:   "server.addr",
		},
		{
			name:   "unknown detector mode",
			mutate: func(c *Config) { c.Detector.Mode = "hybrid" },
			want:   "detector.mode",
		},
		{
			name: "remote mode without base url",
			mutate: func(c *Config) {
				c.Detector.Mode = "remote"
			},
			want: "detector.remote.base_url",
		},
		{
			name: "remote base url blocked private",
			mutate: func(c *Config) {
				c.Detector.Mode = "remote"
				c.Detector.Remote.BaseURL = "http://127.0.0.1:9090"
			},
			want: "SSRF",
		},
		{
			name: "local mode without model path",
			mutate: func(c *Config) {
				c.Detector.Mode = "local"
			},
			want: "detector.local.model_path",
		},
		{
			name: "labeler without provider",
			mutate: func(c *Config) {
				c.Labeler.Enabled = true
				c.Labeler.Model = "gpt-4o-mini"
			},
			want: "labeler",
		},
		{
			name: "labeler references unknown provider",
			mutate: func(c *Config) {
				c.Labeler.Enabled = true
				c.Labeler.Provider = "missing"
				c.Labeler.Model = "gpt-4o-mini"
			},
			want: "not found in providers",
		},
		{
			name: "provider invalid url",
			mutate: func(c *Config) {
				c.Providers = map[string]Provider{"p1": {Type: "openai", APIKeyEnv: "KEY", BaseURL: "::://bad"}}
			},
			want: "base_url",
		},
		{
			name: "security enabled requires api keys",
			mutate: func(c *Config) {
				c.Security.Enabled = true
				c.Projects = []Project{{ID: "proj", SensitivityLevel: "standard"}}
			},
			want: "api_keys",
		},
		{
			name:   "duplicate project ids",
			mutate: func(c *Config) { c.Projects = append(c.Projects, Project{ID: "proj", SensitivityLevel: "low"}) },
			want:   "duplicate project id",
		},
		{
			name:   "bad sensitivity level",
			mutate: func(c *Config) { c.Projects[0].SensitivityLevel = "maximum" },
			want:   "sensitivity_level",
		},
		{
			name:   "calibration decay out of range",
			mutate: func(c *Config) { c.Calibration.DecayBase = 1.5 },
			want:   "decay_base",
		},
		{
			name: "activation sink missing path",
			mutate: func(c *Config) {
				c.Activation.Sinks = []Sink{{Type: "file_jsonl"}}
			},
			want: "missing path",
		},
		{
			name: "activation sink unknown type",
			mutate: func(c *Config) {
				c.Activation.Sinks = []Sink{{Type: "kafka"}}
			},
			want: "unknown type",
		},
		{
			name:   "bad logging level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
			want:   "logging.level",
		},
		{
			name:   "bad activation level",
			mutate: func(c *Config) { c.Logging.ActivationLevel = "everything" },
			want:   "activation_level",
		},
		{
			name: "telemetry enabled without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.Endpoint = ""
			},
			want: "endpoint",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			tc.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			} else if !contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not contain %q", err.Error(), tc.want)
			}
		})
	}
}

func TestValidateOK(t *testing.T) {
	cfg := baseConfig()
	cfg.Detector.Mode = "remote"
	cfg.Detector.Remote.BaseURL = "https://crisis.example.com"
	cfg.Labeler.Enabled = true
	cfg.Labeler.Provider = "p1"
	cfg.Labeler.Model = "gpt-4o-mini"
	cfg.Providers = map[string]Provider{"p1": {Type: "openai", APIKeyEnv: "KEY", BaseURL: "https://api.example.com"}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	loopbackOK := baseConfig()
	loopbackOK.Detector.Mode = "remote"
	loopbackOK.Detector.Remote.BaseURL = "http://127.0.0.1:18080"
	loopbackOK.Detector.Remote.AllowPrivateNetworks = true
	if err := Validate(loopbackOK); err != nil {
		t.Fatalf("expected loopback allowed when allow_private_networks=true, got %v", err)
	}
}

func contains(s, sub string) bool {
	return s != "" && sub != "" && strings.Contains(s, sub)
}
