package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate checks the loaded config for required fields and safe values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		return errors.New("server.addr must be set")
	}

	if err := validateDetector(cfg.Detector); err != nil {
		return err
	}

	if err := validateLabeler(cfg); err != nil {
		return err
	}

	for name, p := range cfg.Providers {
		if err := validateProvider(name, p); err != nil {
			return err
		}
	}

	if cfg.Security.Enabled && len(cfg.Projects) == 0 {
		return errors.New("security enabled but no projects configured")
	}

	seen := map[string]bool{}
	for _, p := range cfg.Projects {
		if strings.TrimSpace(p.ID) == "" {
			return errors.New("project id must be set")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate project id %q", p.ID)
		}
		seen[p.ID] = true
		if cfg.Security.Enabled && len(p.APIKeys) == 0 {
			return fmt.Errorf("project %q must define at least one api_keys entry", p.ID)
		}
		switch p.SensitivityLevel {
		case "low", "standard", "high":
		default:
			return fmt.Errorf("project %q sensitivity_level must be low, standard, or high, got %q", p.ID, p.SensitivityLevel)
		}
	}

	if err := validateCalibration(cfg.Calibration); err != nil {
		return err
	}

	if err := validateActivation(cfg.Activation); err != nil {
		return err
	}

	if err := validateLogging(cfg.Logging); err != nil {
		return err
	}

	if err := validateTelemetry(cfg.Telemetry); err != nil {
		return err
	}

	return nil
}

func validateDetector(d Detector) error {
	switch strings.ToLower(strings.TrimSpace(d.Mode)) {
	case "off":
		return nil
	case "remote":
		if strings.TrimSpace(d.Remote.BaseURL) == "" {
			return errors.New("detector.remote.base_url must be set in remote mode")
		}
		u, err := url.Parse(d.Remote.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("detector.remote.base_url is invalid")
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return errors.New("detector.remote.base_url must be http or https")
		}
		if err := blockPrivateHost(u.Host, d.Remote.AllowPrivateNetworks); err != nil {
			return fmt.Errorf("detector.remote.base_url blocked: %w", err)
		}
		return nil
	case "local":
		if strings.TrimSpace(d.Local.ModelPath) == "" {
			return errors.New("detector.local.model_path must be set in local mode")
		}
		if strings.TrimSpace(d.Local.TokenizerPath) == "" {
			return errors.New("detector.local.tokenizer_path must be set in local mode")
		}
		if strings.TrimSpace(d.Local.LabelMapPath) == "" {
			return errors.New("detector.local.label_map_path must be set in local mode")
		}
		return nil
	default:
		return fmt.Errorf("detector.mode must be remote, local, or off, got %q", d.Mode)
	}
}

func validateLabeler(cfg *Config) error {
	if !cfg.Labeler.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.Labeler.Provider) == "" {
		return errors.New("labeler enabled but no provider configured")
	}
	if _, ok := cfg.Providers[cfg.Labeler.Provider]; !ok {
		return fmt.Errorf("labeler provider %q not found in providers", cfg.Labeler.Provider)
	}
	if strings.TrimSpace(cfg.Labeler.Model) == "" {
		return errors.New("labeler.model must be set when the labeler is enabled")
	}
	return nil
}

func validateProvider(name string, p Provider) error {
	if strings.TrimSpace(p.Type) == "" {
		return fmt.Errorf("provider %q missing type", name)
	}
	if strings.EqualFold(p.Type, "openai") {
		if strings.TrimSpace(p.APIKeyEnv) == "" && strings.TrimSpace(p.APIKey) == "" {
			return fmt.Errorf("provider %q missing api key (env or api_key)", name)
		}
	}
	if p.BaseURL != "" {
		u, err := url.Parse(p.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("provider %q has invalid base_url", name)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("provider %q base_url must be http or https", name)
		}
		if err := blockPrivateHost(u.Host, p.AllowPrivateNetworks); err != nil {
			return fmt.Errorf("provider %q base_url blocked: %w", name, err)
		}
	}
	return nil
}

func validateCalibration(c Calibration) error {
	if c.CorroborationStep < 0 || c.CorroborationStep > 0.5 {
		return fmt.Errorf("calibration.corroboration_step must be in (0, 0.5], got %v", c.CorroborationStep)
	}
	if c.CorroborationCap < 1 || c.CorroborationCap > 2 {
		return fmt.Errorf("calibration.corroboration_cap must be in [1, 2], got %v", c.CorroborationCap)
	}
	if c.DecayBase <= 0 || c.DecayBase >= 1 {
		return fmt.Errorf("calibration.decay_base must be in (0, 1), got %v", c.DecayBase)
	}
	for field, v := range map[string]float64{
		"calibration.secondary_threshold": c.SecondaryThreshold,
		"calibration.immediate_threshold": c.ImmediateThreshold,
		"calibration.base_confidence":     c.BaseConfidence,
	} {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("%s must be in (0, 1), got %v", field, v)
		}
	}
	return nil
}

func validateActivation(a Activation) error {
	if len(a.Sinks) == 0 {
		return nil
	}
	for i, s := range a.Sinks {
		switch strings.ToLower(strings.TrimSpace(s.Type)) {
		case "file_jsonl":
			if strings.TrimSpace(s.Path) == "" {
				return fmt.Errorf("activation sink %d (file_jsonl) missing path", i)
			}
		case "webhook":
			if strings.TrimSpace(s.URL) == "" {
				return fmt.Errorf("activation sink %d (webhook) missing url", i)
			}
			u, err := url.Parse(s.URL)
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("activation sink %d (webhook) has invalid url", i)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("activation sink %d (webhook) url must be http or https", i)
			}
		default:
			return fmt.Errorf("activation sink %d has unknown type %q", i, s.Type)
		}
	}
	return nil
}

func validateLogging(l Logging) error {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", l.Level)
	}
	switch strings.ToLower(strings.TrimSpace(l.ActivationLevel)) {
	case "none", "metadata", "full":
		return nil
	default:
		return fmt.Errorf("logging.activation_level must be none, metadata, or full, got %q", l.ActivationLevel)
	}
}

func validateTelemetry(t Telemetry) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "grpc", "http":
		return nil
	default:
		return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
	}
}

func blockPrivateHost(hostport string, allowPrivate bool) error {
	if allowPrivate {
		return nil
	}
	host := hostport
	if strings.Contains(hostport, "]") || strings.Contains(hostport, ":") {
		h, _, err := net.SplitHostPort(hostport)
		if err == nil {
			host = h
		}
	}
	lc := strings.ToLower(strings.TrimSpace(host))
	if lc == "localhost" {
		return errors.New("private network host localhost blocked for SSRF safety")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("private network IP %s blocked for SSRF safety", ip.String())
		}
		return nil
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	privateBlocks := []*net.IPNet{
		{IP: net.ParseIP("127.0.0.0"), Mask: net.CIDRMask(8, 32)},
		{IP: net.ParseIP("10.0.0.0"), Mask: net.CIDRMask(8, 32)},
		{IP: net.ParseIP("172.16.0.0"), Mask: net.CIDRMask(12, 32)},
		{IP: net.ParseIP("192.168.0.0"), Mask: net.CIDRMask(16, 32)},
		{IP: net.ParseIP("169.254.0.0"), Mask: net.CIDRMask(16, 32)},
		{IP: net.ParseIP("::1"), Mask: net.CIDRMask(128, 128)},
		{IP: net.ParseIP("fc00::"), Mask: net.CIDRMask(7, 128)},
		{IP: net.ParseIP("fe80::"), Mask: net.CIDRMask(10, 128)},
	}
	for _, block := range privateBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}
