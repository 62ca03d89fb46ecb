// Package app assembles the engine from configuration: logger,
// telemetry, detector, labeler, classifier, activation pipeline, and
// the HTTP server. Both entry points (root main and cmd/sentira) call
// Run so the wiring lives in one place.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sentira-ai/sentira/internal/activation"
	"github.com/sentira-ai/sentira/internal/auth"
	"github.com/sentira-ai/sentira/internal/classify"
	"github.com/sentira-ai/sentira/internal/config"
	"github.com/sentira-ai/sentira/internal/crisis"
	"github.com/sentira-ai/sentira/internal/crisismodel"
	"github.com/sentira-ai/sentira/internal/provider"
	"github.com/sentira-ai/sentira/internal/risk"
	"github.com/sentira-ai/sentira/internal/server"
	"github.com/sentira-ai/sentira/internal/telemetry"
)

// Options are the command-line overrides Run accepts.
type Options struct {
	ConfigPath string
	Addr       string
}

// Run builds everything from the config file and serves until the
// listener fails. It only returns on a fatal startup or serve error.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Insecure: cfg.Telemetry.Insecure,
		Service:  cfg.Telemetry.ServiceName,
	}, logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())

	authz, err := auth.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("build auth: %w", err)
	}

	cal := calibrationFromConfig(cfg.Calibration)

	detector, detectorReady := buildDetector(cfg, logger)
	ready := func() bool { return detectorReady() }

	timeout := time.Duration(cfg.Detector.TimeoutMS) * time.Millisecond
	orch := crisis.NewOrchestrator(detector, cal, timeout, logger)

	labeler := buildLabeler(cfg, logger)

	classifier := classify.New(orch, labeler, cal, "standard", logger)

	sinks, err := buildSinks(cfg.Activation)
	if err != nil {
		return fmt.Errorf("build activation sinks: %w", err)
	}
	emitter := activation.NewEmitter(activation.EmitterConfig{
		QueueSize: cfg.Activation.BufferSize,
		Logger:    logger,
	}, sinks)
	defer emitter.Close(context.Background())

	srv := server.New(server.Options{
		Config:     cfg,
		Auth:       authz,
		Classifier: classifier,
		Emitter:    emitter,
		Telemetry:  tel,
		Logger:     logger,
		Ready:      ready,
	})

	addr := cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	return srv.Start(addr)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

// buildDetector returns the configured crisis detector and a readiness
// probe. A local model that fails to load degrades to pattern-only
// service rather than refusing to start.
func buildDetector(cfg *config.Config, logger *zap.Logger) (crisis.Detector, func() bool) {
	alwaysReady := func() bool { return true }

	switch cfg.Detector.Mode {
	case "remote":
		apiKey := ""
		if env := cfg.Detector.Remote.APIKeyEnv; env != "" {
			apiKey = os.Getenv(env)
		}
		client := crisis.NewRemoteClient(
			cfg.Detector.Remote.BaseURL,
			apiKey,
			time.Duration(cfg.Detector.TimeoutMS)*time.Millisecond,
			cfg.Detector.Remote.MaxResponseBytes,
		)
		return client, alwaysReady

	case "local":
		model, err := crisismodel.Load(crisismodel.Options{
			ModelPath:      cfg.Detector.Local.ModelPath,
			TokenizerPath:  cfg.Detector.Local.TokenizerPath,
			LabelMapPath:   cfg.Detector.Local.LabelMapPath,
			ThresholdsPath: cfg.Detector.Local.ThresholdsPath,
			Sessions:       cfg.Detector.Local.Sessions,
			SeqLen:         cfg.Detector.Local.SeqLen,
		})
		if err != nil {
			logger.Error("local crisis model unavailable, running pattern-only",
				zap.Error(err),
				zap.String("model_path", cfg.Detector.Local.ModelPath),
			)
			if cfg.Detector.Local.RequireML {
				return nil, func() bool { return false }
			}
			return nil, alwaysReady
		}
		logger.Info("local crisis model loaded",
			zap.String("model_path", cfg.Detector.Local.ModelPath),
			zap.Int("sessions", cfg.Detector.Local.Sessions),
		)
		return crisismodel.NewDetector(model), alwaysReady

	default:
		return nil, alwaysReady
	}
}

func buildLabeler(cfg *config.Config, logger *zap.Logger) *classify.Labeler {
	if !cfg.Labeler.Enabled {
		return nil
	}
	pc, ok := cfg.Providers[cfg.Labeler.Provider]
	if !ok {
		logger.Warn("labeler provider not configured, labeler disabled",
			zap.String("provider", cfg.Labeler.Provider))
		return nil
	}
	apiKey := pc.APIKey
	if apiKey == "" && pc.APIKeyEnv != "" {
		apiKey = os.Getenv(pc.APIKeyEnv)
	}

	var p provider.Provider
	switch pc.Type {
	case "fake":
		p = provider.NewFake(`{"detectedContext":"general","confidence":0.5,"contextualIndicators":[]}`)
	default:
		p = provider.NewOpenAI(pc.BaseURL, apiKey, 0, 0)
	}
	return classify.NewLabeler(p, cfg.Labeler.Model)
}

func buildSinks(cfg config.Activation) ([]activation.Sink, error) {
	var sinks []activation.Sink
	for _, sc := range cfg.Sinks {
		switch sc.Type {
		case "file_jsonl":
			sink, err := activation.NewFileSink(sc.Path)
			if err != nil {
				return nil, fmt.Errorf("file sink %q: %w", sc.Path, err)
			}
			sinks = append(sinks, sink)
		case "webhook":
			sink, err := activation.NewWebhookSink(sc.URL, nil, time.Duration(sc.TimeoutMS)*time.Millisecond)
			if err != nil {
				return nil, fmt.Errorf("webhook sink %q: %w", sc.URL, err)
			}
			sinks = append(sinks, sink)
		default:
			return nil, fmt.Errorf("unknown sink type %q", sc.Type)
		}
	}
	return sinks, nil
}

func calibrationFromConfig(c config.Calibration) risk.Calibration {
	cal := risk.DefaultCalibration()
	if c.CorroborationStep > 0 {
		cal.CorroborationStep = c.CorroborationStep
	}
	if c.CorroborationCap > 0 {
		cal.CorroborationCap = c.CorroborationCap
	}
	if c.DecayBase > 0 {
		cal.DecayBase = c.DecayBase
	}
	if c.SecondaryThreshold > 0 {
		cal.SecondaryThreshold = c.SecondaryThreshold
	}
	if c.ImmediateThreshold > 0 {
		cal.ImmediateThreshold = c.ImmediateThreshold
	}
	if c.BaseConfidence > 0 {
		cal.BaseConfidence = c.BaseConfidence
	}
	return cal
}
