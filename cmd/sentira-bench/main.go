package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/sentira-ai/sentira/internal/config"
	"github.com/sentira-ai/sentira/internal/crisis"
	"github.com/sentira-ai/sentira/internal/crisismodel"
	"github.com/sentira-ai/sentira/internal/risk"
)

func main() {
	cfgPath := flag.String("config", "", "path to config yaml (required for -engine model)")
	engine := flag.String("engine", "pattern", "engine to benchmark: pattern | model")
	n := flag.Int("n", 200, "number of iterations")
	text := flag.String("text", "I've been feeling hopeless and I don't want to be here anymore.", "utterance to evaluate")
	flag.Parse()

	detect := buildEngine(*engine, *cfgPath)

	// Warmup
	for i := 0; i < 5; i++ {
		if err := detect(*text); err != nil {
			log.Fatalf("warmup detect failed: %v", err)
		}
	}

	if *n <= 0 {
		*n = 1
	}

	durations := make([]time.Duration, 0, *n)
	for i := 0; i < *n; i++ {
		start := time.Now()
		if err := detect(*text); err != nil {
			log.Fatalf("detect failed: %v", err)
		}
		durations = append(durations, time.Since(start))
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var total time.Duration
	for _, d := range durations {
		total += d
	}

	avg := float64(total.Microseconds()) / 1000.0 / float64(len(durations))
	p50 := float64(durations[len(durations)/2].Microseconds()) / 1000.0
	p95 := float64(durations[int(float64(len(durations))*0.95)].Microseconds()) / 1000.0

	fmt.Printf("bench: engine=%s n=%d avg_ms=%.3f p50_ms=%.3f p95_ms=%.3f\n",
		*engine, len(durations), avg, p50, p95)
}

func buildEngine(engine, cfgPath string) func(string) error {
	switch engine {
	case "pattern":
		detector := crisis.NewPatternDetector(risk.DefaultCalibration())
		return func(text string) error {
			_, _ = detector.Assess(text)
			return nil
		}

	case "model":
		if cfgPath == "" {
			log.Fatalf("config flag is required for -engine model")
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		model, err := crisismodel.Load(crisismodel.Options{
			ModelPath:      cfg.Detector.Local.ModelPath,
			TokenizerPath:  cfg.Detector.Local.TokenizerPath,
			LabelMapPath:   cfg.Detector.Local.LabelMapPath,
			ThresholdsPath: cfg.Detector.Local.ThresholdsPath,
			SeqLen:         cfg.Detector.Local.SeqLen,
			// Single session avoids queueing noise in the benchmark.
			Sessions: 1,
		})
		if err != nil {
			log.Fatalf("load crisis model: %v", err)
		}
		detector := crisismodel.NewDetector(model)
		return func(text string) error {
			_, err := detector.Detect(context.Background(), text, crisis.Options{})
			return err
		}

	default:
		log.Fatalf("unknown engine %q", engine)
		return nil
	}
}
