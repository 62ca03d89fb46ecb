// Package crisismodel runs a local ONNX multilabel risk model as a
// crisis detection source. It is the on-box alternative to the remote
// detection service: same verdict shape, no network dependency.
package crisismodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
	"gopkg.in/yaml.v3"
)

// Thresholds holds warn/alert cutoffs for one model label. Nil means
// the cutoff is not configured for that label.
type Thresholds struct {
	Warn  *float32 `yaml:"warn" json:"warn"`
	Alert *float32 `yaml:"alert" json:"alert"`
}

// Options locates the model bundle on disk.
type Options struct {
	ModelPath      string
	TokenizerPath  string
	LabelMapPath   string
	ThresholdsPath string

	// Sessions is the inference session pool size. Each session owns
	// its tensors, so pool size bounds concurrent inference.
	Sessions int
	// SeqLen is the tokenized input length; zero means 256.
	SeqLen int
}

// Model wraps the ONNX sessions, tokenizer, and label metadata.
type Model struct {
	tokenizer  *wordPieceTokenizer
	labels     []string
	thresholds map[string]Thresholds
	seqLen     int
	sessions   chan *session
}

type session struct {
	run           *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

// Load initializes the runtime, tokenizer, labels, thresholds, and the
// session pool.
func Load(opts Options) (*Model, error) {
	if strings.TrimSpace(opts.ModelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	if opts.SeqLen <= 0 {
		opts.SeqLen = 256
	}
	if opts.Sessions <= 0 {
		opts.Sessions = 1
	}

	libPath := resolveSharedLibraryPath(filepath.Dir(opts.ModelPath))
	if libPath == "" {
		return nil, errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or install the runtime")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", opts.ModelPath, err)
	}

	labels, err := loadLabels(opts.LabelMapPath)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	thresholds := map[string]Thresholds{}
	if opts.ThresholdsPath != "" {
		thresholds, err = loadThresholds(opts.ThresholdsPath)
		if err != nil {
			return nil, fmt.Errorf("load thresholds: %w", err)
		}
	}

	tokenizer, err := loadTokenizer(opts.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	sessions := make(chan *session, opts.Sessions)
	for i := 0; i < opts.Sessions; i++ {
		s, err := newSession(opts.ModelPath, opts.SeqLen, len(labels))
		if err != nil {
			return nil, fmt.Errorf("create onnx session %d/%d: %w", i+1, opts.Sessions, err)
		}
		sessions <- s
	}

	return &Model{
		tokenizer:  tokenizer,
		labels:     labels,
		thresholds: thresholds,
		seqLen:     opts.SeqLen,
		sessions:   sessions,
	}, nil
}

func newSession(modelPath string, seqLen, numLabels int) (*session, error) {
	inputShape := ort.NewShape(1, int64(seqLen))
	inputIDs, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input_ids tensor: %w", err)
	}
	attnMask, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate attention_mask tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(numLabels)))
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	run, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		[]ort.Value{inputIDs, attnMask},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &session{
		run:           run,
		inputIDs:      inputIDs,
		attentionMask: attnMask,
		output:        output,
	}, nil
}

// Evaluate runs inference and returns per-label sigmoid scores.
func (m *Model) Evaluate(ctx context.Context, text string) (map[string]float32, error) {
	if m == nil || m.tokenizer == nil {
		return nil, errors.New("risk model not initialized")
	}

	var s *session
	select {
	case s = <-m.sessions:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { m.sessions <- s }()

	inputIDs, attn := m.tokenizer.encode(text, m.seqLen)
	copy(s.inputIDs.GetData(), inputIDs)
	copy(s.attentionMask.GetData(), attn)

	if err := s.run.Run(); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	raw := s.output.GetData()
	scores := make(map[string]float32, len(m.labels))
	for i, logit := range raw {
		if i >= len(m.labels) {
			break
		}
		scores[m.labels[i]] = float32(1.0 / (1.0 + math.Exp(-float64(logit))))
	}
	return scores, nil
}

// Close releases all pooled sessions and their tensors.
func (m *Model) Close() {
	if m == nil {
		return
	}
	for {
		select {
		case s := <-m.sessions:
			s.run.Destroy()
			s.inputIDs.Destroy()
			s.attentionMask.Destroy()
			s.output.Destroy()
		default:
			return
		}
	}
}

func loadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var arr []string
	if err := json.Unmarshal(data, &arr); err == nil && len(arr) > 0 {
		return arr, nil
	}

	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	out := make([]string, len(m))
	for k, v := range m {
		idx, convErr := strconv.Atoi(k)
		if convErr != nil {
			return nil, fmt.Errorf("invalid label index %q: %w", k, convErr)
		}
		if idx < 0 || idx >= len(m) {
			return nil, fmt.Errorf("label index %d out of range", idx)
		}
		out[idx] = v
	}
	return out, nil
}

func loadThresholds(path string) (map[string]Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var wrapper struct {
		Thresholds map[string]Thresholds `yaml:"thresholds"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Thresholds == nil {
		wrapper.Thresholds = make(map[string]Thresholds)
	}
	return wrapper.Thresholds, nil
}

// resolveSharedLibraryPath locates a platform-specific onnxruntime
// shared library. ONNXRUNTIME_SHARED_LIBRARY_PATH wins when set.
func resolveSharedLibraryPath(modelDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.dylib",
		"onnxruntime.dylib",
		"libonnxruntime.so",
		"onnxruntime.so",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		".",
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}

	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
