package crisismodel

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// wordPieceTokenizer is a minimal DistilBERT-compatible tokenizer. The
// risk model is trained on WordPiece input, so only that scheme is
// supported here.
type wordPieceTokenizer struct {
	vocab        map[string]int64
	lowerCase    bool
	continuation string

	clsID int64
	sepID int64
	padID int64
	unkID int64
}

// loadTokenizer reads tokenizer assets from path. A plain vocab.txt
// (one token per line) and a tokenizer.json carrying a vocab map are
// both accepted.
func loadTokenizer(path string) (*wordPieceTokenizer, error) {
	if strings.HasSuffix(path, ".json") {
		return loadTokenizerJSON(path)
	}
	return loadVocabFile(path)
}

func loadVocabFile(path string) (*wordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var idx int64
	for sc.Scan() {
		token := strings.TrimSpace(sc.Text())
		if token == "" {
			continue
		}
		vocab[token] = idx
		idx++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan vocab: %w", err)
	}
	return newTokenizer(vocab), nil
}

func loadTokenizerJSON(path string) (*wordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer json: %w", err)
	}
	var raw struct {
		Model struct {
			Type  string           `json:"type"`
			Vocab map[string]int64 `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode tokenizer json: %w", err)
	}
	if !strings.EqualFold(raw.Model.Type, "wordpiece") && raw.Model.Type != "" {
		return nil, fmt.Errorf("unsupported tokenizer model type %q", raw.Model.Type)
	}
	if len(raw.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer json missing vocab")
	}
	return newTokenizer(raw.Model.Vocab), nil
}

func newTokenizer(vocab map[string]int64) *wordPieceTokenizer {
	return &wordPieceTokenizer{
		vocab:        vocab,
		lowerCase:    true,
		continuation: "##",
		clsID:        vocab["[CLS]"],
		sepID:        vocab["[SEP]"],
		padID:        vocab["[PAD]"],
		unkID:        vocab["[UNK]"],
	}
}

// encode converts text into token IDs and an attention mask of length
// seqLen, with [CLS]/[SEP] framing and [PAD] fill.
func (t *wordPieceTokenizer) encode(text string, seqLen int) ([]int64, []int64) {
	if seqLen <= 0 {
		return nil, nil
	}

	words := strings.Fields(text)
	tokens := []int64{t.clsID}

	for _, w := range words {
		if t.lowerCase {
			w = strings.ToLower(w)
		}
		tokens = append(tokens, t.wordPiece(w)...)
		if len(tokens) >= seqLen-1 {
			break
		}
	}
	tokens = append(tokens, t.sepID)

	if len(tokens) > seqLen {
		tokens = tokens[:seqLen]
		tokens[seqLen-1] = t.sepID
	}

	attn := make([]int64, seqLen)
	for i := range tokens {
		attn[i] = 1
	}

	for len(tokens) < seqLen {
		tokens = append(tokens, t.padID)
	}

	return tokens, attn
}

// wordPiece splits one whitespace word into subword IDs via greedy
// longest-match. A word with no representable prefix maps to [UNK].
func (t *wordPieceTokenizer) wordPiece(token string) []int64 {
	if id, ok := t.vocab[token]; ok {
		return []int64{id}
	}

	var pieces []int64
	start := 0
	for start < len(token) {
		end := len(token)
		matched := false
		for end > start {
			sub := token[start:end]
			if start > 0 {
				sub = t.continuation + sub
			}
			if id, ok := t.vocab[sub]; ok {
				pieces = append(pieces, id)
				start = end
				matched = true
				break
			}
			end--
		}
		if !matched {
			return []int64{t.unkID}
		}
	}
	if len(pieces) == 0 {
		return []int64{t.unkID}
	}
	return pieces
}
