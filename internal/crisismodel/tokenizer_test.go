package crisismodel

import (
	"os"
	"path/filepath"
	"testing"
)

func writeVocab(t *testing.T, tokens ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vocab.txt")
	var body string
	for _, tok := range tokens {
		body += tok + "\n"
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEncodeFramesAndPads(t *testing.T) {
	path := writeVocab(t, "[PAD]", "[UNK]", "[CLS]", "[SEP]", "hello", "world")
	tok, err := loadTokenizer(path)
	if err != nil {
		t.Fatal(err)
	}

	ids, attn := tok.encode("Hello world", 8)
	want := []int64{2, 4, 5, 3, 0, 0, 0, 0} // [CLS] hello world [SEP] pad...
	if len(ids) != 8 || len(attn) != 8 {
		t.Fatalf("expected length 8, got %d/%d", len(ids), len(attn))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids[%d] = %d, want %d (full: %v)", i, ids[i], want[i], ids)
		}
	}
	wantAttn := []int64{1, 1, 1, 1, 0, 0, 0, 0}
	for i := range wantAttn {
		if attn[i] != wantAttn[i] {
			t.Fatalf("attn[%d] = %d, want %d", i, attn[i], wantAttn[i])
		}
	}
}

func TestEncodeSubwordSplit(t *testing.T) {
	path := writeVocab(t, "[PAD]", "[UNK]", "[CLS]", "[SEP]", "help", "##less")
	tok, err := loadTokenizer(path)
	if err != nil {
		t.Fatal(err)
	}

	ids, _ := tok.encode("helpless", 6)
	// [CLS] help ##less [SEP]
	if ids[1] != 4 || ids[2] != 5 {
		t.Fatalf("expected wordpiece split, got %v", ids)
	}
}

func TestEncodeUnknownWordMapsToUNK(t *testing.T) {
	path := writeVocab(t, "[PAD]", "[UNK]", "[CLS]", "[SEP]", "hello")
	tok, err := loadTokenizer(path)
	if err != nil {
		t.Fatal(err)
	}

	ids, _ := tok.encode("zzzzz", 5)
	if ids[1] != 1 {
		t.Fatalf("expected [UNK] id, got %v", ids)
	}
}

func TestEncodeTruncatesLongInput(t *testing.T) {
	path := writeVocab(t, "[PAD]", "[UNK]", "[CLS]", "[SEP]", "a")
	tok, err := loadTokenizer(path)
	if err != nil {
		t.Fatal(err)
	}

	ids, attn := tok.encode("a a a a a a a a a a", 6)
	if len(ids) != 6 {
		t.Fatalf("expected truncation to 6, got %d", len(ids))
	}
	if ids[5] != 3 {
		t.Fatalf("expected trailing [SEP], got %v", ids)
	}
	if attn[5] != 1 {
		t.Fatal("attention mask must cover the full truncated window")
	}
}
