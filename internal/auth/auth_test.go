package auth

import (
	"testing"

	"github.com/sentira-ai/sentira/internal/config"
)

func TestLookup(t *testing.T) {
	cfg := &config.Config{
		Projects: []config.Project{
			{ID: "helpline", APIKeys: []string{"key-a", "key-b"}, SensitivityLevel: "high"},
			{ID: "campus", APIKeys: []string{"key-c"}, SensitivityLevel: "standard"},
		},
	}

	a, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, ok := a.Lookup("key-b")
	if !ok || p.ID != "helpline" || p.Sensitivity != "high" {
		t.Fatalf("unexpected lookup result: %+v ok=%v", p, ok)
	}
	if _, ok := a.Lookup("unknown"); ok {
		t.Fatal("unknown key must not resolve")
	}
}

func TestDuplicateKeyRejected(t *testing.T) {
	cfg := &config.Config{
		Projects: []config.Project{
			{ID: "p1", APIKeys: []string{"shared"}},
			{ID: "p2", APIKeys: []string{"shared"}},
		},
	}
	if _, err := NewFromConfig(cfg); err == nil {
		t.Fatal("expected duplicate key error")
	}
}
