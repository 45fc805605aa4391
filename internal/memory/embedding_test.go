package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hession/lifelog/internal/config"
)

func TestOpenAIEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("Expected path /v1/embeddings, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer emb-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Model != "text-embedding-3-small" || len(req.Input) != 1 || req.Input[0] != "User loves pizza" {
			t.Errorf("Unexpected request %+v", req)
		}
		w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	e := NewOpenAIEmbedder(server.URL+"/", "emb-key", "text-embedding-3-small", 3, 0, time.Second)
	vec, err := e.Embed(context.Background(), "User loves pizza")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vec) != 3 || vec[2] != 0.3 {
		t.Errorf("Embed() = %v", vec)
	}
	if e.Dimension() != 3 {
		t.Errorf("Dimension() = %d", e.Dimension())
	}
}

func TestOpenAIEmbedder_Errors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	e := NewOpenAIEmbedder(server.URL, "", "m", 3, 0, time.Second)
	if _, err := e.Embed(context.Background(), "text"); !errors.Is(err, ErrEmbeddingFailed) {
		t.Errorf("Expected ErrEmbeddingFailed, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call with no retries, got %d", calls)
	}

	if _, err := e.Embed(context.Background(), "  "); !errors.Is(err, ErrEmptyFact) {
		t.Errorf("Expected ErrEmptyFact, got %v", err)
	}
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("Expected path /api/embed, got %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "nomic-embed-text" || req["input"] != "User loves pizza" {
			t.Errorf("Unexpected request %v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[0.5,0.5]]}`))
	}))
	defer server.Close()

	e, err := NewOllamaEmbedder(server.URL, "nomic-embed-text", 2, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	vec, err := e.Embed(context.Background(), "User loves pizza")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 {
		t.Errorf("Embed() = %v", vec)
	}
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(128)
	ctx := context.Background()

	a, err := e.Embed(ctx, "User loves pizza")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 128 {
		t.Fatalf("len = %d, want 128", len(a))
	}
	if n := norm(a); math.Abs(n-1) > 1e-6 {
		t.Errorf("vector not normalized: %v", n)
	}

	b, _ := e.Embed(ctx, "user LOVES pizza!!")
	if sim := CosineSimilarity(a, b); math.Abs(sim-1) > 1e-6 {
		t.Errorf("same tokens should give similarity 1, got %v", sim)
	}

	again, _ := e.Embed(ctx, "User loves pizza")
	for i := range a {
		if a[i] != again[i] {
			t.Fatal("HashEmbedder is not deterministic")
		}
	}

	if _, err := e.Embed(ctx, ""); !errors.Is(err, ErrEmptyFact) {
		t.Errorf("Expected ErrEmptyFact, got %v", err)
	}
	if NewHashEmbedder(0).Dimension() != 256 {
		t.Error("Expected default dimension 256")
	}
}

func TestNewEmbedder(t *testing.T) {
	cfg := config.DefaultConfig().Embedding

	for provider, want := range map[string]string{
		"ollama": "*memory.OllamaEmbedder",
		"openai": "*memory.OpenAIEmbedder",
		"HASH":   "*memory.HashEmbedder",
	} {
		cfg.Provider = provider
		e, err := NewEmbedder(cfg)
		if err != nil {
			t.Fatalf("NewEmbedder(%s) error: %v", provider, err)
		}
		if got := fmt.Sprintf("%T", e); got != want {
			t.Errorf("NewEmbedder(%s) = %s, want %s", provider, got, want)
		}
	}

	cfg.Provider = "word2vec"
	if _, err := NewEmbedder(cfg); err == nil {
		t.Error("Expected error for unknown provider")
	}
}
