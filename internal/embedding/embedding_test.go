package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/Harshitk-cp/doxa/internal/domain"
)

func TestHashClientDeterministic(t *testing.T) {
	ctx := context.Background()
	client := NewHashClient()

	a, err := client.Embed(ctx, "user prefers dark themes")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := client.Embed(ctx, "user prefers dark themes")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(a) != hashDimension {
		t.Fatalf("dimension = %d, want %d", len(a), hashDimension)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at index %d: %v vs %v", i, a[i], b[i])
		}
	}

	c, err := client.Embed(ctx, "completely different sentence about builds")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("distinct texts embedded identically")
	}
}

func TestHashClientNormalized(t *testing.T) {
	client := NewHashClient()

	v, err := client.Embed(context.Background(), "normalize this vector please")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("squared norm = %v, want 1", norm)
	}
}

func TestHashClientEmptyText(t *testing.T) {
	client := NewHashClient()

	v, err := client.Embed(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for i, x := range v {
		if x != 0 {
			t.Fatalf("blank text produced non-zero component at %d", i)
		}
	}
}

func TestNewClient(t *testing.T) {
	if _, err := NewClient(ProviderHash, ""); err != nil {
		t.Errorf("hash provider: %v", err)
	}
	if _, err := NewClient(ProviderOpenAI, "sk-test"); err != nil {
		t.Errorf("openai provider with key: %v", err)
	}
	if _, err := NewClient(ProviderOpenAI, ""); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("openai provider without key: expected ErrConfiguration, got %v", err)
	}
	if _, err := NewClient("word2vec", ""); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("unknown provider: expected ErrConfiguration, got %v", err)
	}
}
