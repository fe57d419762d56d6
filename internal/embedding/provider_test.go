package embedding

import (
	"math"
	"testing"
)

func TestCosine(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors = %v, want 1", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors = %v, want 0", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{0, 0}); got != 0 {
		t.Errorf("zero vector = %v, want 0", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Errorf("dimension mismatch = %v, want 0", got)
	}
}

func TestNewProviderNone(t *testing.T) {
	p, err := NewProvider(ProviderConfig{Provider: "none"})
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Error("none provider should be nil")
	}
}

func TestNewProviderUnknown(t *testing.T) {
	if _, err := NewProvider(ProviderConfig{Provider: "quantum"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestValidateEmbedding(t *testing.T) {
	if err := validateEmbedding([]float32{0.1, 0.2}, 2); err != nil {
		t.Errorf("valid vector rejected: %v", err)
	}
	if err := validateEmbedding([]float32{0.1}, 2); err == nil {
		t.Error("dimension mismatch accepted")
	}
	if err := validateEmbedding([]float32{0, 0, 0}, 3); err == nil {
		t.Error("all-zero vector accepted")
	}
}
