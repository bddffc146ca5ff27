package embedding

import (
	"math"
	"testing"
)

func TestCosineIdenticalText(t *testing.T) {
	a := newEmbedding(hashVector("the cat sat on the mat", 64))
	b := newEmbedding(hashVector("the cat sat on the mat", 64))

	sim := Cosine(a, b)
	if sim < 0.999 {
		t.Errorf("Expected similarity ~1 for identical text, got %f", sim)
	}
	if sim > 1 {
		t.Errorf("Similarity exceeds 1: %f", sim)
	}
}

func TestCosineDegenerateInputs(t *testing.T) {
	unit := newEmbedding([]float32{1, 0, 0})
	zero := newEmbedding([]float32{0, 0, 0})
	short := newEmbedding([]float32{1, 0})

	tests := []struct {
		name string
		a, b *Embedding
	}{
		{"nil first", nil, unit},
		{"nil second", unit, nil},
		{"both nil", nil, nil},
		{"dimension mismatch", unit, short},
		{"zero magnitude", unit, zero},
		{"both zero", zero, zero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if sim := Cosine(tt.a, tt.b); sim != 0 {
				t.Errorf("Expected similarity 0, got %f", sim)
			}
		})
	}
}

func TestCosineOppositeVectors(t *testing.T) {
	a := newEmbedding([]float32{1, 2, 3})
	b := newEmbedding([]float32{-1, -2, -3})

	sim := Cosine(a, b)
	if math.Abs(float64(sim)+1) > 1e-5 {
		t.Errorf("Expected similarity -1 for opposite vectors, got %f", sim)
	}
}

func TestHashVectorDeterministic(t *testing.T) {
	a := hashVector("Hello, World! 123", 128)
	b := hashVector("Hello, World! 123", 128)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Hash vectors differ at dimension %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestHashVectorNormalized(t *testing.T) {
	values := hashVector("some meaningful text", 64)
	mag := l2norm(values)
	if math.Abs(float64(mag)-1) > 1e-5 {
		t.Errorf("Expected unit magnitude, got %f", mag)
	}
}

func TestHashVectorDegenerateText(t *testing.T) {
	for _, text := range []string{"", "!!! ???", "   "} {
		values := hashVector(text, 32)
		if l2norm(values) != 0 {
			t.Errorf("Expected zero vector for %q", text)
		}
	}
}

func TestHashVectorCaseInsensitive(t *testing.T) {
	a := hashVector("Cat", 64)
	b := hashVector("cat", 64)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Case should not affect the hash vector, dimension %d differs", i)
		}
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	values := []float32{0, 0, 0}
	if mag := normalize(values); mag != 0 {
		t.Errorf("Expected magnitude 0, got %f", mag)
	}
}
