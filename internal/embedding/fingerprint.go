package embedding

import (
	"context"
	"crypto/sha256"
)

const (
	// FingerprintModel is the reported model name for the digest embedder.
	FingerprintModel = "simple-hash-256"

	// FingerprintDimension is the default vector size. A sha256 digest has
	// exactly 32 bytes, so dimensions above 32 are not possible.
	FingerprintDimension = 32
)

// Fingerprint embeds text as a structural fingerprint: each component is
// one byte of the text's sha256 digest scaled into [0,1]. It is pure,
// deterministic and total; equal strings always produce bit-identical
// vectors and no input can fail.
//
// This is NOT a semantic embedding. Near-duplicate meanings are not
// guaranteed to land near each other; only exact or near-exact text reuse
// is reliably retrieved. Callers relying on similarity search must treat
// that as a documented property of the index, not a defect.
type Fingerprint struct {
	dimension int
}

// Compile-time check that Fingerprint implements Embedder.
var _ Embedder = (*Fingerprint)(nil)

// NewFingerprint creates a digest embedder. Dimensions outside 1..32 fall
// back to the default 32.
func NewFingerprint(dimension int) *Fingerprint {
	if dimension <= 0 || dimension > FingerprintDimension {
		dimension = FingerprintDimension
	}
	return &Fingerprint{dimension: dimension}
}

// Model returns the fingerprint pseudo-model name.
func (f *Fingerprint) Model() string {
	return FingerprintModel
}

// Dimension returns the configured vector size.
func (f *Fingerprint) Dimension() int {
	return f.dimension
}

// Embed maps text to its digest vector. The error is always nil; it exists
// only to satisfy the Embedder contract.
func (f *Fingerprint) Embed(_ context.Context, text string) ([]float32, error) {
	digest := sha256.Sum256([]byte(text))

	vector := make([]float32, f.dimension)
	for i := range vector {
		vector[i] = float32(digest[i]) / 255.0
	}
	return vector, nil
}

// EmbedBatch maps each text independently. Never fails.
func (f *Fingerprint) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i], _ = f.Embed(ctx, text)
	}
	return vectors, nil
}
