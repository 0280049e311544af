package embedding

import (
	"context"
	"time"

	"github.com/raphaelgruber/helix-go/internal/metrics"
)

// Metered wraps an Embedder and records the duration of each successful
// call, so every embed in the system is measured regardless of which
// component triggered it.
type Metered struct {
	inner     Embedder
	collector *metrics.Collector
}

// NewMetered decorates inner with timing collection. A nil collector
// returns inner unchanged.
func NewMetered(inner Embedder, collector *metrics.Collector) Embedder {
	if collector == nil {
		return inner
	}
	return &Metered{inner: inner, collector: collector}
}

func (m *Metered) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vector, err := m.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	m.collector.RecordTiming(metrics.OpEmbed, time.Since(start))
	return vector, nil
}

func (m *Metered) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := m.inner.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	m.collector.RecordTiming(metrics.OpEmbed, time.Since(start))
	return vectors, nil
}

func (m *Metered) Model() string { return m.inner.Model() }

func (m *Metered) Dimension() int { return m.inner.Dimension() }
