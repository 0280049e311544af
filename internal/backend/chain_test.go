package backend_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/helix-go/internal/backend"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// stub is a scriptable analyzer for chain tests.
type stub struct {
	name   string
	fail   bool
	calls  int
	deltas []backend.Delta
}

func (s *stub) Model() string { return s.name }

func (s *stub) Analyze(ctx context.Context, req backend.Request) (*backend.Response, error) {
	s.calls++
	if s.fail {
		return nil, errors.New(s.name + " unavailable")
	}
	return &backend.Response{AnswerText: s.name + " answer"}, nil
}

func (s *stub) AnalyzeStream(ctx context.Context, req backend.Request, emit func(backend.Delta) error) error {
	s.calls++
	if s.fail {
		return errors.New(s.name + " unavailable")
	}
	for _, d := range s.deltas {
		if err := emit(d); err != nil {
			return err
		}
	}
	return nil
}

func TestChainPrimarySucceeds(t *testing.T) {
	primary := &stub{name: "primary"}
	fallback := &stub{name: "fallback"}
	chain := backend.NewChain(primary, fallback, nil, testLogger())

	resp, err := chain.Analyze(context.Background(), backend.Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "primary answer", resp.AnswerText)
	assert.Equal(t, "primary", resp.Model)
	assert.Equal(t, 0, fallback.calls, "fallback must not be tried after primary success")
}

func TestChainFallsBack(t *testing.T) {
	primary := &stub{name: "primary", fail: true}
	fallback := &stub{name: "fallback"}
	chain := backend.NewChain(primary, fallback, nil, testLogger())

	resp, err := chain.Analyze(context.Background(), backend.Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "fallback answer", resp.AnswerText)
	assert.Equal(t, "fallback", resp.Model)
	assert.Equal(t, 1, primary.calls)
}

func TestChainDegradesToPlaceholder(t *testing.T) {
	primary := &stub{name: "primary", fail: true}
	fallback := &stub{name: "fallback", fail: true}
	chain := backend.NewChain(primary, fallback, nil, testLogger())

	resp, err := chain.Analyze(context.Background(), backend.Request{Query: "anything"})
	require.NoError(t, err, "backend failures must not reach the caller")
	require.NotNil(t, resp)
	assert.Contains(t, resp.AnswerText, "Executive Summary")
	assert.Equal(t, backend.NewPlaceholder().Model(), resp.Model)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestChainPlaceholderOnly(t *testing.T) {
	chain := backend.NewChain(nil, nil, nil, testLogger())

	resp, err := chain.Analyze(context.Background(), backend.Request{Query: "q"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AnswerText)
	assert.Equal(t, backend.NewPlaceholder().Model(), chain.Model())
}

func TestChainStreamDegrades(t *testing.T) {
	primary := &stub{name: "primary", fail: true}
	fallback := &stub{name: "fallback", fail: true}
	chain := backend.NewChain(primary, fallback, nil, testLogger())

	var thinking, text int
	sawTextBeforeThinking := false
	err := chain.AnalyzeStream(context.Background(), backend.Request{Query: "q"}, func(d backend.Delta) error {
		switch d.Kind {
		case backend.DeltaThinking:
			if text > 0 {
				sawTextBeforeThinking = true
			}
			thinking++
		case backend.DeltaText:
			text++
		}
		return nil
	})
	require.NoError(t, err, "stream must degrade, not fail")
	assert.Greater(t, thinking, 0, "placeholder stream emits thinking deltas")
	assert.Greater(t, text, 0, "placeholder stream emits text deltas")
	assert.False(t, sawTextBeforeThinking, "thinking deltas precede text")
}

func TestChainStreamEmitError(t *testing.T) {
	errSink := errors.New("client went away")
	primary := &stub{name: "primary", deltas: []backend.Delta{
		{Kind: backend.DeltaText, Text: "part 1"},
		{Kind: backend.DeltaText, Text: "part 2"},
	}}
	fallback := &stub{name: "fallback"}
	chain := backend.NewChain(primary, fallback, nil, testLogger())

	err := chain.AnalyzeStream(context.Background(), backend.Request{Query: "q"}, func(backend.Delta) error {
		return errSink
	})
	require.ErrorIs(t, err, errSink, "emit errors propagate unchanged")
	assert.Equal(t, 0, fallback.calls, "emit errors must not trigger fallback")
}

func TestChainCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &stub{name: "primary", fail: true}
	fallback := &stub{name: "fallback"}
	chain := backend.NewChain(primary, fallback, nil, testLogger())

	_, err := chain.Analyze(ctx, backend.Request{Query: "q"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fallback.calls, "cancellation must stop the chain")
}
