package backend

import (
	"context"
	"log/slog"
)

// chainState is the progress of one analysis through the fallback chain.
type chainState int

const (
	stateIdle chainState = iota
	stateCallingPrimary
	stateCallingFallback
	statePlaceholder
	stateDone
)

func (s chainState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateCallingPrimary:
		return "calling_primary"
	case stateCallingFallback:
		return "calling_fallback"
	case statePlaceholder:
		return "placeholder"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Chain tries the primary analyzer, retries once against the fallback,
// and finally degrades to the placeholder. Backend failures never reach
// the caller; context cancellation and emit errors do.
type Chain struct {
	primary     Analyzer
	fallback    Analyzer
	placeholder Analyzer
	log         *slog.Logger
}

// NewChain assembles a chain. primary and fallback may be nil, in which
// case their stages are skipped; a nil placeholder gets the stock one.
func NewChain(primary, fallback, placeholder Analyzer, log *slog.Logger) *Chain {
	if placeholder == nil {
		placeholder = NewPlaceholder()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Chain{
		primary:     primary,
		fallback:    fallback,
		placeholder: placeholder,
		log:         log,
	}
}

// Model names the chain's nominal model: the primary's when configured,
// otherwise the placeholder's.
func (c *Chain) Model() string {
	if c.primary != nil {
		return c.primary.Model()
	}
	return c.placeholder.Model()
}

// Analyze walks the fallback chain and returns the first successful
// response. Only cancellation produces an error.
func (c *Chain) Analyze(ctx context.Context, req Request) (*Response, error) {
	st := stateIdle

	if c.primary != nil {
		st = c.step(st, stateCallingPrimary)
		resp, err := c.primary.Analyze(ctx, req)
		if err == nil {
			c.step(st, stateDone)
			return stamped(resp, c.primary), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn("primary analysis failed", "model", c.primary.Model(), "error", err)
	}

	if c.fallback != nil {
		st = c.step(st, stateCallingFallback)
		resp, err := c.fallback.Analyze(ctx, req)
		if err == nil {
			c.step(st, stateDone)
			return stamped(resp, c.fallback), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn("fallback analysis failed", "model", c.fallback.Model(), "error", err)
	}

	st = c.step(st, statePlaceholder)
	resp, err := c.placeholder.Analyze(ctx, req)
	if err != nil {
		// Unreachable with the stock placeholder.
		return nil, err
	}
	c.step(st, stateDone)
	return stamped(resp, c.placeholder), nil
}

// AnalyzeStream walks the same chain for streamed analyses. A stage that
// fails mid-stream may already have emitted deltas; the next stage then
// restarts its own stream, so the caller sees degraded but unbroken
// output. Errors returned by emit abort the whole chain unchanged.
func (c *Chain) AnalyzeStream(ctx context.Context, req Request, emit func(Delta) error) error {
	var emitErr error
	guarded := func(d Delta) error {
		if err := emit(d); err != nil {
			emitErr = err
			return err
		}
		return nil
	}

	st := stateIdle

	if c.primary != nil {
		st = c.step(st, stateCallingPrimary)
		err := c.primary.AnalyzeStream(ctx, req, guarded)
		if err == nil {
			c.step(st, stateDone)
			return nil
		}
		if emitErr != nil {
			return emitErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("primary stream failed", "model", c.primary.Model(), "error", err)
	}

	if c.fallback != nil {
		st = c.step(st, stateCallingFallback)
		err := c.fallback.AnalyzeStream(ctx, req, guarded)
		if err == nil {
			c.step(st, stateDone)
			return nil
		}
		if emitErr != nil {
			return emitErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("fallback stream failed", "model", c.fallback.Model(), "error", err)
	}

	st = c.step(st, statePlaceholder)
	if err := c.placeholder.AnalyzeStream(ctx, req, guarded); err != nil {
		return err
	}
	c.step(st, stateDone)
	return nil
}

func (c *Chain) step(from, to chainState) chainState {
	c.log.Debug("analysis chain transition", "from", from, "to", to)
	return to
}

// stamped fills in the response's model name when the analyzer left it
// blank.
func stamped(resp *Response, a Analyzer) *Response {
	if resp.Model == "" {
		resp.Model = a.Model()
	}
	return resp
}
