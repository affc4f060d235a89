package backfill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrBudgetExhausted is returned by Gate.Acquire once a provider's
// daily call budget is spent. Symbols hit by it stay pending.
var ErrBudgetExhausted = errors.New("provider call budget exhausted")

// Gate paces calls to one provider: a token bucket for request
// spacing plus an optional hard daily budget.
type Gate struct {
	limiter     *rate.Limiter
	waitTimeout time.Duration

	mu     sync.Mutex
	budget int // 0 means unlimited
	used   int
}

// NewGate creates a gate allowing one call per interval, with a total
// call budget (0 for unlimited) and a bound on how long Acquire may
// block waiting for a token.
func NewGate(interval time.Duration, budget int, waitTimeout time.Duration) *Gate {
	if interval <= 0 {
		interval = time.Millisecond
	}
	if waitTimeout <= 0 {
		waitTimeout = 30 * time.Second
	}
	return &Gate{
		limiter:     rate.NewLimiter(rate.Every(interval), 1),
		waitTimeout: waitTimeout,
		budget:      budget,
	}
}

// Acquire blocks until a token is available or the wait timeout
// elapses. It consumes one unit of budget on success.
func (g *Gate) Acquire(ctx context.Context) error {
	g.mu.Lock()
	if g.budget > 0 && g.used >= g.budget {
		g.mu.Unlock()
		return ErrBudgetExhausted
	}
	g.used++
	g.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, g.waitTimeout)
	defer cancel()

	if err := g.limiter.Wait(waitCtx); err != nil {
		g.refund()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("rate limit wait: %w", err)
	}

	return nil
}

// Exhausted reports whether the budget is spent.
func (g *Gate) Exhausted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.budget > 0 && g.used >= g.budget
}

// Used returns how many calls have been consumed.
func (g *Gate) Used() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.used
}

func (g *Gate) refund() {
	g.mu.Lock()
	g.used--
	g.mu.Unlock()
}
