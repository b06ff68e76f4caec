package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// CallLimiter enforces a maximum number of allowed model calls.
type CallLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewCallLimiter creates a new limiter with a max number of calls.
// If max == 0, unlimited calls are allowed.
func NewCallLimiter(max int) *CallLimiter {
	return &CallLimiter{max: max}
}

// Increment increases the call counter and returns an error if the limit is exceeded.
func (l *CallLimiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max > 0 && l.count >= l.max {
		return fmt.Errorf("%w: %d", ErrCallLimitExceeded, l.max)
	}

	l.count++

	return nil
}

// Count returns the current number of calls made.
func (l *CallLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many calls are left before hitting the limit.
func (l *CallLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max == 0 {
		return -1 // unlimited
	}

	return l.max - l.count
}

// LimitedClient decorates a client with a call budget and an optional
// request rate.
type LimitedClient struct {
	next    ChatCompletionClient
	budget  *CallLimiter
	limiter *rate.Limiter
	timeout time.Duration
}

// LimitOptions configures NewLimitedClient.
type LimitOptions struct {
	// MaxCalls caps the number of Create calls; 0 means unlimited.
	MaxCalls int

	// RequestsPerSecond throttles Create; 0 disables throttling.
	RequestsPerSecond float64

	// Burst is the rate limiter's bucket size. Defaults to 1.
	Burst int

	// Timeout bounds each Create call, including the rate limit wait.
	// 0 means no timeout.
	Timeout time.Duration
}

// NewLimitedClient wraps next with the configured limits.
func NewLimitedClient(next ChatCompletionClient, optFns ...func(o *LimitOptions)) *LimitedClient {
	opts := LimitOptions{Burst: 1}

	for _, fn := range optFns {
		fn(&opts)
	}

	c := &LimitedClient{next: next, budget: NewCallLimiter(opts.MaxCalls), timeout: opts.Timeout}

	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return c
}

// Create implements ChatCompletionClient. A call is charged against the budget
// only once it passes the rate limiter; a call that gives up while waiting
// leaves the budget untouched.
func (c *LimitedClient) Create(ctx context.Context, messages []Message) (*Result, error) {
	if c.budget.Remaining() == 0 {
		return nil, fmt.Errorf("%w: %d", ErrCallLimitExceeded, c.budget.max)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if err := c.budget.Increment(); err != nil {
		return nil, err
	}

	return c.next.Create(ctx, messages)
}

// Info implements ChatCompletionClient.
func (c *LimitedClient) Info() Info { return c.next.Info() }

// Remaining returns the remaining call budget, or -1 when unlimited.
func (c *LimitedClient) Remaining() int { return c.budget.Remaining() }
