package core

import (
	"fmt"
	"sync"
)

// Budget enforces the maximum number of loop iterations (model requests) per run.
type Budget struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewBudget creates a budget allowing max iterations. A max below 1 allows none.
func NewBudget(max int) *Budget {
	return &Budget{max: max}
}

// Exhausted reports whether no iteration is left.
func (b *Budget) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count >= b.max
}

// Increment consumes one iteration and returns an error if none was left.
func (b *Budget) Increment() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.max {
		return fmt.Errorf("exceeded max iterations: %d", b.max)
	}
	b.count++

	return nil
}

// Count returns the number of iterations consumed so far.
func (b *Budget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}

// Max returns the configured iteration limit.
func (b *Budget) Max() int { return b.max }

// Remaining returns how many iterations are left.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.max {
		return 0
	}
	return b.max - b.count
}
