package mosaic

import "sync"

// DefaultRetries is the retry budget given to each unit of work.
const DefaultRetries = 2

// Budget counts the transient failures one unit of work may still retry.
// Create one per page or per boundary probe; never share one across units.
// A Budget is safe for use by the concurrent tile fetches of a single page.
type Budget struct {
	mu        sync.Mutex
	remaining int
	spent     int
}

// NewBudget returns a budget allowing n retries. Negative n is treated as 0.
func NewBudget(n int) *Budget {
	if n < 0 {
		n = 0
	}
	return &Budget{remaining: n}
}

// Spend consumes one retry. It returns false, consuming nothing, when the
// budget is already exhausted.
func (b *Budget) Spend() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining == 0 {
		return false
	}
	b.remaining--
	b.spent++
	return true
}

// Remaining returns the retries left.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

// Spent returns the retries consumed so far.
func (b *Budget) Spent() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}
