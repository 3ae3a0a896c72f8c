package batch

// Collector reassembles results that arrive in any order. Each sequence is
// accepted once; duplicates and sequences outside the job are ignored.
type Collector struct {
	delivery  Delivery
	seen      []bool
	pending   map[int]Result
	next      int
	delivered int
}

// NewCollector creates a collector for n requests.
func NewCollector(n int, delivery Delivery) *Collector {
	return &Collector{
		delivery: delivery,
		seen:     make([]bool, n),
		pending:  make(map[int]Result),
	}
}

// Add records r and returns the results that became deliverable. In order,
// that is the contiguous run starting at the next undelivered sequence;
// as completed, it is r itself.
func (c *Collector) Add(r Result) []Result {
	if r.Sequence < 0 || r.Sequence >= len(c.seen) || c.seen[r.Sequence] {
		return nil
	}
	c.seen[r.Sequence] = true

	if c.delivery == AsCompleted {
		c.delivered++
		return []Result{r}
	}

	c.pending[r.Sequence] = r
	var out []Result
	for {
		next, ok := c.pending[c.next]
		if !ok {
			break
		}
		delete(c.pending, c.next)
		out = append(out, next)
		c.next++
	}
	c.delivered += len(out)
	return out
}

// Complete reports whether every sequence has been delivered.
func (c *Collector) Complete() bool { return c.delivered == len(c.seen) }
