package eval

import (
	"math"
	"sort"
	"sync"
)

// Metric names used in rows and summaries.
const (
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricNDCG      = "ndcg"
	MetricRecipRank = "recip_rank"
)

// Func is the shape shared by the ranking metrics.
type Func func(ranked []string, relevant Set, k int) (float64, error)

// Metrics maps each metric name to its function.
var Metrics = map[string]Func{
	MetricPrecision: Precision,
	MetricRecall:    Recall,
	MetricNDCG:      NDCG,
	MetricRecipRank: RecipRank,
}

// Row holds one list's metric values. Undefined values are NaN.
type Row struct {
	List   string             `json:"list"`
	Values map[string]float64 `json:"values"`
}

// Summary aggregates the rows an Accumulator has seen.
type Summary struct {
	K     int                `json:"k"`
	Lists int                `json:"lists"`
	Mean  map[string]float64 `json:"mean"`
}

// Names returns the metric names in the summary, sorted.
func (s Summary) Names() []string {
	names := make([]string, 0, len(s.Mean))
	for name := range s.Mean {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Accumulator measures ranked lists against their relevant sets and
// averages the results. It is safe for concurrent use.
type Accumulator struct {
	k int

	mu   sync.Mutex
	rows []Row
}

// NewAccumulator measures at cutoff k (0 = none).
func NewAccumulator(k int) (*Accumulator, error) {
	if err := checkK(k); err != nil {
		return nil, err
	}
	return &Accumulator{k: k}, nil
}

// Measure computes every metric for one list and records the row.
func (a *Accumulator) Measure(list string, ranked []string, relevant Set) Row {
	row := Row{List: list, Values: make(map[string]float64, len(Metrics))}
	for name, fn := range Metrics {
		// k was validated by NewAccumulator.
		v, _ := fn(ranked, relevant, a.k)
		row.Values[name] = v
	}
	a.mu.Lock()
	a.rows = append(a.rows, row)
	a.mu.Unlock()
	return row
}

// Rows returns a copy of the recorded rows.
func (a *Accumulator) Rows() []Row {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Row(nil), a.rows...)
}

// Summary returns per-metric means. Undefined values count as 0, and an
// empty accumulator reports zeros.
func (a *Accumulator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Summary{K: a.k, Lists: len(a.rows), Mean: make(map[string]float64, len(Metrics))}
	for name := range Metrics {
		if len(a.rows) == 0 {
			s.Mean[name] = 0
			continue
		}
		var sum float64
		for _, row := range a.rows {
			if v := row.Values[name]; !math.IsNaN(v) {
				sum += v
			}
		}
		s.Mean[name] = sum / float64(len(a.rows))
	}
	return s
}
