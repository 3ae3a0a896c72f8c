package components

import (
	"fmt"
	"math"
	"sort"

	"github.com/goccy/go-json"

	"github.com/kbukum/recpipe/component"
)

// Type tags produced and consumed by the reference components.
const (
	TypeMatrix      component.TypeTag = "matrix"
	TypeScores      component.TypeTag = "scores"
	TypeRanking     component.TypeTag = "ranking"
	TypeQuery       component.TypeTag = "query"
	TypeItems       component.TypeTag = "items"
	TypeScoredItems component.TypeTag = "items.scored"
	TypeRankedItems component.TypeTag = "items.ranked"
)

// Query identifies the user to recommend for. History, when set, is the
// user's known ratings and takes precedence over training data.
type Query struct {
	User    string             `json:"user"`
	History []component.Rating `json:"history,omitempty"`
}

// ScoredItem is an item with a score. Unscorable items carry NaN, which
// encodes as a null score.
type ScoredItem struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// MarshalJSON writes a NaN or infinite score as null.
func (s ScoredItem) MarshalJSON() ([]byte, error) {
	wire := struct {
		ID    string   `json:"id"`
		Score *float64 `json:"score"`
	}{ID: s.ID}
	if !math.IsNaN(s.Score) && !math.IsInf(s.Score, 0) {
		wire.Score = &s.Score
	}
	return json.Marshal(wire)
}

// UnmarshalJSON reads a null or missing score as NaN.
func (s *ScoredItem) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID    string   `json:"id"`
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	s.ID = wire.ID
	s.Score = math.NaN()
	if wire.Score != nil {
		s.Score = *wire.Score
	}
	return nil
}

// AsQuery accepts a Query, a bare user id, or the decoded JSON form
// {"user": ..., "history": [{"item": ..., "rating": ...}]}.
func AsQuery(v any) (Query, error) {
	switch q := v.(type) {
	case Query:
		return q, nil
	case *Query:
		if q == nil {
			return Query{}, fmt.Errorf("query is nil")
		}
		return *q, nil
	case string:
		if q == "" {
			return Query{}, fmt.Errorf("query user is empty")
		}
		return Query{User: q}, nil
	case map[string]any:
		user, _ := q["user"].(string)
		out := Query{User: user}
		if raw, ok := q["history"]; ok && raw != nil {
			list, ok := raw.([]any)
			if !ok {
				return Query{}, fmt.Errorf("query history is %T, want a list", raw)
			}
			for i, e := range list {
				m, ok := e.(map[string]any)
				if !ok {
					return Query{}, fmt.Errorf("history[%d] is %T, want an object", i, e)
				}
				item, _ := m["item"].(string)
				if item == "" {
					return Query{}, fmt.Errorf("history[%d] has no item", i)
				}
				rating := 1.0
				if r, ok := m["rating"]; ok {
					f, err := toFloat(r)
					if err != nil {
						return Query{}, fmt.Errorf("history[%d].rating: %w", i, err)
					}
					rating = f
				}
				out.History = append(out.History, component.Rating{User: user, Item: item, Value: rating})
			}
		}
		if out.User == "" && len(out.History) == 0 {
			return Query{}, fmt.Errorf("query has neither user nor history")
		}
		return out, nil
	default:
		return Query{}, fmt.Errorf("cannot use %T as a query", v)
	}
}

// ItemIDs extracts item ids, in order, from a list of ids or scored items,
// including their decoded JSON forms.
func ItemIDs(v any) ([]string, error) {
	switch items := v.(type) {
	case []string:
		return items, nil
	case []ScoredItem:
		ids := make([]string, len(items))
		for i, it := range items {
			ids[i] = it.ID
		}
		return ids, nil
	case []any:
		ids := make([]string, len(items))
		for i, e := range items {
			switch it := e.(type) {
			case string:
				ids[i] = it
			case map[string]any:
				id, ok := it["id"].(string)
				if !ok {
					return nil, fmt.Errorf("items[%d] has no id", i)
				}
				ids[i] = id
			default:
				return nil, fmt.Errorf("items[%d] is %T", i, e)
			}
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("cannot use %T as an item list", v)
	}
}

// scoredItems accepts []ScoredItem or its decoded JSON form. A missing or
// null score is NaN.
func scoredItems(v any) ([]ScoredItem, error) {
	switch items := v.(type) {
	case []ScoredItem:
		return items, nil
	case []any:
		out := make([]ScoredItem, len(items))
		for i, e := range items {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("items[%d] is %T, want an object", i, e)
			}
			id, ok := m["id"].(string)
			if !ok {
				return nil, fmt.Errorf("items[%d] has no id", i)
			}
			score := math.NaN()
			if raw, ok := m["score"]; ok && raw != nil {
				f, err := toFloat(raw)
				if err != nil {
					return nil, fmt.Errorf("items[%d].score: %w", i, err)
				}
				score = f
			}
			out[i] = ScoredItem{ID: id, Score: score}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot use %T as scored items", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%v (%T) is not a number", v, v)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%v (%T) is not an integer", v, v)
	}
}

// options reads a node's config map. Keys that no reader asks for are
// reported by done.
type options struct {
	cfg  map[string]any
	seen map[string]bool
	err  error
}

func newOptions(cfg map[string]any) *options {
	return &options{cfg: cfg, seen: make(map[string]bool, len(cfg))}
}

func (o *options) fail(key string, err error) {
	if o.err == nil {
		o.err = fmt.Errorf("%s: %w", key, err)
	}
}

func (o *options) intOpt(key string, def int) int {
	o.seen[key] = true
	raw, ok := o.cfg[key]
	if !ok || raw == nil {
		return def
	}
	n, err := toInt(raw)
	if err != nil {
		o.fail(key, err)
		return def
	}
	return n
}

func (o *options) floatOpt(key string, def float64) float64 {
	o.seen[key] = true
	raw, ok := o.cfg[key]
	if !ok || raw == nil {
		return def
	}
	f, err := toFloat(raw)
	if err != nil {
		o.fail(key, err)
		return def
	}
	return f
}

func (o *options) stringOpt(key, def string, allowed ...string) string {
	o.seen[key] = true
	raw, ok := o.cfg[key]
	if !ok || raw == nil {
		return def
	}
	s, ok := raw.(string)
	if !ok {
		o.fail(key, fmt.Errorf("%v (%T) is not a string", raw, raw))
		return def
	}
	if len(allowed) > 0 {
		for _, a := range allowed {
			if s == a {
				return s
			}
		}
		o.fail(key, fmt.Errorf("%q is not one of %v", s, allowed))
		return def
	}
	return s
}

func (o *options) done() error {
	if o.err != nil {
		return o.err
	}
	var unknown []string
	for key := range o.cfg {
		if !o.seen[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown config keys %v", unknown)
	}
	return nil
}
