package components

import (
	"context"
	"sort"

	"github.com/goccy/go-json"

	"github.com/kbukum/recpipe/component"
	"github.com/kbukum/recpipe/errors"
)

// ratingIndex is the training data every trainable component keeps.
// Ratings are deduplicated (the last rating of a user/item pair wins) and
// sorted by user then item, so derived values are reproducible after a
// snapshot round trip.
type ratingIndex struct {
	ratings []component.Rating
	users   []string
	items   []string
	byUser  map[string][]component.Rating
	counts  map[string]int
}

func newRatingIndex(rs []component.Rating) *ratingIndex {
	type key struct{ user, item string }
	last := make(map[key]int, len(rs))
	for i, r := range rs {
		last[key{r.User, r.Item}] = i
	}
	ratings := make([]component.Rating, 0, len(last))
	for i, r := range rs {
		if last[key{r.User, r.Item}] == i {
			ratings = append(ratings, r)
		}
	}
	sort.Slice(ratings, func(a, b int) bool {
		if ratings[a].User != ratings[b].User {
			return ratings[a].User < ratings[b].User
		}
		return ratings[a].Item < ratings[b].Item
	})

	idx := &ratingIndex{
		ratings: ratings,
		byUser:  make(map[string][]component.Rating),
		counts:  make(map[string]int),
	}
	for _, r := range ratings {
		if _, ok := idx.byUser[r.User]; !ok {
			idx.users = append(idx.users, r.User)
		}
		idx.byUser[r.User] = append(idx.byUser[r.User], r)
		idx.counts[r.Item]++
	}
	for item := range idx.counts {
		idx.items = append(idx.items, item)
	}
	sort.Strings(idx.items)
	return idx
}

// history returns q's ratings: the query's own history if given,
// otherwise the user's training ratings.
func (x *ratingIndex) history(q Query) []component.Rating {
	if len(q.History) > 0 {
		return q.History
	}
	return x.byUser[q.User]
}

type ratingState struct {
	Ratings []component.Rating `json:"ratings"`
}

// trained implements Trainable and Snapshotter over a ratingIndex.
type trained struct {
	idx *ratingIndex
}

func (t *trained) Train(ctx context.Context, ds *component.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.idx = newRatingIndex(ds.Ratings)
	return nil
}

func (t *trained) MarshalState() ([]byte, error) {
	if t.idx == nil {
		return nil, nil
	}
	return json.Marshal(ratingState{Ratings: t.idx.ratings})
}

func (t *trained) UnmarshalState(data []byte) error {
	var st ratingState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	t.idx = newRatingIndex(st.Ratings)
	return nil
}

func (t *trained) index() (*ratingIndex, error) {
	if t.idx == nil {
		return nil, errors.InvalidInput("state", "component has not been trained")
	}
	return t.idx, nil
}

func querySlot(in component.Inputs) (Query, error) {
	raw, ok := in["query"]
	if !ok || raw == nil {
		return Query{}, errNotSet("query")
	}
	q, err := AsQuery(raw)
	if err != nil {
		return Query{}, errInvalid("query", err)
	}
	return q, nil
}

func itemsSlot(in component.Inputs) ([]string, error) {
	raw, ok := in["items"]
	if !ok || raw == nil {
		return nil, errNotSet("items")
	}
	ids, err := ItemIDs(raw)
	if err != nil {
		return nil, errInvalid("items", err)
	}
	return ids, nil
}
