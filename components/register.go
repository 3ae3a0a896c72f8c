package components

import (
	"github.com/kbukum/recpipe/component"
)

// Type ids.
const (
	TypeIDRatingMatrix = "rating-matrix"
	TypeIDRowSum       = "row-sum"
	TypeIDTopK         = "top-k"
	TypeIDHistory      = "history"
	TypeIDCandidates   = "candidates"
	TypeIDPopular      = "popular"
	TypeIDUserKNN      = "user-knn"
	TypeIDTopN         = "top-n"
)

// Register installs every reference component in reg.
func Register(reg *component.Registry) error {
	factories := []struct {
		id string
		f  component.Factory
	}{
		{TypeIDRatingMatrix, func() component.Component { return RatingMatrix{} }},
		{TypeIDRowSum, func() component.Component { return RowSum{} }},
		{TypeIDTopK, func() component.Component { return &TopK{} }},
		{TypeIDHistory, func() component.Component { return &History{} }},
		{TypeIDCandidates, func() component.Component { return &Candidates{} }},
		{TypeIDPopular, func() component.Component { return &Popular{} }},
		{TypeIDUserKNN, func() component.Component { return &UserKNN{} }},
		{TypeIDTopN, func() component.Component { return &TopN{} }},
	}
	for _, e := range factories {
		if err := reg.Register(e.id, e.f); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the reference components.
func NewRegistry() *component.Registry {
	reg := component.NewRegistry()
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
}
