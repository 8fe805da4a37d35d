package statextdata

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
)

const (
	// MaxDimensions is the largest number of attributes a statistics object may cover.
	MaxDimensions = 8
	// MaxMCVItems bounds the length of a multivariate MCV list.
	MaxMCVItems = 10000

	frequencyEpsilon = 1e-6
)

var ErrInvalidPayload = errors.New("invalid statistics payload")

// NDistinctItem is the number of distinct values of a combination of attributes.
// Negative attribute numbers reference expressions of the statistics object.
type NDistinctItem struct {
	Attributes []common.AttrNumber `json:"attributes"`
	NDistinct  float64             `json:"ndistinct"`
}

// NDistinct is the pg_ndistinct value of a statistics object.
type NDistinct struct {
	Items []NDistinctItem `json:"items"`
}

func (n *NDistinct) Validate() error {
	if len(n.Items) == 0 {
		return fmt.Errorf("%w: ndistinct has no items", ErrInvalidPayload)
	}

	for i, item := range n.Items {
		if len(item.Attributes) < 2 || len(item.Attributes) > MaxDimensions {
			return fmt.Errorf(
				"%w: ndistinct item %d covers %d attributes",
				ErrInvalidPayload, i, len(item.Attributes),
			)
		}

		if err := checkAttributes(item.Attributes); err != nil {
			return fmt.Errorf("ndistinct item %d: %w", i, err)
		}

		if item.NDistinct < 0 || math.IsNaN(item.NDistinct) {
			return fmt.Errorf(
				"%w: ndistinct item %d has negative estimate %v",
				ErrInvalidPayload, i, item.NDistinct,
			)
		}

		if item.NDistinct != math.Trunc(item.NDistinct) || item.NDistinct > math.MaxInt32 {
			return fmt.Errorf(
				"%w: ndistinct item %d estimate %v is not a 32-bit integer",
				ErrInvalidPayload, i, item.NDistinct,
			)
		}
	}

	return nil
}

func (n *NDistinct) Clone() *NDistinct {
	if n == nil {
		return nil
	}

	items := make([]NDistinctItem, len(n.Items))
	for i, item := range n.Items {
		items[i] = NDistinctItem{
			Attributes: slices.Clone(item.Attributes),
			NDistinct:  item.NDistinct,
		}
	}

	return &NDistinct{Items: items}
}

// Dependency states that Attributes functionally determine Dependent
// with the given degree of validity.
type Dependency struct {
	Attributes []common.AttrNumber `json:"attributes"`
	Dependent  common.AttrNumber   `json:"dependent"`
	Degree     float64             `json:"degree"`
}

// Dependencies is the pg_dependencies value of a statistics object.
type Dependencies struct {
	Items []Dependency `json:"items"`
}

func (d *Dependencies) Validate() error {
	if len(d.Items) == 0 {
		return fmt.Errorf("%w: dependencies have no items", ErrInvalidPayload)
	}

	for i, dep := range d.Items {
		if len(dep.Attributes) == 0 || len(dep.Attributes)+1 > MaxDimensions {
			return fmt.Errorf(
				"%w: dependency %d has %d determinants",
				ErrInvalidPayload, i, len(dep.Attributes),
			)
		}

		all := append(slices.Clone(dep.Attributes), dep.Dependent)
		if err := checkAttributes(all); err != nil {
			return fmt.Errorf("dependency %d: %w", i, err)
		}

		if !inUnitRange(dep.Degree) {
			return fmt.Errorf(
				"%w: dependency %d has degree %v",
				ErrInvalidPayload, i, dep.Degree,
			)
		}
	}

	return nil
}

func (d *Dependencies) Clone() *Dependencies {
	if d == nil {
		return nil
	}

	items := make([]Dependency, len(d.Items))
	for i, dep := range d.Items {
		items[i] = Dependency{
			Attributes: slices.Clone(dep.Attributes),
			Dependent:  dep.Dependent,
			Degree:     dep.Degree,
		}
	}

	return &Dependencies{Items: items}
}

// MCVItem is one combination of most common values. Values[i] is
// meaningless when Nulls[i] is set.
type MCVItem struct {
	Values        []string `json:"values"`
	Nulls         []bool   `json:"nulls"`
	Frequency     float64  `json:"frequency"`
	BaseFrequency float64  `json:"base_frequency"`
}

// MCVList is the pg_mcv_list value of a statistics object.
type MCVList struct {
	Items []MCVItem `json:"items"`
}

func (m *MCVList) Validate() error {
	if len(m.Items) == 0 || len(m.Items) > MaxMCVItems {
		return fmt.Errorf("%w: mcv list has %d items", ErrInvalidPayload, len(m.Items))
	}

	ndims := len(m.Items[0].Values)
	if ndims < 1 || ndims > MaxDimensions {
		return fmt.Errorf("%w: mcv list has %d dimensions", ErrInvalidPayload, ndims)
	}

	var total float64

	for i, item := range m.Items {
		if len(item.Values) != ndims || len(item.Nulls) != ndims {
			return fmt.Errorf(
				"%w: mcv item %d has %d values and %d null flags, expected %d",
				ErrInvalidPayload, i, len(item.Values), len(item.Nulls), ndims,
			)
		}

		if !inUnitRange(item.Frequency) || !inUnitRange(item.BaseFrequency) {
			return fmt.Errorf(
				"%w: mcv item %d has frequency %v and base frequency %v",
				ErrInvalidPayload, i, item.Frequency, item.BaseFrequency,
			)
		}

		total += item.Frequency
	}

	if total > 1+frequencyEpsilon {
		return fmt.Errorf("%w: mcv frequencies sum to %v", ErrInvalidPayload, total)
	}

	return nil
}

func (m *MCVList) Clone() *MCVList {
	if m == nil {
		return nil
	}

	items := make([]MCVItem, len(m.Items))
	for i, item := range m.Items {
		items[i] = MCVItem{
			Values:        slices.Clone(item.Values),
			Nulls:         slices.Clone(item.Nulls),
			Frequency:     item.Frequency,
			BaseFrequency: item.BaseFrequency,
		}
	}

	return &MCVList{Items: items}
}

// ExprStats holds the per-expression statistics kept in stxdexpr.
// A negative NDistinct is a fraction of the row count, as in pg_statistic.
type ExprStats struct {
	NullFrac  float64 `json:"null_frac"`
	AvgWidth  int32   `json:"avg_width"`
	NDistinct float64 `json:"n_distinct"`
}

func (e ExprStats) Validate() error {
	if !inUnitRange(e.NullFrac) {
		return fmt.Errorf("%w: null fraction %v", ErrInvalidPayload, e.NullFrac)
	}

	if e.AvgWidth < 0 {
		return fmt.Errorf("%w: average width %d", ErrInvalidPayload, e.AvgWidth)
	}

	if e.NDistinct < -1 || math.IsNaN(e.NDistinct) {
		return fmt.Errorf("%w: n_distinct %v", ErrInvalidPayload, e.NDistinct)
	}

	return nil
}

func checkAttributes(attrs []common.AttrNumber) error {
	seen := make(map[common.AttrNumber]struct{}, len(attrs))

	for _, a := range attrs {
		if a == common.InvalidAttrNumber {
			return fmt.Errorf("%w: attribute number 0", ErrInvalidPayload)
		}

		if _, dup := seen[a]; dup {
			return fmt.Errorf("%w: attribute %d repeated", ErrInvalidPayload, a)
		}
		seen[a] = struct{}{}
	}

	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}
