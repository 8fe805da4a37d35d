package statextdata

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Blackdeer1524/pgcatalog/src/catalog"
	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
)

var (
	ErrBadAttnum   = errors.New("attribute number out of range")
	ErrInvalidRow  = errors.New("invalid pg_statistic_ext_data row")
	ErrDatumType   = errors.New("unexpected datum type")
	ErrNotNullable = errors.New("null value in not-null column")
)

// IndexKey is the key of pg_statistic_ext_data_stxoid_inh_index.
type IndexKey struct {
	Stxoid      common.Oid `json:"stxoid"`
	Stxdinherit bool       `json:"stxdinherit"`
}

func (k IndexKey) Less(o IndexKey) bool {
	if k.Stxoid != o.Stxoid {
		return k.Stxoid < o.Stxoid
	}

	return !k.Stxdinherit && o.Stxdinherit
}

func (k IndexKey) String() string {
	return fmt.Sprintf("(%d, %t)", k.Stxoid, k.Stxdinherit)
}

func compareKeys(a, b IndexKey) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	default:
		return 0
	}
}

// Row is a single pg_statistic_ext_data tuple. A nil payload is SQL NULL.
type Row struct {
	Stxoid           common.Oid    `json:"stxoid"`
	Stxdinherit      bool          `json:"stxdinherit"`
	Stxdndistinct    *NDistinct    `json:"stxdndistinct,omitempty"`
	Stxddependencies *Dependencies `json:"stxddependencies,omitempty"`
	Stxdmcv          *MCVList      `json:"stxdmcv,omitempty"`
	Stxdexpr         []ExprStats   `json:"stxdexpr"`
}

func (r Row) Key() IndexKey {
	return IndexKey{Stxoid: r.Stxoid, Stxdinherit: r.Stxdinherit}
}

func (r Row) Validate() error {
	if !r.Stxoid.IsValid() {
		return fmt.Errorf("%w: stxoid is invalid", ErrInvalidRow)
	}

	if r.Stxdndistinct != nil {
		if err := r.Stxdndistinct.Validate(); err != nil {
			return fmt.Errorf("%w: stxdndistinct: %w", ErrInvalidRow, err)
		}
	}

	if r.Stxddependencies != nil {
		if err := r.Stxddependencies.Validate(); err != nil {
			return fmt.Errorf("%w: stxddependencies: %w", ErrInvalidRow, err)
		}
	}

	if r.Stxdmcv != nil {
		if err := r.Stxdmcv.Validate(); err != nil {
			return fmt.Errorf("%w: stxdmcv: %w", ErrInvalidRow, err)
		}
	}

	for i, e := range r.Stxdexpr {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: stxdexpr[%d]: %w", ErrInvalidRow, i, err)
		}
	}

	return nil
}

func (r Row) Clone() Row {
	return Row{
		Stxoid:           r.Stxoid,
		Stxdinherit:      r.Stxdinherit,
		Stxdndistinct:    r.Stxdndistinct.Clone(),
		Stxddependencies: r.Stxddependencies.Clone(),
		Stxdmcv:          r.Stxdmcv.Clone(),
		Stxdexpr:         slices.Clone(r.Stxdexpr),
	}
}

// Datum returns the value of the column with the given ordinal. SQL NULL
// is returned as an untyped nil.
func (r Row) Datum(attnum common.AttrNumber) (any, error) {
	switch attnum {
	case catalog.AnumStatisticExtDataStxoid:
		return r.Stxoid, nil
	case catalog.AnumStatisticExtDataStxdinherit:
		return r.Stxdinherit, nil
	case catalog.AnumStatisticExtDataStxdndistinct:
		if r.Stxdndistinct == nil {
			return nil, nil
		}
		return r.Stxdndistinct, nil
	case catalog.AnumStatisticExtDataStxddependencies:
		if r.Stxddependencies == nil {
			return nil, nil
		}
		return r.Stxddependencies, nil
	case catalog.AnumStatisticExtDataStxdmcv:
		if r.Stxdmcv == nil {
			return nil, nil
		}
		return r.Stxdmcv, nil
	case catalog.AnumStatisticExtDataStxdexpr:
		if r.Stxdexpr == nil {
			return nil, nil
		}
		return r.Stxdexpr, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrBadAttnum, attnum)
	}
}

// Values returns the row in column order; values[attnum-1] is the column
// with that ordinal.
func (r Row) Values() []any {
	values := make([]any, catalog.NattsStatisticExtData)

	values[catalog.AnumStatisticExtDataStxoid-1] = r.Stxoid
	values[catalog.AnumStatisticExtDataStxdinherit-1] = r.Stxdinherit

	if r.Stxdndistinct != nil {
		values[catalog.AnumStatisticExtDataStxdndistinct-1] = r.Stxdndistinct
	}

	if r.Stxddependencies != nil {
		values[catalog.AnumStatisticExtDataStxddependencies-1] = r.Stxddependencies
	}

	if r.Stxdmcv != nil {
		values[catalog.AnumStatisticExtDataStxdmcv-1] = r.Stxdmcv
	}

	if r.Stxdexpr != nil {
		values[catalog.AnumStatisticExtDataStxdexpr-1] = r.Stxdexpr
	}

	return values
}

// RowFromValues builds a row from values laid out in column order.
func RowFromValues(values []any) (Row, error) {
	if len(values) != catalog.NattsStatisticExtData {
		return Row{}, fmt.Errorf(
			"%w: got %d values, expected %d",
			ErrInvalidRow, len(values), catalog.NattsStatisticExtData,
		)
	}

	var (
		r  Row
		ok bool
	)

	at := func(attnum common.AttrNumber) any {
		return values[attnum-1]
	}

	if at(catalog.AnumStatisticExtDataStxoid) == nil {
		return Row{}, fmt.Errorf("%w: stxoid", ErrNotNullable)
	}
	if r.Stxoid, ok = at(catalog.AnumStatisticExtDataStxoid).(common.Oid); !ok {
		return Row{}, datumTypeError(catalog.AnumStatisticExtDataStxoid, at(catalog.AnumStatisticExtDataStxoid))
	}

	if at(catalog.AnumStatisticExtDataStxdinherit) == nil {
		return Row{}, fmt.Errorf("%w: stxdinherit", ErrNotNullable)
	}
	if r.Stxdinherit, ok = at(catalog.AnumStatisticExtDataStxdinherit).(bool); !ok {
		return Row{}, datumTypeError(catalog.AnumStatisticExtDataStxdinherit, at(catalog.AnumStatisticExtDataStxdinherit))
	}

	if v := at(catalog.AnumStatisticExtDataStxdndistinct); v != nil {
		if r.Stxdndistinct, ok = v.(*NDistinct); !ok {
			return Row{}, datumTypeError(catalog.AnumStatisticExtDataStxdndistinct, v)
		}
	}

	if v := at(catalog.AnumStatisticExtDataStxddependencies); v != nil {
		if r.Stxddependencies, ok = v.(*Dependencies); !ok {
			return Row{}, datumTypeError(catalog.AnumStatisticExtDataStxddependencies, v)
		}
	}

	if v := at(catalog.AnumStatisticExtDataStxdmcv); v != nil {
		if r.Stxdmcv, ok = v.(*MCVList); !ok {
			return Row{}, datumTypeError(catalog.AnumStatisticExtDataStxdmcv, v)
		}
	}

	if v := at(catalog.AnumStatisticExtDataStxdexpr); v != nil {
		if r.Stxdexpr, ok = v.([]ExprStats); !ok {
			return Row{}, datumTypeError(catalog.AnumStatisticExtDataStxdexpr, v)
		}
	}

	return r, nil
}

func datumTypeError(attnum common.AttrNumber, v any) error {
	return fmt.Errorf("%w: attnum %d got %T", ErrDatumType, attnum, v)
}
