package catalog

import (
	"errors"
	"fmt"

	"github.com/lib/pq/oid"

	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
)

var ErrInvalidDescriptor = errors.New("invalid relation descriptor")

// Column describes a single attribute of a catalog relation.
type Column struct {
	Name     string            `json:"name"`
	Attnum   common.AttrNumber `json:"attnum"`
	TypeName string            `json:"type_name"`
	TypeOID  oid.Oid           `json:"type_oid"`
	NotNull  bool              `json:"not_null"`
}

// IndexDesc describes an index built over a catalog relation.
type IndexDesc struct {
	OID    common.Oid          `json:"oid"`
	Name   string              `json:"name"`
	Unique bool                `json:"unique"`
	Keys   []common.AttrNumber `json:"keys"`
}

// RelationDesc is an immutable description of a catalog relation: its
// identifier, its columns in ordinal order and its indexes.
type RelationDesc struct {
	OID     common.Oid  `json:"oid"`
	Name    string      `json:"name"`
	Columns []Column    `json:"columns"`
	Indexes []IndexDesc `json:"indexes"`

	byName map[string]common.AttrNumber
}

func newRelationDesc(
	relOID common.Oid,
	name string,
	columns []Column,
	indexes []IndexDesc,
) *RelationDesc {
	byName := make(map[string]common.AttrNumber, len(columns))
	for _, c := range columns {
		byName[c.Name] = c.Attnum
	}

	return &RelationDesc{
		OID:     relOID,
		Name:    name,
		Columns: columns,
		Indexes: indexes,
		byName:  byName,
	}
}

func (d *RelationDesc) Natts() int {
	return len(d.Columns)
}

func (d *RelationDesc) AttnumByName(name string) (common.AttrNumber, bool) {
	attnum, ok := d.byName[name]
	return attnum, ok
}

// Column returns the column at the given 1-based ordinal.
func (d *RelationDesc) Column(attnum common.AttrNumber) (Column, bool) {
	if !attnum.IsUserAttr() || int(attnum) > len(d.Columns) {
		return Column{}, false
	}

	return d.Columns[attnum-1], true
}

func (d *RelationDesc) Index(indexOID common.Oid) (IndexDesc, bool) {
	for _, idx := range d.Indexes {
		if idx.OID == indexOID {
			return idx, true
		}
	}

	return IndexDesc{}, false
}

// Validate checks that column ordinals form the sequence 1..Natts, that
// column names are unique and that every index refers to existing columns.
func (d *RelationDesc) Validate() error {
	if !d.OID.IsValid() {
		return fmt.Errorf("%w: relation %q has invalid oid", ErrInvalidDescriptor, d.Name)
	}

	if len(d.Columns) == 0 {
		return fmt.Errorf("%w: relation %q has no columns", ErrInvalidDescriptor, d.Name)
	}

	seen := make(map[string]struct{}, len(d.Columns))

	for i, c := range d.Columns {
		if c.Attnum != common.AttrNumber(i+1) {
			return fmt.Errorf(
				"%w: relation %q column %q has attnum %d, expected %d",
				ErrInvalidDescriptor, d.Name, c.Name, c.Attnum, i+1,
			)
		}

		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf(
				"%w: relation %q has duplicate column %q",
				ErrInvalidDescriptor, d.Name, c.Name,
			)
		}
		seen[c.Name] = struct{}{}
	}

	indexOIDs := make(map[common.Oid]struct{}, len(d.Indexes))

	for _, idx := range d.Indexes {
		if !idx.OID.IsValid() || idx.OID == d.OID {
			return fmt.Errorf(
				"%w: index %q of relation %q has oid %d",
				ErrInvalidDescriptor, idx.Name, d.Name, idx.OID,
			)
		}

		if _, dup := indexOIDs[idx.OID]; dup {
			return fmt.Errorf(
				"%w: relation %q has duplicate index oid %d",
				ErrInvalidDescriptor, d.Name, idx.OID,
			)
		}
		indexOIDs[idx.OID] = struct{}{}

		if len(idx.Keys) == 0 {
			return fmt.Errorf("%w: index %q has no keys", ErrInvalidDescriptor, idx.Name)
		}

		for _, k := range idx.Keys {
			if _, ok := d.Column(k); !ok {
				return fmt.Errorf(
					"%w: index %q refers to missing attnum %d",
					ErrInvalidDescriptor, idx.Name, k,
				)
			}
		}
	}

	return nil
}
