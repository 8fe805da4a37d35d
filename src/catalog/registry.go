package catalog

import (
	"errors"
	"fmt"

	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
	"github.com/Blackdeer1524/pgcatalog/src/pkg/utils"
)

var (
	ErrRelationNotFound  = errors.New("relation not found")
	ErrDuplicateRelation = errors.New("duplicate relation")
)

// Registry is a read-only set of relation descriptors.
type Registry struct {
	byOID      map[common.Oid]*RelationDesc
	byName     map[string]*RelationDesc
	indexOwner map[common.Oid]*RelationDesc
}

func NewRegistry(descs ...*RelationDesc) (*Registry, error) {
	r := &Registry{
		byOID:      make(map[common.Oid]*RelationDesc, len(descs)),
		byName:     make(map[string]*RelationDesc, len(descs)),
		indexOwner: make(map[common.Oid]*RelationDesc),
	}

	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, err
		}

		if _, ok := r.byOID[d.OID]; ok {
			return nil, fmt.Errorf("%w: oid %d", ErrDuplicateRelation, d.OID)
		}

		if _, ok := r.indexOwner[d.OID]; ok {
			return nil, fmt.Errorf("%w: oid %d is already used by an index", ErrDuplicateRelation, d.OID)
		}

		if _, ok := r.byName[d.Name]; ok {
			return nil, fmt.Errorf("%w: name %q", ErrDuplicateRelation, d.Name)
		}

		for _, idx := range d.Indexes {
			_, usedByRel := r.byOID[idx.OID]
			_, usedByIdx := r.indexOwner[idx.OID]

			if usedByRel || usedByIdx {
				return nil, fmt.Errorf("%w: index oid %d", ErrDuplicateRelation, idx.OID)
			}

			r.indexOwner[idx.OID] = d
		}

		r.byOID[d.OID] = d
		r.byName[d.Name] = d
	}

	return r, nil
}

// DefaultRegistry holds every catalog relation known to this module.
func DefaultRegistry() *Registry {
	return utils.Must(NewRegistry(StatisticExtDataDesc()))
}

func (r *Registry) ByOID(relOID common.Oid) (*RelationDesc, error) {
	d, ok := r.byOID[relOID]
	if !ok {
		return nil, fmt.Errorf("%w: oid %d", ErrRelationNotFound, relOID)
	}

	return d, nil
}

func (r *Registry) ByName(name string) (*RelationDesc, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRelationNotFound, name)
	}

	return d, nil
}

// ByIndexOID returns the relation that owns the given index.
func (r *Registry) ByIndexOID(indexOID common.Oid) (*RelationDesc, error) {
	d, ok := r.indexOwner[indexOID]
	if !ok {
		return nil, fmt.Errorf("%w: index oid %d", ErrRelationNotFound, indexOID)
	}

	return d, nil
}

func (r *Registry) Names() []string {
	return utils.SortedKeys(r.byName)
}
