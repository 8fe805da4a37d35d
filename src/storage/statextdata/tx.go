package statextdata

import (
	"fmt"

	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
)

// Tx is a set of changes to the table made inside Manager.Apply.
type Tx struct {
	rows map[IndexKey]Row
}

func (tx *Tx) Insert(row Row) error {
	if err := row.Validate(); err != nil {
		return err
	}

	if _, exists := tx.rows[row.Key()]; exists {
		return fmt.Errorf("%w: %s", ErrEntityExists, row.Key())
	}

	tx.rows[row.Key()] = row.Clone()

	return nil
}

func (tx *Tx) Upsert(row Row) error {
	if err := row.Validate(); err != nil {
		return err
	}

	tx.rows[row.Key()] = row.Clone()

	return nil
}

func (tx *Tx) Delete(stxoid common.Oid, inherit bool) error {
	key := IndexKey{Stxoid: stxoid, Stxdinherit: inherit}

	if _, exists := tx.rows[key]; !exists {
		return fmt.Errorf("%w: %s", ErrEntityNotFound, key)
	}

	delete(tx.rows, key)

	return nil
}

// DeleteByStxoid removes both rows of a statistics object and returns how
// many existed.
func (tx *Tx) DeleteByStxoid(stxoid common.Oid) (int, error) {
	removed := 0

	for _, inherit := range []bool{false, true} {
		key := IndexKey{Stxoid: stxoid, Stxdinherit: inherit}
		if _, ok := tx.rows[key]; ok {
			delete(tx.rows, key)
			removed++
		}
	}

	if removed == 0 {
		return 0, fmt.Errorf("%w: stxoid %d", ErrEntityNotFound, stxoid)
	}

	return removed, nil
}
