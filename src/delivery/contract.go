package delivery

import (
	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
	"github.com/Blackdeer1524/pgcatalog/src/storage/statextdata"
)

// Node applies writes through the replication log.
type Node interface {
	Upsert(row statextdata.Row) (statextdata.IndexKey, error)
	Delete(stxoid common.Oid, inherit bool) error
	DeleteByStxoid(stxoid common.Oid) (int, error)
}

// Store serves reads from the local replica.
type Store interface {
	Get(stxoid common.Oid, inherit bool) (statextdata.Row, error)
	ListByStxoid(stxoid common.Oid) ([]statextdata.Row, error)
	List() ([]statextdata.Row, error)
}
