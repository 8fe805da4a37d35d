package catalog

import (
	"github.com/lib/pq/oid"

	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
)

// Identifiers of pg_statistic_ext_data. The values are shared with every
// PostgreSQL server and must never change.
const (
	StatisticExtDataRelationID       common.Oid = 3429
	StatisticExtDataStxoidInhIndexID common.Oid = 3433
)

const (
	StatisticExtDataRelationName       = "pg_statistic_ext_data"
	StatisticExtDataStxoidInhIndexName = "pg_statistic_ext_data_stxoid_inh_index"
)

// Column ordinals of pg_statistic_ext_data.
const (
	AnumStatisticExtDataStxoid           common.AttrNumber = 1
	AnumStatisticExtDataStxdinherit      common.AttrNumber = 2
	AnumStatisticExtDataStxdndistinct    common.AttrNumber = 3
	AnumStatisticExtDataStxddependencies common.AttrNumber = 4
	AnumStatisticExtDataStxdmcv          common.AttrNumber = 5
	AnumStatisticExtDataStxdexpr         common.AttrNumber = 6

	NattsStatisticExtData = 6
)

// Type OIDs of the statistics payload columns.
const (
	TypePgNDistinct    oid.Oid = 3361
	TypePgDependencies oid.Oid = 3402
	TypePgMCVList      oid.Oid = 5017
)

// StatisticExtDataDesc returns the descriptor of pg_statistic_ext_data.
func StatisticExtDataDesc() *RelationDesc {
	columns := []Column{
		{
			Name:     "stxoid",
			Attnum:   AnumStatisticExtDataStxoid,
			TypeName: "oid",
			TypeOID:  oid.T_oid,
			NotNull:  true,
		},
		{
			Name:     "stxdinherit",
			Attnum:   AnumStatisticExtDataStxdinherit,
			TypeName: "bool",
			TypeOID:  oid.T_bool,
			NotNull:  true,
		},
		{
			Name:     "stxdndistinct",
			Attnum:   AnumStatisticExtDataStxdndistinct,
			TypeName: "pg_ndistinct",
			TypeOID:  TypePgNDistinct,
		},
		{
			Name:     "stxddependencies",
			Attnum:   AnumStatisticExtDataStxddependencies,
			TypeName: "pg_dependencies",
			TypeOID:  TypePgDependencies,
		},
		{
			Name:     "stxdmcv",
			Attnum:   AnumStatisticExtDataStxdmcv,
			TypeName: "pg_mcv_list",
			TypeOID:  TypePgMCVList,
		},
		{
			// the row type of pg_statistic gets its oid at bootstrap
			Name:     "stxdexpr",
			Attnum:   AnumStatisticExtDataStxdexpr,
			TypeName: "pg_statistic[]",
			TypeOID:  oid.Oid(common.InvalidOid),
		},
	}

	indexes := []IndexDesc{
		{
			OID:    StatisticExtDataStxoidInhIndexID,
			Name:   StatisticExtDataStxoidInhIndexName,
			Unique: true,
			Keys: []common.AttrNumber{
				AnumStatisticExtDataStxoid,
				AnumStatisticExtDataStxdinherit,
			},
		},
	}

	return newRelationDesc(
		StatisticExtDataRelationID,
		StatisticExtDataRelationName,
		columns,
		indexes,
	)
}
