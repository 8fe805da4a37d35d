package common

// Oid is a PostgreSQL object identifier.
type Oid uint32

const InvalidOid Oid = 0

func (o Oid) IsValid() bool {
	return o != InvalidOid
}

// AttrNumber is the 1-based ordinal of a column inside its relation.
// Zero and negative values are reserved for system attributes.
type AttrNumber int16

const InvalidAttrNumber AttrNumber = 0

func (a AttrNumber) IsUserAttr() bool {
	return a > 0
}
