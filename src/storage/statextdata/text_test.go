package statextdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
)

func TestNDistinct_String(t *testing.T) {
	n := &NDistinct{Items: []NDistinctItem{
		{Attributes: []common.AttrNumber{1, 2}, NDistinct: 33},
		{Attributes: []common.AttrNumber{1, 3}, NDistinct: 11},
		{Attributes: []common.AttrNumber{1, 2, 3}, NDistinct: 100},
	}}

	assert.Equal(t, `{"1, 2": 33, "1, 3": 11, "1, 2, 3": 100}`, n.String())
}

func TestDependencies_String(t *testing.T) {
	d := &Dependencies{Items: []Dependency{
		{Attributes: []common.AttrNumber{1}, Dependent: 2, Degree: 1},
		{Attributes: []common.AttrNumber{1, 2}, Dependent: 3, Degree: 0.5},
	}}

	assert.Equal(t, `{"1 => 2": 1.000000, "1, 2 => 3": 0.500000}`, d.String())
}

func TestParseNDistinct(t *testing.T) {
	n, err := ParseNDistinct(`{"3, 4": 11, "3, -1": 2, "3, 4, -1": 20}`)
	require.NoError(t, err)

	require.Len(t, n.Items, 3)
	assert.Equal(t, []common.AttrNumber{3, 4}, n.Items[0].Attributes)
	assert.Equal(t, float64(11), n.Items[0].NDistinct)
	assert.Equal(t, []common.AttrNumber{3, -1}, n.Items[1].Attributes)
	assert.Equal(t, `{"3, 4": 11, "3, -1": 2, "3, 4, -1": 20}`, n.String())
}

func TestParseDependencies(t *testing.T) {
	d, err := ParseDependencies(`{"3 => 4": 1.000000, "3, 4 => 6": 0.250000}`)
	require.NoError(t, err)

	require.Len(t, d.Items, 2)
	assert.Equal(t, common.AttrNumber(6), d.Items[1].Dependent)
	assert.Equal(t, []common.AttrNumber{3, 4}, d.Items[1].Attributes)
	assert.Equal(t, 0.25, d.Items[1].Degree)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		parse func(string) error
		input string
	}{
		{"ndistinct not object", parseND, `[1, 2]`},
		{"ndistinct single attribute", parseND, `{"1": 2}`},
		{"ndistinct bad attribute", parseND, `{"1, x": 2}`},
		{"ndistinct string value", parseND, `{"1, 2": "3"}`},
		{"ndistinct empty", parseND, `{}`},
		{"ndistinct trailing", parseND, `{"1, 2": 3} {}`},
		{"ndistinct fractional", parseND, `{"1, 2": 2.5}`},
		{"ndistinct overflow", parseND, `{"1, 2": 3000000000}`},
		{"dependencies no arrow", parseDeps, `{"1, 2": 1.0}`},
		{"dependencies self", parseDeps, `{"1 => 1": 1.0}`},
		{"dependencies degree", parseDeps, `{"1 => 2": 2.0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.parse(tt.input))
		})
	}
}

func parseND(s string) error {
	_, err := ParseNDistinct(s)
	return err
}

func parseDeps(s string) error {
	_, err := ParseDependencies(s)
	return err
}
