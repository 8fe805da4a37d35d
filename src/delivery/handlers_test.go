package delivery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	hraft "github.com/hashicorp/raft"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/pgcatalog/src/catalog"
	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
	"github.com/Blackdeer1524/pgcatalog/src/storage/statextdata"
)

// localNode applies writes straight to the store.
type localNode struct {
	store     *statextdata.Manager
	notLeader bool
}

func (n *localNode) Upsert(row statextdata.Row) (statextdata.IndexKey, error) {
	if n.notLeader {
		return statextdata.IndexKey{}, hraft.ErrNotLeader
	}

	if err := n.store.Upsert(row); err != nil {
		return statextdata.IndexKey{}, err
	}

	return row.Key(), nil
}

func (n *localNode) Delete(stxoid common.Oid, inherit bool) error {
	return n.store.Delete(stxoid, inherit)
}

func (n *localNode) DeleteByStxoid(stxoid common.Oid) (int, error) {
	return n.store.DeleteByStxoid(stxoid)
}

func newTestRouter(t *testing.T) (http.Handler, *localNode) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, statextdata.InitStore("/data", fs))

	store, err := statextdata.New("/data", fs, zap.NewNop().Sugar())
	require.NoError(t, err)

	node := &localNode{store: store}

	h := &Handler{
		Registry: catalog.DefaultRegistry(),
		Node:     node,
		Store:    store,
		Logger:   zap.NewNop().Sugar(),
	}

	return h.NewRouter(), node
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func TestHandler_GetRelation(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, ident := range []string{"3429", "pg_statistic_ext_data"} {
		rec := do(t, router, http.MethodGet, "/catalog/relations/"+ident, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var desc catalog.RelationDesc
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &desc))

		assert.Equal(t, catalog.StatisticExtDataRelationID, desc.OID)
		assert.Len(t, desc.Columns, catalog.NattsStatisticExtData)
		require.Len(t, desc.Indexes, 1)
		assert.Equal(t, catalog.StatisticExtDataStxoidInhIndexID, desc.Indexes[0].OID)
	}

	rec := do(t, router, http.MethodGet, "/catalog/relations/1259", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_GetAttnum(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/catalog/relations/3429/attnum/stxdmcv", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Attnum common.AttrNumber `json:"attnum"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, common.AttrNumber(5), resp.Attnum)

	rec = do(t, router, http.MethodGet, "/catalog/relations/pg_statistic_ext_data/attnum/stxdexpr", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, common.AttrNumber(6), resp.Attnum)

	rec = do(t, router, http.MethodGet, "/catalog/relations/3429/attnum/stxkind", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ListRelations(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/catalog/relations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"relations": ["pg_statistic_ext_data"]}`, rec.Body.String())
}

func TestHandler_StatisticsLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{
		"stxoid": 16500,
		"stxdinherit": false,
		"stxdndistinct": {"items": [{"attributes": [1, 2], "ndistinct": 4}]},
		"stxddependencies": {"items": [{"attributes": [1], "dependent": 2, "degree": 1}]}
	}`

	rec := do(t, router, http.MethodPut, "/statistics", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stxoid": 16500, "stxdinherit": false}`, rec.Body.String())

	rec = do(t, router, http.MethodPut, "/statistics", `{"stxoid": 16500, "stxdinherit": true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet, "/statistics/16500/false", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var row rowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.Equal(t, `{"1, 2": 4}`, row.NDistinctText)
	assert.Equal(t, `{"1 => 2": 1.000000}`, row.DependenciesText)

	rec = do(t, router, http.MethodGet, "/statistics/16500", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []rowResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.False(t, rows[0].Stxdinherit)

	rec = do(t, router, http.MethodDelete, "/statistics/16500/true", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, "/statistics/16500/true", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodDelete, "/statistics/16500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stxoid": 16500, "removed": 1}`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/statistics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandler_BadRequests(t *testing.T) {
	router, node := newTestRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
	}{
		{"malformed json", http.MethodPut, "/statistics", "{", http.StatusBadRequest},
		{"invalid row", http.MethodPut, "/statistics", `{"stxoid": 0}`, http.StatusBadRequest},
		{
			"invalid payload", http.MethodPut, "/statistics",
			`{"stxoid": 1, "stxdmcv": {"items": [{"values": ["a"], "nulls": [], "frequency": 0.1}]}}`,
			http.StatusBadRequest,
		},
		{"bad stxoid", http.MethodGet, "/statistics/abc", "", http.StatusBadRequest},
		{"zero stxoid", http.MethodGet, "/statistics/0", "", http.StatusBadRequest},
		{"bad inherit", http.MethodGet, "/statistics/1/maybe", "", http.StatusBadRequest},
		{"unknown object", http.MethodGet, "/statistics/1", "", http.StatusNotFound},
		{"delete unknown", http.MethodDelete, "/statistics/1/false", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	node.notLeader = true

	rec := do(t, router, http.MethodPut, "/statistics", `{"stxoid": 1}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
