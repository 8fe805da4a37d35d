package raft

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"testing"

	hraft "github.com/hashicorp/raft"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
	"github.com/Blackdeer1524/pgcatalog/src/storage/statextdata"
)

func newTestStore(t *testing.T, base string) *statextdata.Manager {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, statextdata.InitStore(base, fs))

	m, err := statextdata.New(base, fs, zap.NewNop().Sugar())
	require.NoError(t, err)

	return m
}

func logOf(t *testing.T, action QueryAction, payload any) *hraft.Log {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	return &hraft.Log{Index: 1, Data: encodeCommand(action, "test", body)}
}

type testSink struct {
	bytes.Buffer
	closed    bool
	cancelled bool
}

func (s *testSink) ID() string { return "test" }

func (s *testSink) Close() error {
	s.closed = true
	return nil
}

func (s *testSink) Cancel() error {
	s.cancelled = true
	return nil
}

func TestQueryAction_RoundTrip(t *testing.T) {
	for _, a := range []QueryAction{UpsertStatistics, DeleteStatistics, DeleteStatisticsObject} {
		parsed, err := queryActionFromString(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, parsed)
	}

	_, err := queryActionFromString("insert_vertex")
	require.Error(t, err)
	assert.Equal(t, "QueryAction(42)", QueryAction(42).String())
}

func TestFSM_Apply(t *testing.T) {
	store := newTestStore(t, "/data")
	f := &fsm{nodeID: "n1", store: store, log: zap.NewNop().Sugar()}

	row := statextdata.Row{Stxoid: 42, Stxdinherit: true}

	resp := f.Apply(logOf(t, UpsertStatistics, row))
	assert.Equal(t, row.Key(), resp)
	assert.Equal(t, uint64(1), store.CurrentVersion())

	got, err := store.Get(42, true)
	require.NoError(t, err)
	assert.Equal(t, row, got)

	resp = f.Apply(logOf(t, UpsertStatistics, statextdata.Row{Stxoid: 42}))
	assert.Equal(t, statextdata.IndexKey{Stxoid: 42}, resp)

	resp = f.Apply(logOf(t, DeleteStatistics, statextdata.IndexKey{Stxoid: 42, Stxdinherit: true}))
	assert.Equal(t, statextdata.IndexKey{Stxoid: 42, Stxdinherit: true}, resp)

	resp = f.Apply(logOf(t, DeleteStatisticsObject, common.Oid(42)))
	assert.Equal(t, 1, resp)

	resp = f.Apply(logOf(t, DeleteStatisticsObject, common.Oid(42)))
	err, ok := resp.(error)
	require.True(t, ok)
	require.ErrorIs(t, err, statextdata.ErrEntityNotFound)
}

func TestFSM_Apply_Malformed(t *testing.T) {
	f := &fsm{nodeID: "n1", store: newTestStore(t, "/data"), log: zap.NewNop().Sugar()}

	_, ok := f.Apply(&hraft.Log{Data: []byte("garbage")}).(error)
	assert.True(t, ok)

	_, ok = f.Apply(&hraft.Log{Data: []byte("drop_table\nid\n{}")}).(error)
	assert.True(t, ok)

	_, ok = f.Apply(&hraft.Log{Data: encodeCommand(UpsertStatistics, "id", []byte("{"))}).(error)
	assert.True(t, ok)

	resp := f.Apply(logOf(t, UpsertStatistics, statextdata.Row{}))
	err, ok := resp.(error)
	require.True(t, ok)
	require.ErrorIs(t, err, statextdata.ErrInvalidRow)
}

func TestFSM_Apply_SaveFailureLeavesStoreUnchanged(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, statextdata.InitStore("/data", fs))

	seed, err := statextdata.New("/data", fs, zap.NewNop().Sugar())
	require.NoError(t, err)
	require.NoError(t, seed.Upsert(statextdata.Row{Stxoid: 5}))
	require.NoError(t, seed.Save())

	store, err := statextdata.New("/data", afero.NewReadOnlyFs(fs), zap.NewNop().Sugar())
	require.NoError(t, err)

	f := &fsm{nodeID: "n1", store: store, log: zap.NewNop().Sugar()}

	_, ok := f.Apply(logOf(t, UpsertStatistics, statextdata.Row{Stxoid: 7})).(error)
	require.True(t, ok)

	_, err = store.Get(7, false)
	require.ErrorIs(t, err, statextdata.ErrEntityNotFound)

	_, ok = f.Apply(logOf(t, DeleteStatisticsObject, common.Oid(5))).(error)
	require.True(t, ok)

	_, err = store.Get(5, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), store.CurrentVersion())
}

func TestFSM_SnapshotRestore(t *testing.T) {
	src := &fsm{nodeID: "n1", store: newTestStore(t, "/a"), log: zap.NewNop().Sugar()}
	for i := 1; i <= 3; i++ {
		src.Apply(logOf(t, UpsertStatistics, statextdata.Row{Stxoid: common.Oid(i)}))
	}

	snap, err := src.Snapshot()
	require.NoError(t, err)

	sink := &testSink{}
	require.NoError(t, snap.Persist(sink))
	snap.Release()
	assert.True(t, sink.closed)
	assert.False(t, sink.cancelled)

	dstStore := newTestStore(t, "/b")
	dst := &fsm{nodeID: "n2", store: dstStore, log: zap.NewNop().Sugar()}
	require.NoError(t, dst.Restore(io.NopCloser(bytes.NewReader(sink.Bytes()))))

	rows, err := dstStore.List()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, common.Oid(3), rows[2].Stxoid)
}

type failingWriter struct {
	testSink
}

func (s *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestFSMSnapshot_PersistCancelsOnError(t *testing.T) {
	sink := &failingWriter{}

	err := (&fsmSnapshot{data: []byte("x")}).Persist(sink)
	require.Error(t, err)
	assert.True(t, sink.cancelled)
	assert.False(t, sink.closed)
}
