package raft

import (
	"testing"
	"time"

	hraft "github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/pgcatalog/src/storage/statextdata"
)

func startInmemNode(t *testing.T, store Store) *Node {
	t.Helper()

	cfg := hraft.DefaultConfig()
	cfg.LocalID = "n1"
	cfg.HeartbeatTimeout = 50 * time.Millisecond
	cfg.ElectionTimeout = 50 * time.Millisecond
	cfg.LeaderLeaseTimeout = 50 * time.Millisecond
	cfg.CommitTimeout = 5 * time.Millisecond

	addr, tr := hraft.NewInmemTransport("")

	r, err := newRaft(cfg, store, zap.NewNop().Sugar(), tr, SingleNodePeers("n1", string(addr)))
	require.NoError(t, err)

	n := &Node{
		id:           "n1",
		addr:         string(addr),
		raft:         r,
		applyTimeout: time.Second,
		logger:       zap.NewNop().Sugar(),
	}
	t.Cleanup(n.Close)

	require.Eventually(t, n.IsLeader, 5*time.Second, 10*time.Millisecond)

	return n
}

func TestNode_ReplicatesCommands(t *testing.T) {
	store := newTestStore(t, "/data")
	n := startInmemNode(t, store)

	assert.Equal(t, n.addr, n.LeaderAddr())

	key, err := n.Upsert(statextdata.Row{Stxoid: 7})
	require.NoError(t, err)
	assert.Equal(t, statextdata.IndexKey{Stxoid: 7}, key)

	_, err = n.Upsert(statextdata.Row{Stxoid: 7, Stxdinherit: true})
	require.NoError(t, err)

	rows, err := store.ListByStxoid(7)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, n.Delete(7, true))
	require.ErrorIs(t, n.Delete(7, true), statextdata.ErrEntityNotFound)

	removed, err := n.DeleteByStxoid(7)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestNode_RejectsInvalidRowBeforeReplication(t *testing.T) {
	store := newTestStore(t, "/data")
	n := startInmemNode(t, store)

	_, err := n.Upsert(statextdata.Row{})
	require.ErrorIs(t, err, statextdata.ErrInvalidRow)
	assert.Equal(t, uint64(0), store.CurrentVersion())
}

func TestIsNotLeader(t *testing.T) {
	assert.True(t, IsNotLeader(hraft.ErrNotLeader))
	assert.False(t, IsNotLeader(statextdata.ErrEntityNotFound))
}
