package raft

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
	"github.com/Blackdeer1524/pgcatalog/src/storage/statextdata"
)

func (n *Node) apply(action QueryAction, payload any) (any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", action, err)
	}

	data := encodeCommand(action, uuid.NewString(), body)

	future := n.raft.Apply(data, n.applyTimeout)
	if err = future.Error(); err != nil {
		return nil, fmt.Errorf("raft apply failed: %w", err)
	}

	resp := future.Response()
	if resp == nil {
		return nil, fmt.Errorf("no response from raft apply")
	}

	if err, ok := resp.(error); ok {
		return nil, err
	}

	return resp, nil
}

// Upsert replicates an insert-or-replace of a pg_statistic_ext_data row.
func (n *Node) Upsert(row statextdata.Row) (statextdata.IndexKey, error) {
	if err := row.Validate(); err != nil {
		return statextdata.IndexKey{}, err
	}

	resp, err := n.apply(UpsertStatistics, row)
	if err != nil {
		return statextdata.IndexKey{}, err
	}

	key, ok := resp.(statextdata.IndexKey)
	if !ok {
		return statextdata.IndexKey{}, fmt.Errorf("unexpected response type: %T", resp)
	}

	return key, nil
}

func (n *Node) Delete(stxoid common.Oid, inherit bool) error {
	_, err := n.apply(DeleteStatistics, statextdata.IndexKey{Stxoid: stxoid, Stxdinherit: inherit})
	return err
}

// DeleteByStxoid replicates removal of every row of a statistics object.
func (n *Node) DeleteByStxoid(stxoid common.Oid) (int, error) {
	resp, err := n.apply(DeleteStatisticsObject, stxoid)
	if err != nil {
		return 0, err
	}

	removed, ok := resp.(int)
	if !ok {
		return 0, fmt.Errorf("unexpected response type: %T", resp)
	}

	return removed, nil
}
