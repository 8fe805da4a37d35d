package raft

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	hraft "github.com/hashicorp/raft"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/pgcatalog/src"
	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
	"github.com/Blackdeer1524/pgcatalog/src/storage/statextdata"
)

// Store is the replicated state the FSM applies commands to.
type Store interface {
	Apply(fn func(tx *statextdata.Tx) error) error
	Snapshot() ([]byte, error)
	Restore(snapshot []byte) error
}

var _ hraft.FSM = &fsm{}

type fsm struct {
	nodeID string
	store  Store
	log    src.Logger
}

type command struct {
	action QueryAction
	id     string
	body   []byte
}

func encodeCommand(action QueryAction, id string, body []byte) []byte {
	return []byte(fmt.Sprintf("%s\n%s\n%s", action.String(), id, body))
}

func decodeCommand(data []byte) (command, error) {
	fields := strings.SplitN(string(data), "\n", 3)
	if len(fields) < 3 {
		return command{}, errors.New("incorrect data received")
	}

	action, err := queryActionFromString(fields[0])
	if err != nil {
		return command{}, fmt.Errorf("can't apply unknown action: %s", fields[0])
	}

	return command{action: action, id: fields[1], body: []byte(fields[2])}, nil
}

// Apply returns the applied key (or removed row count) on success and an
// error value otherwise.
func (f *fsm) Apply(l *hraft.Log) any {
	cmd, err := decodeCommand(l.Data)
	if err != nil {
		f.log.Errorw("failed to decode raft command", zap.String("node_id", f.nodeID), zap.Error(err))
		return err
	}

	f.log.Debugw(
		"processing statistics command",
		zap.String("node_id", f.nodeID),
		zap.String("action", cmd.action.String()),
		zap.String("command_id", cmd.id),
		zap.Uint64("index", l.Index),
	)

	var resp any

	err = f.store.Apply(func(tx *statextdata.Tx) error {
		switch cmd.action {
		case UpsertStatistics:
			var row statextdata.Row
			if err := json.Unmarshal(cmd.body, &row); err != nil {
				return fmt.Errorf("failed to unmarshal row: %w", err)
			}

			if err := tx.Upsert(row); err != nil {
				return err
			}

			resp = row.Key()
		case DeleteStatistics:
			var key statextdata.IndexKey
			if err := json.Unmarshal(cmd.body, &key); err != nil {
				return fmt.Errorf("failed to unmarshal key: %w", err)
			}

			if err := tx.Delete(key.Stxoid, key.Stxdinherit); err != nil {
				return err
			}

			resp = key
		case DeleteStatisticsObject:
			var stxoid common.Oid
			if err := json.Unmarshal(cmd.body, &stxoid); err != nil {
				return fmt.Errorf("failed to unmarshal stxoid: %w", err)
			}

			removed, err := tx.DeleteByStxoid(stxoid)
			if err != nil {
				return err
			}

			resp = removed
		}

		return nil
	})
	if err != nil {
		f.log.Warnw(
			"statistics command rejected",
			zap.String("node_id", f.nodeID),
			zap.String("command_id", cmd.id),
			zap.Error(err),
		)

		return err
	}

	return resp
}

func (f *fsm) Snapshot() (hraft.FSMSnapshot, error) {
	data, err := f.store.Snapshot()
	if err != nil {
		return nil, err
	}

	return &fsmSnapshot{data: data}, nil
}

func (f *fsm) Restore(snapshot io.ReadCloser) error {
	defer snapshot.Close()

	data, err := io.ReadAll(snapshot)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	if err = f.store.Restore(data); err != nil {
		return err
	}

	f.log.Infow("statistics data restored from snapshot", zap.String("node_id", f.nodeID))

	return nil
}

type fsmSnapshot struct {
	data []byte
}

func (s *fsmSnapshot) Persist(sink hraft.SnapshotSink) error {
	if _, err := sink.Write(s.data); err != nil {
		return errors.Join(fmt.Errorf("failed to write snapshot: %w", err), sink.Cancel())
	}

	return sink.Close()
}

func (s *fsmSnapshot) Release() {}
