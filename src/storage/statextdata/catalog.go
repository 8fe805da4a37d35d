package statextdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/pgcatalog/src"
	"github.com/Blackdeer1524/pgcatalog/src/catalog"
	"github.com/Blackdeer1524/pgcatalog/src/pkg/common"
)

const (
	currentVersionFile = "CURRENT"
	zeroVersion        = uint64(0)
)

var (
	ErrEntityNotFound = errors.New("entity not found")
	ErrEntityExists   = errors.New("entity already exists")
)

// Data is the on-disk representation of one version of the table.
type Data struct {
	RelationID common.Oid `json:"relation_id"`
	Version    uint64     `json:"version"`
	Rows       []Row      `json:"rows"`
}

// Manager stores pg_statistic_ext_data rows keyed by the
// (stxoid, stxdinherit) unique index. Every Save produces a new version
// file; CURRENT points at the latest one.
type Manager struct {
	fs       afero.Fs
	basePath string
	rows     map[IndexKey]Row

	// currentVersion caches the version loaded from disk; when CURRENT
	// holds the same number the rows are not reread.
	currentVersion uint64

	log src.Logger
	mu  *sync.RWMutex
}

func GetVersionFileName(basePath string) string {
	return filepath.Join(basePath, currentVersionFile)
}

func getDataFilename(basePath string, v uint64) string {
	return filepath.Join(
		basePath,
		catalog.StatisticExtDataRelationName+"_"+strconv.FormatUint(v, 10)+".json",
	)
}

func isFileExists(fs afero.Fs, path string) (bool, error) {
	_, err := fs.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

func writeFileSynced(fs afero.Fs, path string, data []byte) (err error) {
	file, err := fs.OpenFile(
		filepath.Clean(path),
		os.O_WRONLY|os.O_CREATE|os.O_TRUNC,
		0600,
	)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	if _, err = file.Write(data); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}

	if err = file.Sync(); err != nil {
		return fmt.Errorf("failed to sync %q: %w", path, err)
	}

	return nil
}

// writeVersion replaces CURRENT through a rename so readers never see a
// partially written number.
func writeVersion(fs afero.Fs, basePath string, v uint64) error {
	versionFile := GetVersionFileName(basePath)
	tmp := versionFile + ".tmp"

	if err := writeFileSynced(fs, tmp, []byte(strconv.FormatUint(v, 10))); err != nil {
		return err
	}

	if err := fs.Rename(tmp, versionFile); err != nil {
		return fmt.Errorf("failed to rename %q: %w", tmp, err)
	}

	return nil
}

func readVersion(fs afero.Fs, basePath string) (uint64, error) {
	raw, err := afero.ReadFile(fs, GetVersionFileName(basePath))
	if err != nil {
		return 0, fmt.Errorf("failed to read current version file: %w", err)
	}

	v, err := strconv.ParseUint(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse current version: %w", err)
	}

	return v, nil
}

func readData(fs afero.Fs, basePath string, v uint64) (map[IndexKey]Row, error) {
	raw, err := afero.ReadFile(fs, getDataFilename(basePath, v))
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	var data Data

	if err = json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal data file: %w", err)
	}

	if data.RelationID != catalog.StatisticExtDataRelationID {
		return nil, fmt.Errorf(
			"data file of version %d belongs to relation %d, expected %d",
			v, data.RelationID, catalog.StatisticExtDataRelationID,
		)
	}

	return rowsByKey(data.Rows)
}

func rowsByKey(rows []Row) (map[IndexKey]Row, error) {
	byKey := make(map[IndexKey]Row, len(rows))

	for _, r := range rows {
		if err := r.Validate(); err != nil {
			return nil, err
		}

		if _, dup := byKey[r.Key()]; dup {
			return nil, fmt.Errorf("%w: duplicate key %s", ErrEntityExists, r.Key())
		}

		byKey[r.Key()] = r
	}

	return byKey, nil
}

func sortedRows(rows map[IndexKey]Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Clone())
	}

	slices.SortFunc(out, func(a, b Row) int {
		return compareKeys(a.Key(), b.Key())
	})

	return out
}

// InitStore creates an empty version 0 when the store has never been
// initialized. It is a no-op otherwise.
func InitStore(basePath string, fs afero.Fs) error {
	versionFile := GetVersionFileName(basePath)

	ok, err := isFileExists(fs, versionFile)
	if err != nil {
		return fmt.Errorf("failed to check existence of current version file: %w", err)
	}

	if ok {
		return nil
	}

	if err = fs.MkdirAll(basePath, 0700); err != nil {
		return fmt.Errorf("failed to create %q: %w", basePath, err)
	}

	data, err := json.Marshal(Data{
		RelationID: catalog.StatisticExtDataRelationID,
		Version:    zeroVersion,
		Rows:       []Row{},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal to json: %w", err)
	}

	if err = writeFileSynced(fs, getDataFilename(basePath, zeroVersion), data); err != nil {
		return err
	}

	if err = writeVersion(fs, basePath, zeroVersion); err != nil {
		return fmt.Errorf("failed to initialize version file: %w", err)
	}

	return nil
}

// New loads the current version of the store. InitStore must have been
// called for basePath before.
func New(basePath string, fs afero.Fs, log src.Logger) (*Manager, error) {
	ok, err := isFileExists(fs, GetVersionFileName(basePath))
	if err != nil {
		return nil, fmt.Errorf("failed to check existence of current version file: %w", err)
	}

	if !ok {
		return nil, fmt.Errorf(
			"current version file %q not found; run InitStore first",
			GetVersionFileName(basePath),
		)
	}

	v, err := readVersion(fs, basePath)
	if err != nil {
		return nil, err
	}

	rows, err := readData(fs, basePath, v)
	if err != nil {
		return nil, err
	}

	log.Infow(
		"statistics data loaded",
		zap.String("path", basePath),
		zap.Uint64("version", v),
		zap.Int("rows", len(rows)),
	)

	return &Manager{
		fs:             fs,
		basePath:       basePath,
		rows:           rows,
		currentVersion: v,
		log:            log,
		mu:             new(sync.RWMutex),
	}, nil
}

// refresh rereads the table when another writer advanced CURRENT.
// Unsaved local changes are discarded in that case.
func (m *Manager) refresh() error {
	v, err := readVersion(m.fs, m.basePath)
	if err != nil {
		return err
	}

	m.mu.RLock()
	if m.currentVersion == v {
		m.mu.RUnlock()
		return nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentVersion == v {
		return nil
	}

	rows, err := readData(m.fs, m.basePath, v)
	if err != nil {
		return err
	}

	m.log.Infow(
		"statistics data reloaded",
		zap.Uint64("from_version", m.currentVersion),
		zap.Uint64("to_version", v),
	)

	m.rows = rows
	m.currentVersion = v

	return nil
}

func (m *Manager) GetBasePath() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.basePath
}

func (m *Manager) CurrentVersion() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.currentVersion
}

// Save writes the in-memory table as a new version and advances CURRENT.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saveLocked(m.rows)
}

// saveLocked writes rows as the next version and makes them the table.
// Nothing changes in memory when writing fails.
func (m *Manager) saveLocked(rows map[IndexKey]Row) error {
	nVersion := m.currentVersion + 1

	data, err := json.Marshal(Data{
		RelationID: catalog.StatisticExtDataRelationID,
		Version:    nVersion,
		Rows:       sortedRows(rows),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal statistics data: %w", err)
	}

	if err = writeFileSynced(m.fs, getDataFilename(m.basePath, nVersion), data); err != nil {
		return err
	}

	if err = writeVersion(m.fs, m.basePath, nVersion); err != nil {
		return err
	}

	m.rows = rows
	m.currentVersion = nVersion

	m.log.Debugw("statistics data saved", zap.Uint64("version", nVersion))

	return nil
}

// Apply runs fn against a copy of the table and saves the result as a new
// version. The table is left as it was if fn or the save fails.
func (m *Manager) Apply(fn func(tx *Tx) error) error {
	if err := m.refresh(); err != nil {
		return fmt.Errorf("failed to update statistics data: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &Tx{rows: maps.Clone(m.rows)}

	if err := fn(tx); err != nil {
		return err
	}

	return m.saveLocked(tx.rows)
}

// Insert adds a row to the in-memory table. Call Save to persist it.
func (m *Manager) Insert(row Row) error {
	if err := m.refresh(); err != nil {
		return fmt.Errorf("failed to update statistics data: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return (&Tx{rows: m.rows}).Insert(row)
}

// Upsert inserts the row or replaces the row with the same key.
func (m *Manager) Upsert(row Row) error {
	if err := m.refresh(); err != nil {
		return fmt.Errorf("failed to update statistics data: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return (&Tx{rows: m.rows}).Upsert(row)
}

func (m *Manager) Get(stxoid common.Oid, inherit bool) (Row, error) {
	if err := m.refresh(); err != nil {
		return Row{}, fmt.Errorf("failed to update statistics data: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	key := IndexKey{Stxoid: stxoid, Stxdinherit: inherit}

	row, exists := m.rows[key]
	if !exists {
		return Row{}, fmt.Errorf("%w: %s", ErrEntityNotFound, key)
	}

	return row.Clone(), nil
}

// ListByStxoid returns the rows of one statistics object, the
// non-inherited one first.
func (m *Manager) ListByStxoid(stxoid common.Oid) ([]Row, error) {
	if err := m.refresh(); err != nil {
		return nil, fmt.Errorf("failed to update statistics data: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Row, 0, 2)

	for _, inherit := range []bool{false, true} {
		if row, ok := m.rows[IndexKey{Stxoid: stxoid, Stxdinherit: inherit}]; ok {
			out = append(out, row.Clone())
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: stxoid %d", ErrEntityNotFound, stxoid)
	}

	return out, nil
}

// List returns every row ordered by index key.
func (m *Manager) List() ([]Row, error) {
	if err := m.refresh(); err != nil {
		return nil, fmt.Errorf("failed to update statistics data: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return sortedRows(m.rows), nil
}

func (m *Manager) Delete(stxoid common.Oid, inherit bool) error {
	if err := m.refresh(); err != nil {
		return fmt.Errorf("failed to update statistics data: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return (&Tx{rows: m.rows}).Delete(stxoid, inherit)
}

// DeleteByStxoid removes both inheritance variants of a statistics object,
// as happens when the object is dropped. It returns the number of removed rows.
func (m *Manager) DeleteByStxoid(stxoid common.Oid) (int, error) {
	if err := m.refresh(); err != nil {
		return 0, fmt.Errorf("failed to update statistics data: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return (&Tx{rows: m.rows}).DeleteByStxoid(stxoid)
}

// Snapshot serializes the whole in-memory table.
func (m *Manager) Snapshot() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := json.Marshal(Data{
		RelationID: catalog.StatisticExtDataRelationID,
		Version:    m.currentVersion,
		Rows:       sortedRows(m.rows),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return data, nil
}

// Restore persists a snapshot as a new version and makes it the table.
func (m *Manager) Restore(snapshot []byte) error {
	var data Data

	if err := json.Unmarshal(snapshot, &data); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	if data.RelationID != catalog.StatisticExtDataRelationID {
		return fmt.Errorf("snapshot belongs to relation %d", data.RelationID)
	}

	rows, err := rowsByKey(data.Rows)
	if err != nil {
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saveLocked(rows)
}
