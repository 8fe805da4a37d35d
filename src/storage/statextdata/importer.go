package statextdata

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/panjf2000/ants"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/pgcatalog/src"
)

const DefaultImportWorkers = 4

type ImportResult struct {
	Files int `json:"files"`
	Rows  int `json:"rows"`

	// Skipped lists keys already imported from an earlier file of the batch.
	Skipped []IndexKey `json:"skipped,omitempty"`
}

// Importer loads JSON row dumps into a Manager. Each dump is an array of
// rows; files are decoded in parallel on a bounded worker pool.
type Importer struct {
	fs      afero.Fs
	store   *Manager
	workers int
	log     src.Logger
}

func NewImporter(fs afero.Fs, store *Manager, workers int, log src.Logger) *Importer {
	if workers <= 0 {
		workers = DefaultImportWorkers
	}

	return &Importer{
		fs:      fs,
		store:   store,
		workers: workers,
		log:     log,
	}
}

type decodedFile struct {
	path string
	rows []Row
	err  error
}

func (im *Importer) decodeFile(path string) decodedFile {
	raw, err := afero.ReadFile(im.fs, path)
	if err != nil {
		return decodedFile{path: path, err: fmt.Errorf("failed to read %q: %w", path, err)}
	}

	var rows []Row

	if err = json.Unmarshal(raw, &rows); err != nil {
		return decodedFile{path: path, err: fmt.Errorf("failed to decode %q: %w", path, err)}
	}

	for i := range rows {
		if err = rows[i].Validate(); err != nil {
			return decodedFile{path: path, err: fmt.Errorf("%q row %d: %w", path, i, err)}
		}
	}

	return decodedFile{path: path, rows: rows}
}

// ImportDir imports every *.json file of dir.
func (im *Importer) ImportDir(dir string) (ImportResult, error) {
	paths, err := afero.Glob(im.fs, filepath.Join(dir, "*.json"))
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to list %q: %w", dir, err)
	}

	slices.Sort(paths)

	return im.ImportFiles(paths)
}

// ImportFiles decodes the given files and upserts their rows as one new
// version. If any file fails to decode nothing is imported. A key repeated
// across files is kept from the first file and reported in Skipped.
func (im *Importer) ImportFiles(paths []string) (ImportResult, error) {
	pool, err := ants.NewPool(im.workers)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]decodedFile, len(paths))

	var wg sync.WaitGroup

	for i, path := range paths {
		i, path := i, path

		wg.Add(1)

		err = pool.Submit(func() {
			defer wg.Done()
			results[i] = im.decodeFile(path)
		})
		if err != nil {
			wg.Done()
			results[i] = decodedFile{path: path, err: fmt.Errorf("failed to schedule %q: %w", path, err)}
		}
	}

	wg.Wait()

	var errs []error

	for _, f := range results {
		if f.err != nil {
			errs = append(errs, f.err)
		}
	}

	if len(errs) > 0 {
		im.log.Errorw("statistics import aborted", zap.Int("errors", len(errs)))
		return ImportResult{}, errors.Join(errs...)
	}

	var rows []Row

	origin := make(map[IndexKey]string)
	res := ImportResult{Files: len(results)}

	for _, f := range results {
		for _, r := range f.rows {
			if prev, dup := origin[r.Key()]; dup {
				im.log.Warnw(
					"duplicate statistics key skipped",
					zap.String("key", r.Key().String()),
					zap.String("file", f.path),
					zap.String("first_seen", prev),
				)

				res.Skipped = append(res.Skipped, r.Key())

				continue
			}

			origin[r.Key()] = f.path
			rows = append(rows, r)
		}
	}

	slices.SortFunc(rows, func(a, b Row) int {
		return compareKeys(a.Key(), b.Key())
	})

	if len(rows) > 0 {
		err = im.store.Apply(func(tx *Tx) error {
			for _, r := range rows {
				if err := tx.Upsert(r); err != nil {
					return fmt.Errorf("failed to upsert %s: %w", r.Key(), err)
				}
			}

			return nil
		})
		if err != nil {
			return ImportResult{}, err
		}
	}

	res.Rows = len(rows)

	im.log.Infow(
		"statistics data imported",
		zap.Int("files", res.Files),
		zap.Int("rows", res.Rows),
		zap.Int("skipped", len(res.Skipped)),
	)

	return res, nil
}
