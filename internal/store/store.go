package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"SeriesKeeper/internal/merge"
	"SeriesKeeper/internal/model"
)

// FileExt is appended to every key's file stem.
const FileExt = ".mpk"

const dateColumn = "Date"

// table is the columnar on-disk layout: one day-number column plus one
// float64 column per schema field.
type table struct {
	Kind    string      `msgpack:"kind"`
	Key     string      `msgpack:"key"`
	Columns []string    `msgpack:"columns"`
	Date    []int64     `msgpack:"date"`
	Values  [][]float64 `msgpack:"values"`
	SavedAt int64       `msgpack:"saved_at"`
}

// FileStore persists one series per key as a single file under Dir.
type FileStore[P model.Point] struct {
	Dir    string
	Schema model.Schema[P]
}

// NewFileStore creates a store rooted at dir for the given point schema.
func NewFileStore[P model.Point](dir string, schema model.Schema[P]) *FileStore[P] {
	return &FileStore[P]{Dir: dir, Schema: schema}
}

// Path returns the file holding key's series.
func (s *FileStore[P]) Path(key model.Key) string {
	return filepath.Join(s.Dir, key.FileStem()+FileExt)
}

// Load reads key's series. A missing file yields found=false and no error.
func (s *FileStore[P]) Load(key model.Key) (model.Series[P], bool, error) {
	path := s.Path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	var tbl table
	if err := msgpack.Unmarshal(data, &tbl); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", path, err)
	}
	series, err := s.fromTable(key, &tbl)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", path, err)
	}
	return series, true, nil
}

// Save atomically replaces key's series: the table is written to a temp file
// in the same directory, synced, then renamed over the previous file.
// A series that is not strictly ordered or holds placeholder rows is refused.
func (s *FileStore[P]) Save(key model.Key, series model.Series[P]) error {
	if err := merge.Validate(series); err != nil {
		return fmt.Errorf("refuse to save %s: %w", key, err)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := msgpack.Marshal(s.toTable(key, series))
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	path := s.Path(key)
	tmp, err := os.CreateTemp(s.Dir, key.FileStem()+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			if rmErr := os.Remove(tmpName); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				log.Printf("[WARN] remove temp file %s: %v", tmpName, rmErr)
			}
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	committed = true
	return nil
}

func (s *FileStore[P]) toTable(key model.Key, series model.Series[P]) *table {
	tbl := &table{
		Kind:    s.Schema.Name,
		Key:     key.String(),
		Columns: append([]string{dateColumn}, s.Schema.Columns...),
		Date:    make([]int64, len(series)),
		Values:  make([][]float64, len(s.Schema.Columns)),
		SavedAt: time.Now().Unix(),
	}
	for c := range tbl.Values {
		tbl.Values[c] = make([]float64, len(series))
	}
	for i, p := range series {
		tbl.Date[i] = model.DayNumber(p.Day())
		for c, v := range p.Values() {
			tbl.Values[c][i] = v
		}
	}
	return tbl
}

func (s *FileStore[P]) fromTable(key model.Key, tbl *table) (model.Series[P], error) {
	if tbl.Kind != s.Schema.Name {
		return nil, fmt.Errorf("series kind %q, want %q", tbl.Kind, s.Schema.Name)
	}
	if tbl.Key != key.String() {
		return nil, fmt.Errorf("file holds series %q, want %q", tbl.Key, key)
	}
	if len(tbl.Columns) != len(s.Schema.Columns)+1 || tbl.Columns[0] != dateColumn {
		return nil, fmt.Errorf("unexpected columns %v", tbl.Columns)
	}
	for i, name := range s.Schema.Columns {
		if tbl.Columns[i+1] != name {
			return nil, fmt.Errorf("column %d is %q, want %q", i+1, tbl.Columns[i+1], name)
		}
	}
	if len(tbl.Values) != len(s.Schema.Columns) {
		return nil, fmt.Errorf("have %d value columns, want %d", len(tbl.Values), len(s.Schema.Columns))
	}
	for c, col := range tbl.Values {
		if len(col) != len(tbl.Date) {
			return nil, fmt.Errorf("column %s has %d rows, want %d", s.Schema.Columns[c], len(col), len(tbl.Date))
		}
	}

	series := make(model.Series[P], len(tbl.Date))
	row := make([]float64, len(tbl.Values))
	for i, n := range tbl.Date {
		for c := range tbl.Values {
			row[c] = tbl.Values[c][i]
		}
		series[i] = s.Schema.Build(model.FromDayNumber(n), row)
	}
	return series, nil
}
