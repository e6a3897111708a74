package repository

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/okian/riskdiag/internal/domain/model"
)

const defaultFileMode os.FileMode = 0o644

var observationHeader = []string{"source", "series_id", "date", "value", "open", "high", "low", "close", "volume"}

// FileStore implements Store on a local directory.
type FileStore struct {
	dir  string
	mode os.FileMode
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir %s: %w", dir, err)
	}
	s := &FileStore{dir: abs, mode: defaultFileMode}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", abs, err)
	}
	return s, nil
}

// Path returns the absolute location of name.
func (s *FileStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// WriteJSON encodes v as indented JSON into name.
func (s *FileStore) WriteJSON(ctx context.Context, name string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.write(name, append(b, '\n'))
}

// ReadJSON decodes name into v.
func (s *FileStore) ReadJSON(ctx context.Context, name string, v any) error {
	b, err := s.read(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, name, err)
	}
	return nil
}

// WriteObservations stores obs as CSV. OHLCV columns are empty for scalar series.
func (s *FileStore) WriteObservations(ctx context.Context, name string, obs []model.Observation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(observationHeader)
	for _, o := range obs {
		row := []string{o.Source, o.SeriesID, o.Date.Format(model.DateLayout), formatFloat(o.Value), "", "", "", "", ""}
		if o.Bar != nil {
			row[4] = formatFloat(o.Bar.Open)
			row[5] = formatFloat(o.Bar.High)
			row[6] = formatFloat(o.Bar.Low)
			row[7] = formatFloat(o.Bar.Close)
			row[8] = strconv.FormatInt(o.Bar.Volume, 10)
		}
		_ = w.Write(row)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.write(name, buf.Bytes())
}

// ReadObservations loads a CSV written by WriteObservations.
func (s *FileStore) ReadObservations(ctx context.Context, name string) ([]model.Observation, error) {
	b, err := s.read(ctx, name)
	if err != nil {
		return nil, err
	}
	rows, err := csv.NewReader(bytes.NewReader(b)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformed, name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]model.Observation, 0, len(rows)-1)
	for i, row := range rows[1:] {
		o, err := parseObservation(row)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %w", ErrMalformed, name, i+2, err)
		}
		out = append(out, o)
	}
	return out, nil
}

// Remove deletes name. A missing file is not an error.
func (s *FileStore) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func parseObservation(row []string) (model.Observation, error) {
	if len(row) != len(observationHeader) {
		return model.Observation{}, fmt.Errorf("want %d columns, got %d", len(observationHeader), len(row))
	}
	date, err := time.Parse(model.DateLayout, row[2])
	if err != nil {
		return model.Observation{}, err
	}
	value, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return model.Observation{}, err
	}
	o := model.Observation{Source: row[0], SeriesID: row[1], Date: date, Value: value}
	if row[7] == "" {
		return o, nil
	}
	var bar model.Bar
	var perr error
	parse := func(s string) float64 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil && perr == nil {
			perr = err
		}
		return v
	}
	bar.Open, bar.High, bar.Low, bar.Close = parse(row[4]), parse(row[5]), parse(row[6]), parse(row[7])
	if row[8] != "" {
		if bar.Volume, err = strconv.ParseInt(row[8], 10, 64); err != nil {
			return model.Observation{}, err
		}
	}
	if perr != nil {
		return model.Observation{}, perr
	}
	o.Bar = &bar
	return o, nil
}

func (s *FileStore) read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return b, nil
}

// write replaces name atomically via a temp file in the same directory.
func (s *FileStore) write(name string, b []byte) error {
	path := s.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Chmod(s.mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
