package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/becsim/internal/metrics"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string             `json:"id"`
	Preset     string             `json:"preset,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Backend    string             `json:"backend"`
	Precision  string             `json:"precision"`
	NoiseModel string             `json:"noise_model"`
	Noise      bool               `json:"noise"`
	Wigner     bool               `json:"wigner"`
	Seed       uint64             `json:"seed"`
	Atoms      int                `json:"atoms"`
	Grid       []int              `json:"grid"`
	Ensembles  int                `json:"ensembles"`
	Dt         float64            `json:"dt"`
	Duration   float64            `json:"duration"`
	FinalTime  float64            `json:"final_time"`
	Steps      int                `json:"steps"`
	Elapsed    time.Duration      `json:"elapsed"`
	Stopped    bool               `json:"stopped"`
	Summary    map[string]float64 `json:"summary,omitempty"`
}

// Save writes metadata.json and series.csv under a fresh run id and returns it.
// series.csv is in long form: collector, column, time, value.
func (s *Store) Save(meta RunMetadata, series []metrics.Series) (string, error) {
	meta.ID = uuid.NewString()
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "series.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write([]string{"collector", "column", "time", "value"}); err != nil {
		return "", err
	}
	for _, sr := range series {
		for i, t := range sr.Times {
			for j, col := range sr.Columns {
				row := []string{
					sr.Name,
					col,
					strconv.FormatFloat(t, 'g', -1, 64),
					strconv.FormatFloat(sr.Rows[i][j], 'g', -1, 64),
				}
				if err := w.Write(row); err != nil {
					return "", err
				}
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return meta.ID, nil
}

// List returns stored runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadSeries rebuilds the collector series of a run, in file order.
func (s *Store) LoadSeries(runID string) ([]metrics.Series, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "series.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = 4
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	var out []metrics.Series
	index := map[string]int{}
	for n, rec := range records {
		if n == 0 {
			continue
		}
		t, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("series.csv line %d: %w", n+1, err)
		}
		v, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("series.csv line %d: %w", n+1, err)
		}

		k, ok := index[rec[0]]
		if !ok {
			k = len(out)
			index[rec[0]] = k
			out = append(out, metrics.Series{Name: rec[0]})
		}
		appendValue(&out[k], rec[1], t, v)
	}
	return out, nil
}

func appendValue(s *metrics.Series, column string, t, v float64) {
	col := -1
	for i, c := range s.Columns {
		if c == column {
			col = i
		}
	}
	if col < 0 {
		s.Columns = append(s.Columns, column)
		col = len(s.Columns) - 1
	}

	row := -1
	if n := len(s.Times); n > 0 && s.Times[n-1] == t && len(s.Rows[n-1]) <= col {
		row = n - 1
	}
	if row < 0 {
		s.Times = append(s.Times, t)
		s.Rows = append(s.Rows, nil)
		row = len(s.Times) - 1
	}
	for len(s.Rows[row]) <= col {
		s.Rows[row] = append(s.Rows[row], 0)
	}
	s.Rows[row][col] = v
}
