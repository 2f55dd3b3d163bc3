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
)

var ErrRunNotFound = errors.New("run not found")

// Store manages run directories under a base directory.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) BaseDir() string { return s.baseDir }

type RunMetadata struct {
	ID                  string            `json:"id"`
	Config              string            `json:"config"`
	Engines             []string          `json:"engines"`
	Start               float64           `json:"start"`
	Stop                float64           `json:"stop"`
	Interval            float64           `json:"interval"`
	Attributes          map[string]string `json:"attributes,omitempty"`
	CoordinateReference string            `json:"coordinate_reference,omitempty"`
	Dims                map[string]int    `json:"dims,omitempty"`
	Variables           []Descriptor      `json:"variables,omitempty"`
	Rows                int               `json:"rows"`
	End                 float64           `json:"end"`
	ResumedFrom         *float64          `json:"resumed_from,omitempty"`
	Timestamp           time.Time         `json:"timestamp"`
	Finished            time.Time         `json:"finished,omitzero"`
}

// Create makes a new run directory and returns its sink. An empty meta.ID
// gets a fresh uuid.
func (s *Store) Create(meta RunMetadata) (*CSVSink, error) {
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	dir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &CSVSink{dir: dir, meta: meta}, nil
}

// Resume reopens an existing run, dropping records at or past rows so a
// restarted run continues from its checkpoint.
func (s *Store) Resume(runID string, rows int, at float64) (*CSVSink, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	sink := &CSVSink{dir: filepath.Join(s.baseDir, runID), meta: *meta, vars: meta.Variables}
	sink.meta.ResumedFrom = &at
	sink.meta.Finished = time.Time{}
	if err := sink.truncate(rows); err != nil {
		return nil, fmt.Errorf("resume run %s: %w", runID, err)
	}
	return sink, nil
}

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

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
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

// Series is a run's output as columns.
type Series struct {
	Header  []string
	Times   []float64
	Columns [][]float64
}

// Column returns the values of the named column.
func (s *Series) Column(name string) ([]float64, bool) {
	for i, h := range s.Header[1:] {
		if h == name {
			return s.Columns[i], true
		}
	}
	return nil, false
}

func (s *Store) LoadSeries(runID string) (*Series, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, outputFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Series{Header: []string{TimeDim}}, nil
	}

	header := records[0]
	series := &Series{
		Header:  header,
		Times:   make([]float64, 0, len(records)-1),
		Columns: make([][]float64, len(header)-1),
	}
	for _, record := range records[1:] {
		if len(record) == 0 {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		series.Times = append(series.Times, t)
		for j := range series.Columns {
			val := 0.0
			if j+1 < len(record) {
				if v, err := strconv.ParseFloat(record[j+1], 64); err == nil {
					val = v
				}
			}
			series.Columns[j] = append(series.Columns[j], val)
		}
	}
	return series, nil
}
