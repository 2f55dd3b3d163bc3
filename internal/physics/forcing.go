package physics

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/san-kum/dyncouple/internal/dynamo"
)

var (
	ErrEmptyTable    = errors.New("forcing table has no rows")
	ErrUnsortedTable = errors.New("forcing table times must be strictly increasing")
)

// Forcing replays a time series read from a CSV file whose first column is
// time. Each automatic step advances to the next row; values in between rows
// are linearly interpolated and the last row is held past the end.
type Forcing struct {
	names  []string
	times  []float64
	rows   [][]float64
	t      float64
	cursor int

	overrides   map[string]float64
	initialized bool
	finalized   bool
}

var (
	_ dynamo.Engine     = (*Forcing)(nil)
	_ dynamo.TimeSetter = (*Forcing)(nil)
	_ dynamo.VarLister  = (*Forcing)(nil)
)

func NewForcing() *Forcing {
	return &Forcing{overrides: make(map[string]float64)}
}

// NewForcingTable builds an initialized engine from in-memory columns.
func NewForcingTable(names []string, times []float64, rows [][]float64) (*Forcing, error) {
	f := NewForcing()
	if err := f.load(names, times, rows); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Forcing) Initialize(configFile string) error {
	if configFile == "" {
		return fmt.Errorf("forcing engine requires a CSV configfile")
	}
	file, err := os.Open(configFile)
	if err != nil {
		return err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.Comment = '#'
	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("read %s: %w", configFile, err)
	}
	if len(records) < 2 {
		return ErrEmptyTable
	}

	header := records[0]
	names := append([]string{}, header[1:]...)
	times := make([]float64, 0, len(records)-1)
	rows := make([][]float64, 0, len(records)-1)

	for i, record := range records[1:] {
		if len(record) != len(header) {
			return fmt.Errorf("row %d: expected %d columns, got %d", i+2, len(header), len(record))
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		row := make([]float64, len(names))
		for j := range names {
			v, err := strconv.ParseFloat(record[j+1], 64)
			if err != nil {
				return fmt.Errorf("row %d column %s: %w", i+2, names[j], err)
			}
			row[j] = v
		}
		times = append(times, t)
		rows = append(rows, row)
	}

	return f.load(names, times, rows)
}

func (f *Forcing) load(names []string, times []float64, rows [][]float64) error {
	if len(times) == 0 || len(times) != len(rows) {
		return ErrEmptyTable
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return ErrUnsortedTable
		}
	}
	f.names = names
	f.times = times
	f.rows = rows
	f.t = times[0]
	f.cursor = 0
	f.initialized = true
	f.finalized = false
	return nil
}

func (f *Forcing) Update(dt float64) error {
	if err := f.ready(); err != nil {
		return err
	}
	if dt > 0 {
		f.t += dt
	} else {
		f.t += f.nextInterval()
	}
	f.cursor = f.rowAt(f.t)
	return nil
}

// nextInterval is the distance to the next row, or the last row spacing once
// the table is exhausted.
func (f *Forcing) nextInterval() float64 {
	i := sort.SearchFloat64s(f.times, f.t)
	for i < len(f.times) && f.times[i] <= f.t {
		i++
	}
	if i < len(f.times) {
		return f.times[i] - f.t
	}
	if n := len(f.times); n > 1 {
		return f.times[n-1] - f.times[n-2]
	}
	return 1.0
}

func (f *Forcing) rowAt(t float64) int {
	i := sort.SearchFloat64s(f.times, t)
	if i < len(f.times) && f.times[i] == t {
		return i
	}
	if i == 0 {
		return 0
	}
	return i - 1
}

func (f *Forcing) CurrentTime() float64 { return f.t }

func (f *Forcing) SetCurrentTime(t float64) error {
	if err := f.ready(); err != nil {
		return err
	}
	f.t = t
	f.cursor = f.rowAt(t)
	return nil
}

func (f *Forcing) GetVar(name string) (dynamo.Value, error) {
	if err := f.ready(); err != nil {
		return nil, err
	}
	if v, ok := f.overrides[name]; ok {
		return dynamo.Scalar(v), nil
	}
	j := indexOf(f.names, name)
	if j < 0 {
		return nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownVar, name)
	}
	return dynamo.Scalar(f.interpolate(j)), nil
}

func (f *Forcing) interpolate(j int) float64 {
	i := f.cursor
	if f.t <= f.times[0] {
		return f.rows[0][j]
	}
	if i >= len(f.times)-1 {
		return f.rows[len(f.rows)-1][j]
	}
	t0, t1 := f.times[i], f.times[i+1]
	w := (f.t - t0) / (t1 - t0)
	return f.rows[i][j]*(1-w) + f.rows[i+1][j]*w
}

// SetVar pins a column to a constant value, overriding the table.
func (f *Forcing) SetVar(name string, value dynamo.Value) error {
	if err := f.ready(); err != nil {
		return err
	}
	if indexOf(f.names, name) < 0 {
		return fmt.Errorf("%w: %s", dynamo.ErrUnknownVar, name)
	}
	if len(value) != 1 || !value.IsValid() {
		return fmt.Errorf("%w: %s expects one finite scalar", dynamo.ErrInvalidValue, name)
	}
	f.overrides[name] = value[0]
	return nil
}

func (f *Forcing) VarNames() []string {
	return append([]string{}, f.names...)
}

func (f *Forcing) Finalize() error {
	if f.finalized {
		return dynamo.ErrFinalized
	}
	f.finalized = true
	return nil
}

func (f *Forcing) ready() error {
	if !f.initialized {
		return dynamo.ErrNotInitialized
	}
	if f.finalized {
		return dynamo.ErrFinalized
	}
	return nil
}
