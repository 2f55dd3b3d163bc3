package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/dyncouple/internal/dynamo"
)

const (
	metadataFile = "metadata.json"
	outputFile   = "output.csv"
)

// CSVSink writes one run directory: metadata.json plus output.csv with a
// time column and one column per output variable component.
type CSVSink struct {
	dir  string
	meta RunMetadata

	file   *os.File
	w      *csv.Writer
	vars   []Descriptor
	closed bool
}

var _ OutputSink = (*CSVSink)(nil)

func (s *CSVSink) Dir() string { return s.dir }

func (s *CSVSink) ID() string { return s.meta.ID }

func (s *CSVSink) Path() string { return filepath.Join(s.dir, outputFile) }

func (s *CSVSink) Metadata() RunMetadata { return s.meta }

func (s *CSVSink) Init(dims map[string]int, vars []Descriptor, attrs map[string]string) error {
	s.vars = vars
	s.meta.Dims = dims
	s.meta.Variables = vars
	if len(attrs) > 0 {
		if s.meta.Attributes == nil {
			s.meta.Attributes = make(map[string]string, len(attrs))
		}
		for k, v := range attrs {
			s.meta.Attributes[k] = v
		}
	}

	if s.file == nil {
		f, err := os.Create(s.Path())
		if err != nil {
			return err
		}
		s.file = f
		s.w = csv.NewWriter(f)
		if err := s.w.Write(Header(vars)); err != nil {
			return err
		}
		s.w.Flush()
	}
	return s.writeMetadata()
}

// Header returns the CSV column names for vars.
func Header(vars []Descriptor) []string {
	header := []string{TimeDim}
	for _, d := range vars {
		if d.Size <= 1 {
			header = append(header, d.Name.String())
			continue
		}
		for i := 0; i < d.Size; i++ {
			header = append(header, fmt.Sprintf("%s[%d]", d.Name, i))
		}
	}
	return header
}

func (s *CSVSink) Append(index int, snap Snapshot) error {
	if s.w == nil {
		return fmt.Errorf("output %s: append before init", s.meta.ID)
	}
	if index != s.meta.Rows {
		return fmt.Errorf("output %s: record %d out of sequence, expected %d", s.meta.ID, index, s.meta.Rows)
	}

	row := []string{strconv.FormatFloat(snap.Time, 'g', -1, 64)}
	for _, d := range s.vars {
		v := snap.Values[d.Name]
		for i := 0; i < d.Size; i++ {
			if i < len(v) {
				row = append(row, strconv.FormatFloat(v[i], 'g', -1, 64))
			} else {
				row = append(row, "")
			}
		}
	}
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}

	s.meta.Rows++
	s.meta.End = snap.Time
	return nil
}

// Backup copies the output written so far to output.<tag>.csv.
func (s *CSVSink) Backup(tag string) (string, error) {
	if s.w != nil {
		s.w.Flush()
	}
	dst := filepath.Join(s.dir, "output."+tag+".csv")
	if err := copyFile(s.Path(), dst); err != nil {
		return "", err
	}
	return dst, nil
}

func (s *CSVSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.meta.Finished = time.Now().UTC()

	var err error
	if s.w != nil {
		s.w.Flush()
		err = s.w.Error()
	}
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
	}
	if merr := s.writeMetadata(); err == nil {
		err = merr
	}
	return err
}

func (s *CSVSink) writeMetadata() error {
	f, err := os.Create(filepath.Join(s.dir, metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s.meta)
}

// truncate keeps the header and the first rows records of output.csv and
// reopens it for appending.
func (s *CSVSink) truncate(rows int) error {
	f, err := os.Open(s.Path())
	if err != nil {
		return err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	f.Close()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("output %s: missing header", s.meta.ID)
	}
	if keep := rows + 1; keep < len(records) {
		records = records[:keep]
	}

	out, err := os.Create(s.Path())
	if err != nil {
		return err
	}
	w := csv.NewWriter(out)
	if err := w.WriteAll(records); err != nil {
		out.Close()
		return err
	}

	s.file = out
	s.w = csv.NewWriter(out)
	s.meta.Rows = len(records) - 1
	if s.meta.Rows > 0 {
		last := records[len(records)-1]
		if t, err := strconv.ParseFloat(last[0], 64); err == nil {
			s.meta.End = t
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Values parses a CSV row back into per-variable values.
func Values(vars []Descriptor, row []float64) map[dynamo.QualifiedName]dynamo.Value {
	out := make(map[dynamo.QualifiedName]dynamo.Value, len(vars))
	col := 0
	for _, d := range vars {
		if col+d.Size > len(row) {
			break
		}
		out[d.Name] = dynamo.Value(row[col : col+d.Size]).Clone()
		col += d.Size
	}
	return out
}
