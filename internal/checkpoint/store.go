package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

var ErrNotFound = errors.New("checkpoint not found")

// Store persists checkpoint records per run.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Load(ctx context.Context, runID string, boundary float64) (*Record, error)
	Latest(ctx context.Context, runID string) (*Record, error)
	List(ctx context.Context, runID string) ([]float64, error)
	Runs(ctx context.Context) ([]string, error)
	Close() error
}

// BlobStore keeps records as JSON objects under <prefix><run-id>/<boundary>.json
// in any bucket gocloud.dev can open. Records are addressed by the boundary
// that fired them, so several boundaries crossed in one round are kept apart.
type BlobStore struct {
	bucket *blob.Bucket
	prefix string
}

var _ Store = (*BlobStore)(nil)

// OpenStore opens the bucket at target. Plain paths and file:// URLs are
// treated as local directories, relative ones resolved against baseDir and
// created when missing.
func OpenStore(ctx context.Context, target, baseDir, prefix string) (*BlobStore, error) {
	bucket, err := openBucket(ctx, target, baseDir)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store %q: %w", target, err)
	}
	return NewBlobStore(bucket, prefix), nil
}

func NewBlobStore(bucket *blob.Bucket, prefix string) *BlobStore {
	return &BlobStore{bucket: bucket, prefix: prefix}
}

func openBucket(ctx context.Context, target, baseDir string) (*blob.Bucket, error) {
	dir, local := localDir(target)
	if !local {
		return blob.OpenBucket(ctx, target)
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return fileblob.OpenBucket(dir, nil)
}

func localDir(target string) (string, bool) {
	if dir, ok := strings.CutPrefix(target, "file://"); ok {
		return dir, true
	}
	if !strings.Contains(target, "://") {
		return target, true
	}
	return "", false
}

func (s *BlobStore) Save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.bucket.WriteAll(ctx, s.keyFor(rec.RunID, rec.Boundary), data, &blob.WriterOptions{
		ContentType: "application/json",
	})
}

// Load returns the record written for boundary.
func (s *BlobStore) Load(ctx context.Context, runID string, boundary float64) (*Record, error) {
	data, err := s.bucket.ReadAll(ctx, s.keyFor(runID, boundary))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: run %s at boundary %g", ErrNotFound, runID, boundary)
		}
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Latest returns the record of the highest boundary.
func (s *BlobStore) Latest(ctx context.Context, runID string) (*Record, error) {
	times, err := s.List(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return s.Load(ctx, runID, times[len(times)-1])
}

// List returns the boundaries stored for runID in ascending order.
func (s *BlobStore) List(ctx context.Context, runID string) ([]float64, error) {
	dir := s.runPrefix(runID)
	iter := s.bucket.List(&blob.ListOptions{Prefix: dir})

	var times []float64
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		name, ok := strings.CutSuffix(strings.TrimPrefix(obj.Key, dir), ".json")
		if !ok || strings.Contains(name, "/") {
			continue
		}
		t, err := strconv.ParseFloat(name, 64)
		if err != nil {
			continue
		}
		times = append(times, t)
	}
	sort.Float64s(times)
	return times, nil
}

// Runs lists the run ids that have at least one checkpoint.
func (s *BlobStore) Runs(ctx context.Context) ([]string, error) {
	iter := s.bucket.List(&blob.ListOptions{Prefix: s.prefix, Delimiter: "/"})

	var runs []string
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if obj.IsDir {
			runs = append(runs, strings.TrimSuffix(strings.TrimPrefix(obj.Key, s.prefix), "/"))
		}
	}
	sort.Strings(runs)
	return runs, nil
}

func (s *BlobStore) Delete(ctx context.Context, runID string, boundary float64) error {
	err := s.bucket.Delete(ctx, s.keyFor(runID, boundary))
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return nil
	}
	return err
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}

func (s *BlobStore) runPrefix(runID string) string {
	return s.prefix + runID + "/"
}

func (s *BlobStore) keyFor(runID string, boundary float64) string {
	return s.runPrefix(runID) + formatTime(boundary) + ".json"
}

func formatTime(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}
