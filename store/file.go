package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/emptyOVO/txagg/agg"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// FileStore writes one blob per chunk, named imd-<runID>-<index>.pb, into a
// directory. A missing or zero-length blob reads as absent.
type FileStore struct {
	dir   string
	runID string
}

// DefaultDir picks the blob directory: /dev/shm when inRAM and available,
// the OS temp dir when inRAM otherwise, and output/temp_results on disk.
func DefaultDir(inRAM bool) string {
	if inRAM {
		baseDir := "/dev/shm"
		if info, err := os.Stat(baseDir); err != nil || !info.IsDir() {
			baseDir = os.TempDir()
		}
		return baseDir
	}
	return filepath.Join("output", "temp_results")
}

// NewFileStore creates dir if needed. An empty runID gets a fresh UUID.
func NewFileStore(dir string, runID string) (*FileStore, error) {
	if runID == "" {
		runID = uuid.New().String()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create partial result dir %q", dir)
	}
	return &FileStore{dir: dir, runID: runID}, nil
}

func (fs *FileStore) RunID() string {
	return fs.runID
}

func (fs *FileStore) Dir() string {
	return fs.dir
}

func (fs *FileStore) path(index uint32) string {
	return filepath.Join(fs.dir, fmt.Sprintf("imd-%v-%v.pb", fs.runID, index))
}

// Put writes to a temp file and renames it into place, so Get never sees a
// half-written blob.
func (fs *FileStore) Put(ctx context.Context, index uint32, a *agg.Aggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fname := fs.path(index)
	tmp, err := os.CreateTemp(fs.dir, filepath.Base(fname)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp blob")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(Encode(a)); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", tmp.Name())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "sync %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), fname); err != nil {
		return errors.Wrapf(err, "rename blob to %s", fname)
	}
	log.Tracef("[Store] wrote %s", fname)
	return nil
}

func (fs *FileStore) Get(ctx context.Context, index uint32) (*agg.Aggregate, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	fname := fs.path(index)
	b, err := os.ReadFile(fname)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "read %s", fname)
	}
	if len(b) == 0 {
		return nil, false, nil
	}
	a, err := Decode(b)
	if err != nil {
		return nil, false, errors.Wrapf(err, "decode %s", fname)
	}
	return a, true, nil
}

// Has reports whether a blob file exists for index. An existing empty blob
// counts, since a chunk without stores legitimately encodes to zero bytes.
func (fs *FileStore) Has(ctx context.Context, index uint32) (bool, error) {
	_, err := os.Stat(fs.path(index))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.Wrap(err, "stat blob")
}

// Cleanup removes every blob of this run.
func (fs *FileStore) Cleanup() error {
	files, err := filepath.Glob(filepath.Join(fs.dir, fmt.Sprintf("imd-%v-*.pb", fs.runID)))
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove %s", f)
		}
	}
	return nil
}
