package store

import (
	"context"
	"encoding/binary"

	"github.com/emptyOVO/txagg/agg"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// BoltStore keeps partials in a bbolt database, one bucket per run and a
// big-endian chunk index as key. Values carry a one byte version prefix so an
// empty aggregate is never stored as a zero-length value.
type BoltStore struct {
	db     *bolt.DB
	runID  string
	bucket []byte
}

// OpenBoltStore opens (or creates) the database at path. An empty runID gets
// a fresh UUID.
func OpenBoltStore(path string, runID string) (*BoltStore, error) {
	if runID == "" {
		runID = uuid.New().String()
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", path)
	}
	bucket := []byte("run-" + runID)
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return errors.Wrap(err, "create bucket")
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db, runID: runID, bucket: bucket}, nil
}

func (bs *BoltStore) RunID() string {
	return bs.runID
}

const boltBlobVersion byte = 1

func boltKey(index uint32) []byte {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], index)
	return k[:]
}

func (bs *BoltStore) Put(ctx context.Context, index uint32, a *agg.Aggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob := append([]byte{boltBlobVersion}, Encode(a)...)
	return bs.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bs.bucket)
		if err != nil {
			return errors.Wrap(err, "create bucket")
		}
		return errors.Wrapf(b.Put(boltKey(index), blob), "put chunk %d", index)
	})
}

func (bs *BoltStore) Get(ctx context.Context, index uint32) (*agg.Aggregate, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var blob []byte
	err := bs.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bs.bucket)
		if b == nil {
			return nil
		}
		if v := b.Get(boltKey(index)); v != nil {
			// v is only valid inside the transaction
			blob = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if blob == nil {
		return nil, false, nil
	}
	if len(blob) == 0 || blob[0] != boltBlobVersion {
		return nil, false, errors.Wrapf(ErrCorrupt, "chunk %d: unknown blob version", index)
	}
	a, err := Decode(blob[1:])
	if err != nil {
		return nil, false, errors.Wrapf(err, "decode chunk %d", index)
	}
	return a, true, nil
}

func (bs *BoltStore) Has(ctx context.Context, index uint32) (bool, error) {
	var ok bool
	err := bs.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(bs.bucket); b != nil {
			ok = b.Get(boltKey(index)) != nil
		}
		return nil
	})
	return ok, err
}

// Cleanup drops the run's bucket.
func (bs *BoltStore) Cleanup() error {
	return bs.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket(bs.bucket)
		if err == bolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
}

func (bs *BoltStore) Close() error {
	return bs.db.Close()
}
