package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/JonMunkholm/csvdiff/internal/core"
)

// Bucket layout:
//
//	comparisons  id -> gzip(JSON comparison)
//	infos        id -> JSON ComparisonInfo
//	created      unix nanos (8 bytes, big endian) + id -> id
//
// The created bucket orders comparisons by time for List and Prune.
var (
	bucketComparisons = []byte("comparisons")
	bucketInfos       = []byte("infos")
	bucketCreated     = []byte("created")
)

// Bolt stores comparisons in a bolt database file.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens or creates the database at path.
func OpenBolt(path string) (*Bolt, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt store: no path")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt store %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketComparisons, bucketInfos, bucketCreated} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bolt store: %w", err)
	}
	return &Bolt{db: db}, nil
}

func createdKey(t time.Time, id uuid.UUID) []byte {
	k := make([]byte, 8+len(id))
	binary.BigEndian.PutUint64(k, uint64(t.UnixNano()))
	copy(k[8:], id[:])
	return k
}

func (s *Bolt) Save(ctx context.Context, c *core.Comparison) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	info, err := json.Marshal(c.Info())
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketComparisons).Put(c.ID[:], buf.Bytes()); err != nil {
			return err
		}
		if err := tx.Bucket(bucketInfos).Put(c.ID[:], info); err != nil {
			return err
		}
		return tx.Bucket(bucketCreated).Put(createdKey(c.CreatedAt, c.ID), c.ID[:])
	})
}

func (s *Bolt) Get(ctx context.Context, id uuid.UUID) (*core.Comparison, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketComparisons).Get(id[:])
		if v == nil {
			return core.ErrNotFound
		}
		// v is only valid inside the transaction.
		raw = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("comparison %s: %w", id, err)
	}
	defer zr.Close()
	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("comparison %s: %w", id, err)
	}

	var c core.Comparison
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Bolt) List(ctx context.Context, limit int) ([]core.ComparisonInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos := make([]core.ComparisonInfo, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		ib := tx.Bucket(bucketInfos)
		cur := tx.Bucket(bucketCreated).Cursor()
		for k, id := cur.Last(); k != nil; k, id = cur.Prev() {
			if limit > 0 && len(infos) >= limit {
				break
			}
			var info core.ComparisonInfo
			if err := json.Unmarshal(ib.Get(id), &info); err != nil {
				return fmt.Errorf("comparison info %x: %w", id, err)
			}
			infos = append(infos, info)
		}
		return nil
	})
	return infos, err
}

func (s *Bolt) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		var info core.ComparisonInfo
		raw := tx.Bucket(bucketInfos).Get(id[:])
		if raw == nil {
			return core.ErrNotFound
		}
		if err := json.Unmarshal(raw, &info); err != nil {
			return err
		}
		return deleteTx(tx, id, info.CreatedAt)
	})
}

func deleteTx(tx *bolt.Tx, id uuid.UUID, created time.Time) error {
	if err := tx.Bucket(bucketComparisons).Delete(id[:]); err != nil {
		return err
	}
	if err := tx.Bucket(bucketInfos).Delete(id[:]); err != nil {
		return err
	}
	return tx.Bucket(bucketCreated).Delete(createdKey(created, id))
}

func (s *Bolt) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		limit := createdKey(cutoff, uuid.Nil)

		// Collect first; bolt cursors do not tolerate deletes mid-walk.
		var expired [][]byte
		cur := tx.Bucket(bucketCreated).Cursor()
		for k, _ := cur.First(); k != nil && bytes.Compare(k, limit) < 0; k, _ = cur.Next() {
			expired = append(expired, append([]byte(nil), k...))
		}

		for _, k := range expired {
			id, err := uuid.FromBytes(k[8:])
			if err != nil {
				return err
			}
			created := time.Unix(0, int64(binary.BigEndian.Uint64(k[:8])))
			if err := deleteTx(tx, id, created); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (s *Bolt) Close() error {
	return s.db.Close()
}
