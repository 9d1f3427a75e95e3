package objectstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/crypto/blake2b"
)

// Key prefixes for BadgerDB storage organization, following the
// single-byte-prefix convention NornicDB's own BadgerEngine uses.
const (
	prefixBlob   = byte(0x01) // blob:objectId -> raw bytes
	prefixCommit = byte(0x02) // commit:objectId -> encoded commitRecord
	prefixRef    = byte(0x03) // ref:name -> objectId
)

// BadgerOptions configures the BadgerDB-backed object store.
type BadgerOptions struct {
	// DataDir is the directory for storing data files. Required unless
	// InMemory is set, in which case it is ignored.
	DataDir string

	// InMemory runs BadgerDB in memory-only mode. Useful for tests that
	// want persistence semantics (transactions, iteration order) without
	// real disk I/O.
	InMemory bool

	// SyncWrites forces fsync after each write. Slower but more durable.
	SyncWrites bool

	// BlobCacheSize sizes the ristretto read-through cache used for blob
	// reads: it tracks BlobCacheSize*10 counters and holds up to
	// BlobCacheSize*64 KiB of blob bytes. Zero selects the default of
	// 10,000; the cache is always enabled.
	BlobCacheSize int64
}

// BadgerStore is a durable Store backed by BadgerDB, with a ristretto
// read-through cache in front of blob reads — content-addressed blobs are
// immutable, so a cache entry is never invalidated, only evicted.
type BadgerStore struct {
	db        *badger.DB
	blobCache *ristretto.Cache[string, []byte]
	closed    bool
}

// NewBadgerStore opens (creating if necessary) a BadgerDB-backed store.
func NewBadgerStore(opts BadgerOptions) (*BadgerStore, error) {
	badgerOpts := badger.DefaultOptions(opts.DataDir)
	if opts.InMemory {
		// badger refuses in-memory mode when a directory is set.
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	if opts.SyncWrites {
		badgerOpts = badgerOpts.WithSyncWrites(true)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, &StoreFailureError{Cause: fmt.Errorf("open badger: %w", err)}
	}

	cacheSize := opts.BlobCacheSize
	if cacheSize == 0 {
		cacheSize = 10_000
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: cacheSize * 10,
		MaxCost:     cacheSize * 64 * 1024, // rough byte budget: blob cost is its length
		BufferItems: 64,
	})
	if err != nil {
		_ = db.Close()
		return nil, &StoreFailureError{Cause: fmt.Errorf("create blob cache: %w", err)}
	}

	return &BadgerStore{db: db, blobCache: cache}, nil
}

func blobKey(id ObjectID) []byte  { return append([]byte{prefixBlob}, []byte(id)...) }
func commitKey(id ObjectID) []byte { return append([]byte{prefixCommit}, []byte(id)...) }
func refKey(name string) []byte   { return append([]byte{prefixRef}, []byte(name)...) }

func objectIDFromHash(data []byte) ObjectID {
	sum := blake2b.Sum256(data)
	return ObjectID(hex.EncodeToString(sum[:]))
}

func (s *BadgerStore) WriteBlob(_ context.Context, data []byte) (ObjectID, error) {
	if s.closed {
		return "", ErrStoreClosed
	}
	id := objectIDFromHash(data)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blobKey(id), data)
	})
	if err != nil {
		return "", &StoreFailureError{Cause: err}
	}
	s.blobCache.Set(string(id), data, int64(len(data)))
	return id, nil
}

func (s *BadgerStore) ReadBlob(_ context.Context, id ObjectID) ([]byte, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	if cached, ok := s.blobCache.Get(string(id)); ok {
		return append([]byte(nil), cached...), nil
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blobKey(id))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: blob %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, err
		}
		return nil, &StoreFailureError{Cause: err}
	}
	s.blobCache.Set(string(id), data, int64(len(data)))
	return data, nil
}

// encodedCommit is the on-disk representation of a commit object.
type encodedCommit struct {
	Message []byte     `json:"message"`
	Parents []ObjectID `json:"parents"`
	Author  string     `json:"author"`
	DateUTC int64       `json:"dateUnixNano"`
}

func (s *BadgerStore) Commit(_ context.Context, message []byte, parents []ObjectID, author string) (ObjectID, error) {
	if s.closed {
		return "", ErrStoreClosed
	}

	var salt [8]byte
	_, _ = rand.Read(salt[:])
	hashInput := append(append([]byte(nil), message...), salt[:]...)
	for _, p := range parents {
		hashInput = append(hashInput, []byte(p)...)
	}
	id := objectIDFromHash(hashInput)

	rec := encodedCommit{
		Message: message,
		Parents: parents,
		Author:  author,
		DateUTC: time.Now().UnixNano(),
	}
	encoded, err := jsonMarshal(rec)
	if err != nil {
		return "", &StoreFailureError{Cause: err}
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(commitKey(id), encoded)
	})
	if err != nil {
		return "", &StoreFailureError{Cause: err}
	}
	return id, nil
}

func (s *BadgerStore) readCommit(id ObjectID) (encodedCommit, error) {
	var rec encodedCommit
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(commitKey(id))
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: commit %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return jsonUnmarshal(val, &rec)
		})
	})
	return rec, err
}

func (s *BadgerStore) ShowCommit(_ context.Context, id ObjectID) ([]byte, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	rec, err := s.readCommit(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, err
		}
		return nil, &StoreFailureError{Cause: err}
	}
	return rec.Message, nil
}

func (s *BadgerStore) CommitInfo(_ context.Context, id ObjectID) (CommitInfo, error) {
	if s.closed {
		return CommitInfo{}, ErrStoreClosed
	}
	rec, err := s.readCommit(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return CommitInfo{}, err
		}
		return CommitInfo{}, &StoreFailureError{Cause: err}
	}
	return CommitInfo{
		Message: rec.Message,
		Parents: rec.Parents,
		Author:  rec.Author,
		Date:    time.Unix(0, rec.DateUTC),
	}, nil
}

func (s *BadgerStore) UpdateRef(_ context.Context, name string, expectedOld, newValue ObjectID) error {
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(refKey(name))
		var current ObjectID
		exists := true
		if err == badger.ErrKeyNotFound {
			exists = false
		} else if err != nil {
			return &StoreFailureError{Cause: err}
		} else {
			if err := item.Value(func(val []byte) error {
				current = ObjectID(val)
				return nil
			}); err != nil {
				return &StoreFailureError{Cause: err}
			}
		}

		if expectedOld == "" {
			if exists {
				return fmt.Errorf("%w: ref %q already exists", ErrConflict, name)
			}
		} else if !exists || current != expectedOld {
			return fmt.Errorf("%w: ref %q expected %s, found %s", ErrConflict, name, expectedOld, current)
		}

		return txn.Set(refKey(name), []byte(newValue))
	})
}

func (s *BadgerStore) ReadRef(_ context.Context, name string) (ObjectID, bool, error) {
	if s.closed {
		return "", false, ErrStoreClosed
	}
	var id ObjectID
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(refKey(name))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			id = ObjectID(val)
			return nil
		})
	})
	if err != nil {
		return "", false, &StoreFailureError{Cause: err}
	}
	return id, found, nil
}

func (s *BadgerStore) ListRefs(_ context.Context, prefix string) ([]RefEntry, error) {
	if s.closed {
		return nil, ErrStoreClosed
	}
	var out []RefEntry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		seekPrefix := refKey(prefix)
		for it.Seek(seekPrefix); it.ValidForPrefix(seekPrefix); it.Next() {
			item := it.Item()
			name := string(item.KeyCopy(nil)[1:])
			var id ObjectID
			if err := item.Value(func(val []byte) error {
				id = ObjectID(val)
				return nil
			}); err != nil {
				return err
			}
			out = append(out, RefEntry{Name: name, ObjectID: id})
		}
		return nil
	})
	if err != nil {
		return nil, &StoreFailureError{Cause: err}
	}
	return out, nil
}

func (s *BadgerStore) DeleteRef(_ context.Context, name string) error {
	if s.closed {
		return ErrStoreClosed
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(refKey(name))
	})
	if err != nil {
		return &StoreFailureError{Cause: err}
	}
	return nil
}

func (s *BadgerStore) CountReachable(ctx context.Context, ref ObjectID) (int, error) {
	if s.closed {
		return 0, ErrStoreClosed
	}
	seen := make(map[ObjectID]bool)
	var walk func(id ObjectID) error
	walk = func(id ObjectID) error {
		if id == "" || seen[id] {
			return nil
		}
		seen[id] = true
		rec, err := s.readCommit(id)
		if err != nil {
			if strings.Contains(err.Error(), "not found") {
				return nil
			}
			return err
		}
		for _, p := range rec.Parents {
			if err := walk(p); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(ref); err != nil {
		return 0, &StoreFailureError{Cause: err}
	}
	return len(seen), nil
}

func (s *BadgerStore) Ping(context.Context) (PingResult, error) {
	if s.closed {
		return PingResult{OK: false}, ErrStoreClosed
	}
	start := time.Now()
	err := s.db.View(func(txn *badger.Txn) error { return nil })
	if err != nil {
		return PingResult{OK: false}, &StoreFailureError{Cause: err}
	}
	return PingResult{OK: true, LatencyMs: time.Since(start).Milliseconds()}, nil
}

func (s *BadgerStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.blobCache.Close()
	return s.db.Close()
}
