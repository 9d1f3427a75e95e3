package objectstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// MemoryStore is a thread-safe in-memory Store implementation.
//
// Use cases:
//   - Unit tests for the reducer, sync protocol, and facade (no disk I/O)
//   - Prototyping against a fresh graph before wiring a durable backend
//
// It is not persistent: closing the process loses everything.
type MemoryStore struct {
	mu      sync.RWMutex
	blobs   map[ObjectID][]byte
	commits map[ObjectID]commitRecord
	refs    map[string]ObjectID
	closed  bool
}

type commitRecord struct {
	info CommitInfo
	raw  []byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs:   make(map[ObjectID][]byte),
		commits: make(map[ObjectID]commitRecord),
		refs:    make(map[string]ObjectID),
	}
}

func hashID(data []byte) ObjectID {
	sum := blake2b.Sum256(data)
	return ObjectID(hex.EncodeToString(sum[:]))
}

func (s *MemoryStore) WriteBlob(_ context.Context, data []byte) (ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStoreClosed
	}
	id := hashID(data)
	s.blobs[id] = append([]byte(nil), data...)
	return id, nil
}

func (s *MemoryStore) ReadBlob(_ context.Context, id ObjectID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	data, ok := s.blobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: blob %s", ErrNotFound, id)
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Commit(_ context.Context, message []byte, parents []ObjectID, author string) (ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrStoreClosed
	}

	var buf []byte
	buf = append(buf, message...)
	for _, p := range parents {
		buf = append(buf, []byte(p)...)
	}
	// random salt keeps two commits with identical message+parents from
	// colliding, mirroring real VCS commit objects which embed a timestamp.
	var salt [8]byte
	_, _ = rand.Read(salt[:])
	buf = append(buf, salt[:]...)

	id := hashID(buf)
	s.commits[id] = commitRecord{
		info: CommitInfo{
			Message: append([]byte(nil), message...),
			Parents: append([]ObjectID(nil), parents...),
			Author:  author,
			Date:    time.Now(),
		},
		raw: append([]byte(nil), message...),
	}
	return id, nil
}

func (s *MemoryStore) ShowCommit(_ context.Context, id ObjectID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	rec, ok := s.commits[id]
	if !ok {
		return nil, fmt.Errorf("%w: commit %s", ErrNotFound, id)
	}
	return append([]byte(nil), rec.raw...), nil
}

func (s *MemoryStore) CommitInfo(_ context.Context, id ObjectID) (CommitInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return CommitInfo{}, ErrStoreClosed
	}
	rec, ok := s.commits[id]
	if !ok {
		return CommitInfo{}, fmt.Errorf("%w: commit %s", ErrNotFound, id)
	}
	return rec.info, nil
}

func (s *MemoryStore) UpdateRef(_ context.Context, name string, expectedOld, newValue ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	current, exists := s.refs[name]
	if expectedOld == "" {
		if exists {
			return fmt.Errorf("%w: ref %q already exists", ErrConflict, name)
		}
	} else if !exists || current != expectedOld {
		return fmt.Errorf("%w: ref %q expected %s, found %s", ErrConflict, name, expectedOld, current)
	}
	s.refs[name] = newValue
	return nil
}

func (s *MemoryStore) ReadRef(_ context.Context, name string) (ObjectID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrStoreClosed
	}
	id, ok := s.refs[name]
	return id, ok, nil
}

func (s *MemoryStore) ListRefs(_ context.Context, prefix string) ([]RefEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	var out []RefEntry
	for name, id := range s.refs {
		if strings.HasPrefix(name, prefix) {
			out = append(out, RefEntry{Name: name, ObjectID: id})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) DeleteRef(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.refs, name)
	return nil
}

func (s *MemoryStore) CountReachable(ctx context.Context, ref ObjectID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	seen := make(map[ObjectID]bool)
	var walk func(id ObjectID)
	walk = func(id ObjectID) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		rec, ok := s.commits[id]
		if !ok {
			return
		}
		for _, p := range rec.info.Parents {
			walk(p)
		}
	}
	walk(ref)
	return len(seen), nil
}

func (s *MemoryStore) Ping(context.Context) (PingResult, error) {
	return PingResult{OK: true, LatencyMs: 0}, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
