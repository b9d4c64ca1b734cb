// Package storage keeps validated pods in a pebble database, keyed by
// KSUID and deduplicated by BLAKE3 content digest.
package storage

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/segmentio/ksuid"
	"github.com/ssargent/podkit/pkg/pod"
	"github.com/zeebo/blake3"
)

// Key prefixes. Pod records sort by KSUID, so a prefix scan is
// chronological.
var (
	podPrefix    = []byte("p/")
	digestPrefix = []byte("d/")
)

// Errors
var (
	ErrPodNotFound = &StorageError{"pod not found"}
	ErrInvalidPod  = &StorageError{"invalid pod"}
	ErrInvalidID   = &StorageError{"invalid pod id"}
)

// StorageError represents a pod storage error
type StorageError struct {
	Message string
}

func (e *StorageError) Error() string {
	return e.Message
}

// Config holds configuration for the pod storage
type Config struct {
	DataDir string // Directory for the pebble database
	Sync    bool   // Sync every write to disk
}

// Entry describes one stored pod
type Entry struct {
	ID     ksuid.KSUID
	Size   int
	Digest string
}

// Stats summarises the storage contents
type Stats struct {
	Pods  int
	Bytes int64
}

type PodStorage struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	podOpts   []pod.Option

	// serializes the digest lookup and the insert in Put
	mu sync.Mutex
}

// NewPodStorage opens (or creates) the database under cfg.DataDir. The
// pod options are used to validate every stored pod.
func NewPodStorage(cfg Config, opts ...pod.Option) (*PodStorage, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	db, err := pebble.Open(cfg.DataDir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pod storage: %w", err)
	}
	writeOpts := pebble.NoSync
	if cfg.Sync {
		writeOpts = pebble.Sync
	}
	return &PodStorage{db: db, writeOpts: writeOpts, podOpts: opts}, nil
}

// Digest returns the hex BLAKE3 digest used to deduplicate pods.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ParseID parses the string form of a pod id.
func ParseID(s string) (ksuid.KSUID, error) {
	id, err := ksuid.Parse(s)
	if err != nil {
		return ksuid.Nil, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return id, nil
}

// Put validates data and stores it. Storing bytes identical to an
// existing pod returns the existing id with created set to false.
func (s *PodStorage) Put(data []byte) (id ksuid.KSUID, created bool, err error) {
	if err := pod.Validate(data, s.podOpts...); err != nil {
		return ksuid.Nil, false, fmt.Errorf("%w: %w", ErrInvalidPod, err)
	}
	sum := blake3.Sum256(data)
	dkey := digestKey(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, closer, err := s.db.Get(dkey)
	switch {
	case err == nil:
		id, err = ksuid.FromBytes(existing)
		closer.Close()
		if err != nil {
			return ksuid.Nil, false, fmt.Errorf("corrupt digest index entry: %w", err)
		}
		return id, false, nil
	case !errors.Is(err, pebble.ErrNotFound):
		return ksuid.Nil, false, fmt.Errorf("failed to look up digest: %w", err)
	}

	id = ksuid.New()
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(podKey(id), data, nil); err != nil {
		return ksuid.Nil, false, err
	}
	if err := batch.Set(dkey, id.Bytes(), nil); err != nil {
		return ksuid.Nil, false, err
	}
	if err := batch.Commit(s.writeOpts); err != nil {
		return ksuid.Nil, false, fmt.Errorf("failed to store pod: %w", err)
	}
	return id, true, nil
}

// Get returns a copy of the stored pod.
func (s *PodStorage) Get(id ksuid.KSUID) ([]byte, error) {
	data, closer, err := s.db.Get(podKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPodNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	return bytes.Clone(data), nil
}

// Delete removes a pod and its digest index entry.
func (s *PodStorage) Delete(id ksuid.KSUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.Get(id)
	if err != nil {
		return err
	}
	sum := blake3.Sum256(data)

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(podKey(id), nil); err != nil {
		return err
	}
	if err := batch.Delete(digestKey(sum[:]), nil); err != nil {
		return err
	}
	return batch.Commit(s.writeOpts)
}

// List returns up to limit pods, oldest first. A limit of zero or less
// lists everything.
func (s *PodStorage) List(limit int) ([]Entry, error) {
	var entries []Entry
	err := s.scan(func(id ksuid.KSUID, data []byte) bool {
		entries = append(entries, Entry{ID: id, Size: len(data), Digest: Digest(data)})
		return limit <= 0 || len(entries) < limit
	})
	return entries, err
}

// Stats counts the stored pods and their total size.
func (s *PodStorage) Stats() (Stats, error) {
	var st Stats
	err := s.scan(func(_ ksuid.KSUID, data []byte) bool {
		st.Pods++
		st.Bytes += int64(len(data))
		return true
	})
	return st, err
}

func (s *PodStorage) scan(fn func(id ksuid.KSUID, data []byte) bool) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: podPrefix,
		UpperBound: prefixEnd(podPrefix),
	})
	if err != nil {
		return err
	}
	for iter.First(); iter.Valid(); iter.Next() {
		id, err := ksuid.FromBytes(iter.Key()[len(podPrefix):])
		if err != nil {
			iter.Close()
			return fmt.Errorf("corrupt pod key: %w", err)
		}
		if !fn(id, iter.Value()) {
			break
		}
	}
	return iter.Close()
}

func (s *PodStorage) Close() error {
	return s.db.Close()
}

func podKey(id ksuid.KSUID) []byte {
	return append(bytes.Clone(podPrefix), id.Bytes()...)
}

func digestKey(sum []byte) []byte {
	return append(bytes.Clone(digestPrefix), sum...)
}

func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	end[len(end)-1]++
	return end
}
