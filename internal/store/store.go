package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/argus/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketEntities = []byte("entities")
	bucketSegments = []byte("segments")

	allBuckets = [][]byte{bucketEntities, bucketSegments}
)

// BoltStore implements domain.Store using BoltDB.
type BoltStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access)
	cache map[string][]byte
}

var _ domain.Store = (*BoltStore)(nil)

// NewBoltStore opens the store for one Home Assistant instance. An empty
// baseDir keeps everything in memory.
func NewBoltStore(baseDir, hassURL string) (*BoltStore, error) {
	if baseDir == "" {
		return &BoltStore{cache: make(map[string][]byte)}, nil
	}

	dir := baseDir
	if hassURL != "" {
		dir = filepath.Join(baseDir, hashURL(hassURL))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "argus.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, cache: make(map[string][]byte)}, nil
}

func hashURL(u string) string {
	normalized := strings.TrimRight(strings.ToLower(u), "/")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:6])
}

func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *BoltStore) get(bucket []byte, key string, dest any) bool {
	cacheKey := string(bucket) + ":" + key

	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return json.Unmarshal(data, dest) == nil
	}
	s.mu.RUnlock()

	if s.db == nil {
		return false
	}

	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return false
	}

	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return json.Unmarshal(data, dest) == nil
}

// setMany writes several keys of one bucket in a single transaction.
func (s *BoltStore) setMany(bucket []byte, values map[string]any) error {
	encoded := make(map[string][]byte, len(values))
	for key, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		encoded[key] = data
	}

	s.mu.Lock()
	for key, data := range encoded {
		s.cache[string(bucket)+":"+key] = data
	}
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		for key, data := range encoded {
			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// clearBucket empties bucket by recreating it; deleting keys while a cursor
// walks them skips entries.
func (s *BoltStore) clearBucket(tx *bolt.Tx, bucket []byte) error {
	if tx.Bucket(bucket) != nil {
		if err := tx.DeleteBucket(bucket); err != nil {
			return err
		}
	}
	_, err := tx.CreateBucket(bucket)
	return err
}

func (s *BoltStore) forgetBucketLocked(bucket []byte) {
	prefix := string(bucket) + ":"
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			delete(s.cache, k)
		}
	}
}

// === Entity registry ===

func (s *BoltStore) GetEntity(entityID string) (domain.Entity, bool) {
	var entity domain.Entity
	ok := s.get(bucketEntities, entityID, &entity)
	return entity, ok
}

func (s *BoltStore) SaveEntities(entities []domain.Entity) error {
	values := make(map[string]any, len(entities))
	for _, e := range entities {
		values[e.EntityID] = e
	}
	return s.setMany(bucketEntities, values)
}

// === Recording segments (one key per camera) ===

// LoadSegments returns every persisted camera snapshot.
func (s *BoltStore) LoadSegments() (map[string]domain.SegmentSnapshot, error) {
	out := make(map[string]domain.SegmentSnapshot)

	if s.db == nil {
		s.mu.RLock()
		defer s.mu.RUnlock()
		prefix := string(bucketSegments) + ":"
		for k, data := range s.cache {
			if !strings.HasPrefix(k, prefix) {
				continue
			}
			var snap domain.SegmentSnapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return nil, fmt.Errorf("failed to decode segments of %s: %w", k, err)
			}
			out[strings.TrimPrefix(k, prefix)] = snap
		}
		return out, nil
	}

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSegments)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var snap domain.SegmentSnapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return fmt.Errorf("failed to decode segments of %s: %w", k, err)
			}
			out[string(k)] = snap
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveSegments replaces the persisted segments with snapshot.
func (s *BoltStore) SaveSegments(snapshot map[string]domain.SegmentSnapshot) error {
	s.mu.Lock()
	s.forgetBucketLocked(bucketSegments)
	s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Update(func(tx *bolt.Tx) error {
			return s.clearBucket(tx, bucketSegments)
		}); err != nil {
			return err
		}
	}

	values := make(map[string]any, len(snapshot))
	for cameraID, snap := range snapshot {
		values[cameraID] = snap
	}
	return s.setMany(bucketSegments, values)
}

// === Invalidation ===

func (s *BoltStore) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string][]byte)
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if err := s.clearBucket(tx, bucket); err != nil {
				return err
			}
		}
		return nil
	})
}
