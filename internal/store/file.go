package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/imrishuroy/go-chat-orderflow/internal/orders"
)

// FileStore keeps all records of one trail in a single JSON array file, the
// layout used by local runs (order_info.json, confirmed_orders.json).
// Every write rewrites the whole file; last write wins.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore returns a FileStore backed by path. The file is created on the
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// LoadAll returns every record ordered by id.
func (s *FileStore) LoadAll(ctx context.Context) ([]orders.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, err := s.load()
	if err != nil {
		return nil, err
	}
	sortByID(recs)
	return recs, nil
}

// LoadByID returns (nil, nil) if id is absent.
func (s *FileStore) LoadByID(ctx context.Context, id int64) (*orders.OrderRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].ID == id {
			rec := recs[i]
			return &rec, nil
		}
	}
	return nil, nil
}

// Upsert replaces the record with the same id or appends it.
func (s *FileStore) Upsert(ctx context.Context, rec orders.OrderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range recs {
		if recs[i].ID == rec.ID {
			recs[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		recs = append(recs, rec)
	}
	return s.save(recs)
}

// Append assigns max(max(id)+1, floor) under the write lock and persists rec.
func (s *FileStore) Append(ctx context.Context, rec orders.OrderRecord, floor int64) (orders.OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.load()
	if err != nil {
		return orders.OrderRecord{}, err
	}
	rec.ID = nextID(recs, floor)
	if err := s.save(append(recs, rec)); err != nil {
		return orders.OrderRecord{}, err
	}
	return rec, nil
}

// Clear removes the backing file.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) load() ([]orders.OrderRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var recs []orders.OrderRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return recs, nil
}

// save writes to a temp file and renames it over the target so readers never
// see a half-written array.
func (s *FileStore) save(recs []orders.OrderRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode orders: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
