package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileStore keeps chat history in a JSON array file for local runs.
type FileStore struct {
	mu      sync.Mutex
	path    string
	nowFunc func() time.Time
}

// NewFileStore returns a history store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, nowFunc: time.Now}
}

// Add implements Store.
func (s *FileStore) Add(ctx context.Context, userID, role, content string) (Message, error) {
	if err := checkRole(role); err != nil {
		return Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs, err := s.load()
	if err != nil {
		return Message{}, err
	}
	msg := Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		Role:      role,
		Content:   content,
		Timestamp: s.nowFunc().UTC(),
	}
	msgs = append(msgs, msg)

	raw, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return Message{}, fmt.Errorf("encode history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Message{}, fmt.Errorf("create history dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return Message{}, fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return Message{}, fmt.Errorf("replace history: %w", err)
	}
	return msg, nil
}

// List implements Store.
func (s *FileStore) List(ctx context.Context, userID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, err := s.load()
	if err != nil {
		return nil, err
	}
	return filterAndSort(msgs, userID), nil
}

func (s *FileStore) load() ([]Message, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var msgs []Message
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("decode history %s: %w", s.path, err)
	}
	return msgs, nil
}
