// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"sync"

	"tidepool/internal/storage"
)

// MemoryStore is an in-memory storage.ObjectStore implementation for tests.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	nextID  int

	// PutErr/DeleteErr, when set, are returned by the next call.
	PutErr    error
	DeleteErr error
}

// NewMemoryStore creates an in-memory object store stub for tests.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte), nextID: 1}
}

// Put stores data under a generated id.
func (s *MemoryStore) Put(_ context.Context, name, contentType string, data []byte) (storage.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PutErr != nil {
		return storage.Object{}, s.PutErr
	}
	id := fmt.Sprintf("mem-%d", s.nextID)
	s.nextID++
	s.objects[id] = append([]byte(nil), data...)
	return storage.Object{ID: id, URL: "https://cdn.test/" + id}, nil
}

// Delete removes the object. Missing ids are not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.objects, id)
	return nil
}

// Len reports how many objects the store currently holds.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Has reports whether the store holds the given id.
func (s *MemoryStore) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[id]
	return ok
}

// TinyPNG returns an in-memory PNG byte slice with the requested dimensions.
func TinyPNG(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
