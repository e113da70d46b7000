package bookings

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// document is the on-disk layout of the bookings file.
type document struct {
	Bookings []*Booking `json:"bookings"`
}

// DocumentStore keeps every booking in one document, optionally mirrored to a JSON file.
// All reads and writes go through a single mutex, so conflict checks and writes are atomic
// within the process. Only one process should own the file.
type DocumentStore struct {
	mu   sync.Mutex
	path string
	doc  document
}

// NewMemoryStore returns a DocumentStore that never touches disk.
func NewMemoryStore() *DocumentStore {
	return &DocumentStore{doc: document{Bookings: []*Booking{}}}
}

// OpenDocumentStore loads path, creating it with an empty booking list when missing.
func OpenDocumentStore(path string) (*DocumentStore, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}
	s := &DocumentStore{path: path}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bookings: create data dir: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		s.doc = document{Bookings: []*Booking{}}
		if err := s.save(s.doc); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("bookings: read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("bookings: parse %s: %w", path, err)
	}
	if s.doc.Bookings == nil {
		s.doc.Bookings = []*Booking{}
	}
	return s, nil
}

func (s *DocumentStore) List(ctx context.Context) ([]*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Booking, 0, len(s.doc.Bookings))
	for _, b := range s.doc.Bookings {
		out = append(out, cloneBooking(b))
	}
	return out, nil
}

func (s *DocumentStore) SlotTaken(ctx context.Context, timestamp int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.doc.Bookings {
		if b.Timestamp == timestamp && b.HoldsSlot() {
			return true, nil
		}
	}
	return false, nil
}

func (s *DocumentStore) Insert(ctx context.Context, b *Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.doc.Bookings {
		if existing.Timestamp == b.Timestamp && existing.HoldsSlot() {
			return ErrSlotConflict
		}
	}

	next := document{Bookings: append(s.snapshot(), cloneBooking(b))}
	if err := s.save(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, id string) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		return cloneBooking(s.doc.Bookings[i]), nil
	}
	return nil, ErrBookingNotFound
}

func (s *DocumentStore) Update(ctx context.Context, id string, fn func(*Booking) error) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, ErrBookingNotFound
	}
	updated := cloneBooking(s.doc.Bookings[i])
	if err := fn(updated); err != nil {
		return nil, err
	}
	if updated.HoldsSlot() {
		for _, other := range s.doc.Bookings {
			if conflictsWith(updated, other) {
				return nil, ErrSlotConflict
			}
		}
	}

	next := document{Bookings: s.snapshot()}
	next.Bookings[i] = updated
	if err := s.save(next); err != nil {
		return nil, err
	}
	s.doc = next
	return cloneBooking(updated), nil
}

func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return ErrBookingNotFound
	}
	remaining := make([]*Booking, 0, len(s.doc.Bookings)-1)
	remaining = append(remaining, s.doc.Bookings[:i]...)
	remaining = append(remaining, s.doc.Bookings[i+1:]...)

	next := document{Bookings: remaining}
	if err := s.save(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

func (s *DocumentStore) indexOf(id string) int {
	for i, b := range s.doc.Bookings {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (s *DocumentStore) snapshot() []*Booking {
	out := make([]*Booking, len(s.doc.Bookings), len(s.doc.Bookings)+1)
	copy(out, s.doc.Bookings)
	return out
}

// save writes doc to a temp file in the same directory and renames it over the target.
func (s *DocumentStore) save(doc document) error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("bookings: encode document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".bookings-*.json")
	if err != nil {
		return fmt.Errorf("bookings: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("bookings: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("bookings: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("bookings: replace %s: %w", s.path, err)
	}
	return nil
}
