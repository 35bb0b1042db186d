package structure

import (
	"errors"
	"io"
	"log"
	"sync"
)

// Transformation is a pure, path-addressed change to a model.
type Transformation interface {
	// Name identifies the transformation in logs and journals.
	Name() string
	transform(m *Model) (*Model, error)
}

// Apply runs t against m and returns the new model. m is never mutated; on
// error the original model is returned together with the error.
func Apply(m *Model, t Transformation) (*Model, error) {
	if t == nil {
		return m, errors.New("nil transformation")
	}
	if m == nil {
		m = Placeholder()
	}
	next, err := t.transform(m)
	if err != nil {
		return m, err
	}
	return next, nil
}

// Overlay applies pending transformations over m in order, skipping those that
// fail. The failures are returned alongside their transformation index so the
// caller can drop them.
func Overlay(m *Model, pending []Transformation) (*Model, map[int]error) {
	var failed map[int]error
	cur := m
	for i, t := range pending {
		next, err := Apply(cur, t)
		if err != nil {
			if failed == nil {
				failed = make(map[int]error)
			}
			failed[i] = err
			continue
		}
		cur = next
	}
	return cur, failed
}

// Store holds the current model and is the only place it changes.
type Store struct {
	mu     sync.RWMutex
	model  *Model
	logger *log.Logger
}

// NewStore returns a store holding the placeholder model.
func NewStore(logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{model: Placeholder(), logger: logger}
}

// Model returns the current model. Callers must treat it as read-only.
func (s *Store) Model() *Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Apply runs t against the current model. Rejected transformations are logged
// and leave the model unchanged.
func (s *Store) Apply(t Transformation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := Apply(s.model, t)
	if err != nil {
		s.logger.Printf("store: %s rejected: %v", Describe(t), err)
		return err
	}
	s.model = next
	return nil
}

// Swap replaces the current model with m if it still equals expected. It lets
// callers compute a model outside the lock (for example an overlay) and
// publish it atomically.
func (s *Store) Swap(expected, m *Model) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model != expected {
		return false
	}
	s.model = m
	return true
}

// Reset tears the model down to the placeholder.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = Placeholder()
}
