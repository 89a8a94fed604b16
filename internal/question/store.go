package question

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("question not found")
	// ErrDuplicate marks a unique-name constraint violation (taxonomy races).
	ErrDuplicate = errors.New("unique violation")
	ErrNoUser    = errors.New("user not found")
)

type Filter struct {
	Type   Type
	UserID string
	Limit  int
	Offset int
}

type Store interface {
	PutQuestion(ctx context.Context, q Question) (Question, error)
	GetQuestion(ctx context.Context, id string) (Question, error)
	ListQuestions(ctx context.Context, f Filter) ([]Question, error)
	DeleteQuestion(ctx context.Context, id string) error
	UserExists(ctx context.Context, userID string) (bool, error)
}

type memoryStore struct {
	mu        sync.RWMutex
	questions map[string]Question
	order     []string
	users     map[string]bool
	// taxonomy names are unique across the bank
	names map[string]map[string]bool // kind -> name -> present
}

// NewInMemoryStore returns a Store backed by process memory. Used by tests
// and by offline runs that do not need durability.
func NewInMemoryStore(users ...string) Store {
	m := &memoryStore{
		questions: map[string]Question{},
		users:     map[string]bool{},
		names: map[string]map[string]bool{
			"category": {}, "keyword": {}, "subject": {},
		},
	}
	for _, u := range users {
		m.users[u] = true
	}
	return m
}

func (m *memoryStore) PutQuestion(_ context.Context, q Question) (Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.ID == "" {
		q.ID = NewID()
	}
	if q.CreatedAt == 0 {
		q.CreatedAt = time.Now().Unix()
	}
	for _, n := range q.Categories {
		m.names["category"][n] = true
	}
	for _, n := range q.Keywords {
		m.names["keyword"][n] = true
	}
	for _, n := range q.Subjects {
		m.names["subject"][n] = true
	}
	if _, ok := m.questions[q.ID]; !ok {
		m.order = append(m.order, q.ID)
	}
	m.questions[q.ID] = q
	return q, nil
}

func (m *memoryStore) GetQuestion(_ context.Context, id string) (Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, ErrNotFound
	}
	return q, nil
}

func (m *memoryStore) ListQuestions(_ context.Context, f Filter) ([]Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Question, 0, len(m.order))
	for _, id := range m.order {
		q := m.questions[id]
		if f.Type != "" && q.Type != f.Type {
			continue
		}
		if f.UserID != "" && q.UserID != f.UserID {
			continue
		}
		out = append(out, q)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memoryStore) DeleteQuestion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[id]; !ok {
		return ErrNotFound
	}
	delete(m.questions, id)
	for i, qid := range m.order {
		if qid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memoryStore) UserExists(_ context.Context, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.users[userID], nil
}
