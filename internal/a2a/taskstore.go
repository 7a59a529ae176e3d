package a2a

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrTaskNotFound      = errors.New("a2a: task not found")
	ErrTaskNotCancelable = errors.New("a2a: task is not cancelable")
)

// NewTaskID returns a random task identifier.
func NewTaskID() string {
	return uuid.NewString()
}

// TaskStore is the agent-side record of tasks it has accepted. Readers get
// deep copies.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewTaskStore returns an empty store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*Task)}
}

// Create records a new task. Duplicate ids are rejected.
func (s *TaskStore) Create(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("a2a: task %q already exists", task.ID)
	}
	t := copyTask(&task)
	s.tasks[task.ID] = t
	return nil
}

// Get returns a copy of the task.
func (s *TaskStore) Get(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	return copyTask(t), nil
}

// Update applies fn to the stored task under the write lock.
func (s *TaskStore) Update(id string, fn func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, id)
	}
	fn(t)
	return nil
}

// Len returns the number of tasks held.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func copyTask(src *Task) *Task {
	dst := *src
	if src.Artifacts != nil {
		dst.Artifacts = make([]Artifact, len(src.Artifacts))
		for i, a := range src.Artifacts {
			a.Parts = copyParts(a.Parts)
			dst.Artifacts[i] = a
		}
	}
	if src.History != nil {
		dst.History = make([]Message, len(src.History))
		for i, m := range src.History {
			m.Parts = copyParts(m.Parts)
			dst.History[i] = m
		}
	}
	if src.Status.Message != nil {
		m := *src.Status.Message
		m.Parts = copyParts(m.Parts)
		dst.Status.Message = &m
	}
	return &dst
}

func copyParts(src []Part) []Part {
	if src == nil {
		return nil
	}
	dst := make([]Part, len(src))
	for i, p := range src {
		if p.Data != nil {
			p.Data = append([]byte(nil), p.Data...)
		}
		dst[i] = p
	}
	return dst
}
