package a2a

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStore_CreateGet(t *testing.T) {
	s := NewTaskStore()
	require.NoError(t, s.Create(Task{ID: "t1", Status: TaskStatus{State: TaskStateSubmitted}}))
	assert.Error(t, s.Create(Task{ID: "t1"}), "duplicate ids are rejected")

	got, err := s.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, TaskStateSubmitted, got.Status.State)

	_, err = s.Get("nope")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestTaskStore_GetReturnsDeepCopy(t *testing.T) {
	s := NewTaskStore()
	data, err := DataPart(map[string]string{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, s.Create(Task{
		ID:        "t1",
		Artifacts: []Artifact{{Name: "a", Parts: []Part{data}}},
	}))

	got, err := s.Get("t1")
	require.NoError(t, err)
	got.Artifacts[0].Name = "changed"
	got.Artifacts[0].Parts[0].Data[0] = 'X'

	again, err := s.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Artifacts[0].Name)
	assert.JSONEq(t, `{"k":"v"}`, string(again.Artifacts[0].Parts[0].Data))
}

func TestTaskStore_Update(t *testing.T) {
	s := NewTaskStore()
	require.NoError(t, s.Create(Task{ID: "t1"}))
	require.NoError(t, s.Update("t1", func(t *Task) { t.Status.State = TaskStateWorking }))

	got, err := s.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, TaskStateWorking, got.Status.State)

	assert.ErrorIs(t, s.Update("nope", func(*Task) {}), ErrTaskNotFound)
}

func TestTaskStore_ConcurrentAccess(t *testing.T) {
	s := NewTaskStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t%d", i)
			assert.NoError(t, s.Create(Task{ID: id}))
			_, err := s.Get(id)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}

func TestNewTaskID_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewTaskID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestTaskState_IsTerminal(t *testing.T) {
	assert.True(t, TaskStateCompleted.IsTerminal())
	assert.True(t, TaskStateFailed.IsTerminal())
	assert.True(t, TaskStateCanceled.IsTerminal())
	assert.False(t, TaskStateWorking.IsTerminal())
	assert.False(t, TaskStateSubmitted.IsTerminal())
}

func TestPart_Decode(t *testing.T) {
	p, err := DataPart(struct{ N int }{N: 7})
	require.NoError(t, err)
	var out struct{ N int }
	require.NoError(t, p.Decode(&out))
	assert.Equal(t, 7, out.N)

	_, err = DataPart(make(chan int))
	assert.Error(t, err)
}
