package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dusk-indust/blueprint/internal/a2a"
)

var (
	_ Agent       = (*BaseAgent)(nil)
	_ a2a.Handler = (*BaseAgent)(nil)
)

// ProcessFunc produces the artifacts for a task. The task is in the working
// state when it is called.
type ProcessFunc func(ctx context.Context, task *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error)

// BaseAgent tracks task lifecycle and serves a ProcessFunc over A2A.
type BaseAgent struct {
	server  *a2a.Server
	tasks   *a2a.TaskStore
	card    a2a.AgentCard
	process ProcessFunc
	now     func() time.Time
}

// NewBaseAgent returns an agent described by card that runs process.
func NewBaseAgent(card a2a.AgentCard, process ProcessFunc) *BaseAgent {
	b := &BaseAgent{
		tasks:   a2a.NewTaskStore(),
		card:    card,
		process: process,
		now:     time.Now,
	}
	b.server = a2a.NewServer(card, b)
	return b
}

// Card returns the agent card.
func (b *BaseAgent) Card() a2a.AgentCard { return b.card }

// Routes returns the agent's HTTP handler.
func (b *BaseAgent) Routes() http.Handler { return b.server.Routes() }

// Addr returns the listen address after Start.
func (b *BaseAgent) Addr() string { return b.server.Addr() }

// Start serves the agent on addr.
func (b *BaseAgent) Start(ctx context.Context, addr string) error {
	return b.server.Start(ctx, addr)
}

// Stop shuts the agent's server down.
func (b *BaseAgent) Stop(ctx context.Context) error {
	return b.server.Stop(ctx)
}

// HandleTask records task, runs the process function and stores the
// outcome. A processing error is reported both in the failed task and as
// the returned error.
func (b *BaseAgent) HandleTask(ctx context.Context, task a2a.Task, msg a2a.Message) (*a2a.Task, error) {
	task.Status = a2a.TaskStatus{State: a2a.TaskStateSubmitted, Timestamp: b.now()}
	task.History = append(task.History, msg)
	if err := b.tasks.Create(task); err != nil {
		return nil, fmt.Errorf("agent: create task: %w", err)
	}
	b.setState(task.ID, a2a.TaskStateWorking, nil)

	artifacts, err := b.process(ctx, &task, msg)
	if err != nil {
		b.setState(task.ID, a2a.TaskStateFailed, &a2a.Message{
			MessageID: task.ID + "-error",
			TaskID:    task.ID,
			Role:      a2a.RoleAgent,
			Parts:     []a2a.Part{a2a.TextPart(err.Error())},
		})
		failed, _ := b.tasks.Get(task.ID)
		return failed, err
	}

	if err := b.tasks.Update(task.ID, func(t *a2a.Task) {
		if t.Status.State == a2a.TaskStateCanceled {
			return
		}
		t.Status = a2a.TaskStatus{State: a2a.TaskStateCompleted, Timestamp: b.now()}
		t.Artifacts = artifacts
	}); err != nil {
		return nil, fmt.Errorf("agent: complete task: %w", err)
	}
	return b.tasks.Get(task.ID)
}

// setState never moves a canceled task out of the canceled state.
func (b *BaseAgent) setState(id string, state a2a.TaskState, msg *a2a.Message) {
	_ = b.tasks.Update(id, func(t *a2a.Task) {
		if t.Status.State == a2a.TaskStateCanceled {
			return
		}
		t.Status = a2a.TaskStatus{State: state, Message: msg, Timestamp: b.now()}
	})
}

// HandleSendMessage runs the message as a new task, using the task id the
// caller proposed when there is one. Processing failures are
// returned as a failed task rather than a JSON-RPC error, so callers can read
// the reason from the task status.
func (b *BaseAgent) HandleSendMessage(ctx context.Context, req a2a.SendMessageRequest) (*a2a.Task, error) {
	id := req.Message.TaskID
	if id == "" {
		id = a2a.NewTaskID()
	}
	task := a2a.Task{ID: id, ContextID: req.Message.ContextID}
	result, err := b.HandleTask(ctx, task, req.Message)
	if err != nil && result != nil {
		return result, nil
	}
	return result, err
}

// HandleGetTask returns a stored task.
func (b *BaseAgent) HandleGetTask(_ context.Context, id string) (*a2a.Task, error) {
	return b.tasks.Get(id)
}

// HandleCancelTask cancels a task that has not finished.
func (b *BaseAgent) HandleCancelTask(_ context.Context, id string) (*a2a.Task, error) {
	var terminal bool
	err := b.tasks.Update(id, func(t *a2a.Task) {
		if t.Status.State.IsTerminal() {
			terminal = true
			return
		}
		t.Status = a2a.TaskStatus{State: a2a.TaskStateCanceled, Timestamp: b.now()}
	})
	if err != nil {
		return nil, err
	}
	if terminal {
		return nil, fmt.Errorf("%w: %s", a2a.ErrTaskNotCancelable, id)
	}
	return b.tasks.Get(id)
}
