package gateway

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/blueprint/internal/a2a"
	"github.com/dusk-indust/blueprint/internal/blueprint"
)

// mockClient implements a2a.Client through configurable functions. Unset
// functions other than sendMessage return an error.
type mockClient struct {
	sendMessage   func(ctx context.Context, endpoint string, req a2a.SendMessageRequest) (*a2a.Task, error)
	getTask       func(ctx context.Context, endpoint, id string) (*a2a.Task, error)
	cancelTask    func(ctx context.Context, endpoint, id string) (*a2a.Task, error)
	discoverAgent func(ctx context.Context, baseURL string) (*a2a.AgentCard, error)
}

var _ a2a.Client = (*mockClient)(nil)

func (m *mockClient) SendMessage(ctx context.Context, endpoint string, req a2a.SendMessageRequest) (*a2a.Task, error) {
	return m.sendMessage(ctx, endpoint, req)
}

func (m *mockClient) GetTask(ctx context.Context, endpoint, id string) (*a2a.Task, error) {
	if m.getTask == nil {
		return nil, errors.New("not implemented")
	}
	return m.getTask(ctx, endpoint, id)
}

func (m *mockClient) CancelTask(ctx context.Context, endpoint, id string) (*a2a.Task, error) {
	if m.cancelTask == nil {
		return nil, errors.New("not implemented")
	}
	return m.cancelTask(ctx, endpoint, id)
}

func (m *mockClient) DiscoverAgent(ctx context.Context, baseURL string) (*a2a.AgentCard, error) {
	if m.discoverAgent == nil {
		return nil, errors.New("not implemented")
	}
	return m.discoverAgent(ctx, baseURL)
}

// echoDraft answers each regenerate task with "<stage> for <title>".
func echoDraft(t *testing.T) func(context.Context, string, a2a.SendMessageRequest) (*a2a.Task, error) {
	return func(_ context.Context, _ string, req a2a.SendMessageRequest) (*a2a.Task, error) {
		p, err := DecodeTask(req.Message)
		require.NoError(t, err)
		var sections []blueprint.Section
		if p.Stage == blueprint.StageSections {
			sections = []blueprint.Section{{ID: "s1", Title: "One"}}
		}
		art, err := DraftArtifact(p.Stage, p.Stage.String()+" for "+p.Title, sections)
		require.NoError(t, err)
		return &a2a.Task{
			ID:        "task-" + p.Stage.String(),
			Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted, Timestamp: time.Now()},
			Artifacts: []a2a.Artifact{art},
		}, nil
	}
}

func regenRequest(targets ...blueprint.Stage) RegenerateRequest {
	return RegenerateRequest{
		ProjectID: "p1",
		Title:     "Shop",
		Approved:  blueprint.NewStageSet(blueprint.StageProduct),
		Targets:   targets,
		Blueprint: blueprint.Blueprint{Overview: "sell things", ActiveStage: blueprint.StageDataModel},
	}
}

func TestRegenerate_DraftsInTargetOrder(t *testing.T) {
	g := NewA2AGateway(&mockClient{sendMessage: echoDraft(t)}, []string{"http://a", "http://b"})

	targets := blueprint.StageProduct.Downstream()
	resp, err := g.Regenerate(context.Background(), regenRequest(targets...))
	require.NoError(t, err)
	require.Len(t, resp.Drafts, len(targets))

	for i, d := range resp.Drafts {
		assert.Equal(t, targets[i], d.Stage)
		assert.Equal(t, targets[i].String()+" for Shop", d.Text)
	}
	sec := resp.Drafts[2]
	require.Equal(t, blueprint.StageSections, sec.Stage)
	assert.True(t, sec.HasSections)
	assert.Equal(t, []blueprint.Section{{ID: "s1", Title: "One"}}, sec.Sections)
	assert.False(t, resp.Drafts[0].HasSections)
}

func TestRegenerate_PayloadCarriesBlueprint(t *testing.T) {
	var got TaskPayload
	client := &mockClient{sendMessage: func(ctx context.Context, ep string, req a2a.SendMessageRequest) (*a2a.Task, error) {
		p, err := DecodeTask(req.Message)
		require.NoError(t, err)
		got = p
		assert.True(t, req.Blocking)
		return echoDraft(t)(ctx, ep, req)
	}}
	g := NewA2AGateway(client, []string{"http://a"})

	_, err := g.Regenerate(context.Background(), regenRequest(blueprint.StageDesign))
	require.NoError(t, err)
	assert.Equal(t, KindRegenerate, got.Kind)
	assert.Equal(t, "p1", got.ProjectID)
	assert.Equal(t, blueprint.StageDesign, got.Stage)
	assert.Equal(t, "sell things", got.Blueprint.Overview)
	assert.True(t, got.Approved.Has(blueprint.StageProduct))
}

func TestRegenerate_RoundRobinAcrossAgents(t *testing.T) {
	var mu sync.Mutex
	used := make(map[string]int)
	client := &mockClient{sendMessage: func(ctx context.Context, ep string, req a2a.SendMessageRequest) (*a2a.Task, error) {
		mu.Lock()
		used[ep]++
		mu.Unlock()
		return echoDraft(t)(ctx, ep, req)
	}}
	g := NewA2AGateway(client, []string{"http://a", "http://b"})

	_, err := g.Regenerate(context.Background(), regenRequest(blueprint.StageDataModel.Downstream()...))
	require.NoError(t, err)
	_, err = g.Regenerate(context.Background(), regenRequest(blueprint.StageDesign))
	require.NoError(t, err)

	assert.Equal(t, 2, used["http://a"])
	assert.Equal(t, 2, used["http://b"])
}

func TestRegenerate_FirstFailureCancelsOthers(t *testing.T) {
	var canceled atomic.Int32
	client := &mockClient{sendMessage: func(ctx context.Context, ep string, req a2a.SendMessageRequest) (*a2a.Task, error) {
		p, _ := DecodeTask(req.Message)
		if p.Stage == blueprint.StageDesign {
			return nil, errors.New("agent down")
		}
		select {
		case <-ctx.Done():
			canceled.Add(1)
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return echoDraft(t)(ctx, ep, req)
		}
	}}
	g := NewA2AGateway(client, []string{"http://a"})

	resp, err := g.Regenerate(context.Background(), regenRequest(blueprint.StageProduct.Downstream()...))
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "agent down")
	assert.Equal(t, int32(3), canceled.Load())
}

func TestRegenerate_FailedTaskState(t *testing.T) {
	client := &mockClient{sendMessage: func(context.Context, string, a2a.SendMessageRequest) (*a2a.Task, error) {
		return &a2a.Task{
			ID: "t1",
			Status: a2a.TaskStatus{
				State:   a2a.TaskStateFailed,
				Message: &a2a.Message{Role: a2a.RoleAgent, Parts: []a2a.Part{a2a.TextPart("model overloaded")}},
			},
		}, nil
	}}
	g := NewA2AGateway(client, []string{"http://a"})

	_, err := g.Regenerate(context.Background(), regenRequest(blueprint.StageDesign))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestRegenerate_MissingArtifact(t *testing.T) {
	client := &mockClient{sendMessage: func(context.Context, string, a2a.SendMessageRequest) (*a2a.Task, error) {
		return &a2a.Task{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}, nil
	}}
	g := NewA2AGateway(client, []string{"http://a"})

	_, err := g.Regenerate(context.Background(), regenRequest(blueprint.StageDesign))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no design artifact")
}

func TestRegenerate_NoAgentsAndNoTargets(t *testing.T) {
	g := NewA2AGateway(&mockClient{}, nil)

	resp, err := g.Regenerate(context.Background(), regenRequest())
	require.NoError(t, err)
	assert.Empty(t, resp.Drafts)

	_, err = g.Regenerate(context.Background(), regenRequest(blueprint.StageDesign))
	assert.ErrorIs(t, err, ErrNoAgents)
}

func TestRegenerate_HonoursDeadline(t *testing.T) {
	client := &mockClient{sendMessage: func(ctx context.Context, _ string, _ a2a.SendMessageRequest) (*a2a.Task, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	g := NewA2AGateway(client, []string{"http://a"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := g.Regenerate(ctx, regenRequest(blueprint.StageDesign))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegenerate_DeadlineCancelsAgentTask(t *testing.T) {
	sent := make(chan string, 1)
	canceled := make(chan string, 1)
	client := &mockClient{
		sendMessage: func(ctx context.Context, _ string, req a2a.SendMessageRequest) (*a2a.Task, error) {
			sent <- req.Message.TaskID
			<-ctx.Done()
			return nil, ctx.Err()
		},
		cancelTask: func(_ context.Context, endpoint, id string) (*a2a.Task, error) {
			assert.Equal(t, "http://a", endpoint)
			canceled <- id
			return &a2a.Task{ID: id, Status: a2a.TaskStatus{State: a2a.TaskStateCanceled}}, nil
		},
	}
	g := NewA2AGateway(client, []string{"http://a"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := g.Regenerate(ctx, regenRequest(blueprint.StageDesign))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	id := <-sent
	require.NotEmpty(t, id)
	assert.Equal(t, id, <-canceled)
}

func TestRegenerate_PollsUnfinishedTask(t *testing.T) {
	var polls atomic.Int32
	var final *a2a.Task
	client := &mockClient{
		sendMessage: func(ctx context.Context, ep string, req a2a.SendMessageRequest) (*a2a.Task, error) {
			done, err := echoDraft(t)(ctx, ep, req)
			require.NoError(t, err)
			done.ID = req.Message.TaskID
			final = done
			return &a2a.Task{ID: done.ID, Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}, nil
		},
		getTask: func(_ context.Context, _ string, id string) (*a2a.Task, error) {
			assert.Equal(t, final.ID, id)
			if polls.Add(1) < 3 {
				return &a2a.Task{ID: id, Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}, nil
			}
			return final, nil
		},
	}
	g := NewA2AGateway(client, []string{"http://a"}, WithPollInterval(time.Millisecond))

	resp, err := g.Regenerate(context.Background(), regenRequest(blueprint.StageDesign))
	require.NoError(t, err)
	require.Len(t, resp.Drafts, 1)
	assert.Equal(t, "design for Shop", resp.Drafts[0].Text)
	assert.Equal(t, int32(3), polls.Load())
}

func TestExecute_CancelsTaskStillRunningAtDeadline(t *testing.T) {
	canceled := make(chan string, 1)
	client := &mockClient{
		sendMessage: func(_ context.Context, _ string, req a2a.SendMessageRequest) (*a2a.Task, error) {
			return &a2a.Task{ID: req.Message.TaskID, Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}, nil
		},
		getTask: func(_ context.Context, _ string, id string) (*a2a.Task, error) {
			return &a2a.Task{ID: id, Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}, nil
		},
		cancelTask: func(_ context.Context, _ string, id string) (*a2a.Task, error) {
			canceled <- id
			return nil, nil
		},
	}
	g := NewA2AGateway(client, []string{"http://a"}, WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	_, err := g.Execute(ctx, ExecuteRequest{ProjectID: "p1", Title: "Shop", Plan: "# Shop"})
	require.Error(t, err)
	assert.NotEmpty(t, <-canceled)
}

func TestRegenerate_ProgressEvents(t *testing.T) {
	var mu sync.Mutex
	var events []ProgressEvent
	g := NewA2AGateway(&mockClient{sendMessage: echoDraft(t)}, []string{"http://a"},
		WithProgress(func(ev ProgressEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}))

	_, err := g.Regenerate(context.Background(), regenRequest(blueprint.StageDesign))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 3)
	assert.Equal(t, ProgressPending, events[0].Status)
	assert.Equal(t, ProgressWorking, events[1].Status)
	assert.Equal(t, ProgressComplete, events[2].Status)
}

func TestRegenerate_RateLimited(t *testing.T) {
	g := NewA2AGateway(&mockClient{sendMessage: echoDraft(t)}, []string{"http://a"}, WithRateLimit(20, 1))

	start := time.Now()
	_, err := g.Regenerate(context.Background(), regenRequest(blueprint.StageProduct.Downstream()...))
	require.NoError(t, err)
	// Four tokens at 20/s with burst 1 need at least three refills.
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

func TestExecute_UsesExecutorEndpoint(t *testing.T) {
	var endpoint string
	client := &mockClient{sendMessage: func(_ context.Context, ep string, req a2a.SendMessageRequest) (*a2a.Task, error) {
		endpoint = ep
		p, err := DecodeTask(req.Message)
		require.NoError(t, err)
		assert.Equal(t, KindExecute, p.Kind)
		assert.Equal(t, "# Plan", p.Plan)
		return &a2a.Task{
			ID:     "exec-1",
			Status: a2a.TaskStatus{State: a2a.TaskStateCompleted},
			Artifacts: []a2a.Artifact{{
				Name:  "report",
				Parts: []a2a.Part{a2a.TextPart("done"), a2a.TextPart("OUTCOME: COMPLETE")},
			}},
		}, nil
	}}
	g := NewA2AGateway(client, []string{"http://a"}, WithExecutor("http://exec"))

	resp, err := g.Execute(context.Background(), ExecuteRequest{ProjectID: "p1", Title: "Shop", Plan: "# Plan"})
	require.NoError(t, err)
	assert.Equal(t, "http://exec", endpoint)
	assert.Equal(t, "exec-1", resp.TaskID)
	assert.Equal(t, "done\nOUTCOME: COMPLETE", resp.Text)
}

func TestExecute_FallsBackToFirstAgent(t *testing.T) {
	var endpoint string
	client := &mockClient{sendMessage: func(_ context.Context, ep string, _ a2a.SendMessageRequest) (*a2a.Task, error) {
		endpoint = ep
		return &a2a.Task{ID: "x", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}, nil
	}}
	g := NewA2AGateway(client, []string{"http://a", "http://b"})

	_, err := g.Execute(context.Background(), ExecuteRequest{Plan: "p"})
	require.NoError(t, err)
	assert.Equal(t, "http://a", endpoint)

	_, err = NewA2AGateway(client, nil).Execute(context.Background(), ExecuteRequest{})
	assert.ErrorIs(t, err, ErrNoExecutor)
}

func TestProbe_ReturnsReachableAgents(t *testing.T) {
	client := &mockClient{discoverAgent: func(_ context.Context, base string) (*a2a.AgentCard, error) {
		if base == "http://down" {
			return nil, errors.New("connection refused")
		}
		return &a2a.AgentCard{Name: "drafter"}, nil
	}}
	g := NewA2AGateway(client, []string{"http://up", "http://down"})
	assert.Equal(t, []string{"http://up"}, g.Probe(context.Background()))
}
