package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dusk-indust/blueprint/internal/a2a"
	"github.com/dusk-indust/blueprint/internal/blueprint"
)

var _ Gateway = (*A2AGateway)(nil)

// A2AGateway sends one A2A task per target stage to a pool of agent
// endpoints. Stages are dispatched in parallel; the first failure cancels
// the rest.
type A2AGateway struct {
	client   a2a.Client
	agents   []string
	executor string
	limiter  *rate.Limiter

	onProgress func(ProgressEvent)
	next       atomic.Uint64
	poll       time.Duration
}

// DefaultPollInterval is how often a task still running after SendMessage
// returned is polled with GetTask.
const DefaultPollInterval = 250 * time.Millisecond

// cancelTimeout bounds the CancelTask call sent after a caller gave up.
const cancelTimeout = 5 * time.Second

// Option configures an A2AGateway.
type Option func(*A2AGateway)

// WithExecutor sets the endpoint that receives plan-execution tasks. When
// unset, the first agent endpoint is used.
func WithExecutor(endpoint string) Option {
	return func(g *A2AGateway) { g.executor = endpoint }
}

// WithRateLimit bounds outgoing task submissions. A non-positive rate
// disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(g *A2AGateway) {
		if perSecond <= 0 {
			g.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithPollInterval sets how often unfinished tasks are polled.
func WithPollInterval(d time.Duration) Option {
	return func(g *A2AGateway) {
		if d > 0 {
			g.poll = d
		}
	}
}

// WithProgress registers a callback invoked for each dispatch state change.
// It is called from dispatch goroutines and must not block.
func WithProgress(fn func(ProgressEvent)) Option {
	return func(g *A2AGateway) { g.onProgress = fn }
}

// NewA2AGateway returns a gateway dispatching to the given agent endpoints.
func NewA2AGateway(client a2a.Client, agents []string, opts ...Option) *A2AGateway {
	g := &A2AGateway{
		client: client,
		agents: append([]string(nil), agents...),
		poll:   DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Agents returns the configured agent endpoints.
func (g *A2AGateway) Agents() []string {
	return append([]string(nil), g.agents...)
}

// Probe fetches the agent card of every configured endpoint and returns the
// endpoints that answered.
func (g *A2AGateway) Probe(ctx context.Context) []string {
	var (
		mu        sync.Mutex
		reachable []string
		wg        sync.WaitGroup
	)
	for _, ep := range g.agents {
		wg.Add(1)
		go func(ep string) {
			defer wg.Done()
			card, err := g.client.DiscoverAgent(ctx, ep)
			if err != nil || card == nil {
				log.Printf("WARNING: gateway: agent %s unreachable: %v", ep, err)
				return
			}
			mu.Lock()
			reachable = append(reachable, ep)
			mu.Unlock()
		}(ep)
	}
	wg.Wait()
	return reachable
}

// Regenerate dispatches one task per target stage and returns the drafts in
// target order. Any failure fails the whole request.
func (g *A2AGateway) Regenerate(ctx context.Context, req RegenerateRequest) (*RegenerateResponse, error) {
	if len(req.Targets) == 0 {
		return &RegenerateResponse{}, nil
	}
	if len(g.agents) == 0 {
		return nil, ErrNoAgents
	}

	drafts := make([]Draft, len(req.Targets))
	start := g.next.Add(uint64(len(req.Targets))) - uint64(len(req.Targets))
	eg, gctx := errgroup.WithContext(ctx)

	for i, stage := range req.Targets {
		endpoint := g.agents[(start+uint64(i))%uint64(len(g.agents))]
		g.emit(ProgressEvent{ProjectID: req.ProjectID, Stage: stage, Agent: endpoint, Status: ProgressPending})

		eg.Go(func() error {
			d, err := g.regenerateStage(gctx, endpoint, stage, req)
			if err != nil {
				g.emit(ProgressEvent{ProjectID: req.ProjectID, Stage: stage, Agent: endpoint, Status: ProgressFailed, Message: err.Error()})
				return err
			}
			drafts[i] = d
			g.emit(ProgressEvent{ProjectID: req.ProjectID, Stage: stage, Agent: endpoint, Status: ProgressComplete})
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, issue := range CheckCoherence(drafts) {
		log.Printf("WARNING: coherence: project %s: %s", req.ProjectID, issue.Description)
	}
	return &RegenerateResponse{Drafts: drafts}, nil
}

func (g *A2AGateway) regenerateStage(ctx context.Context, endpoint string, stage blueprint.Stage, req RegenerateRequest) (Draft, error) {
	if err := g.wait(ctx); err != nil {
		return Draft{}, err
	}
	g.emit(ProgressEvent{ProjectID: req.ProjectID, Stage: stage, Agent: endpoint, Status: ProgressWorking})

	msg, err := EncodeTask(uuid.NewString(), TaskPayload{
		Kind:      KindRegenerate,
		ProjectID: req.ProjectID,
		Title:     req.Title,
		Stage:     stage,
		Approved:  req.Approved,
		Blueprint: req.Blueprint,
	})
	if err != nil {
		return Draft{}, err
	}
	task, err := g.send(ctx, endpoint, msg)
	if err != nil {
		return Draft{}, fmt.Errorf("gateway: %s via %s: %w", stage, endpoint, err)
	}
	return draftFromTask(stage, task)
}

// Execute sends the plan to the executor and returns its report.
func (g *A2AGateway) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	endpoint := g.executor
	if endpoint == "" && len(g.agents) > 0 {
		endpoint = g.agents[0]
	}
	if endpoint == "" {
		return nil, ErrNoExecutor
	}
	if err := g.wait(ctx); err != nil {
		return nil, err
	}

	msg, err := EncodeTask(uuid.NewString(), TaskPayload{
		Kind:      KindExecute,
		ProjectID: req.ProjectID,
		Title:     req.Title,
		Stage:     blueprint.StageExport,
		Plan:      req.Plan,
	})
	if err != nil {
		return nil, err
	}
	task, err := g.send(ctx, endpoint, msg)
	if err != nil {
		return nil, fmt.Errorf("gateway: execute via %s: %w", endpoint, err)
	}
	if task.Status.State != a2a.TaskStateCompleted {
		return nil, fmt.Errorf("gateway: execute: task %s ended in state %q%s", task.ID, task.Status.State, statusDetail(task))
	}

	texts := make([]string, 0, len(task.Artifacts))
	for _, art := range task.Artifacts {
		if t := art.Text(); t != "" {
			texts = append(texts, t)
		}
	}
	return &ExecuteResponse{TaskID: task.ID, Text: strings.Join(texts, "\n")}, nil
}

// send submits msg under a task id chosen here and waits for the task to
// finish, polling with GetTask while it is still running. When ctx ends
// first the task is canceled on the agent so no work is left behind.
func (g *A2AGateway) send(ctx context.Context, endpoint string, msg a2a.Message) (*a2a.Task, error) {
	msg.TaskID = uuid.NewString()
	task, err := g.client.SendMessage(ctx, endpoint, a2a.SendMessageRequest{Message: msg, Blocking: true})
	if err != nil {
		if ctx.Err() != nil {
			g.cancelTask(endpoint, msg.TaskID)
		}
		return nil, err
	}

	tick := time.NewTicker(g.poll)
	defer tick.Stop()
	for !task.Status.State.IsTerminal() {
		select {
		case <-ctx.Done():
			g.cancelTask(endpoint, task.ID)
			return nil, ctx.Err()
		case <-tick.C:
		}
		next, err := g.client.GetTask(ctx, endpoint, task.ID)
		if err != nil {
			if ctx.Err() != nil {
				g.cancelTask(endpoint, task.ID)
			}
			return nil, fmt.Errorf("get task %s: %w", task.ID, err)
		}
		task = next
	}
	return task, nil
}

// cancelTask is best effort; the caller already has its error.
func (g *A2AGateway) cancelTask(endpoint, id string) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if _, err := g.client.CancelTask(ctx, endpoint, id); err != nil {
		log.Printf("WARNING: gateway: cancel task %s via %s: %v", id, endpoint, err)
	}
}

func (g *A2AGateway) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("gateway: rate limit: %w", err)
	}
	return nil
}

func (g *A2AGateway) emit(ev ProgressEvent) {
	if g.onProgress != nil {
		g.onProgress(ev)
	}
}
