// Package agent hosts A2A agents that answer the gateway's regeneration and
// execution tasks.
package agent

import (
	"context"

	"github.com/dusk-indust/blueprint/internal/a2a"
)

// Agent is an A2A agent that can be served over HTTP.
type Agent interface {
	Card() a2a.AgentCard
	HandleTask(ctx context.Context, task a2a.Task, msg a2a.Message) (*a2a.Task, error)
	Start(ctx context.Context, addr string) error
	Stop(ctx context.Context) error
}
