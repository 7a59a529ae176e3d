package a2a

import "context"

// Client sends work to agents identified by their JSON-RPC endpoint URL.
type Client interface {
	SendMessage(ctx context.Context, endpoint string, req SendMessageRequest) (*Task, error)
	GetTask(ctx context.Context, endpoint string, id string) (*Task, error)
	CancelTask(ctx context.Context, endpoint string, id string) (*Task, error)
	DiscoverAgent(ctx context.Context, baseURL string) (*AgentCard, error)
}
