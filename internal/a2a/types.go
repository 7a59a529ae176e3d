// Package a2a is the JSON-RPC transport between the blueprint engine and its
// drafting agents. It speaks the subset of the Agent2Agent protocol the
// engine needs: send a message, poll a task, cancel a task, and read an
// agent card.
package a2a

import (
	"encoding/json"
	"strings"
	"time"
)

// TaskState is the lifecycle state of a task held by an agent.
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWorking   TaskState = "working"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateCanceled  TaskState = "canceled"
	TaskStateRejected  TaskState = "rejected"
)

// IsTerminal reports whether no further transitions can happen.
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected:
		return true
	}
	return false
}

// Role identifies who authored a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Task is one unit of agent work and its results.
type Task struct {
	ID        string     `json:"id"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	History   []Message  `json:"history,omitempty"`
}

// TaskStatus is the current state and when it was entered.
type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is a request or reply exchanged with an agent.
type Message struct {
	MessageID string `json:"messageId"`
	ContextID string `json:"contextId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
	Role      Role   `json:"role"`
	Parts     []Part `json:"parts"`
}

// Part is one piece of content. Exactly one of Text or Data is set.
type Part struct {
	Text      string          `json:"text,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	MediaType string          `json:"mediaType,omitempty"`
}

// TextPart wraps plain text.
func TextPart(text string) Part {
	return Part{Text: text, MediaType: "text/plain"}
}

// DataPart wraps v encoded as JSON.
func DataPart(v any) (Part, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Part{}, err
	}
	return Part{Data: data, MediaType: "application/json"}, nil
}

// Decode unmarshals a data part into v.
func (p Part) Decode(v any) error {
	return json.Unmarshal(p.Data, v)
}

// Artifact is an output an agent attached to a task.
type Artifact struct {
	ArtifactID string `json:"artifactId"`
	Name       string `json:"name"`
	Parts      []Part `json:"parts"`
}

// Text joins the text parts of the artifact with newlines.
func (a Artifact) Text() string {
	var texts []string
	for _, p := range a.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// AgentCard describes an agent at /.well-known/agent-card.json.
type AgentCard struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Version     string       `json:"version"`
	URL         string       `json:"url,omitempty"`
	Skills      []AgentSkill `json:"skills"`
}

// AgentSkill is one capability advertised on an agent card.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// SendMessageRequest starts a task.
type SendMessageRequest struct {
	Message  Message `json:"message"`
	Blocking bool    `json:"blocking"`
}

// TaskIDRequest names a task for tasks/get and tasks/cancel.
type TaskIDRequest struct {
	ID string `json:"id"`
}
