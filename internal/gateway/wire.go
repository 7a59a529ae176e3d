package gateway

import (
	"errors"
	"fmt"

	"github.com/dusk-indust/blueprint/internal/a2a"
	"github.com/dusk-indust/blueprint/internal/blueprint"
)

// TaskKind distinguishes the two kinds of work sent to agents.
type TaskKind string

const (
	KindRegenerate TaskKind = "regenerate"
	KindExecute    TaskKind = "execute"
)

// TaskPayload is the structured request carried in the data part of an A2A
// message. A regenerate task names exactly one target stage; fan-out across
// stages happens on the gateway side.
type TaskPayload struct {
	Kind      TaskKind            `json:"kind"`
	ProjectID string              `json:"projectId"`
	Title     string              `json:"title"`
	Stage     blueprint.Stage     `json:"stage"`
	Approved  blueprint.StageSet  `json:"approved"`
	Blueprint blueprint.Blueprint `json:"blueprint"`
	Plan      string              `json:"plan,omitempty"`
}

// SectionsPayload is the data part of a sections-stage artifact.
type SectionsPayload struct {
	Sections []blueprint.Section `json:"sections"`
}

var errNoPayload = errors.New("gateway: message has no task payload")

// EncodeTask builds the message sent to an agent: a human-readable summary
// followed by the JSON payload.
func EncodeTask(messageID string, p TaskPayload) (a2a.Message, error) {
	data, err := a2a.DataPart(p)
	if err != nil {
		return a2a.Message{}, fmt.Errorf("gateway: encode payload: %w", err)
	}
	return a2a.Message{
		MessageID: messageID,
		ContextID: p.ProjectID,
		Role:      a2a.RoleUser,
		Parts:     []a2a.Part{a2a.TextPart(summary(p)), data},
	}, nil
}

// DecodeTask extracts the payload from an incoming message.
func DecodeTask(msg a2a.Message) (TaskPayload, error) {
	for _, part := range msg.Parts {
		if len(part.Data) == 0 {
			continue
		}
		var p TaskPayload
		if err := part.Decode(&p); err != nil {
			return TaskPayload{}, fmt.Errorf("gateway: decode payload: %w", err)
		}
		return p, nil
	}
	return TaskPayload{}, errNoPayload
}

// DraftArtifact builds the artifact an agent returns for one stage.
func DraftArtifact(stage blueprint.Stage, text string, sections []blueprint.Section) (a2a.Artifact, error) {
	art := a2a.Artifact{
		ArtifactID: stage.String(),
		Name:       stage.String(),
		Parts:      []a2a.Part{a2a.TextPart(text)},
	}
	if sections != nil {
		data, err := a2a.DataPart(SectionsPayload{Sections: sections})
		if err != nil {
			return a2a.Artifact{}, fmt.Errorf("gateway: encode sections: %w", err)
		}
		art.Parts = append(art.Parts, data)
	}
	return art, nil
}

// draftFromTask reads the draft for stage from a completed task.
func draftFromTask(stage blueprint.Stage, task *a2a.Task) (Draft, error) {
	if task == nil {
		return Draft{}, fmt.Errorf("gateway: %s: no task returned", stage)
	}
	if task.Status.State != a2a.TaskStateCompleted {
		return Draft{}, fmt.Errorf("gateway: %s: task %s ended in state %q%s",
			stage, task.ID, task.Status.State, statusDetail(task))
	}
	for _, art := range task.Artifacts {
		if art.Name != stage.String() {
			continue
		}
		d := Draft{Stage: stage, Text: art.Text()}
		for _, part := range art.Parts {
			if len(part.Data) == 0 {
				continue
			}
			var sp SectionsPayload
			if err := part.Decode(&sp); err != nil {
				return Draft{}, fmt.Errorf("gateway: %s: decode sections: %w", stage, err)
			}
			d.Sections = sp.Sections
			d.HasSections = true
		}
		return d, nil
	}
	return Draft{}, fmt.Errorf("gateway: %s: task %s returned no %s artifact", stage, task.ID, stage)
}

func statusDetail(task *a2a.Task) string {
	if task.Status.Message == nil || len(task.Status.Message.Parts) == 0 {
		return ""
	}
	return ": " + task.Status.Message.Parts[0].Text
}

func summary(p TaskPayload) string {
	switch p.Kind {
	case KindExecute:
		return fmt.Sprintf("Execute the exported plan for %q.", p.Title)
	default:
		return fmt.Sprintf("Regenerate the %s stage of %q from the approved blueprint.", p.Stage.Label(), p.Title)
	}
}
