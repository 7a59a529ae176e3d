// Package store persists blueprint projects. Every backend satisfies Store:
// Load distinguishes "read failed" (ReadError) from "no projects yet" (empty
// slice, nil error), and Save writes one project record atomically.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/dusk-indust/blueprint/internal/blueprint"
)

// Store is the durable key/value contract for Project records.
type Store interface {
	io.Closer

	// Load returns every persisted project ordered by creation time, then id.
	Load(ctx context.Context) ([]blueprint.Project, error)

	// Save inserts or replaces one project. A failed Save leaves the previous
	// record intact.
	Save(ctx context.Context, p blueprint.Project) error

	// Delete removes a project. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}

// ReadError reports that the backend could not be read. It is never returned
// for a store that is merely empty.
type ReadError struct {
	Backend string
	Err     error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("store: %s: read failed: %v", e.Backend, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports that a project could not be saved or deleted.
type WriteError struct {
	Backend   string
	ProjectID string
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("store: %s: write project %s failed: %v", e.Backend, e.ProjectID, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsReadError reports whether err wraps a ReadError.
func IsReadError(err error) bool {
	var re *ReadError
	return errors.As(err, &re)
}

// IsWriteError reports whether err wraps a WriteError.
func IsWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we)
}

func sortProjects(ps []blueprint.Project) {
	sort.SliceStable(ps, func(i, j int) bool {
		if !ps[i].CreatedAt.Equal(ps[j].CreatedAt) {
			return ps[i].CreatedAt.Before(ps[j].CreatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}
