//go:build !cgo

package store

import (
	"context"
	"errors"
)

// ErrKuzuUnavailable is returned by OpenKuzu in binaries built without CGO.
var ErrKuzuUnavailable = errors.New("store: kuzu backend requires a cgo build")

// OpenKuzu always fails without CGO; go-kuzu wraps a C library.
func OpenKuzu(_ context.Context, _ string) (Store, error) {
	return nil, ErrKuzuUnavailable
}
