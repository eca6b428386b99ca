// Package errors defines typed errors shared across the bridge.
package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/gofrs/uuid"
)

// New returns an error that formats as the given text.
func New(text string) error {
	return stderrors.New(text)
}

// PeerNotFoundError indicates that no connected peer matches the given UUID.
type PeerNotFoundError struct {
	UUID uuid.UUID
}

// Error is an implementation of the error interface.
func (e *PeerNotFoundError) Error() string {
	return fmt.Sprintf("peer %q not found", e.UUID)
}

// SelectionUnresolvedError indicates that a rendered-preview selection could
// not be mapped back to a source range.
type SelectionUnresolvedError struct {
	Path string
}

// Error is an implementation of the error interface.
func (e *SelectionUnresolvedError) Error() string {
	return fmt.Sprintf("selection in %q could not be resolved to a source range", e.Path)
}
