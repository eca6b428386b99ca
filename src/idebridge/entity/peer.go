// Package entity contains the domain types for the idebridge service.
package entity

import (
	"net"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/vaulterm/idebridge/src/idebridge/internal/scheduler"
)

type keyType string

// PeerContextKey identifies the peer UUID carried in a request context.
const PeerContextKey keyType = "PeerUUID"

// ViewMode is the host view's current presentation mode.
type ViewMode string

const (
	// ViewModeSource is the raw text editor with line/column coordinates.
	ViewModeSource ViewMode = "source"
	// ViewModePreview is the rendered view, which only exposes a DOM tree.
	ViewModePreview ViewMode = "preview"
)

// PendingPing describes a heartbeat request awaiting its reply. A peer holds
// at most one at a time.
type PendingPing struct {
	ID      int64
	Timeout scheduler.Task
}

// Peer is one connected external-process socket. Peers are created on a
// successful upgrade and owned exclusively by the protocol server.
type Peer struct {
	UUID uuid.UUID
	Conn net.Conn

	// Authenticated is always true once the peer exists, since the credential
	// is checked before the upgrade completes. Kept explicit so that the
	// invariant is visible at call sites.
	Authenticated bool

	PendingPing *PendingPing

	writeMu sync.Mutex
}

// Write sends raw frame bytes on the peer's socket. Frames from the dispatch
// path, the heartbeat loop, and notification broadcasts may race; writes are
// serialized so frames never interleave on the wire.
func (p *Peer) Write(frame []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := p.Conn.Write(frame)
	return err
}
