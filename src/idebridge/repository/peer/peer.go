// Package peer is the registry of connected external-process sockets. The
// protocol server is the only component that adds or removes entries.
package peer

import (
	"context"
	"sync"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"

	"github.com/vaulterm/idebridge/src/idebridge/entity"
	"github.com/vaulterm/idebridge/src/idebridge/internal/errors"
)

// Repository is an entity-scoped registry of live peers.
//
// It hands out the live *entity.Peer rather than a copy: the pending
// heartbeat descriptor is mutated in place and must never be forked.
type Repository interface {
	Add(ctx context.Context, p *entity.Peer) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Peer, error)
	Remove(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) []*entity.Peer
	Count(ctx context.Context) int
}

type repository struct {
	mu    sync.Mutex
	peers map[uuid.UUID]*entity.Peer
	stats tally.Scope
}

// New returns a Repository backed by an in-memory store.
func New(stats tally.Scope) Repository {
	return &repository{
		peers: make(map[uuid.UUID]*entity.Peer),
		stats: stats,
	}
}

func (r *repository) Add(ctx context.Context, p *entity.Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p == nil {
		return errors.New("can't register nil peer")
	}
	r.peers[p.UUID] = p
	r.stats.Gauge("connected_peers").Update(float64(len(r.peers)))
	return nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*entity.Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[id]
	if !ok {
		return nil, &errors.PeerNotFoundError{UUID: id}
	}
	return p, nil
}

func (r *repository) Remove(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.peers, id)
	r.stats.Gauge("connected_peers").Update(float64(len(r.peers)))
	return nil
}

func (r *repository) List(ctx context.Context) []*entity.Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*entity.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

func (r *repository) Count(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.peers)
}
