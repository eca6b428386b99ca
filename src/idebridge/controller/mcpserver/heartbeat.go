package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/vaulterm/idebridge/src/idebridge/entity"
	"github.com/vaulterm/idebridge/src/idebridge/internal/wsframe"
	"github.com/vaulterm/idebridge/src/idebridge/model"
)

// heartbeatTick runs on every heartbeat interval while peers are connected.
// A peer still carrying an unanswered ping from the previous interval is
// dead; everyone else gets a fresh ping with an armed timeout.
func (c *controller) heartbeatTick() {
	ctx := context.Background()

	for _, p := range c.peers.List(ctx) {
		c.mu.Lock()
		if c.state != _stateListening {
			c.mu.Unlock()
			return
		}
		if p.PendingPing != nil {
			c.mu.Unlock()
			c.logger.Warnw("peer missed heartbeat interval", "peer", p.UUID)
			c.stats.Counter("heartbeat_timeouts").Inc(1)
			c.teardownPeer(ctx, p, true)
			continue
		}

		id := c.pingID.Inc()
		p.PendingPing = &entity.PendingPing{
			ID:      id,
			Timeout: c.sched.After(c.heartbeatTimeout, func() { c.onHeartbeatTimeout(p, id) }),
		}
		c.mu.Unlock()

		frame, err := encodePing(id)
		if err != nil {
			c.logger.Errorw("encoding heartbeat ping", "error", err)
			return
		}
		if err := p.Write(frame); err != nil {
			c.logger.Debugw("heartbeat write failed", "peer", p.UUID, "error", err)
			c.teardownPeer(ctx, p, true)
		}
	}
}

// onHeartbeatTimeout fires when a ping's reply window elapses. The pending
// descriptor is rechecked under the lock: the reply may have just landed, or
// the server may already be stopped.
func (c *controller) onHeartbeatTimeout(p *entity.Peer, id int64) {
	c.mu.Lock()
	stale := c.state != _stateListening ||
		p.PendingPing == nil ||
		p.PendingPing.ID != id
	c.mu.Unlock()
	if stale {
		return
	}

	c.logger.Warnw("peer heartbeat timed out", "peer", p.UUID)
	c.stats.Counter("heartbeat_timeouts").Inc(1)
	c.teardownPeer(context.Background(), p, true)
}

func encodePing(id int64) ([]byte, error) {
	data, err := json.Marshal(model.Request{
		JSONRPC: model.Version,
		ID:      id,
		Method:  model.MethodPing,
	})
	if err != nil {
		return nil, err
	}
	return wsframe.Build(wsframe.OpcodeText, data), nil
}
