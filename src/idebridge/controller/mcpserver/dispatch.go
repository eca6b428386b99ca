package mcpserver

import (
	"context"
	"encoding/json"

	"go.lsp.dev/jsonrpc2"

	"github.com/vaulterm/idebridge/src/idebridge/entity"
	"github.com/vaulterm/idebridge/src/idebridge/internal/wsframe"
	"github.com/vaulterm/idebridge/src/idebridge/mapper"
	"github.com/vaulterm/idebridge/src/idebridge/model"
)

// dispatch routes one decoded text frame. Parse errors are logged and the
// frame discarded; the connection stays open.
//
// Several request/response methods deliberately broadcast their result to
// every connected peer instead of replying only to the requester. That is
// the behavior the external CLI was built against, so it is preserved even
// though it is unusual for RPC.
func (c *controller) dispatch(ctx context.Context, p *entity.Peer, payload []byte) {
	var msg model.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.logger.Debugw("discarding malformed message", "peer", p.UUID, "error", err)
		return
	}

	if msg.IsReply() {
		c.handleHeartbeatReply(p, &msg)
		return
	}

	switch msg.Method {
	case model.MethodInitialize:
		c.broadcastResponse(ctx, msg.ID, model.InitializeResult{
			ProtocolVersion: model.ProtocolVersion,
			Capabilities: model.ServerCapabilities{
				Tools: model.ToolsCapability{ListChanged: true},
			},
			ServerInfo: model.ServerInfo{Name: c.name, Version: c.version},
		})

	case model.MethodInitialized, model.MethodNotificationsInitialized:
		// Acknowledged, no reply.

	case model.MethodToolsList:
		c.broadcastResponse(ctx, msg.ID, model.ToolsListResult{Tools: []model.Tool{}})
		if hooks := c.currentHooks(); hooks.DiscoveryComplete != nil {
			hooks.DiscoveryComplete()
		}

	case model.MethodResourcesList:
		c.broadcastResponse(ctx, msg.ID, model.ResourcesListResult{Resources: []interface{}{}})

	case model.MethodPromptsList:
		c.broadcastResponse(ctx, msg.ID, model.PromptsListResult{Prompts: []interface{}{}})

	case model.MethodPing:
		c.respond(p, model.Response{JSONRPC: model.Version, ID: msg.ID, Result: struct{}{}})

	case model.MethodIDEConnected:
		params, err := mapper.MessageToIDEConnectedParams(&msg)
		if err != nil {
			c.logger.Debugw("bad ide_connected params", "peer", p.UUID, "error", err)
			return
		}
		if hooks := c.currentHooks(); hooks.PeerConnected != nil {
			hooks.PeerConnected(params.PID)
		}

	default:
		if msg.ID == nil {
			// Unknown notification; nothing to answer.
			return
		}
		c.broadcast(ctx, model.Response{
			JSONRPC: model.Version,
			ID:      msg.ID,
			Error:   &jsonrpc2.Error{Code: jsonrpc2.MethodNotFound, Message: "Method not found"},
		})
	}
}

// handleHeartbeatReply clears the peer's pending heartbeat if the reply id
// matches it.
func (c *controller) handleHeartbeatReply(p *entity.Peer, msg *model.Message) {
	id, ok := msg.ReplyID()
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p.PendingPing != nil && p.PendingPing.ID == id {
		p.PendingPing.Timeout.Stop()
		p.PendingPing = nil
	}
}

func (c *controller) broadcastResponse(ctx context.Context, id json.RawMessage, result interface{}) {
	c.broadcast(ctx, model.Response{JSONRPC: model.Version, ID: id, Result: result})
}

// broadcast encodes once and writes the same frame to every live peer,
// skipping peers whose socket is already gone.
func (c *controller) broadcast(ctx context.Context, v interface{}) {
	frame, err := encodeFrame(v)
	if err != nil {
		c.logger.Errorw("encoding broadcast", "error", err)
		return
	}
	for _, p := range c.peers.List(ctx) {
		if err := p.Write(frame); err != nil {
			c.logger.Debugw("broadcast write failed", "peer", p.UUID, "error", err)
		}
	}
}

// respond answers only the originating connection.
func (c *controller) respond(p *entity.Peer, resp model.Response) {
	frame, err := encodeFrame(resp)
	if err != nil {
		c.logger.Errorw("encoding response", "error", err)
		return
	}
	if err := p.Write(frame); err != nil {
		c.logger.Debugw("response write failed", "peer", p.UUID, "error", err)
	}
}

func encodeFrame(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return wsframe.Build(wsframe.OpcodeText, data), nil
}
