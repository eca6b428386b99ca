// Package mcpserver implements the local IDE-integration protocol server: a
// loopback WebSocket listener speaking JSON-RPC 2.0 to the external CLI.
package mcpserver

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	tally "github.com/uber-go/tally/v4"
	"go.uber.org/atomic"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vaulterm/idebridge/src/idebridge/entity"
	"github.com/vaulterm/idebridge/src/idebridge/gateway/hostview"
	"github.com/vaulterm/idebridge/src/idebridge/internal/discovery"
	"github.com/vaulterm/idebridge/src/idebridge/internal/scheduler"
	"github.com/vaulterm/idebridge/src/idebridge/internal/wsframe"
	"github.com/vaulterm/idebridge/src/idebridge/model"
	peerrepo "github.com/vaulterm/idebridge/src/idebridge/repository/peer"
)

const (
	// Configuration keys
	_configKeyName              = "ide.name"
	_configKeyVersion           = "ide.version"
	_configKeyHeartbeatInterval = "ide.heartbeatIntervalMs"
	_configKeyHeartbeatTimeout  = "ide.heartbeatTimeoutMs"

	// RFC 6455 handshake GUID.
	_wsGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

	_mcpPath = "/mcp"

	_closeStatusNormal   = 1000
	_closeReasonShutdown = "Server shutting down"

	// Heartbeat ids start well above anything a client allocates.
	_pingIDSeed = 1_000_000_000

	_readChunkSize = 4096
)

// Server states.
const (
	_stateStopped = iota
	_stateStarting
	_stateListening
)

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// Hooks are host callbacks fired on protocol events.
type Hooks struct {
	// DiscoveryComplete fires on every tools/list call, once per call. The
	// host uses it to trigger an initial context push.
	DiscoveryComplete func()
	// PeerConnected fires when a peer announces itself via ide_connected.
	PeerConnected func(pid int)
	// PeerDisconnected fires when a peer is torn down by a socket error,
	// close, or heartbeat failure. Not fired during server shutdown.
	PeerDisconnected func()
}

// Controller owns the listening socket, the upgrade handshake, method
// dispatch and the liveness heartbeat.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	// Port is the bound listen port; zero before Start.
	Port() int
	HasConnectedClients() bool
	// SendNotification broadcasts a one-way message to every live peer.
	// No-op when nobody is connected, so it is cheap to call speculatively.
	SendNotification(ctx context.Context, n *model.Notification) error
	RegisterHooks(h Hooks)
}

// Params are inbound parameters to construct the server.
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Provider
	Logger    *zap.SugaredLogger
	Stats     tally.Scope
	Peers     peerrepo.Repository
	Discovery discovery.Publisher
	Scheduler scheduler.Scheduler
	Host      hostview.Provider
}

type controller struct {
	logger    *zap.SugaredLogger
	stats     tally.Scope
	peers     peerrepo.Repository
	discovery discovery.Publisher
	sched     scheduler.Scheduler
	host      hostview.Provider

	name              string
	version           string
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	pingID *atomic.Int64

	mu            sync.Mutex
	state         int
	port          int
	authToken     string
	httpServer    *http.Server
	heartbeatTask scheduler.Task
	recordWatch   scheduler.Task
	hooks         Hooks
}

// New constructs the protocol server and wires it into the Fx lifecycle.
func New(p Params) (Controller, error) {
	c := &controller{
		logger:    p.Logger,
		stats:     p.Stats.SubScope("mcp_server"),
		peers:     p.Peers,
		discovery: p.Discovery,
		sched:     p.Scheduler,
		host:      p.Host,
		pingID:    atomic.NewInt64(_pingIDSeed),
	}

	if err := c.processConfig(p.Config); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStart: c.Start,
		OnStop:  c.Stop,
	})

	return c, nil
}

func (c *controller) processConfig(cfg config.Provider) error {
	if err := cfg.Get(_configKeyName).Populate(&c.name); err != nil || c.name == "" {
		return fmt.Errorf("getting config field %q: %w", _configKeyName, err)
	}
	if err := cfg.Get(_configKeyVersion).Populate(&c.version); err != nil || c.version == "" {
		return fmt.Errorf("getting config field %q: %w", _configKeyVersion, err)
	}

	var intervalMs, timeoutMs int64
	if err := cfg.Get(_configKeyHeartbeatInterval).Populate(&intervalMs); err != nil || intervalMs == 0 {
		return fmt.Errorf("getting config field %q: %w", _configKeyHeartbeatInterval, err)
	}
	if err := cfg.Get(_configKeyHeartbeatTimeout).Populate(&timeoutMs); err != nil || timeoutMs == 0 {
		return fmt.Errorf("getting config field %q: %w", _configKeyHeartbeatTimeout, err)
	}
	c.heartbeatInterval = time.Duration(intervalMs) * time.Millisecond
	c.heartbeatTimeout = time.Duration(timeoutMs) * time.Millisecond

	return nil
}

// Start allocates a port and credential, publishes the discovery record, and
// begins accepting upgrade requests. Returns once the listener is bound.
func (c *controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != _stateStopped {
		return nil
	}
	c.state = _stateStarting

	workspaceRoot := c.host.WorkspaceRoot()
	if workspaceRoot != "" {
		if err := c.discovery.CleanupStaleRecords(workspaceRoot); err != nil {
			c.logger.Warnw("stale discovery record cleanup failed", "error", err)
		}
	}

	port, err := c.discovery.AllocatePort()
	if err != nil {
		c.state = _stateStopped
		return err
	}
	token, err := c.discovery.GenerateAuthToken()
	if err != nil {
		c.state = _stateStopped
		return err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		c.state = _stateStopped
		return fmt.Errorf("binding protocol server listener: %w", err)
	}

	c.port = port
	c.authToken = token
	c.httpServer = &http.Server{Handler: http.HandlerFunc(c.handleUpgrade)}
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			c.logger.Errorw("protocol server listener failed", "error", err)
		}
	}(c.httpServer)

	if _, err := c.discovery.WriteRecord(port, workspaceRoot, c.name, token); err != nil {
		c.httpServer.Close()
		c.state = _stateStopped
		return err
	}

	watch, err := c.discovery.WatchRecord(port, func() error {
		_, werr := c.discovery.WriteRecord(port, workspaceRoot, c.name, token)
		return werr
	})
	if err != nil {
		c.logger.Warnw("discovery record watch unavailable", "error", err)
	} else {
		c.recordWatch = watch
	}

	c.state = _stateListening
	c.logger.Infow("protocol server listening", "port", port)
	return nil
}

// Stop halts the heartbeat, force-closes every peer with a close frame,
// closes the listener, and deletes the discovery record. Idempotent and safe
// to call before Start.
func (c *controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state == _stateStopped {
		c.mu.Unlock()
		return nil
	}
	c.state = _stateStopped

	if c.heartbeatTask != nil {
		c.heartbeatTask.Stop()
		c.heartbeatTask = nil
	}
	if c.recordWatch != nil {
		c.recordWatch.Stop()
		c.recordWatch = nil
	}

	peers := c.peers.List(ctx)
	for _, p := range peers {
		c.peers.Remove(ctx, p.UUID)
		if p.PendingPing != nil {
			p.PendingPing.Timeout.Stop()
			p.PendingPing = nil
		}
	}

	srv := c.httpServer
	c.httpServer = nil
	port := c.port
	c.mu.Unlock()

	var errs error
	closeFrame := wsframe.BuildClose(_closeStatusNormal, _closeReasonShutdown)
	for _, p := range peers {
		if err := p.Write(closeFrame); err != nil {
			c.logger.Debugw("close frame write failed", "peer", p.UUID, "error", err)
		}
		errs = multierr.Append(errs, p.Conn.Close())
	}

	if srv != nil {
		errs = multierr.Append(errs, srv.Close())
	}
	c.discovery.DeleteRecord(port)

	c.logger.Infow("protocol server stopped", "port", port)
	return errs
}

func (c *controller) Port() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.port
}

func (c *controller) HasConnectedClients() bool {
	return c.peers.Count(context.Background()) > 0
}

func (c *controller) RegisterHooks(h Hooks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = h
}

func (c *controller) currentHooks() Hooks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hooks
}

// handleUpgrade runs the handshake contract: path, sub-protocol, credential,
// then the RFC 6455 accept exchange.
func (c *controller) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != _mcpPath {
		c.stats.Counter("handshake_rejected").Inc(1)
		http.NotFound(w, r)
		return
	}
	if strings.TrimSpace(r.Header.Get("Sec-WebSocket-Protocol")) != model.Subprotocol {
		c.stats.Counter("handshake_rejected").Inc(1)
		http.Error(w, "unsupported sub-protocol", http.StatusBadRequest)
		return
	}
	if r.Header.Get(model.AuthHeader) != c.currentToken() {
		c.stats.Counter("handshake_rejected").Inc(1)
		http.Error(w, "invalid auth token", http.StatusUnauthorized)
		return
	}
	key := r.Header.Get("Sec-WebSocket-Key")
	if key == "" {
		c.stats.Counter("handshake_rejected").Inc(1)
		http.Error(w, "missing Sec-WebSocket-Key", http.StatusBadRequest)
		return
	}

	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "connection cannot be hijacked", http.StatusInternalServerError)
		return
	}
	conn, rw, err := hijacker.Hijack()
	if err != nil {
		c.logger.Errorw("hijacking upgrade connection", "error", err)
		return
	}

	response := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + acceptKey(key) + "\r\n" +
		"Sec-WebSocket-Protocol: " + model.Subprotocol + "\r\n\r\n"
	if _, err := conn.Write([]byte(response)); err != nil {
		conn.Close()
		return
	}

	p := &entity.Peer{
		UUID:          uuid.Must(uuid.NewV4()),
		Conn:          conn,
		Authenticated: true,
	}

	ctx := context.Background()
	c.peers.Add(ctx, p)
	c.stats.Counter("peers_connected").Inc(1)
	c.logger.Infow("peer connected", "peer", p.UUID)

	c.mu.Lock()
	if c.heartbeatTask == nil && c.state == _stateListening {
		c.heartbeatTask = c.sched.Every(c.heartbeatInterval, c.heartbeatTick)
	}
	c.mu.Unlock()

	go c.readLoop(p, rw.Reader)
}

func (c *controller) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authToken
}

// readLoop accumulates socket bytes, re-parses the buffer for complete
// frames, and hands each to the dispatcher. Errors are connection-scoped;
// they tear down this peer and nothing else.
func (c *controller) readLoop(p *entity.Peer, rd io.Reader) {
	ctx := context.Background()
	defer c.teardownPeer(ctx, p, true)

	var buf []byte
	chunk := make([]byte, _readChunkSize)
	for {
		n, err := rd.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			frames, consumed := wsframe.Parse(buf)
			buf = buf[:copy(buf, buf[consumed:])]
			for _, f := range frames {
				if !c.handleFrame(ctx, p, f) {
					return
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				c.logger.Debugw("peer read failed", "peer", p.UUID, "error", err)
			}
			return
		}
	}
}

// handleFrame processes one decoded frame; a false return ends the read loop.
func (c *controller) handleFrame(ctx context.Context, p *entity.Peer, f wsframe.Frame) bool {
	switch f.Opcode {
	case wsframe.OpcodeText:
		c.dispatch(ctx, p, f.Payload)
	case wsframe.OpcodePing:
		if err := p.Write(wsframe.Build(wsframe.OpcodePong, f.Payload)); err != nil {
			c.logger.Debugw("pong write failed", "peer", p.UUID, "error", err)
		}
	case wsframe.OpcodeClose:
		// Echo the close before tearing down.
		if err := p.Write(wsframe.Build(wsframe.OpcodeClose, f.Payload)); err != nil {
			c.logger.Debugw("close echo failed", "peer", p.UUID, "error", err)
		}
		return false
	}
	return true
}

// teardownPeer removes the peer from the registry, cancels any pending
// heartbeat, closes the socket, and fires the disconnect hook. Re-entrant
// calls for an already-removed peer are no-ops, so late heartbeat timers and
// the read loop can both call it safely.
func (c *controller) teardownPeer(ctx context.Context, p *entity.Peer, notify bool) {
	c.mu.Lock()
	if _, err := c.peers.Get(ctx, p.UUID); err != nil {
		c.mu.Unlock()
		return
	}
	c.peers.Remove(ctx, p.UUID)
	if p.PendingPing != nil {
		p.PendingPing.Timeout.Stop()
		p.PendingPing = nil
	}
	if c.peers.Count(ctx) == 0 && c.heartbeatTask != nil {
		c.heartbeatTask.Stop()
		c.heartbeatTask = nil
	}
	hooks := c.hooks
	c.mu.Unlock()

	p.Conn.Close()
	c.stats.Counter("peers_disconnected").Inc(1)
	c.logger.Infow("peer disconnected", "peer", p.UUID)

	if notify && hooks.PeerDisconnected != nil {
		hooks.PeerDisconnected()
	}
}

// SendNotification encodes once and sends the same frame to every live peer.
func (c *controller) SendNotification(ctx context.Context, n *model.Notification) error {
	peers := c.peers.List(ctx)
	if len(peers) == 0 {
		return nil
	}

	frame, err := encodeFrame(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	for _, p := range peers {
		if err := p.Write(frame); err != nil {
			c.logger.Debugw("notification write failed", "peer", p.UUID, "error", err)
			continue
		}
	}
	c.stats.Counter("notifications_sent").Inc(1)
	return nil
}

func acceptKey(clientKey string) string {
	h := sha1.Sum([]byte(clientKey + _wsGUID))
	return base64.StdEncoding.EncodeToString(h[:])
}
