// Package selection watches the host's editing context and pushes selection
// and file-mention notifications to connected peers.
package selection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.lsp.dev/protocol"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/vaulterm/idebridge/src/idebridge/controller/mcpserver"
	"github.com/vaulterm/idebridge/src/idebridge/entity"
	"github.com/vaulterm/idebridge/src/idebridge/gateway/hostview"
	ierrors "github.com/vaulterm/idebridge/src/idebridge/internal/errors"
	"github.com/vaulterm/idebridge/src/idebridge/internal/scheduler"
	"github.com/vaulterm/idebridge/src/idebridge/mapper"
	"github.com/vaulterm/idebridge/src/idebridge/model"
)

const _configKeyPollInterval = "selection.pollIntervalMs"

// Module is the Fx module for this package.
var Module = fx.Provide(New)

// Controller pushes the host's editing context to connected peers.
type Controller interface {
	// NotifySelectionChanged resets change tracking and re-sends the current
	// selection even when it has not changed since the last push. With
	// immediate set the push happens inline; otherwise it is deferred by one
	// poll interval so the host's view state settles first.
	NotifySelectionChanged(ctx context.Context, immediate bool)
	// SendAtMention pushes a file reference into the peer's context. Nil line
	// bounds reference the whole file.
	SendAtMention(ctx context.Context, filePath string, startLine, endLine *int) error
}

// Params are inbound parameters to construct the tracker.
type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Provider
	Logger    *zap.SugaredLogger
	Host      hostview.Provider
	Server    mcpserver.Controller
	Scheduler scheduler.Scheduler
}

// extracted is a fully resolved selection ready to notify.
type extracted struct {
	selection protocol.Range
	text      string
}

// strategy resolves the selection for one view mode.
type strategy interface {
	// selectedText is the cheap change probe called every poll tick.
	selectedText(v hostview.View) string
	// extractSelection resolves the full selection. A nil result with a nil
	// error means nothing is selected or the selection is unresolvable.
	extractSelection(ctx context.Context, v hostview.View, path string) (*extracted, error)
}

type tracker struct {
	logger *zap.SugaredLogger
	host   hostview.Provider
	server mcpserver.Controller
	sched  scheduler.Scheduler

	pollInterval time.Duration
	source       strategy
	preview      strategy

	mu          sync.Mutex
	lastFileURI string
	lastText    string
	lastCursor  *protocol.Position
	haveLast    bool
	pollTask    scheduler.Task
	pending     scheduler.Task
}

// New constructs the selection tracker and wires its poll loop into the Fx
// lifecycle.
func New(p Params) (Controller, error) {
	t := &tracker{
		logger: p.Logger,
		host:   p.Host,
		server: p.Server,
		sched:  p.Scheduler,
		source: sourceStrategy{},
		preview: &previewStrategy{
			logger:   p.Logger,
			provider: p.Host,
		},
	}

	var intervalMs int64
	if err := p.Config.Get(_configKeyPollInterval).Populate(&intervalMs); err != nil || intervalMs == 0 {
		return nil, fmt.Errorf("getting config field %q: %w", _configKeyPollInterval, err)
	}
	t.pollInterval = time.Duration(intervalMs) * time.Millisecond

	p.Lifecycle.Append(fx.Hook{
		OnStart: t.start,
		OnStop:  t.stop,
	})

	return t, nil
}

func (t *tracker) start(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pollTask != nil {
		return ierrors.New("selection tracker already started")
	}
	t.pollTask = t.sched.Every(t.pollInterval, func() {
		t.tick(context.Background())
	})
	return nil
}

func (t *tracker) stop(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pollTask != nil {
		t.pollTask.Stop()
		t.pollTask = nil
	}
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	return nil
}

func (t *tracker) NotifySelectionChanged(ctx context.Context, immediate bool) {
	t.mu.Lock()
	t.haveLast = false
	t.lastFileURI = ""
	t.lastText = ""
	t.lastCursor = nil
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.mu.Unlock()

	if immediate {
		t.tick(ctx)
		return
	}

	t.mu.Lock()
	t.pending = t.sched.After(t.pollInterval, func() {
		t.tick(context.Background())
	})
	t.mu.Unlock()
}

func (t *tracker) SendAtMention(ctx context.Context, filePath string, startLine, endLine *int) error {
	if filePath == "" {
		return ierrors.New("filePath is required for an at-mention")
	}
	return t.server.SendNotification(ctx, mapper.AtMentioned(filePath, startLine, endLine))
}

// tick is one pass of the poll loop: probe the active view cheaply, bail when
// nothing changed, otherwise resolve the full selection and notify.
func (t *tracker) tick(ctx context.Context) {
	if !t.server.HasConnectedClients() {
		return
	}
	view, ok := t.host.ActiveView(ctx)
	if !ok {
		return
	}
	path, ok := view.FilePath()
	if !ok {
		return
	}

	var strat strategy
	var cursor *protocol.Position
	switch view.Mode() {
	case entity.ViewModeSource:
		strat = t.source
		if pos, posOK := view.CursorPosition(); posOK {
			cursor = &pos
		}
	case entity.ViewModePreview:
		strat = t.preview
	default:
		return
	}

	text := strat.selectedText(view)
	fileURI := string(mapper.FileURI(t.host.WorkspaceRoot(), path))

	t.mu.Lock()
	unchanged := t.haveLast &&
		t.lastFileURI == fileURI &&
		t.lastText == text &&
		positionsEqual(t.lastCursor, cursor)
	t.mu.Unlock()
	if unchanged {
		return
	}

	ext, err := strat.extractSelection(ctx, view, path)
	if err != nil {
		if err != errResolutionInFlight {
			t.logger.Debugw("selection extraction failed", "path", path, "error", err)
		}
		return
	}

	var n *model.Notification
	if ext == nil {
		n = mapper.SelectionChanged(nil, nil, nil)
	} else {
		n = mapper.SelectionChanged(&fileURI, &ext.selection, &ext.text)
	}
	if err := t.server.SendNotification(ctx, n); err != nil {
		t.logger.Warnw("selection notification failed", "error", err)
		return
	}

	t.mu.Lock()
	t.lastFileURI = fileURI
	t.lastText = text
	t.lastCursor = cursor
	t.haveLast = true
	t.mu.Unlock()
}

func positionsEqual(a, b *protocol.Position) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
