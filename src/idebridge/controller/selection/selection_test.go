package selection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/vaulterm/idebridge/src/idebridge/controller/mcpserver/mcpservermock"
	"github.com/vaulterm/idebridge/src/idebridge/entity"
	"github.com/vaulterm/idebridge/src/idebridge/gateway/hostview"
	"github.com/vaulterm/idebridge/src/idebridge/gateway/hostview/hostviewmock"
	"github.com/vaulterm/idebridge/src/idebridge/internal/scheduler"
	"github.com/vaulterm/idebridge/src/idebridge/model"
)

func newTestTracker(t *testing.T, provider *hostviewmock.Provider) (*tracker, *mcpservermock.MockController) {
	ctrl := gomock.NewController(t)
	server := mcpservermock.NewMockController(ctrl)
	tr := &tracker{
		logger:       zap.NewNop().Sugar(),
		host:         provider,
		server:       server,
		sched:        scheduler.New(),
		pollInterval: 5 * time.Millisecond,
		source:       sourceStrategy{},
		preview:      &previewStrategy{logger: zap.NewNop().Sugar(), provider: provider},
	}
	return tr, server
}

func sourceView(text string, anchor, head protocol.Position) *hostviewmock.View {
	return &hostviewmock.View{
		ViewMode: entity.ViewModeSource,
		Path:     "note.md",
		Text:     text,
		Anchor:   &anchor,
		Head:     &head,
		Cursor:   &head,
	}
}

func selectionParams(t *testing.T, n *model.Notification) model.SelectionChangedParams {
	t.Helper()
	p, ok := n.Params.(model.SelectionChangedParams)
	require.True(t, ok)
	return p
}

func TestTickNotifiesOnce(t *testing.T) {
	provider := &hostviewmock.Provider{
		Root: "/vault",
		View: sourceView("hello",
			protocol.Position{Line: 1, Character: 0},
			protocol.Position{Line: 1, Character: 5}),
	}
	tr, server := newTestTracker(t, provider)

	var sent []*model.Notification
	server.EXPECT().HasConnectedClients().Return(true).AnyTimes()
	server.EXPECT().SendNotification(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n *model.Notification) error {
			sent = append(sent, n)
			return nil
		}).Times(1)

	tr.tick(context.Background())
	tr.tick(context.Background())
	tr.tick(context.Background())

	require.Len(t, sent, 1)
	assert.Equal(t, model.MethodSelectionChanged, sent[0].Method)
	p := selectionParams(t, sent[0])
	require.NotNil(t, p.FilePath)
	assert.Equal(t, "file:///vault/note.md", *p.FilePath)
	require.NotNil(t, p.Text)
	assert.Equal(t, "hello", *p.Text)
	require.NotNil(t, p.Selection)
	assert.Equal(t, protocol.Position{Line: 1, Character: 0}, p.Selection.Start)
	assert.Equal(t, protocol.Position{Line: 1, Character: 5}, p.Selection.End)
}

func TestTickChangeTriggersNewNotification(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *hostviewmock.Provider)
	}{
		{
			name: "text changed",
			mutate: func(p *hostviewmock.Provider) {
				p.View.Text = "other"
			},
		},
		{
			name: "file changed",
			mutate: func(p *hostviewmock.Provider) {
				p.View.Path = "second.md"
			},
		},
		{
			name: "cursor moved same text",
			mutate: func(p *hostviewmock.Provider) {
				p.View.Cursor = &protocol.Position{Line: 9, Character: 9}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &hostviewmock.Provider{
				Root: "/vault",
				View: sourceView("hello",
					protocol.Position{Line: 1, Character: 0},
					protocol.Position{Line: 1, Character: 5}),
			}
			tr, server := newTestTracker(t, provider)
			server.EXPECT().HasConnectedClients().Return(true).AnyTimes()
			server.EXPECT().SendNotification(gomock.Any(), gomock.Any()).Return(nil).Times(2)

			tr.tick(context.Background())
			tt.mutate(provider)
			tr.tick(context.Background())
			tr.tick(context.Background())
		})
	}
}

func TestTickClearedSelectionNotifiesNullsOnce(t *testing.T) {
	provider := &hostviewmock.Provider{
		Root: "/vault",
		View: sourceView("hello",
			protocol.Position{Line: 1, Character: 0},
			protocol.Position{Line: 1, Character: 5}),
	}
	tr, server := newTestTracker(t, provider)

	var sent []*model.Notification
	server.EXPECT().HasConnectedClients().Return(true).AnyTimes()
	server.EXPECT().SendNotification(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n *model.Notification) error {
			sent = append(sent, n)
			return nil
		}).Times(2)

	tr.tick(context.Background())

	provider.View.Text = ""
	provider.View.Anchor = nil
	provider.View.Head = nil
	tr.tick(context.Background())
	tr.tick(context.Background())

	require.Len(t, sent, 2)
	p := selectionParams(t, sent[1])
	assert.Nil(t, p.FilePath)
	assert.Nil(t, p.Text)
	assert.Nil(t, p.Selection)
}

func TestTickSkipsWithoutClients(t *testing.T) {
	provider := &hostviewmock.Provider{
		Root: "/vault",
		View: sourceView("hello",
			protocol.Position{Line: 1, Character: 0},
			protocol.Position{Line: 1, Character: 5}),
	}
	tr, server := newTestTracker(t, provider)
	server.EXPECT().HasConnectedClients().Return(false).AnyTimes()

	tr.tick(context.Background())
}

func TestTickSkipsWithoutActiveFile(t *testing.T) {
	provider := &hostviewmock.Provider{Root: "/vault"}
	tr, server := newTestTracker(t, provider)
	server.EXPECT().HasConnectedClients().Return(true).AnyTimes()

	tr.tick(context.Background())

	provider.View = &hostviewmock.View{ViewMode: entity.ViewModeSource, NoFile: true}
	tr.tick(context.Background())
}

func TestTickPreviewMode(t *testing.T) {
	provider := &hostviewmock.Provider{
		Root: "/vault",
		View: &hostviewmock.View{
			ViewMode: entity.ViewModePreview,
			Path:     "note.md",
			DOM: &hostview.DOMRange{
				Text:           "Line 1\n\n",
				StartContainer: markedBlock("0", "2"),
			},
		},
	}
	tr, server := newTestTracker(t, provider)

	var sent []*model.Notification
	server.EXPECT().HasConnectedClients().Return(true).AnyTimes()
	server.EXPECT().SendNotification(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n *model.Notification) error {
			sent = append(sent, n)
			return nil
		}).Times(1)

	tr.tick(context.Background())
	tr.tick(context.Background())

	require.Len(t, sent, 1)
	p := selectionParams(t, sent[0])
	require.NotNil(t, p.Selection)
	assert.Equal(t, protocol.Position{Line: 0, Character: 0}, p.Selection.Start)
	assert.Equal(t, protocol.Position{Line: 0, Character: 5}, p.Selection.End)
}

func TestNotifySelectionChangedImmediateResendsUnchanged(t *testing.T) {
	provider := &hostviewmock.Provider{
		Root: "/vault",
		View: sourceView("hello",
			protocol.Position{Line: 1, Character: 0},
			protocol.Position{Line: 1, Character: 5}),
	}
	tr, server := newTestTracker(t, provider)
	server.EXPECT().HasConnectedClients().Return(true).AnyTimes()
	server.EXPECT().SendNotification(gomock.Any(), gomock.Any()).Return(nil).Times(2)

	tr.tick(context.Background())
	tr.tick(context.Background())
	tr.NotifySelectionChanged(context.Background(), true)
}

func TestNotifySelectionChangedDeferred(t *testing.T) {
	provider := &hostviewmock.Provider{
		Root: "/vault",
		View: sourceView("hello",
			protocol.Position{Line: 1, Character: 0},
			protocol.Position{Line: 1, Character: 5}),
	}
	tr, server := newTestTracker(t, provider)

	done := make(chan struct{})
	server.EXPECT().HasConnectedClients().Return(true).AnyTimes()
	server.EXPECT().SendNotification(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, *model.Notification) error {
			close(done)
			return nil
		}).Times(1)

	tr.NotifySelectionChanged(context.Background(), false)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deferred notification never fired")
	}
}

func TestSendAtMention(t *testing.T) {
	provider := &hostviewmock.Provider{Root: "/vault"}
	tr, server := newTestTracker(t, provider)

	var sent *model.Notification
	server.EXPECT().SendNotification(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n *model.Notification) error {
			sent = n
			return nil
		})

	start, end := 3, 9
	require.NoError(t, tr.SendAtMention(context.Background(), "note.md", &start, &end))
	require.NotNil(t, sent)
	assert.Equal(t, model.MethodAtMentioned, sent.Method)
	p, ok := sent.Params.(model.AtMentionedParams)
	require.True(t, ok)
	assert.Equal(t, "note.md", p.FilePath)
	require.NotNil(t, p.StartLine)
	assert.Equal(t, 3, *p.StartLine)
}

func TestSendAtMentionRequiresPath(t *testing.T) {
	provider := &hostviewmock.Provider{}
	tr, _ := newTestTracker(t, provider)
	assert.Error(t, tr.SendAtMention(context.Background(), "", nil, nil))
}

func TestStartStop(t *testing.T) {
	provider := &hostviewmock.Provider{}
	tr, server := newTestTracker(t, provider)
	server.EXPECT().HasConnectedClients().Return(false).AnyTimes()

	require.NoError(t, tr.start(context.Background()))
	assert.Error(t, tr.start(context.Background()))
	require.NoError(t, tr.stop(context.Background()))
	require.NoError(t, tr.start(context.Background()))
	require.NoError(t, tr.stop(context.Background()))
}
