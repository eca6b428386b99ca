package selection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/vaulterm/idebridge/src/idebridge/gateway/hostview"
	"github.com/vaulterm/idebridge/src/idebridge/gateway/hostview/hostviewmock"
)

func markedBlock(start, end string) *hostviewmock.Element {
	attrs := map[string]string{}
	if start != "" {
		attrs[_attrLineStart] = start
	}
	if end != "" {
		attrs[_attrLineEnd] = end
	}
	return &hostviewmock.Element{Attrs: attrs}
}

func TestResolveByLineMarkers(t *testing.T) {
	tests := []struct {
		name string
		dom  *hostview.DOMRange
		want protocol.Range
		ok   bool
	}{
		{
			name: "trailing blank lines trimmed",
			dom: &hostview.DOMRange{
				Text:           "Line 1\n\n",
				StartContainer: markedBlock("0", "2"),
			},
			want: protocol.Range{
				Start: protocol.Position{Line: 0, Character: 0},
				End:   protocol.Position{Line: 0, Character: 5},
			},
			ok: true,
		},
		{
			name: "multi line selection",
			dom: &hostview.DOMRange{
				Text:           "first\nsecond\n",
				StartContainer: markedBlock("4", "6"),
			},
			want: protocol.Range{
				Start: protocol.Position{Line: 4, Character: 0},
				End:   protocol.Position{Line: 5, Character: 5},
			},
			ok: true,
		},
		{
			name: "walks up from text node",
			dom: &hostview.DOMRange{
				Text: "alpha",
				StartContainer: &hostviewmock.TextNode{
					ParentNode: markedBlock("7", "7"),
				},
			},
			want: protocol.Range{
				Start: protocol.Position{Line: 7, Character: 0},
				End:   protocol.Position{Line: 7, Character: 4},
			},
			ok: true,
		},
		{
			name: "line count clamped to block end",
			dom: &hostview.DOMRange{
				Text:           "a\nb\nc\nd",
				StartContainer: markedBlock("0", "1"),
			},
			want: protocol.Range{
				Start: protocol.Position{Line: 0, Character: 0},
				End:   protocol.Position{Line: 1, Character: 0},
			},
			ok: true,
		},
		{
			name: "missing end attribute",
			dom: &hostview.DOMRange{
				Text:           "x",
				StartContainer: markedBlock("3", ""),
			},
			ok: false,
		},
		{
			name: "no marker up the tree",
			dom: &hostview.DOMRange{
				Text: "x",
				StartContainer: &hostviewmock.TextNode{
					ParentNode: &hostviewmock.Element{},
				},
			},
			ok: false,
		},
		{
			name: "malformed start attribute",
			dom: &hostview.DOMRange{
				Text:           "x",
				StartContainer: markedBlock("three", "4"),
			},
			ok: false,
		},
		{
			name: "nil start container",
			dom:  &hostview.DOMRange{Text: "x"},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := resolveByLineMarkers(tt.dom)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestPreviewExtractSelection(t *testing.T) {
	provider := &hostviewmock.Provider{
		Files: map[string]string{
			"note.md": "# Title\n\nLine 1 of body\n",
		},
	}
	s := &previewStrategy{logger: zap.NewNop().Sugar(), provider: provider}

	t.Run("markers preferred over search", func(t *testing.T) {
		v := &hostviewmock.View{
			DOM: &hostview.DOMRange{
				Text:           "Line 1 of body\n",
				StartContainer: markedBlock("2", "2"),
			},
		}
		got, err := s.extractSelection(context.Background(), v, "note.md")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, uint32(2), got.selection.Start.Line)
		assert.Equal(t, "Line 1 of body\n", got.text)
	})

	t.Run("falls back to source search", func(t *testing.T) {
		v := &hostviewmock.View{
			DOM: &hostview.DOMRange{
				Text:           "Line 1 of body",
				StartContainer: &hostviewmock.TextNode{},
				BlockIndex:     -1,
			},
		}
		got, err := s.extractSelection(context.Background(), v, "note.md")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, protocol.Position{Line: 2, Character: 0}, got.selection.Start)
		assert.Equal(t, protocol.Position{Line: 2, Character: 14}, got.selection.End)
	})

	t.Run("unresolvable text", func(t *testing.T) {
		v := &hostviewmock.View{
			DOM: &hostview.DOMRange{
				Text:           "not in the document at all",
				StartContainer: &hostviewmock.TextNode{},
				BlockIndex:     -1,
			},
		}
		got, err := s.extractSelection(context.Background(), v, "note.md")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("no dom selection", func(t *testing.T) {
		got, err := s.extractSelection(context.Background(), &hostviewmock.View{}, "note.md")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("overlapping extraction skipped", func(t *testing.T) {
		busy := &previewStrategy{logger: zap.NewNop().Sugar(), provider: provider}
		busy.inFlight.Store(true)
		v := &hostviewmock.View{
			DOM: &hostview.DOMRange{Text: "Line 1 of body"},
		}
		_, err := busy.extractSelection(context.Background(), v, "note.md")
		assert.ErrorIs(t, err, errResolutionInFlight)
	})

	t.Run("read failure surfaces", func(t *testing.T) {
		v := &hostviewmock.View{
			DOM: &hostview.DOMRange{
				Text:           "anything",
				StartContainer: &hostviewmock.TextNode{},
				BlockIndex:     -1,
			},
		}
		_, err := s.extractSelection(context.Background(), v, "missing.md")
		assert.Error(t, err)
	})
}
