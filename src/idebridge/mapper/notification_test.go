package mapper

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/uri"

	"github.com/vaulterm/idebridge/src/idebridge/model"
)

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func TestRange(t *testing.T) {
	r := Range(0, 0, 0, 5)
	assert.Equal(t, uint32(0), r.Start.Line)
	assert.Equal(t, uint32(0), r.Start.Character)
	assert.Equal(t, uint32(0), r.End.Line)
	assert.Equal(t, uint32(5), r.End.Character)
}

func TestSelectionChanged(t *testing.T) {
	t.Run("full selection", func(t *testing.T) {
		r := Range(0, 0, 0, 5)
		n := SelectionChanged(strPtr("file:///v/n.md"), &r, strPtr("hello"))

		out, err := json.Marshal(n)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"jsonrpc": "2.0",
			"method": "selection_changed",
			"params": {
				"text": "hello",
				"filePath": "file:///v/n.md",
				"selection": {"start":{"line":0,"character":0},"end":{"line":0,"character":5}}
			}
		}`, string(out))
	})

	t.Run("deselection is all nulls", func(t *testing.T) {
		out, err := json.Marshal(SelectionChanged(nil, nil, nil))
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"jsonrpc": "2.0",
			"method": "selection_changed",
			"params": {"text":null,"filePath":null,"selection":null}
		}`, string(out))
	})
}

func TestAtMentioned(t *testing.T) {
	t.Run("line bounds", func(t *testing.T) {
		out, err := json.Marshal(AtMentioned("notes/daily.md", intPtr(3), intPtr(7)))
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"jsonrpc": "2.0",
			"method": "at_mentioned",
			"params": {"filePath":"notes/daily.md","startLine":3,"endLine":7}
		}`, string(out))
	})

	t.Run("whole file", func(t *testing.T) {
		n := AtMentioned("notes/daily.md", nil, nil)
		params, ok := n.Params.(model.AtMentionedParams)
		require.True(t, ok)
		assert.Nil(t, params.StartLine)
		assert.Nil(t, params.EndLine)
	})
}

func TestFileURI(t *testing.T) {
	tests := []struct {
		name     string
		root     string
		relative string
		want     uri.URI
	}{
		{
			name:     "with root",
			root:     "/home/u/vault",
			relative: "notes/daily.md",
			want:     uri.URI("file:///home/u/vault/notes/daily.md"),
		},
		{
			name:     "empty root",
			root:     "",
			relative: "notes/daily.md",
			want:     uri.URI("file://notes/daily.md"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileURI(tt.root, tt.relative))
		})
	}
}

func TestMessageToIDEConnectedParams(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		msg := &model.Message{Params: json.RawMessage(`{"pid": 4242}`)}
		params, err := MessageToIDEConnectedParams(msg)
		require.NoError(t, err)
		assert.Equal(t, 4242, params.PID)
	})

	t.Run("missing params", func(t *testing.T) {
		_, err := MessageToIDEConnectedParams(&model.Message{})
		assert.Error(t, err)
	})

	t.Run("malformed params", func(t *testing.T) {
		msg := &model.Message{Params: json.RawMessage(`{"pid": "not-a-number"}`)}
		_, err := MessageToIDEConnectedParams(msg)
		assert.Error(t, err)
	})
}
