package selection

import (
	"context"

	"go.lsp.dev/protocol"

	"github.com/vaulterm/idebridge/src/idebridge/gateway/hostview"
)

// sourceStrategy extracts selections from the raw text editor, which exposes
// anchor/head positions directly.
type sourceStrategy struct{}

func (sourceStrategy) selectedText(v hostview.View) string {
	return v.SelectedText()
}

func (sourceStrategy) extractSelection(_ context.Context, v hostview.View, _ string) (*extracted, error) {
	anchor, head, ok := v.Selection()
	if !ok {
		return nil, nil
	}
	if anchor == head {
		// Collapsed cursor, nothing selected.
		return nil, nil
	}

	return &extracted{
		selection: normalizeRange(anchor, head),
		text:      v.SelectedText(),
	}, nil
}

// normalizeRange orders anchor and head into a start/end pair. The anchor is
// chronologically first but positionally arbitrary: a backward drag puts it
// after the head.
func normalizeRange(anchor, head protocol.Position) protocol.Range {
	if positionBefore(anchor, head) {
		return protocol.Range{Start: anchor, End: head}
	}
	return protocol.Range{Start: head, End: anchor}
}

func positionBefore(a, b protocol.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}
