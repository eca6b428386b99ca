// Package mapper converts between wire messages and domain values.
package mapper

import (
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/vaulterm/idebridge/src/idebridge/model"
)

// Position assembles a 0-based position.
func Position(line, character int) protocol.Position {
	return protocol.Position{
		Line:      uint32(line),
		Character: uint32(character),
	}
}

// Range assembles a 0-based range.
func Range(startLine, startCol, endLine, endCol int) protocol.Range {
	return protocol.Range{
		Start: Position(startLine, startCol),
		End:   Position(endLine, endCol),
	}
}

// SelectionChanged wraps the current editing context into its notification
// envelope. Each argument is independently nullable; a deselection passes all
// three as nil.
func SelectionChanged(filePath *string, selection *protocol.Range, text *string) *model.Notification {
	return &model.Notification{
		JSONRPC: model.Version,
		Method:  model.MethodSelectionChanged,
		Params: model.SelectionChangedParams{
			Text:      text,
			FilePath:  filePath,
			Selection: selection,
		},
	}
}

// AtMentioned wraps a file mention into its notification envelope. Nil line
// bounds reference the whole file.
func AtMentioned(filePath string, startLine, endLine *int) *model.Notification {
	return &model.Notification{
		JSONRPC: model.Version,
		Method:  model.MethodAtMentioned,
		Params: model.AtMentionedParams{
			FilePath:  filePath,
			StartLine: startLine,
			EndLine:   endLine,
		},
	}
}

// FileURI joins a workspace root and a vault-relative path into a file URI.
// The host hands over both halves pre-normalized, so this is plain
// concatenation without slash cleanup or percent-encoding.
func FileURI(root, relative string) uri.URI {
	if root == "" {
		return uri.URI("file://" + relative)
	}
	return uri.URI("file://" + root + "/" + relative)
}
