package selection

import (
	"context"
	"strconv"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	ierrors "github.com/vaulterm/idebridge/src/idebridge/internal/errors"
	"github.com/vaulterm/idebridge/src/idebridge/gateway/hostview"
)

const (
	_attrLineStart = "data-line-start"
	_attrLineEnd   = "data-line-end"
)

// errResolutionInFlight signals that a previous preview extraction has not
// finished yet. The caller skips the tick rather than piling up concurrent
// reads of the same document.
var errResolutionInFlight = ierrors.New("preview selection resolution already in flight")

// previewStrategy extracts selections from the rendered reading view, where
// the host only exposes a DOM range. The primary technique reads source line
// markers stamped on rendered block elements; when those are missing it falls
// back to locating the selected text inside the document source.
type previewStrategy struct {
	logger   *zap.SugaredLogger
	provider hostview.Provider
	inFlight atomic.Bool
}

func (s *previewStrategy) selectedText(v hostview.View) string {
	dom, ok := v.DOMSelection()
	if !ok {
		return ""
	}
	return dom.Text
}

func (s *previewStrategy) extractSelection(ctx context.Context, v hostview.View, path string) (*extracted, error) {
	dom, ok := v.DOMSelection()
	if !ok || dom.Text == "" {
		return nil, nil
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, errResolutionInFlight
	}
	defer s.inFlight.Store(false)

	if r, ok := resolveByLineMarkers(dom); ok {
		return &extracted{selection: r, text: dom.Text}, nil
	}

	source, err := s.provider.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	r, ok := resolveBySearch(source, dom, v.Sections())
	if !ok {
		s.logger.Debugw("selected text not resolvable in document source", "path", path)
		return nil, nil
	}
	return &extracted{selection: r, text: dom.Text}, nil
}

// resolveByLineMarkers walks up from the selection's start container to the
// nearest rendered block carrying source line range attributes and derives
// the selected line span from the captured text.
func resolveByLineMarkers(dom *hostview.DOMRange) (protocol.Range, bool) {
	el := dom.StartContainer
	for el != nil {
		if el.IsElement() {
			if _, ok := el.Attribute(_attrLineStart); ok {
				break
			}
		}
		parent, ok := el.Parent()
		if !ok {
			el = nil
			break
		}
		el = parent
	}
	if el == nil {
		return protocol.Range{}, false
	}

	startAttr, ok := el.Attribute(_attrLineStart)
	if !ok {
		return protocol.Range{}, false
	}
	endAttr, ok := el.Attribute(_attrLineEnd)
	if !ok {
		return protocol.Range{}, false
	}
	startLine, err := strconv.Atoi(startAttr)
	if err != nil || startLine < 0 {
		return protocol.Range{}, false
	}
	blockEnd, err := strconv.Atoi(endAttr)
	if err != nil || blockEnd < startLine {
		return protocol.Range{}, false
	}

	// The DOM range captures trailing blank lines beyond the selection, one
	// per rendered block boundary. Trim them off the line count.
	lines := strings.Split(dom.Text, "\n")
	count := len(lines)
	for count > 1 && lines[count-1] == "" {
		count--
	}
	endLine := startLine + count - 1
	if endLine > blockEnd {
		endLine = blockEnd
	}
	endChar := len(lines[count-1]) - 1
	if endChar < 0 {
		endChar = 0
	}

	return protocol.Range{
		Start: protocol.Position{Line: uint32(startLine), Character: 0},
		End:   protocol.Position{Line: uint32(endLine), Character: uint32(endChar)},
	}, true
}
