// Package hostview declares the surface the bridge consumes from the host
// note-taking application. The host embeds the bridge and supplies an
// implementation; nothing here is implemented by the core beyond a headless
// stand-in for running without a host.
package hostview

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/fx"

	"github.com/vaulterm/idebridge/src/idebridge/entity"
	"github.com/vaulterm/idebridge/src/idebridge/internal/errors"
)

// Module provides the headless provider; an embedding host replaces it with
// fx.Replace or fx.Decorate.
var Module = fx.Provide(NewNop)

// Provider exposes the host's editing context.
type Provider interface {
	// ActiveView returns the currently focused file-bearing view, if any.
	ActiveView(ctx context.Context) (View, bool)
	// WorkspaceRoot is the absolute path of the open vault, or empty when no
	// vault is open.
	WorkspaceRoot() string
	// ReadFile returns the raw source of a vault-relative path.
	ReadFile(ctx context.Context, path string) (string, error)
}

// View is one host view. Selection and CursorPosition are only meaningful in
// source mode; DOMSelection and Sections only in preview mode.
type View interface {
	Mode() entity.ViewMode
	// FilePath is the vault-relative path of the viewed file.
	FilePath() (string, bool)
	// SelectedText is the plain selected text, empty when nothing is selected.
	// Cheap to call every poll tick.
	SelectedText() string
	// Selection returns the anchor and head of the editor selection. Anchor
	// may be chronologically after head when the user dragged backward.
	Selection() (anchor, head protocol.Position, ok bool)
	CursorPosition() (protocol.Position, bool)
	DOMSelection() (*DOMRange, bool)
	// Sections is the host renderer's block-index to source-byte-window
	// cache, or nil when the renderer does not maintain one.
	Sections() SectionIndex
}

// DOMRange is a selection inside the rendered view.
type DOMRange struct {
	// Text is the selected text as rendered.
	Text string
	// StartContainer is the DOM node the selection starts in. May be a text
	// node or an element node.
	StartContainer Node
	// PrecedingText is up to a few dozen characters of rendered text
	// immediately before the selection, used for disambiguation.
	PrecedingText string
	// BlockIndex is the index of the top-level rendered block containing the
	// selection start, or -1 when unknown.
	BlockIndex int
}

// Node is a minimal handle onto the host's rendered DOM.
type Node interface {
	IsElement() bool
	// Attribute returns the named attribute's value on an element node.
	Attribute(name string) (string, bool)
	Parent() (Node, bool)
}

// SectionIndex maps a top-level rendered block index to the source byte
// window it was generated from.
type SectionIndex interface {
	// Section returns the [start,end) byte offsets of block index i.
	Section(i int) (start, end int, ok bool)
}

type nopProvider struct{}

// NewNop returns a Provider with no host attached: no active view, no vault.
func NewNop() Provider {
	return nopProvider{}
}

func (nopProvider) ActiveView(context.Context) (View, bool) { return nil, false }

func (nopProvider) WorkspaceRoot() string { return "" }

func (nopProvider) ReadFile(_ context.Context, path string) (string, error) {
	return "", errors.New("no host attached")
}
