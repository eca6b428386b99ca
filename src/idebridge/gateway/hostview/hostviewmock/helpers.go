// Package hostviewmock provides stateful test doubles for the hostview
// interfaces. DOM trees and view state are easier to express as settable
// stubs than as expectation-based mocks.
package hostviewmock

import (
	"context"

	"go.lsp.dev/protocol"

	"github.com/vaulterm/idebridge/src/idebridge/entity"
	"github.com/vaulterm/idebridge/src/idebridge/gateway/hostview"
	"github.com/vaulterm/idebridge/src/idebridge/internal/errors"
)

// Provider is a settable hostview.Provider.
type Provider struct {
	View  *View
	Root  string
	Files map[string]string
}

var _ hostview.Provider = (*Provider)(nil)

func (p *Provider) ActiveView(context.Context) (hostview.View, bool) {
	if p.View == nil {
		return nil, false
	}
	return p.View, true
}

func (p *Provider) WorkspaceRoot() string { return p.Root }

func (p *Provider) ReadFile(_ context.Context, path string) (string, error) {
	contents, ok := p.Files[path]
	if !ok {
		return "", errors.New("no such file: " + path)
	}
	return contents, nil
}

// View is a settable hostview.View.
type View struct {
	ViewMode entity.ViewMode
	Path     string
	NoFile   bool

	Text    string
	Anchor  *protocol.Position
	Head    *protocol.Position
	Cursor  *protocol.Position
	DOM     *hostview.DOMRange
	Section hostview.SectionIndex
}

var _ hostview.View = (*View)(nil)

func (v *View) Mode() entity.ViewMode { return v.ViewMode }

func (v *View) FilePath() (string, bool) {
	if v.NoFile {
		return "", false
	}
	return v.Path, true
}

func (v *View) SelectedText() string { return v.Text }

func (v *View) Selection() (protocol.Position, protocol.Position, bool) {
	if v.Anchor == nil || v.Head == nil {
		return protocol.Position{}, protocol.Position{}, false
	}
	return *v.Anchor, *v.Head, true
}

func (v *View) CursorPosition() (protocol.Position, bool) {
	if v.Cursor == nil {
		return protocol.Position{}, false
	}
	return *v.Cursor, true
}

func (v *View) DOMSelection() (*hostview.DOMRange, bool) {
	if v.DOM == nil {
		return nil, false
	}
	return v.DOM, true
}

func (v *View) Sections() hostview.SectionIndex { return v.Section }

// Element is a hostview.Node element with attributes and an optional parent.
type Element struct {
	Attrs      map[string]string
	ParentNode hostview.Node
}

var _ hostview.Node = (*Element)(nil)

func (e *Element) IsElement() bool { return true }

func (e *Element) Attribute(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

func (e *Element) Parent() (hostview.Node, bool) {
	if e.ParentNode == nil {
		return nil, false
	}
	return e.ParentNode, true
}

// TextNode is a hostview.Node text node.
type TextNode struct {
	ParentNode hostview.Node
}

var _ hostview.Node = (*TextNode)(nil)

func (n *TextNode) IsElement() bool { return false }

func (n *TextNode) Attribute(string) (string, bool) { return "", false }

func (n *TextNode) Parent() (hostview.Node, bool) {
	if n.ParentNode == nil {
		return nil, false
	}
	return n.ParentNode, true
}

// Sections is a hostview.SectionIndex over a fixed window list.
type Sections struct {
	Windows [][2]int
}

var _ hostview.SectionIndex = (*Sections)(nil)

func (s *Sections) Section(i int) (int, int, bool) {
	if i < 0 || i >= len(s.Windows) {
		return 0, 0, false
	}
	return s.Windows[i][0], s.Windows[i][1], true
}
