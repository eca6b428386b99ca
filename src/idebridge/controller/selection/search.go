package selection

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.lsp.dev/protocol"

	"github.com/vaulterm/idebridge/src/idebridge/gateway/hostview"
)

// _contextChars bounds the preceding-text disambiguator used when the same
// snippet occurs more than once in the document.
const _contextChars = 30

const _frontmatterPrefix = "---\n"

// resolveBySearch locates the selected text inside the document source,
// trying progressively looser techniques: the source section matching the
// selection's rendered block, an exact match qualified by preceding context,
// the first exact occurrence anywhere, and finally a fuzzy match.
func resolveBySearch(source string, dom *hostview.DOMRange, sections hostview.SectionIndex) (protocol.Range, bool) {
	sel := dom.Text
	if sel == "" {
		return protocol.Range{}, false
	}

	if off, ok := searchSection(source, dom, sections); ok {
		return offsetsToRange(source, off, len(sel)), true
	}

	if preceding := dom.PrecedingText; preceding != "" {
		if len(preceding) > _contextChars {
			preceding = preceding[len(preceding)-_contextChars:]
		}
		if off := strings.Index(source, preceding+sel); off >= 0 {
			return offsetsToRange(source, off+len(preceding), len(sel)), true
		}
	}

	if off := strings.Index(source, sel); off >= 0 {
		return offsetsToRange(source, off, len(sel)), true
	}

	if off, ok := searchFuzzy(source, sel); ok {
		return offsetsToRange(source, off, len(sel)), true
	}

	return protocol.Range{}, false
}

// searchSection scopes the exact match to the source section backing the
// selection's rendered block. Rendered blocks do not include a leading
// frontmatter section, so the block index shifts by one when the document
// has one.
func searchSection(source string, dom *hostview.DOMRange, sections hostview.SectionIndex) (int, bool) {
	if sections == nil || dom.BlockIndex < 0 {
		return 0, false
	}
	idx := dom.BlockIndex
	if strings.HasPrefix(source, _frontmatterPrefix) {
		idx++
	}
	start, end, ok := sections.Section(idx)
	if !ok || start < 0 || end < start {
		return 0, false
	}
	if end > len(source) {
		end = len(source)
	}
	if start > len(source) {
		return 0, false
	}
	off := strings.Index(source[start:end], dom.Text)
	if off < 0 {
		return 0, false
	}
	return start + off, true
}

// searchFuzzy tolerates small rendering differences between the captured
// text and the source. Patterns longer than the matcher's bit width make it
// panic, so the pattern is truncated first; the reported length still covers
// the full selection.
func searchFuzzy(source, sel string) (int, bool) {
	dmp := diffmatchpatch.New()
	pattern := sel
	if len(pattern) > dmp.MatchMaxBits {
		pattern = pattern[:dmp.MatchMaxBits]
	}
	off := dmp.MatchMain(source, pattern, 0)
	if off < 0 {
		return 0, false
	}
	return off, true
}

func offsetsToRange(source string, off, length int) protocol.Range {
	return protocol.Range{
		Start: offsetToPosition(source, off),
		End:   offsetToPosition(source, off+length),
	}
}

func offsetToPosition(source string, off int) protocol.Position {
	if off > len(source) {
		off = len(source)
	}
	line, lineStart := 0, 0
	for i := 0; i < off; i++ {
		if source[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	return protocol.Position{Line: uint32(line), Character: uint32(off - lineStart)}
}
