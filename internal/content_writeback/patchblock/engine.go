package patchblock

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
)

var (
	ErrEmbeddedSentinel   = errors.New("block text contains a sentinel marker")
	ErrUnknownBlockKind   = errors.New("unknown block kind")
	ErrDuplicateBlockKind = errors.New("duplicate block kind")
)

// DefaultTemplate is the base used when a page has no existing file.
const DefaultTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
</head>
<body>
  <main>
  </main>
</body>
</html>
`

// insertion anchors, most specific first
var closingAnchors = []string{"</main>", "</body>"}

var placeholderRe = regexp.MustCompile(`(?i)\[(?:TODO|INSERT|PLACEHOLDER|VERIFY|FILL[ _-]?IN|ADD)\b[^\]]*\]`)

// ApplyBlock merges block into existing content, or into DefaultTemplate when existing is nil.
func ApplyBlock(existing *string, block domain.ContentBlock) (string, error) {
	if err := checkBlock(block); err != nil {
		return "", err
	}

	base := DefaultTemplate
	if existing != nil {
		base = *existing
	}
	return merge(base, block), nil
}

func checkBlock(block domain.ContentBlock) error {
	if !block.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownBlockKind, block.Kind)
	}
	if marker, found := containsSentinel(block.Text); found {
		return fmt.Errorf("%w: %s block contains %q", ErrEmbeddedSentinel, block.Kind, marker)
	}
	return nil
}

func merge(content string, block domain.ContentBlock) string {
	start, end := StartMarker(block.Kind), EndMarker(block.Kind)
	wrapped := Wrap(block)

	if si, ei, ok := span(content, start, end); ok {
		return content[:si] + wrapped + content[ei:]
	}
	return insert(content, wrapped)
}

// span locates the first end marker preceded by a start marker and pairs it with the
// nearest such start. Orphan starts and leading ends fall outside the span.
func span(content, start, end string) (int, int, bool) {
	from := 0
	for {
		rel := strings.Index(content[from:], end)
		if rel < 0 {
			return 0, 0, false
		}
		ei := from + rel
		if si := strings.LastIndex(content[:ei], start); si >= 0 {
			return si, ei + len(end), true
		}
		from = ei + len(end)
	}
}

// insert places wrapped before the last closing anchor, or appends it.
func insert(content, wrapped string) string {
	for _, anchor := range closingAnchors {
		i := strings.LastIndex(content, anchor)
		if i < 0 {
			continue
		}

		// keep the anchor's indentation with the anchor
		lineStart := strings.LastIndex(content[:i], "\n") + 1
		if strings.TrimSpace(content[lineStart:i]) == "" {
			i = lineStart
		}

		prefix := content[:i]
		if prefix != "" && !strings.HasSuffix(prefix, "\n") {
			prefix += "\n"
		}
		return prefix + wrapped + "\n" + content[i:]
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + wrapped + "\n"
}

// Result is the outcome of applying a page's blocks
type Result struct {
	Content             string
	RequiresHumanReview bool
	Notes               []string
}

// ApplyBlocks applies blocks in domain.BlockOrder regardless of input order, so any subset of
// kinds produces byte-identical output. A kind may appear at most once.
func ApplyBlocks(existing *string, blocks []domain.ContentBlock) (Result, error) {
	byKind := make(map[domain.BlockKind]domain.ContentBlock, len(blocks))
	for _, b := range blocks {
		if err := checkBlock(b); err != nil {
			return Result{}, err
		}
		if _, dup := byKind[b.Kind]; dup {
			return Result{}, fmt.Errorf("%w: %s", ErrDuplicateBlockKind, b.Kind)
		}
		byKind[b.Kind] = b
	}

	content := DefaultTemplate
	if existing != nil {
		content = *existing
	}

	var res Result
	for _, kind := range domain.BlockOrder {
		b, ok := byKind[kind]
		if !ok {
			continue
		}
		content = merge(content, b)

		if found := UnresolvedPlaceholders(b.Text); len(found) > 0 {
			res.RequiresHumanReview = true
			res.Notes = append(res.Notes, fmt.Sprintf("%s block has unresolved placeholders: %s", kind, strings.Join(found, ", ")))
		}
	}
	res.Content = content
	return res, nil
}

// UnresolvedPlaceholders returns the bracketed instruction tokens left in generated text.
func UnresolvedPlaceholders(text string) []string {
	return placeholderRe.FindAllString(text, -1)
}
