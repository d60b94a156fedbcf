// Package diffview renders review diffs for planned file changes.
//
// The diff is a single-hunk prefix/suffix comparison, not a minimal edit script. It is meant as a
// review aid: every changed line is shown, but a move inside the file shows up as delete then insert.
package diffview

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
)

const (
	// DefaultMaxBytes bounds the rendered diff stored on a review session.
	DefaultMaxBytes = 20000

	contextLines = 3
	devNull      = "/dev/null"
	noNewline    = "\\ No newline at end of file\n"
)

// Result holds a rendered diff and its line statistics.
type Result struct {
	Rendered  string
	Truncated bool
	Hunks     int
	Added     int
	Removed   int
}

// Diff renders old -> updated for path with the default size bound. A nil old means the file does
// not exist yet.
func Diff(path string, old *string, updated string) Result {
	return DiffLimit(path, old, updated, DefaultMaxBytes)
}

// DiffLimit is Diff with an explicit bound on the rendered length. maxBytes <= 0 disables the bound.
func DiffLimit(path string, old *string, updated string, maxBytes int) Result {
	if old != nil && *old == updated {
		return Result{}
	}

	origName := devNull
	var a []string
	if old != nil {
		origName = "a/" + path
		a = splitLines(*old)
	}
	b := splitLines(updated)
	newName := "b/" + path

	if len(a) == 0 && len(b) == 0 {
		// new empty file, nothing to show below the headers
		return Result{Rendered: fmt.Sprintf("--- %s\n+++ %s\n", origName, newName)}
	}

	hunk, added, removed := buildHunk(a, b)
	fd := &diff.FileDiff{
		OrigName: origName,
		NewName:  newName,
		Hunks:    []*diff.Hunk{hunk},
	}
	// printing targets an in-memory buffer and only fails on write errors
	out, _ := diff.PrintFileDiff(fd)

	rendered, truncated := truncate(string(out), maxBytes)
	return Result{
		Rendered:  rendered,
		Truncated: truncated,
		Hunks:     1,
		Added:     added,
		Removed:   removed,
	}
}

// Preview renders the review diff for a planned change.
func Preview(change domain.PlannedFileChange, maxBytes int) domain.DiffPreview {
	res := DiffLimit(change.DestinationPath, change.PreviousContent, change.MergedContent, maxBytes)
	return domain.DiffPreview{
		DestinationPath: change.DestinationPath,
		Action:          change.Action,
		RenderedDiff:    res.Rendered,
		WasTruncated:    res.Truncated,
		LinesAdded:      res.Added,
		LinesRemoved:    res.Removed,
	}
}

// splitLines keeps line terminators so a missing final newline compares unequal.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func buildHunk(a, b []string) (*diff.Hunk, int, int) {
	prefix := 0
	for prefix < len(a) && prefix < len(b) && a[prefix] == b[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(a)-prefix && suffix < len(b)-prefix && a[len(a)-1-suffix] == b[len(b)-1-suffix] {
		suffix++
	}

	before := min(contextLines, prefix)
	after := min(contextLines, suffix)
	removed := a[prefix : len(a)-suffix]
	added := b[prefix : len(b)-suffix]

	var body strings.Builder
	writeLines(&body, ' ', a[prefix-before:prefix])
	writeLines(&body, '-', removed)
	writeLines(&body, '+', added)
	writeLines(&body, ' ', a[len(a)-suffix:len(a)-suffix+after])

	origLines := len(removed) + before + after
	newLines := len(added) + before + after
	start := prefix - before

	return &diff.Hunk{
		OrigStartLine: int32(hunkStart(start, origLines)),
		OrigLines:     int32(origLines),
		NewStartLine:  int32(hunkStart(start, newLines)),
		NewLines:      int32(newLines),
		Body:          []byte(body.String()),
	}, len(added), len(removed)
}

// hunkStart follows the unified format: an empty range names the line before it.
func hunkStart(start, count int) int {
	if count == 0 {
		return start
	}
	return start + 1
}

func writeLines(sb *strings.Builder, mark byte, lines []string) {
	for _, line := range lines {
		sb.WriteByte(mark)
		sb.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			sb.WriteString("\n")
			sb.WriteString(noNewline)
		}
	}
}

// truncate cuts s to at most maxBytes, ending on a line boundary.
func truncate(s string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s, false
	}
	cut := strings.LastIndexByte(s[:maxBytes], '\n') + 1
	return s[:cut], true
}
