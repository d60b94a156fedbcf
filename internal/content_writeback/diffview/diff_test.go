package diffview

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sourcegraph/go-diff/diff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
)

func numbered(from, to int) string {
	var sb strings.Builder
	for i := from; i <= to; i++ {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	return sb.String()
}

func TestDiff_Identical(t *testing.T) {
	old := "<main>\n</main>\n"
	res := Diff("index.html", &old, old)

	assert.Equal(t, Result{}, res)
}

func TestDiff_MiddleChangeWithContext(t *testing.T) {
	old := numbered(1, 10)
	updated := strings.Replace(old, "5\n", "five\n", 1)

	res := Diff("src/pages/index.astro", &old, updated)

	want := "--- a/src/pages/index.astro\n" +
		"+++ b/src/pages/index.astro\n" +
		"@@ -2,7 +2,7 @@\n" +
		" 2\n 3\n 4\n-5\n+five\n 6\n 7\n 8\n"
	assert.Equal(t, want, res.Rendered)
	assert.Equal(t, 1, res.Hunks)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Removed)
	assert.False(t, res.Truncated)
}

func TestDiff_NewFile(t *testing.T) {
	res := Diff("about.html", nil, "<p>hi</p>\n<p>there</p>\n")

	assert.Equal(t, "--- /dev/null\n+++ b/about.html\n@@ -0,0 +1,2 @@\n+<p>hi</p>\n+<p>there</p>\n", res.Rendered)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, 0, res.Removed)
	assert.Equal(t, 1, res.Hunks)
}

func TestDiff_NewEmptyFile(t *testing.T) {
	res := Diff("blank.md", nil, "")

	assert.Equal(t, "--- /dev/null\n+++ b/blank.md\n", res.Rendered)
	assert.Zero(t, res.Hunks)
}

func TestDiff_InsertAtStartAndEnd(t *testing.T) {
	old := "b\nc\n"

	t.Run("start", func(t *testing.T) {
		res := Diff("f", &old, "a\nb\nc\n")
		assert.Contains(t, res.Rendered, "@@ -1,2 +1,3 @@\n+a\n b\n c\n")
	})

	t.Run("end", func(t *testing.T) {
		res := Diff("f", &old, "b\nc\nd\n")
		assert.Contains(t, res.Rendered, "@@ -1,2 +1,3 @@\n b\n c\n+d\n")
	})
}

func TestDiff_TrailingNewlineOnly(t *testing.T) {
	old := "a\nb"
	res := Diff("f.md", &old, "a\nb\n")

	assert.Equal(t, "--- a/f.md\n+++ b/f.md\n@@ -1,2 +1,2 @@\n a\n-b\n\\ No newline at end of file\n+b\n", res.Rendered)
	assert.Equal(t, 1, res.Hunks)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 1, res.Removed)
}

func TestDiff_NoNewlineInTrailingContext(t *testing.T) {
	old := "x\nend"
	res := Diff("f", &old, "y\nend")

	assert.True(t, strings.HasSuffix(res.Rendered, " end\n\\ No newline at end of file\n"))
	assert.Equal(t, 1, strings.Count(res.Rendered, "No newline"))
}

func TestDiff_HunkHeaderParses(t *testing.T) {
	old := numbered(1, 40)
	updated := strings.Replace(old, "20\n21\n", "twenty\n", 1)

	res := Diff("content/page.md", &old, updated)

	parsed, err := diff.ParseFileDiff([]byte(res.Rendered))
	require.NoError(t, err)
	assert.Equal(t, "a/content/page.md", parsed.OrigName)
	assert.Equal(t, "b/content/page.md", parsed.NewName)
	require.Len(t, parsed.Hunks, 1)

	h := parsed.Hunks[0]
	assert.EqualValues(t, 17, h.OrigStartLine)
	assert.EqualValues(t, 8, h.OrigLines)
	assert.EqualValues(t, 17, h.NewStartLine)
	assert.EqualValues(t, 7, h.NewLines)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, 2, res.Removed)
}

func TestDiffLimit_TruncatesAtLineBoundary(t *testing.T) {
	updated := numbered(1, 200)
	full := DiffLimit("big.html", nil, updated, 0)
	require.False(t, full.Truncated)

	res := DiffLimit("big.html", nil, updated, 100)

	assert.True(t, res.Truncated)
	assert.LessOrEqual(t, len(res.Rendered), 100)
	assert.True(t, strings.HasSuffix(res.Rendered, "\n"))
	assert.True(t, strings.HasPrefix(full.Rendered, res.Rendered))
	// stats describe the whole change even when the text is cut
	assert.Equal(t, 200, res.Added)
	assert.Equal(t, full.Added, res.Added)
}

func TestDiff_Deterministic(t *testing.T) {
	old := numbered(1, 30)
	updated := strings.Replace(old, "12\n", "twelve\n", 1)

	first := Diff("p", &old, updated)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Diff("p", &old, updated))
	}
}

func TestPreview(t *testing.T) {
	prev := "<main>\n</main>\n"
	change := domain.PlannedFileChange{
		DestinationPath: "src/pages/index.astro",
		Action:          domain.ActionUpdate,
		PreviousContent: &prev,
		MergedContent:   "<main>\n<p>x</p>\n</main>\n",
	}

	p := Preview(change, DefaultMaxBytes)

	assert.Equal(t, change.DestinationPath, p.DestinationPath)
	assert.Equal(t, domain.ActionUpdate, p.Action)
	assert.Equal(t, 1, p.LinesAdded)
	assert.Equal(t, 0, p.LinesRemoved)
	assert.Contains(t, p.RenderedDiff, "+<p>x</p>\n")
}
