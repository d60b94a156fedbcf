package planner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/patchblock"
	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/pathmap"
)

func astro(t *testing.T) pathmap.Layout {
	t.Helper()
	l, err := pathmap.Preset("astro", pathmap.RoutesNested)
	require.NoError(t, err)
	return l
}

func sampleTargets() []domain.TargetPage {
	return []domain.TargetPage{
		{
			URL:    "https://x.test/",
			Blocks: []domain.ContentBlock{{Kind: domain.BlockFAQ, Text: "<dl><dt>Open?</dt><dd>Yes</dd></dl>"}},
			Notes:  []string{"high priority"},
		},
		{
			URL:    "https://x.test/about",
			Blocks: []domain.ContentBlock{{Kind: domain.BlockMeta, Text: `<meta name="description" content="About">`}},
		},
		{
			URL:    "https://x.test/contact",
			Blocks: []domain.ContentBlock{{Kind: domain.BlockAnswerCapsule, Text: "<p>Call us.</p>"}},
		},
	}
}

func existingFor(t *testing.T, targets []domain.TargetPage) map[string]string {
	t.Helper()
	base := "<main>\n</main>\n"
	contact, err := patchblock.ApplyBlocks(&base, targets[2].Blocks)
	require.NoError(t, err)

	return map[string]string{
		"src/pages/index.astro":         base,
		"src/pages/contact/index.astro": contact.Content,
	}
}

func TestPlanChanges_Actions(t *testing.T) {
	targets := sampleTargets()
	existing := existingFor(t, targets)

	res, err := PlanChanges(targets, astro(t), existing, Options{})
	require.NoError(t, err)

	require.Len(t, res.PlannedChanges, 3)
	require.Len(t, res.DiffPreviews, 3)
	assert.Empty(t, res.PathErrors)
	assert.Empty(t, res.BlockErrors)

	about, contact, root := res.PlannedChanges[0], res.PlannedChanges[1], res.PlannedChanges[2]

	assert.Equal(t, "src/pages/about/index.astro", about.DestinationPath)
	assert.Equal(t, domain.ActionCreate, about.Action)
	assert.Nil(t, about.PreviousContent)
	assert.Contains(t, about.MergedContent, "<!DOCTYPE html>")
	assert.Equal(t, []string{"creates new file src/pages/about/index.astro from the default template"}, about.ReviewNotes)

	assert.Equal(t, "src/pages/contact/index.astro", contact.DestinationPath)
	assert.Equal(t, domain.ActionNoOp, contact.Action)
	require.NotNil(t, contact.PreviousContent)
	assert.Equal(t, *contact.PreviousContent, contact.MergedContent)
	assert.Empty(t, contact.ReviewNotes)

	assert.Equal(t, "src/pages/index.astro", root.DestinationPath)
	assert.Equal(t, domain.ActionUpdate, root.Action)
	assert.Equal(t, "https://x.test/", root.SourceURL)
	assert.Equal(t, []string{"high priority"}, root.ReviewNotes)

	for i, p := range res.DiffPreviews {
		assert.Equal(t, res.PlannedChanges[i].DestinationPath, p.DestinationPath)
		assert.Equal(t, res.PlannedChanges[i].Action, p.Action)
	}
	assert.Empty(t, res.DiffPreviews[1].RenderedDiff)
	assert.Contains(t, res.DiffPreviews[0].RenderedDiff, "--- /dev/null\n")
	assert.Contains(t, res.DiffPreviews[2].RenderedDiff, "+<!-- faq:start -->\n")
}

func TestPlanChanges_InputOrderIndependent(t *testing.T) {
	targets := sampleTargets()
	existing := existingFor(t, targets)

	first, err := PlanChanges(targets, astro(t), existing, Options{})
	require.NoError(t, err)

	reversed := []domain.TargetPage{targets[2], targets[0], targets[1]}
	second, err := PlanChanges(reversed, astro(t), existing, Options{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPlanChanges_ReplanIsNoOp(t *testing.T) {
	targets := sampleTargets()
	first, err := PlanChanges(targets, astro(t), existingFor(t, targets), Options{})
	require.NoError(t, err)

	applied := make(map[string]string)
	for _, c := range first.PlannedChanges {
		applied[c.DestinationPath] = c.MergedContent
	}

	second, err := PlanChanges(targets, astro(t), applied, Options{})
	require.NoError(t, err)
	for _, c := range second.PlannedChanges {
		assert.Equal(t, domain.ActionNoOp, c.Action, c.DestinationPath)
	}
}

func TestPlanChanges_CollectsFailures(t *testing.T) {
	targets := []domain.TargetPage{
		{URL: "https://x.test/ok", Blocks: []domain.ContentBlock{{Kind: domain.BlockFAQ, Text: "fine"}}},
		{URL: "https://x.test/a/../b", Blocks: []domain.ContentBlock{{Kind: domain.BlockFAQ, Text: "x"}}},
		{URL: "https://x.test/bad", Blocks: []domain.ContentBlock{{Kind: domain.BlockFAQ, Text: "<!-- faq:end -->"}}},
		{URL: "https://x.test/ok", Blocks: []domain.ContentBlock{{Kind: domain.BlockMeta, Text: "again"}}},
		{URL: "https://x.test/empty"},
	}

	res, err := PlanChanges(targets, astro(t), nil, Options{})
	require.NoError(t, err)

	require.Len(t, res.PlannedChanges, 1)
	assert.Equal(t, "src/pages/ok/index.astro", res.PlannedChanges[0].DestinationPath)
	assert.Contains(t, res.PlannedChanges[0].MergedContent, "fine")
	assert.NotContains(t, res.PlannedChanges[0].MergedContent, "again")

	require.Len(t, res.PathErrors, 1)
	assert.Equal(t, pathmap.ReasonTraversal, res.PathErrors[0].Reason)

	require.Len(t, res.BlockErrors, 2)
	assert.Equal(t, "https://x.test/bad", res.BlockErrors[0].URL)
	assert.Equal(t, "src/pages/bad/index.astro", res.BlockErrors[0].DestinationPath)
	assert.True(t, errors.Is(res.BlockErrors[0], patchblock.ErrEmbeddedSentinel))
	assert.Equal(t, "https://x.test/ok", res.BlockErrors[1].URL)
	assert.Equal(t, "duplicate target page", res.BlockErrors[1].Message)
}

func TestPlanChanges_HumanReview(t *testing.T) {
	targets := []domain.TargetPage{{
		URL:    "https://x.test/pricing",
		Blocks: []domain.ContentBlock{{Kind: domain.BlockAnswerCapsule, Text: "From [VERIFY PRICE] per hour."}},
	}}

	res, err := PlanChanges(targets, astro(t), map[string]string{"src/pages/pricing/index.astro": "<main></main>"}, Options{})
	require.NoError(t, err)
	require.Len(t, res.PlannedChanges, 1)

	c := res.PlannedChanges[0]
	assert.True(t, c.RequiresHumanReview)
	require.Len(t, c.ReviewNotes, 1)
	assert.Contains(t, c.ReviewNotes[0], "[VERIFY PRICE]")
}

func TestPlanChanges_DiffBound(t *testing.T) {
	targets := sampleTargets()[1:2]

	res, err := PlanChanges(targets, astro(t), nil, Options{MaxDiffBytes: 64})
	require.NoError(t, err)
	require.Len(t, res.DiffPreviews, 1)
	assert.True(t, res.DiffPreviews[0].WasTruncated)
	assert.LessOrEqual(t, len(res.DiffPreviews[0].RenderedDiff), 64)
}

func TestPlanChanges_InvalidLayout(t *testing.T) {
	_, err := PlanChanges(sampleTargets(), pathmap.Layout{Kind: "cms"}, nil, Options{})
	assert.ErrorIs(t, err, pathmap.ErrInvalidLayout)
}

func TestDestinationPaths(t *testing.T) {
	paths, err := DestinationPaths(sampleTargets(), astro(t))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"src/pages/about/index.astro",
		"src/pages/contact/index.astro",
		"src/pages/index.astro",
	}, paths)
}
