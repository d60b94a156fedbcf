// Package patchblock merges named, marker-delimited blocks into page content.
//
// Every block kind owns a fixed pair of comment sentinels. The literal strings are an on-disk
// contract: files written by earlier versions must keep matching so replacement stays idempotent.
package patchblock

import (
	"strings"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
)

// StartMarker is the opening sentinel for kind
func StartMarker(kind domain.BlockKind) string {
	return "<!-- " + string(kind) + ":start -->"
}

// EndMarker is the closing sentinel for kind
func EndMarker(kind domain.BlockKind) string {
	return "<!-- " + string(kind) + ":end -->"
}

// Wrap surrounds the block text with its sentinels, one marker per line.
func Wrap(block domain.ContentBlock) string {
	text := strings.TrimRight(block.Text, "\n")
	return StartMarker(block.Kind) + "\n" + text + "\n" + EndMarker(block.Kind)
}

// containsSentinel reports whether text carries any engine sentinel literal.
func containsSentinel(text string) (string, bool) {
	for _, kind := range domain.BlockOrder {
		for _, marker := range []string{StartMarker(kind), EndMarker(kind)} {
			if strings.Contains(text, marker) {
				return marker, true
			}
		}
	}
	return "", false
}
