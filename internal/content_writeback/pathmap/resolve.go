package pathmap

import (
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"unicode"

	"github.com/GoSim-25-26J-441/content-writeback/internal/content_writeback/domain"
)

// MaxPathLength bounds the normalized URL path accepted by Resolve
const MaxPathLength = 200

// Reason classifies why a URL could not be mapped to a file
type Reason string

const (
	ReasonTraversal        Reason = "traversal"
	ReasonUnsafeCharacters Reason = "unsafe-characters"
	ReasonTooLong          Reason = "too-long"
	ReasonUnparsable       Reason = "unparsable"
	ReasonCollision        Reason = "collision"
)

// UnsafePathError rejects a single URL. It never aborts a batch.
type UnsafePathError struct {
	URL    string
	Reason Reason
	Detail string
}

func (e *UnsafePathError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("unsafe path %q: %s (%s)", e.URL, e.Reason, e.Detail)
	}
	return fmt.Sprintf("unsafe path %q: %s", e.URL, e.Reason)
}

// Resolve maps a URL to its destination file under layout.
func Resolve(rawURL string, layout Layout) (domain.PathMapping, error) {
	if err := layout.Validate(); err != nil {
		return domain.PathMapping{}, err
	}
	return resolve(rawURL, layout)
}

func resolve(rawURL string, layout Layout) (domain.PathMapping, error) {
	normalized, segments, err := normalize(rawURL)
	if err != nil {
		return domain.PathMapping{}, err
	}

	dest := destination(segments, layout)
	return domain.PathMapping{
		SourceURL:       rawURL,
		NormalizedPath:  normalized,
		DestinationPath: dest,
		FileKind:        layout.FileExtension(),
		IsIndexFile:     path.Base(dest) == layout.IndexFileName(),
	}, nil
}

// NormalizePath returns the cleaned URL path: trailing slash stripped (except root),
// repeated slashes collapsed, case preserved.
func NormalizePath(rawURL string) (string, error) {
	normalized, _, err := normalize(rawURL)
	return normalized, err
}

func normalize(rawURL string) (string, []string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", nil, &UnsafePathError{URL: rawURL, Reason: ReasonUnparsable, Detail: "empty url"}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", nil, &UnsafePathError{URL: rawURL, Reason: ReasonUnparsable, Detail: err.Error()}
	}
	if u.Opaque != "" {
		return "", nil, &UnsafePathError{URL: rawURL, Reason: ReasonUnparsable, Detail: "opaque url"}
	}

	segments := make([]string, 0, 8)
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == "" {
			continue
		}
		if seg == "." || seg == ".." {
			return "", nil, &UnsafePathError{URL: rawURL, Reason: ReasonTraversal}
		}
		if err := checkSegment(seg); err != "" {
			return "", nil, &UnsafePathError{URL: rawURL, Reason: ReasonUnsafeCharacters, Detail: err}
		}
		segments = append(segments, seg)
	}

	normalized := "/" + strings.Join(segments, "/")
	if len(normalized) > MaxPathLength {
		return "", nil, &UnsafePathError{
			URL:    rawURL,
			Reason: ReasonTooLong,
			Detail: fmt.Sprintf("%d > %d", len(normalized), MaxPathLength),
		}
	}
	return normalized, segments, nil
}

// checkSegment returns a description of the first unsafe character, or "".
func checkSegment(seg string) string {
	if strings.HasPrefix(seg, ".") {
		return "hidden path segment"
	}
	for _, r := range seg {
		switch {
		case r == '-', r == '_', r == '.', r == '~':
		case unicode.IsLetter(r), unicode.IsDigit(r):
		default:
			return fmt.Sprintf("character %q", r)
		}
	}
	return ""
}

func destination(segments []string, layout Layout) string {
	ext := layout.FileExtension()

	var rel string
	switch {
	case len(segments) == 0:
		rel = layout.IndexFileName()
	case layout.Routes == RoutesFlat:
		rel = strings.Join(segments, "-") + "." + ext
	default:
		rel = path.Join(path.Join(segments...), layout.IndexFileName())
	}

	if layout.Kind == KindPages && layout.SourceDir != "" {
		return path.Join(strings.Trim(layout.SourceDir, "/"), rel)
	}
	return rel
}

// Failure is a per-URL rejection collected by ResolveBatch
type Failure struct {
	URL    string `json:"url"`
	Reason Reason `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// BatchResult separates mapped URLs from rejected ones
type BatchResult struct {
	Mappings []domain.PathMapping `json:"mappings"`
	Failures []Failure            `json:"failures"`
}

// ResolveBatch maps urls in lexicographic order so the result does not depend on input order.
// Only an invalid layout returns an error. A URL whose destination is already claimed by an
// earlier URL fails with ReasonCollision.
func ResolveBatch(urls []string, layout Layout) (BatchResult, error) {
	if err := layout.Validate(); err != nil {
		return BatchResult{}, err
	}

	sorted := append([]string(nil), urls...)
	sort.Strings(sorted)

	res := BatchResult{
		Mappings: make([]domain.PathMapping, 0, len(sorted)),
		Failures: make([]Failure, 0),
	}
	claimed := make(map[string]string, len(sorted))

	for i, u := range sorted {
		if i > 0 && sorted[i-1] == u {
			continue
		}

		m, err := resolve(u, layout)
		if err != nil {
			f := Failure{URL: u, Reason: ReasonUnparsable, Detail: err.Error()}
			if upe, ok := err.(*UnsafePathError); ok {
				f.Reason = upe.Reason
				f.Detail = upe.Detail
			}
			res.Failures = append(res.Failures, f)
			continue
		}

		if owner, taken := claimed[m.DestinationPath]; taken {
			res.Failures = append(res.Failures, Failure{
				URL:    u,
				Reason: ReasonCollision,
				Detail: fmt.Sprintf("%s already mapped from %s", m.DestinationPath, owner),
			})
			continue
		}
		claimed[m.DestinationPath] = u
		res.Mappings = append(res.Mappings, m)
	}

	return res, nil
}
