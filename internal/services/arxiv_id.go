package services

import (
	"net/url"
	"strings"
)

// NormalizeArxivID reduces any accepted spelling of an arXiv identifier (bare
// id, "arXiv:" prefix, abs/pdf URL over http or https, URL-encoded forms) to
// the bare id, version suffix included. Input it cannot make sense of is
// returned trimmed but otherwise unchanged.
func NormalizeArxivID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" {
		return id
	}

	// Encoded forms can be nested, e.g. a URL-encoded URL inside a query string.
	for i := 0; i < 3 && strings.Contains(id, "%"); i++ {
		decoded, err := url.QueryUnescape(id)
		if err != nil {
			break
		}
		id = strings.TrimSpace(decoded)
	}

	lower := strings.ToLower(id)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		parsed, err := url.Parse(id)
		if err != nil {
			return id
		}
		fromPath := idFromPath(parsed.Path)
		if fromPath == "" {
			return id
		}
		id = fromPath
	} else if strings.HasPrefix(lower, "arxiv:") {
		id = strings.TrimSpace(id[len("arxiv:"):])
	} else if strings.Contains(id, "/abs/") || strings.Contains(id, "/pdf/") {
		// Scheme-less URL such as "arxiv.org/abs/2106.09685v2".
		path, _, _ := strings.Cut(id, "?")
		path, _, _ = strings.Cut(path, "#")
		if fromPath := idFromPath(path); fromPath != "" {
			id = fromPath
		}
	}

	return id
}

func idFromPath(path string) string {
	for _, marker := range []string{"/abs/", "/pdf/"} {
		if idx := strings.Index(path, marker); idx >= 0 {
			id := strings.Trim(path[idx+len(marker):], "/")
			return strings.TrimSuffix(id, ".pdf")
		}
	}
	return ""
}
