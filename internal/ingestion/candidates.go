package ingestion

import (
	"net/url"

	"github.com/riskintel/backend/internal/oracle"
)

// Candidate is one article to extract. Markdown is set when the page was
// already fetched as the source itself.
type Candidate struct {
	URL      string
	Markdown string
}

// SelectCandidates resolves discovered links against the source URL, drops
// anything already stored, and keeps at most limit new ones. An article page
// yields the source itself when it is not yet stored.
func SelectCandidates(sourceURL, markdown string, d Discovery, existing map[string]struct{}, limit int) []Candidate {
	if d.PageType != oracle.PageList || len(d.Links) == 0 {
		if _, ok := existing[sourceURL]; ok {
			return nil
		}
		return []Candidate{{URL: sourceURL, Markdown: markdown}}
	}

	base, err := url.Parse(sourceURL)
	if err != nil {
		base = nil
	}

	seen := make(map[string]struct{}, len(d.Links))
	var out []Candidate
	for _, link := range d.Links {
		full := resolve(base, link)
		if _, ok := existing[full]; ok {
			continue
		}
		if _, ok := seen[full]; ok {
			continue
		}
		seen[full] = struct{}{}
		out = append(out, Candidate{URL: full})
		if len(out) == limit {
			break
		}
	}
	return out
}

func resolve(base *url.URL, link string) string {
	if base == nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}
