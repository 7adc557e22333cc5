// Package fetcher turns a URL into lightweight markdown text.
package fetcher

import (
	"context"
	"errors"
)

// ErrEmptyContent is returned when a page yields no usable text.
var ErrEmptyContent = errors.New("empty content")

// Fetcher returns the page at url rendered as markdown. A nil error always
// comes with non-empty text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}
