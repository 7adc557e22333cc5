package contract

import (
	"regexp"
)

var (
	amountPattern = regexp.MustCompile(`(\$|€|¥|£|RMB|USD)\s?\d+(,\d{3})*(\.\d+)?`)
	datePattern   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
)

const (
	AmountPlaceholder = "[AMOUNT]"
	DatePlaceholder   = "[DATE]"
)

// Desensitize masks currency amounts and ISO dates before text leaves the
// process.
func Desensitize(text string) string {
	text = amountPattern.ReplaceAllLiteralString(text, AmountPlaceholder)
	return datePattern.ReplaceAllLiteralString(text, DatePlaceholder)
}

// Chunk splits text into contiguous pieces of at most size characters.
func Chunk(text string, size int) []string {
	if text == "" || size <= 0 {
		return nil
	}

	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
