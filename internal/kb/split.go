package kb

import (
	"strings"
	"unicode/utf8"
)

// separators are tried in order; the empty separator splits into runes.
var separators = []string{"\n\n", "\n", " ", ""}

// Split breaks text into chunks of at most size runes. Neighbouring chunks
// share up to overlap runes. Paragraph breaks are preferred over line
// breaks, line breaks over spaces.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return splitRecursive(text, separators, size, overlap)
}

func splitRecursive(text string, seps []string, size, overlap int) []string {
	sep, rest := seps[len(seps)-1], []string(nil)
	for i, s := range seps {
		if s == "" || strings.Contains(text, s) {
			sep, rest = s, seps[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		pieces = strings.Split(text, sep)
	}

	var out, small []string
	for _, p := range pieces {
		if utf8.RuneCountInString(p) < size {
			small = append(small, p)
			continue
		}
		if len(small) > 0 {
			out = append(out, merge(small, sep, size, overlap)...)
			small = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
		} else {
			out = append(out, splitRecursive(p, rest, size, overlap)...)
		}
	}
	if len(small) > 0 {
		out = append(out, merge(small, sep, size, overlap)...)
	}
	return out
}

// merge joins pieces with sep into chunks no longer than size, carrying the
// tail of each chunk into the next as overlap.
func merge(pieces []string, sep string, size, overlap int) []string {
	sepLen := utf8.RuneCountInString(sep)
	var (
		out     []string
		current []string
		total   int
	)
	joinedLen := func(extra int) int {
		if len(current) == 0 {
			return extra
		}
		return total + sepLen + extra
	}

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if joinedLen(n) > size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
				out = append(out, doc)
			}
			for len(current) > 0 && (total > overlap || joinedLen(n) > size) {
				total -= utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		total = joinedLen(n)
		current = append(current, p)
	}
	if doc := strings.TrimSpace(strings.Join(current, sep)); doc != "" {
		out = append(out, doc)
	}
	return out
}
