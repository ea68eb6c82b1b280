package kb

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"
)

const titleBoost = 1.5

type indexed struct {
	chunk  Chunk
	terms  map[string]int
	title  map[string]bool
	length int
}

// Index is an in-memory TF-IDF index over chunks. It is not safe for
// concurrent use; KnowledgeBase guards it.
type Index struct {
	docs []indexed
	df   map[string]int
	ids  map[string]bool
}

func NewIndex() *Index {
	return &Index{df: make(map[string]int), ids: make(map[string]bool)}
}

// Has reports whether a chunk with id is indexed.
func (x *Index) Has(id string) bool { return x.ids[id] }

func (x *Index) Len() int { return len(x.docs) }

// Add indexes c unless its ID is already present.
func (x *Index) Add(c Chunk) bool {
	if x.ids[c.ID] {
		return false
	}
	tokens := tokenize(c.Content)
	d := indexed{chunk: c, terms: make(map[string]int), title: make(map[string]bool), length: len(tokens)}
	for _, t := range tokens {
		d.terms[t]++
	}
	for t := range d.terms {
		x.df[t]++
	}
	for _, t := range tokenize(c.Title) {
		d.title[t] = true
	}
	x.ids[c.ID] = true
	x.docs = append(x.docs, d)
	return true
}

// Search scores every chunk against query and returns the best k with a
// positive score. Term frequency is normalized by chunk length so long
// chunks do not win by size alone.
func (x *Index) Search(query string, k int) []Hit {
	terms := unique(tokenize(query))
	if len(terms) == 0 || len(x.docs) == 0 {
		return nil
	}
	n := float64(len(x.docs))

	var hits []Hit
	for _, d := range x.docs {
		var score float64
		for _, t := range terms {
			tf := d.terms[t]
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + n/float64(x.df[t]))
			s := float64(tf) / float64(d.length) * idf
			if d.title[t] {
				s *= titleBoost
			}
			score += s
		}
		if score > 0 {
			hits = append(hits, Hit{Chunk: d.chunk, Score: score})
		}
	}

	slices.SortStableFunc(hits, func(a, b Hit) int { return cmp.Compare(b.Score, a.Score) })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "is": true, "it": true, "its": true,
	"this": true, "that": true, "are": true, "was": true, "were": true, "be": true,
	"have": true, "has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "can": true,
	"not": true, "no": true, "how": true, "what": true, "when": true, "where": true,
	"who": true, "which": true, "why": true, "all": true, "some": true, "very": true,
	"about": true, "into": true, "you": true, "your": true, "we": true, "our": true,
	"i": true, "me": true, "my": true, "as": true, "so": true, "if": true,
	// Spanish
	"el": true, "la": true, "los": true, "las": true, "un": true, "una": true,
	"de": true, "del": true, "que": true, "y": true, "en": true, "por": true,
	"para": true, "con": true, "es": true, "se": true, "al": true, "lo": true,
	"como": true, "qué": true, "cómo": true,
}

func tokenize(s string) []string {
	var tokens []string
	for _, word := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		if len([]rune(word)) < 2 || stopWords[word] {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func unique(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := ss[:0:0]
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
