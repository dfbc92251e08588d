// Package trgm implements the trigram similarity used to score free-text import
// references against the catalog. Similarity mirrors PostgreSQL's pg_trgm
// similarity() so the embedded SQLite backend and postgres rank candidates alike.
package trgm

import (
	"sort"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheSize = 8192

// Set is a sorted list of unique trigrams.
type Set []string

// Extractor computes trigram sets, memoising recent inputs. Catalog titles are
// compared against every entry of a batch, so the same strings repeat heavily.
type Extractor struct {
	cache *lru.Cache[string, Set]
}

func NewExtractor(size int) *Extractor {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, _ := lru.New[string, Set](size)
	return &Extractor{cache: cache}
}

var defaultExtractor = NewExtractor(defaultCacheSize)

// Similarity returns |A ∩ B| / |A ∪ B| over the trigram sets of a and b.
func Similarity(a, b string) float64 {
	return defaultExtractor.Similarity(a, b)
}

func (e *Extractor) Similarity(a, b string) float64 {
	return Overlap(e.Trigrams(a), e.Trigrams(b))
}

func (e *Extractor) Trigrams(s string) Set {
	if set, ok := e.cache.Get(s); ok {
		return set
	}
	set := Trigrams(s)
	e.cache.Add(s, set)
	return set
}

// Trigrams splits s into lower-cased alphanumeric words, pads each word with two
// leading blanks and one trailing blank and collects every three rune window.
func Trigrams(s string) Set {
	seen := make(map[string]struct{})
	for _, word := range strings.FieldsFunc(strings.ToLower(s), isSeparator) {
		padded := []rune("  " + word + " ")
		for i := 0; i+3 <= len(padded); i++ {
			seen[string(padded[i:i+3])] = struct{}{}
		}
	}
	set := make(Set, 0, len(seen))
	for g := range seen {
		set = append(set, g)
	}
	sort.Strings(set)
	return set
}

// Overlap is the Jaccard index of two sorted trigram sets; empty input scores 0.
func Overlap(a, b Set) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	common := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			common++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return float64(common) / float64(len(a)+len(b)-common)
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
