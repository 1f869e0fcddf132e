package parser

import (
	"maps"
	"slices"
)

// DiscoverBooks returns the sorted, de-duplicated book names the grammar
// finds in heading or inline reference positions. It is used to build a
// Books list for SplitHeadingGrammar from a first pass over a dump, so
// every line is classified as if no chapter were open: a heading such as
// "1 Samuel 1" would otherwise lose the tie to a verse start.
func DiscoverBooks(text string, g ReferenceGrammar) []string {
	if g == nil {
		g = &SplitHeadingGrammar{}
	}
	seen := make(map[string]bool)
	for line := range Lines(text, LineOptions{}) {
		if c := g.Classify(line, MatchState{}); c.Book != "" {
			seen[c.Book] = true
		}
	}
	return slices.Sorted(maps.Keys(seen))
}
