package corpus

import (
	"cmp"
	"slices"
)

// Sort orders chapters within each book and verses within each chapter by
// number, ascending. The sort is stable, so equal numbers keep their
// insertion order. Book order is left as discovered.
func Sort(c *Corpus) {
	if c == nil {
		return
	}
	for _, v := range c.Versions {
		for _, b := range v.Books {
			slices.SortStableFunc(b.Chapters, func(x, y *Chapter) int {
				return cmp.Compare(x.Number, y.Number)
			})
			for _, ch := range b.Chapters {
				slices.SortStableFunc(ch.Verses, func(x, y *Verse) int {
					return cmp.Compare(x.Number, y.Number)
				})
			}
		}
	}
}

// IsSorted reports whether every chapter and verse list is in ascending order.
func IsSorted(c *Corpus) bool {
	if c == nil {
		return true
	}
	for _, v := range c.Versions {
		for _, b := range v.Books {
			if !slices.IsSortedFunc(b.Chapters, func(x, y *Chapter) int {
				return cmp.Compare(x.Number, y.Number)
			}) {
				return false
			}
			for _, ch := range b.Chapters {
				if !slices.IsSortedFunc(ch.Verses, func(x, y *Verse) int {
					return cmp.Compare(x.Number, y.Number)
				}) {
					return false
				}
			}
		}
	}
	return true
}
