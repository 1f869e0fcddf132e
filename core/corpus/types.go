// Package corpus holds the versions → books → chapters → verses tree that
// every parser, format and serializer in versecorpus works on.
package corpus

// Corpus is the top-level container produced by one parse run.
type Corpus struct {
	Versions []*Version `json:"versions"`
}

// Version is one named translation.
type Version struct {
	Name  string  `json:"name"`
	Books []*Book `json:"books"`
}

// Book keeps its chapters in the order the sorter leaves them.
// Books themselves stay in discovery order.
type Book struct {
	Name     string     `json:"name"`
	Chapters []*Chapter `json:"chapters"`
}

// Chapter is a numbered chapter within a book.
type Chapter struct {
	Number int      `json:"number"`
	Verses []*Verse `json:"verses"`
}

// Verse is a numbered verse. Text may be empty.
type Verse struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// New returns a corpus holding a single empty version.
func New(versionName string) *Corpus {
	return &Corpus{Versions: []*Version{{Name: versionName}}}
}

// Version returns the version with the given name, or nil.
func (c *Corpus) Version(name string) *Version {
	if c == nil {
		return nil
	}
	for _, v := range c.Versions {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Book returns the book with the given name, or nil.
func (v *Version) Book(name string) *Book {
	for _, b := range v.Books {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// FindOrCreateBook returns the named book, appending a new one when it has not
// been seen yet. The second result reports whether the book was created.
func (v *Version) FindOrCreateBook(name string) (*Book, bool) {
	if b := v.Book(name); b != nil {
		return b, false
	}
	b := &Book{Name: name}
	v.Books = append(v.Books, b)
	return b, true
}

// Chapter returns the chapter with the given number, or nil.
func (b *Book) Chapter(n int) *Chapter {
	for _, ch := range b.Chapters {
		if ch.Number == n {
			return ch
		}
	}
	return nil
}

// FindOrCreateChapter returns the numbered chapter, appending a new one when
// needed. The second result reports whether the chapter was created.
func (b *Book) FindOrCreateChapter(n int) (*Chapter, bool) {
	if ch := b.Chapter(n); ch != nil {
		return ch, false
	}
	ch := &Chapter{Number: n}
	b.Chapters = append(b.Chapters, ch)
	return ch, true
}

// Verse returns the first verse with the given number, or nil.
func (ch *Chapter) Verse(n int) *Verse {
	for _, v := range ch.Verses {
		if v.Number == n {
			return v
		}
	}
	return nil
}

// AddVerse appends a verse and returns it.
func (ch *Chapter) AddVerse(n int, text string) *Verse {
	v := &Verse{Number: n, Text: text}
	ch.Verses = append(ch.Verses, v)
	return v
}

// Counts summarizes the size of a corpus.
type Counts struct {
	Versions int `json:"versions"`
	Books    int `json:"books"`
	Chapters int `json:"chapters"`
	Verses   int `json:"verses"`
}

// Count walks the corpus and tallies every level.
func Count(c *Corpus) Counts {
	var n Counts
	if c == nil {
		return n
	}
	n.Versions = len(c.Versions)
	for _, v := range c.Versions {
		n.Books += len(v.Books)
		for _, b := range v.Books {
			n.Chapters += len(b.Chapters)
			for _, ch := range b.Chapters {
				n.Verses += len(ch.Verses)
			}
		}
	}
	return n
}

// Walk calls fn for every verse in document order.
func Walk(c *Corpus, fn func(v *Version, b *Book, ch *Chapter, vs *Verse)) {
	if c == nil {
		return
	}
	for _, v := range c.Versions {
		for _, b := range v.Books {
			for _, ch := range b.Chapters {
				for _, vs := range ch.Verses {
					fn(v, b, ch, vs)
				}
			}
		}
	}
}
