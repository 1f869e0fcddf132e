package corpus

import (
	"fmt"
	"strings"

	"github.com/FocuswithJustin/versecorpus/core/errors"
)

// indexPath builds paths like versions[0].books[2] from alternating
// field names and indices.
func indexPath(parts ...any) string {
	var sb strings.Builder
	for i := 0; i+1 < len(parts); i += 2 {
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		fmt.Fprintf(&sb, "%s[%d]", parts[i], parts[i+1])
	}
	return sb.String()
}

// Validate checks content rules the parser itself never enforces: names and
// text are non-empty, numbers are positive, unique and ascending. Every
// finding is returned as a *errors.ValidationError.
func Validate(c *Corpus) []error {
	var findings []error
	add := func(path, format string, args ...any) {
		findings = append(findings, errors.NewValidation(path, fmt.Sprintf(format, args...)))
	}

	if c == nil || len(c.Versions) == 0 {
		add("versions", "corpus has no versions")
		return findings
	}

	for i, v := range c.Versions {
		vp := indexPath("versions", i)
		if strings.TrimSpace(v.Name) == "" {
			add(vp, "version name is empty")
		}
		seenBooks := make(map[string]bool)
		for j, b := range v.Books {
			bp := indexPath("versions", i, "books", j)
			if strings.TrimSpace(b.Name) == "" {
				add(bp, "book name is empty")
			}
			if seenBooks[b.Name] {
				add(bp, "duplicate book %q", b.Name)
			}
			seenBooks[b.Name] = true

			prevChapter := 0
			for k, ch := range b.Chapters {
				cp := indexPath("versions", i, "books", j, "chapters", k)
				switch {
				case ch.Number <= 0:
					add(cp, "chapter number %d is not positive", ch.Number)
				case ch.Number == prevChapter:
					add(cp, "duplicate chapter %d in %s", ch.Number, b.Name)
				case ch.Number < prevChapter:
					add(cp, "chapter %d follows chapter %d", ch.Number, prevChapter)
				}
				prevChapter = ch.Number

				prevVerse := 0
				for l, vs := range ch.Verses {
					p := indexPath("versions", i, "books", j, "chapters", k, "verses", l)
					ref := fmt.Sprintf("%s %d:%d", b.Name, ch.Number, vs.Number)
					switch {
					case vs.Number <= 0:
						add(p, "verse number %d is not positive", vs.Number)
					case vs.Number == prevVerse:
						add(p, "duplicate verse %s", ref)
					case vs.Number < prevVerse:
						add(p, "verse %s follows verse %d", ref, prevVerse)
					}
					prevVerse = vs.Number
					if strings.TrimSpace(vs.Text) == "" {
						add(p, "verse %s has no text", ref)
					}
				}
			}
		}
	}
	return findings
}
