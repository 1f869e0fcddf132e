// Package sqlite provides the handler for corpus databases. A database holds
// four tables (versions, books, chapters, verses) linked by id, with a
// position column that preserves document order.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/core/errors"
	csqlite "github.com/FocuswithJustin/versecorpus/core/sqlite"
	"github.com/FocuswithJustin/versecorpus/internal/formats"
	"github.com/FocuswithJustin/versecorpus/internal/formats/base"
)

// Name is the registry key of this format.
const Name = "sqlite"

var magic = []byte("SQLite format 3\x00")

const schema = `
CREATE TABLE versions (
	id       INTEGER PRIMARY KEY,
	name     TEXT NOT NULL,
	position INTEGER NOT NULL
);
CREATE TABLE books (
	id         INTEGER PRIMARY KEY,
	version_id INTEGER NOT NULL REFERENCES versions(id),
	name       TEXT NOT NULL,
	position   INTEGER NOT NULL
);
CREATE TABLE chapters (
	id       INTEGER PRIMARY KEY,
	book_id  INTEGER NOT NULL REFERENCES books(id),
	number   INTEGER NOT NULL,
	position INTEGER NOT NULL
);
CREATE TABLE verses (
	id         INTEGER PRIMARY KEY,
	chapter_id INTEGER NOT NULL REFERENCES chapters(id),
	number     INTEGER NOT NULL,
	position   INTEGER NOT NULL,
	text       TEXT NOT NULL
);
CREATE INDEX verses_by_chapter ON verses(chapter_id, number);
`

const selectAll = `
SELECT v.id, v.name, b.id, b.name, c.id, c.number, vs.number, vs.text
FROM versions v
LEFT JOIN books b ON b.version_id = v.id
LEFT JOIN chapters c ON c.book_id = b.id
LEFT JOIN verses vs ON vs.chapter_id = c.id
ORDER BY v.position, b.position, c.position, vs.position`

// Handler implements formats.Format, formats.Loader and formats.Emitter.
type Handler struct{}

// Register registers this format with the registry.
func Register() {
	formats.Register(&Handler{})
}

func init() {
	Register()
}

// Name implements formats.Format.
func (h *Handler) Name() string { return Name }

// Extensions implements formats.Format.
func (h *Handler) Extensions() []string { return []string{".sqlite", ".sqlite3", ".db"} }

// Detect implements formats.Format. The file header decides; an empty file
// with a database extension is accepted too.
func (h *Handler) Detect(path string, data []byte) bool {
	if bytes.HasPrefix(data, magic) {
		return true
	}
	return len(data) == 0 && base.HasExtension(path, h.Extensions()...)
}

// Load implements formats.Loader by staging data in a temporary file.
func (h *Handler) Load(data []byte, _ formats.LoadOptions) (*corpus.Corpus, error) {
	tmp, err := os.CreateTemp("", "versecorpus-*.sqlite")
	if err != nil {
		return nil, errors.NewIO("create", "", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, errors.NewIO("write", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.NewIO("write", tmp.Name(), err)
	}
	return ReadFile(context.Background(), tmp.Name())
}

// Emit implements formats.Emitter. Every version is written.
func (h *Handler) Emit(c *corpus.Corpus, _ formats.EmitOptions) ([]byte, error) {
	dir, err := os.MkdirTemp("", "versecorpus-*")
	if err != nil {
		return nil, errors.NewIO("create", "", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "corpus.sqlite")
	if err := WriteFile(context.Background(), path, c); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return data, nil
}

// WriteFile stores c in a new database at path, replacing any existing file.
func WriteFile(ctx context.Context, path string, c *corpus.Corpus) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewIO("remove", path, err)
	}
	db, err := csqlite.Open(path)
	if err != nil {
		return errors.NewIO("open", path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.NewIO("create schema", path, err)
	}
	err = csqlite.WithTx(ctx, db, func(tx *sql.Tx) error {
		return insertCorpus(ctx, tx, c)
	})
	if err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

func insertCorpus(ctx context.Context, tx *sql.Tx, c *corpus.Corpus) error {
	if c == nil {
		return nil
	}
	insertVersion, err := tx.PrepareContext(ctx, `INSERT INTO versions (name, position) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer insertVersion.Close()
	insertBook, err := tx.PrepareContext(ctx, `INSERT INTO books (version_id, name, position) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertBook.Close()
	insertChapter, err := tx.PrepareContext(ctx, `INSERT INTO chapters (book_id, number, position) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertChapter.Close()
	insertVerse, err := tx.PrepareContext(ctx, `INSERT INTO verses (chapter_id, number, position, text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertVerse.Close()

	for vi, v := range c.Versions {
		res, err := insertVersion.ExecContext(ctx, v.Name, vi)
		if err != nil {
			return errors.Wrapf(err, "insert version %q", v.Name)
		}
		versionID, _ := res.LastInsertId()
		for bi, b := range v.Books {
			res, err := insertBook.ExecContext(ctx, versionID, b.Name, bi)
			if err != nil {
				return errors.Wrapf(err, "insert book %q", b.Name)
			}
			bookID, _ := res.LastInsertId()
			for ci, ch := range b.Chapters {
				res, err := insertChapter.ExecContext(ctx, bookID, ch.Number, ci)
				if err != nil {
					return errors.Wrapf(err, "insert chapter %s %d", b.Name, ch.Number)
				}
				chapterID, _ := res.LastInsertId()
				for pos, vs := range ch.Verses {
					if _, err := insertVerse.ExecContext(ctx, chapterID, vs.Number, pos, vs.Text); err != nil {
						return errors.Wrapf(err, "insert verse %s %d:%d", b.Name, ch.Number, vs.Number)
					}
				}
			}
		}
	}
	return nil
}

// ReadFile loads the corpus stored at path.
func ReadFile(ctx context.Context, path string) (*corpus.Corpus, error) {
	db, err := csqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, selectAll)
	if err != nil {
		return nil, errors.WrapParse("SQLite", path, err)
	}
	defer rows.Close()

	c := &corpus.Corpus{}
	var (
		version     *corpus.Version
		book        *corpus.Book
		chapter     *corpus.Chapter
		lastVersion int64
		lastBook    sql.NullInt64
		lastChapter sql.NullInt64
	)
	for rows.Next() {
		var (
			versionID            int64
			versionName          string
			bookID, chapterID    sql.NullInt64
			bookName             sql.NullString
			chapterNum, verseNum sql.NullInt64
			verseText            sql.NullString
		)
		if err := rows.Scan(&versionID, &versionName, &bookID, &bookName, &chapterID, &chapterNum, &verseNum, &verseText); err != nil {
			return nil, errors.WrapParse("SQLite", path, err)
		}
		if version == nil || versionID != lastVersion {
			version = &corpus.Version{Name: versionName}
			c.Versions = append(c.Versions, version)
			lastVersion = versionID
			book, chapter = nil, nil
			lastBook, lastChapter = sql.NullInt64{}, sql.NullInt64{}
		}
		if !bookID.Valid {
			continue
		}
		if book == nil || bookID != lastBook {
			book = &corpus.Book{Name: bookName.String}
			version.Books = append(version.Books, book)
			lastBook = bookID
			chapter = nil
			lastChapter = sql.NullInt64{}
		}
		if !chapterID.Valid {
			continue
		}
		if chapter == nil || chapterID != lastChapter {
			chapter = &corpus.Chapter{Number: int(chapterNum.Int64)}
			book.Chapters = append(book.Chapters, chapter)
			lastChapter = chapterID
		}
		if verseNum.Valid {
			chapter.AddVerse(int(verseNum.Int64), verseText.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapParse("SQLite", path, err)
	}
	return c, nil
}
