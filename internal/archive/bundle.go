package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"path"
	"strings"
	"time"

	"github.com/FocuswithJustin/versecorpus/core/errors"
)

// Entry is one file inside a bundle.
type Entry struct {
	Name string
	Data []byte
}

// IsBundle reports whether path names a tar bundle.
func IsBundle(p string) bool {
	return strings.HasSuffix(strings.ToLower(TrimCompressionExt(p)), ".tar")
}

// Visitor is called for every regular file in a bundle. Return true to
// stop early.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate walks the regular files of a (possibly compressed) tar stream.
func Iterate(data []byte, visitor Visitor) error {
	plain, err := Decompress(data)
	if err != nil {
		return err
	}
	tr := tar.NewReader(bytes.NewReader(plain))
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.NewIO("read tar header", "", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		stop, err := visitor(header, tr)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// ReadBundle returns the regular files of a bundle accepted by keep, in
// archive order. A nil keep accepts every file.
func ReadBundle(bundlePath string, keep func(name string) bool) ([]Entry, error) {
	data, err := ReadFile(bundlePath)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	err = Iterate(data, func(h *tar.Header, r io.Reader) (bool, error) {
		if keep != nil && !keep(h.Name) {
			return false, nil
		}
		content, err := io.ReadAll(r)
		if err != nil {
			return true, errors.NewIO("read", bundlePath+":"+h.Name, err)
		}
		entries = append(entries, Entry{Name: h.Name, Data: content})
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// JoinText concatenates entry contents separated by newlines, the way a
// directory of per-book dumps is fed to the parser as one text.
func JoinText(entries []Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.Write(e.Data)
		if len(e.Data) > 0 && e.Data[len(e.Data)-1] != '\n' {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// WriteBundle writes entries as a tar archive under baseDir, compressed
// according to the path suffix. Timestamps are fixed so identical input
// yields identical archives.
func WriteBundle(bundlePath, baseDir string, entries []Entry) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	modTime := time.Unix(0, 0).UTC()

	for _, e := range entries {
		name := e.Name
		if baseDir != "" {
			name = path.Join(baseDir, name)
		}
		header := &tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(e.Data)),
			ModTime:  modTime,
			Typeflag: tar.TypeReg,
			Format:   tar.FormatPAX,
		}
		if err := tw.WriteHeader(header); err != nil {
			return errors.NewIO("write tar header", bundlePath, err)
		}
		if _, err := tw.Write(e.Data); err != nil {
			return errors.NewIO("write", bundlePath, err)
		}
	}
	if err := tw.Close(); err != nil {
		return errors.NewIO("write", bundlePath, err)
	}
	return WriteFile(bundlePath, buf.Bytes())
}
