// Package archive reads and writes corpus files that may be compressed
// (.gz, .xz, .zst) or bundled as tar archives (.tar.gz, .tar.xz, .tar.zst).
package archive

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/versecorpus/core/errors"
)

// Compression identifies a stream compression.
type Compression int

const (
	// None means the bytes are stored as is.
	None Compression = iota
	// Gzip is RFC 1952 gzip.
	Gzip
	// XZ is the xz container format.
	XZ
	// Zstd is a Zstandard frame.
	Zstd
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case XZ:
		return "xz"
	case Zstd:
		return "zstd"
	default:
		return "none"
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// CompressionFor picks a compression from the file suffix.
func CompressionFor(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".tgz":
		return Gzip
	case ".xz", ".txz":
		return XZ
	case ".zst", ".tzst":
		return Zstd
	}
	return None
}

// Sniff recognizes compressed data by its magic bytes.
func Sniff(data []byte) Compression {
	switch {
	case bytes.HasPrefix(data, xzMagic):
		return XZ
	case bytes.HasPrefix(data, gzipMagic):
		return Gzip
	case bytes.HasPrefix(data, zstdMagic):
		return Zstd
	}
	return None
}

// TrimCompressionExt drops a trailing .gz, .xz or .zst so the inner file type
// can be detected: "kjv.json.xz" becomes "kjv.json".
func TrimCompressionExt(path string) string {
	if CompressionFor(path) == None {
		return path
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".tgz", ".txz", ".tzst":
		return strings.TrimSuffix(path, filepath.Ext(path)) + ".tar"
	}
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// Decompress returns the plain bytes of data, detecting the compression
// from its magic bytes.
func Decompress(data []byte) ([]byte, error) {
	var r io.Reader
	switch Sniff(data) {
	case XZ:
		xzr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.NewIO("decompress", "", err)
		}
		r = xzr
	case Gzip:
		gzr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.NewIO("decompress", "", err)
		}
		defer gzr.Close()
		r = gzr
	case Zstd:
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.NewIO("decompress", "", err)
		}
		defer zr.Close()
		r = zr
	default:
		return data, nil
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIO("decompress", "", err)
	}
	return out, nil
}

// Compress encodes data with the given compression.
func Compress(data []byte, c Compression) ([]byte, error) {
	var buf bytes.Buffer
	switch c {
	case XZ:
		w, err := xz.NewWriter(&buf)
		if err != nil {
			return nil, errors.NewIO("compress", "", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, errors.NewIO("compress", "", err)
		}
		if err := w.Close(); err != nil {
			return nil, errors.NewIO("compress", "", err)
		}
	case Gzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, errors.NewIO("compress", "", err)
		}
		if err := w.Close(); err != nil {
			return nil, errors.NewIO("compress", "", err)
		}
	case Zstd:
		w, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, errors.NewIO("compress", "", err)
		}
		if _, err := w.Write(data); err != nil {
			w.Close()
			return nil, errors.NewIO("compress", "", err)
		}
		if err := w.Close(); err != nil {
			return nil, errors.NewIO("compress", "", err)
		}
	default:
		return data, nil
	}
	return buf.Bytes(), nil
}

// ReadFile reads path and transparently decompresses it.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	out, err := Decompress(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return out, nil
}

// WriteFile compresses data according to the path suffix and writes it
// atomically through a temporary file in the same directory.
func WriteFile(path string, data []byte) error {
	out, err := Compress(data, CompressionFor(path))
	if err != nil {
		return errors.Wrap(err, path)
	}
	return writeAtomic(path, out)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewIO("create directory", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.NewIO("create", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.NewIO("write", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.NewIO("write", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return errors.NewIO("chmod", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.NewIO("rename", path, err)
	}
	return nil
}
