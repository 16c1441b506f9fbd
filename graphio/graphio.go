// Package graphio reads and writes graph documents on disk, compressed or
// not.
//
// Compressed input is recognized by its magic bytes, so ReadFile accepts
// zstd, gzip and plain documents regardless of the file name. WriteFile picks
// the compression from the file extension: ".zst" for zstd, ".gz" for gzip,
// anything else for plain text.
package graphio

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/KimNorgaard/go-graph"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression selects how a document is stored.
type Compression uint8

const (
	None Compression = iota
	Gzip
	Zstd
)

func (c Compression) String() string {
	switch c {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	}
	return "none"
}

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	gzipMagic = []byte{0x1F, 0x8B}
)

// maxDecodedSize bounds the memory a compressed document may expand to.
const maxDecodedSize = 1 << 30

// Detect reports the compression of data from its leading bytes.
func Detect(data []byte) Compression {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return Zstd
	case bytes.HasPrefix(data, gzipMagic):
		return Gzip
	}
	return None
}

// ForPath returns the compression WriteFile uses for path.
func ForPath(path string) Compression {
	switch filepath.Ext(path) {
	case ".zst":
		return Zstd
	case ".gz":
		return Gzip
	}
	return None
}

// Decompress returns data with any zstd or gzip framing removed. Plain data
// is returned unchanged.
func Decompress(data []byte) ([]byte, error) {
	switch Detect(data) {
	case Zstd:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
		if err != nil {
			return nil, fmt.Errorf("graphio: zstd: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("graphio: zstd: %w", err)
		}
		return out, nil
	case Gzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("graphio: gzip: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(io.LimitReader(zr, maxDecodedSize+1))
		if err != nil {
			return nil, fmt.Errorf("graphio: gzip: %w", err)
		}
		if len(out) > maxDecodedSize {
			return nil, fmt.Errorf("graphio: gzip: document exceeds %d bytes", maxDecodedSize)
		}
		return out, nil
	}
	return data, nil
}

// Compress frames data with c.
func Compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case Zstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("graphio: zstd: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(data, nil), nil
	case Gzip:
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
		if err != nil {
			return nil, fmt.Errorf("graphio: gzip: %w", err)
		}
		if _, err := zw.Write(data); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("graphio: gzip: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("graphio: gzip: %w", err)
		}
		return buf.Bytes(), nil
	}
	return data, nil
}

// ReadFile reads the document at path, decompressing it if needed.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decompress(data)
}

// WriteFile writes data to path, compressed according to ForPath.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	out, err := Compress(data, ForPath(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, perm)
}

// LoadFile reads the document at path into a new Loader.
func LoadFile(path string, opts ...graph.Option) (*graph.Loader, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	l, err := graph.NewLoader(opts...)
	if err != nil {
		return nil, err
	}
	if err := l.Load(data); err != nil {
		return nil, err
	}
	return l, nil
}

// SaveFile writes the document built by s to path.
func SaveFile(path string, s *graph.Saver) error {
	var buf bytes.Buffer
	if err := s.Write(&buf); err != nil {
		return err
	}
	return WriteFile(path, buf.Bytes(), 0o644)
}

// UnmarshalFile reads the document at path into v. See graph.Unmarshal.
func UnmarshalFile(path string, v any, opts ...graph.Option) error {
	data, err := ReadFile(path)
	if err != nil {
		return err
	}
	return graph.Unmarshal(data, v, opts...)
}

// MarshalFile writes the graph encoding of v to path.
func MarshalFile(path string, v any, opts ...graph.Option) error {
	data, err := graph.Marshal(v, opts...)
	if err != nil {
		return err
	}
	return WriteFile(path, data, 0o644)
}
