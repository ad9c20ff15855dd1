package database

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// gzipCompress and gzipDecompress hold blob bytes at rest in compressed
// form; callers always compute content identity over the uncompressed
// bytes, so a future codec swap would not change any stored identifier.

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
