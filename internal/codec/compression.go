package codec

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies the byte-stream compressor used for large payloads.
type Compression string

const (
	CompressionGzip   Compression = "gzip"
	CompressionZstd   Compression = "zstd"
	CompressionBrotli Compression = "brotli"
)

// SupportedCompression lists the codecs accepted by New.
func SupportedCompression() []Compression {
	return []Compression{CompressionGzip, CompressionZstd, CompressionBrotli}
}

func (c Compression) valid() bool {
	switch c {
	case CompressionGzip, CompressionZstd, CompressionBrotli:
		return true
	}
	return false
}

// tagFor maps an uncompressed structural encoding to its compressed variant.
func (c Compression) tagFor(structural Encoding) Encoding {
	switch c {
	case CompressionZstd:
		if structural == EncodingBinary {
			return EncodingBinaryZstd
		}
		return EncodingJSONZstd
	case CompressionBrotli:
		if structural == EncodingBinary {
			return EncodingBinaryBrotli
		}
		return EncodingJSONBrotli
	default:
		if structural == EncodingBinary {
			return EncodingBinaryGzip
		}
		return EncodingJSONGzip
	}
}

// compressionForTag returns the compression codec a tag was produced with,
// or false for uncompressed tags.
func compressionForTag(tag Encoding) (Compression, bool) {
	switch tag {
	case EncodingJSONGzip, EncodingBinaryGzip:
		return CompressionGzip, true
	case EncodingJSONZstd, EncodingBinaryZstd:
		return CompressionZstd, true
	case EncodingJSONBrotli, EncodingBinaryBrotli:
		return CompressionBrotli, true
	}
	return "", false
}

// Shared zstd coders. EncodeAll/DecodeAll are safe for concurrent use, so a
// single pair serves the whole process.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	// Default options never fail.
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
}

func (c Compression) compress(body []byte) ([]byte, error) {
	switch c {
	case CompressionZstd:
		return zstdEncoder.EncodeAll(body, nil), nil
	case CompressionBrotli:
		var buf bytes.Buffer
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

func (c Compression) decompress(body []byte) ([]byte, error) {
	switch c {
	case CompressionZstd:
		return zstdDecoder.DecodeAll(body, nil)
	case CompressionBrotli:
		return io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
	default:
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	}
}
