package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/docuflow/tiercache/internal/apperrors"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding is the one-byte format discriminant written ahead of every encoded
// payload. The decoder dispatches on it exhaustively and never sniffs the body.
type Encoding byte

const (
	// EncodingJSON is an uncompressed JSON body.
	EncodingJSON Encoding = 0x01
	// EncodingBinary is an uncompressed msgpack body, used for values JSON
	// cannot represent (NaN/Inf floats, binary-heavy shapes).
	EncodingBinary Encoding = 0x02

	// Compressed JSON variants, one per codec.
	EncodingJSONGzip   Encoding = 0x11
	EncodingJSONZstd   Encoding = 0x12
	EncodingJSONBrotli Encoding = 0x13

	// Compressed msgpack variants, one per codec.
	EncodingBinaryGzip   Encoding = 0x21
	EncodingBinaryZstd   Encoding = 0x22
	EncodingBinaryBrotli Encoding = 0x23
)

// String returns a human-readable name for logging.
func (e Encoding) String() string {
	switch e {
	case EncodingJSON:
		return "json"
	case EncodingBinary:
		return "binary"
	case EncodingJSONGzip:
		return "json+gzip"
	case EncodingJSONZstd:
		return "json+zstd"
	case EncodingJSONBrotli:
		return "json+brotli"
	case EncodingBinaryGzip:
		return "binary+gzip"
	case EncodingBinaryZstd:
		return "binary+zstd"
	case EncodingBinaryBrotli:
		return "binary+brotli"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(e))
	}
}

// DefaultCompressionThreshold is the body size in bytes above which payloads
// are compressed when no threshold is configured.
const DefaultCompressionThreshold = 1024

// Codec converts arbitrary values to and from tagged byte payloads.
// It is safe for concurrent use.
type Codec struct {
	threshold   int
	compression Compression
}

// New creates a Codec that compresses bodies larger than threshold bytes with
// the given compression codec. A threshold <= 0 falls back to
// DefaultCompressionThreshold.
func New(threshold int, compression Compression) (*Codec, error) {
	if threshold <= 0 {
		threshold = DefaultCompressionThreshold
	}
	if !compression.valid() {
		return nil, fmt.Errorf("codec: unknown compression codec %q (supported: %v)", compression, SupportedCompression())
	}
	return &Codec{threshold: threshold, compression: compression}, nil
}

// Encode serializes v into a tagged byte payload. JSON is attempted first
// (stdlib JSON sorts map keys, so equal logical values produce byte-identical
// output); values JSON cannot represent fall back to msgpack with sorted map
// keys. Bodies above the threshold are compressed with the configured codec.
func (c *Codec) Encode(v any) ([]byte, error) {
	body, structural, err := encodeStructural(v)
	if err != nil {
		return nil, err
	}

	tag := structural
	if len(body) > c.threshold {
		compressed, cerr := c.compression.compress(body)
		if cerr == nil && len(compressed) < len(body) {
			body = compressed
			tag = c.compression.tagFor(structural)
		}
		// Compression failure or growth keeps the uncompressed body; the
		// payload is still valid, just larger.
	}

	out := make([]byte, 0, len(body)+1)
	out = append(out, byte(tag))
	return append(out, body...), nil
}

// encodeStructural returns the serialized body and its uncompressed encoding tag.
func encodeStructural(v any) ([]byte, Encoding, error) {
	body, jerr := json.Marshal(v)
	if jerr == nil {
		return body, EncodingJSON, nil
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if merr := enc.Encode(v); merr != nil {
		return nil, 0, apperrors.NewSerializationError(fmt.Sprintf("%T", v), merr)
	}
	return buf.Bytes(), EncodingBinary, nil
}

// Decode reverses Encode, writing the value into dst (a non-nil pointer).
// The leading discriminant selects the inverse transform; an unrecognized tag
// or a failing decompression/structural decode yields ErrDecode. Payloads are
// decodable regardless of which compression codec produced them, so codec
// reconfiguration never orphans stored entries.
func (c *Codec) Decode(data []byte, dst any) error {
	if len(data) == 0 {
		return apperrors.NewDecodeError("empty payload", nil)
	}

	tag := Encoding(data[0])
	body := data[1:]

	var structural Encoding
	switch tag {
	case EncodingJSON, EncodingBinary:
		structural = tag
	case EncodingJSONGzip, EncodingJSONZstd, EncodingJSONBrotli:
		structural = EncodingJSON
	case EncodingBinaryGzip, EncodingBinaryZstd, EncodingBinaryBrotli:
		structural = EncodingBinary
	default:
		return apperrors.NewDecodeError(fmt.Sprintf("unrecognized format tag 0x%02x", data[0]), nil)
	}

	if comp, ok := compressionForTag(tag); ok {
		decompressed, err := comp.decompress(body)
		if err != nil {
			return apperrors.NewDecodeError(fmt.Sprintf("%s decompression failed", comp), err)
		}
		body = decompressed
	}

	switch structural {
	case EncodingJSON:
		if err := json.Unmarshal(body, dst); err != nil {
			return apperrors.NewDecodeError("json decode failed", err)
		}
	case EncodingBinary:
		if err := msgpack.Unmarshal(body, dst); err != nil {
			return apperrors.NewDecodeError("msgpack decode failed", err)
		}
	}
	return nil
}
