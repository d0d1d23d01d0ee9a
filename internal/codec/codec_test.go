package codec

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/docuflow/tiercache/internal/apperrors"
)

func newTestCodec(t *testing.T, threshold int, compression Compression) *Codec {
	t.Helper()
	c, err := New(threshold, compression)
	if err != nil {
		t.Fatalf("New codec: %v", err)
	}
	return c
}

func TestCodec_RoundTrip_JSON(t *testing.T) {
	c := newTestCodec(t, 1024, CompressionGzip)

	original := map[string]any{"name": "Ada", "count": float64(3)}
	data, err := c.Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if Encoding(data[0]) != EncodingJSON {
		t.Fatalf("Expected JSON tag, got %s", Encoding(data[0]))
	}

	var decoded map[string]any
	if err := c.Decode(data, &decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded["name"] != "Ada" || decoded["count"] != float64(3) {
		t.Fatalf("Round trip mismatch: %v", decoded)
	}
}

func TestCodec_RoundTrip_Struct(t *testing.T) {
	type document struct {
		ID    string   `json:"id"`
		Title string   `json:"title"`
		Pages int      `json:"pages"`
		Tags  []string `json:"tags"`
	}
	c := newTestCodec(t, 1024, CompressionGzip)

	original := document{ID: "doc-1", Title: "Invoice", Pages: 4, Tags: []string{"billing"}}
	data, err := c.Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var decoded document
	if err := c.Decode(data, &decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.ID != original.ID || decoded.Title != original.Title || decoded.Pages != original.Pages {
		t.Fatalf("Round trip mismatch: %+v", decoded)
	}
}

func TestCodec_BinaryFallback(t *testing.T) {
	c := newTestCodec(t, 1024, CompressionGzip)

	// NaN cannot be represented in JSON, forcing the msgpack fallback.
	data, err := c.Encode(math.NaN())
	if err != nil {
		t.Fatalf("Encode NaN: %v", err)
	}
	if Encoding(data[0]) != EncodingBinary {
		t.Fatalf("Expected binary tag for NaN, got %s", Encoding(data[0]))
	}

	var decoded float64
	if err := c.Decode(data, &decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !math.IsNaN(decoded) {
		t.Fatalf("Expected NaN, got %v", decoded)
	}
}

func TestCodec_SerializationError(t *testing.T) {
	c := newTestCodec(t, 1024, CompressionGzip)

	_, err := c.Encode(make(chan int))
	if err == nil {
		t.Fatal("Expected error for channel value")
	}
	if !errors.Is(err, &apperrors.ErrSerialization{}) {
		t.Fatalf("Expected ErrSerialization, got %T: %v", err, err)
	}
}

func TestCodec_CompressionThreshold(t *testing.T) {
	for _, tc := range []struct {
		compression Compression
		wantTag     Encoding
	}{
		{CompressionGzip, EncodingJSONGzip},
		{CompressionZstd, EncodingJSONZstd},
		{CompressionBrotli, EncodingJSONBrotli},
	} {
		t.Run(string(tc.compression), func(t *testing.T) {
			c := newTestCodec(t, 64, tc.compression)

			large := strings.Repeat("document body ", 100)
			data, err := c.Encode(large)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if Encoding(data[0]) != tc.wantTag {
				t.Fatalf("Expected %s tag, got %s", tc.wantTag, Encoding(data[0]))
			}

			var decoded string
			if err := c.Decode(data, &decoded); err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if decoded != large {
				t.Fatal("Compressed round trip mismatch")
			}
		})
	}
}

func TestCodec_SmallPayloadNotCompressed(t *testing.T) {
	c := newTestCodec(t, 1024, CompressionGzip)

	data, err := c.Encode("tiny")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if Encoding(data[0]) != EncodingJSON {
		t.Fatalf("Expected plain JSON tag below threshold, got %s", Encoding(data[0]))
	}
}

func TestCodec_CrossCodecDecode(t *testing.T) {
	// A payload written under one compression codec must stay decodable
	// after the codec configuration changes.
	writer := newTestCodec(t, 64, CompressionZstd)
	reader := newTestCodec(t, 64, CompressionGzip)

	large := strings.Repeat("page ", 200)
	data, err := writer.Encode(large)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var decoded string
	if err := reader.Decode(data, &decoded); err != nil {
		t.Fatalf("Decode with different configured codec: %v", err)
	}
	if decoded != large {
		t.Fatal("Cross-codec round trip mismatch")
	}
}

func TestCodec_Deterministic(t *testing.T) {
	c := newTestCodec(t, 1024, CompressionGzip)

	v := map[string]int{"alpha": 1, "beta": 2, "gamma": 3}
	first, err := c.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := c.Encode(map[string]int{"gamma": 3, "alpha": 1, "beta": 2})
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("Equal logical values produced different bytes:\n%q\n%q", first, again)
		}
	}
}

func TestCodec_Decode_UnknownTag(t *testing.T) {
	c := newTestCodec(t, 1024, CompressionGzip)

	var v any
	err := c.Decode([]byte{0xFF, 'x'}, &v)
	if err == nil {
		t.Fatal("Expected error for unknown tag")
	}
	if !errors.Is(err, &apperrors.ErrDecode{}) {
		t.Fatalf("Expected ErrDecode, got %T: %v", err, err)
	}
}

func TestCodec_Decode_Empty(t *testing.T) {
	c := newTestCodec(t, 1024, CompressionGzip)

	var v any
	if err := c.Decode(nil, &v); !errors.Is(err, &apperrors.ErrDecode{}) {
		t.Fatalf("Expected ErrDecode for empty payload, got %v", err)
	}
}

func TestCodec_Decode_CorruptCompressedBody(t *testing.T) {
	c := newTestCodec(t, 1024, CompressionGzip)

	var v any
	err := c.Decode([]byte{byte(EncodingJSONGzip), 0x00, 0x01, 0x02}, &v)
	if !errors.Is(err, &apperrors.ErrDecode{}) {
		t.Fatalf("Expected ErrDecode for corrupt gzip body, got %v", err)
	}
}

func TestCodec_Decode_CorruptJSONBody(t *testing.T) {
	c := newTestCodec(t, 1024, CompressionGzip)

	var v map[string]any
	err := c.Decode(append([]byte{byte(EncodingJSON)}, []byte("{not json")...), &v)
	if !errors.Is(err, &apperrors.ErrDecode{}) {
		t.Fatalf("Expected ErrDecode for corrupt JSON body, got %v", err)
	}
}

func TestNew_UnknownCompression(t *testing.T) {
	if _, err := New(1024, Compression("lz77")); err == nil {
		t.Fatal("Expected error for unknown compression codec")
	}
}
