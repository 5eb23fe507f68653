package docstore

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Stored documents carry a one-byte envelope so that raw and compressed
// payloads can live in the same collection.
const (
	envelopeRaw  byte = 0x00
	envelopeZstd byte = 0x01
)

// maxDecodedSize bounds the memory a single compressed document may expand to.
const maxDecodedSize = 256 << 20

// zstd.Encoder and zstd.Decoder are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("docstore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		panic("docstore: zstd decoder initialization failed: " + err.Error())
	}
}

// seal wraps an encoded document. Documents of at least threshold bytes are
// compressed when that makes them smaller; a threshold <= 0 disables
// compression.
func seal(data []byte, threshold int) (sealed []byte, compressed bool) {
	if threshold > 0 && len(data) >= threshold {
		out := zstdEncoder.EncodeAll(data, []byte{envelopeZstd})
		if len(out) < len(data)+1 {
			return out, true
		}
	}
	out := make([]byte, 0, len(data)+1)
	out = append(out, envelopeRaw)
	return append(out, data...), false
}

// unseal returns the encoded document inside an envelope. Raw payloads are
// returned without copying.
func unseal(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrCorruptDocument)
	}
	switch data[0] {
	case envelopeRaw:
		return data[1:], nil
	case envelopeZstd:
		out, err := zstdDecoder.DecodeAll(data[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCorruptDocument, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown envelope 0x%02x", ErrCorruptDocument, data[0])
}
