package storage

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Compression selects how row-data blocks are stored.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
)

var ErrUnknownCompression = errors.New("storage: unknown compression")

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCompression, s)
	}
}

// EncodeAll and DecodeAll are safe for concurrent use, so one encoder and
// one decoder serve the whole process.
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
)

func compress(c Compression, raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch c {
	case CompressionNone:
		return raw, nil
	case CompressionZstd:
		enc, err := zstdEncoder()
		if err != nil {
			return nil, err
		}
		return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
}

// An RLE block turns 4 stored bytes (3 header, 1 value) into at most
// 128 KiB, so no zstd stream expands by more than this factor.
const maxZstdExpansion = 128 << 10 / 4

// decompress checks the declared raw length against what stored can
// actually hold before allocating for it.
func decompress(c Compression, stored []byte, rawLen int) ([]byte, error) {
	if rawLen == 0 && len(stored) == 0 {
		return []byte{}, nil
	}
	var out []byte
	switch c {
	case CompressionNone:
		if rawLen != len(stored) {
			return nil, fmt.Errorf("raw length %d != stored length %d", rawLen, len(stored))
		}
		out = append(make([]byte, 0, len(stored)), stored...)
	case CompressionZstd:
		if uint64(rawLen) > uint64(len(stored))*maxZstdExpansion {
			return nil, fmt.Errorf("raw length %d cannot come from %d compressed bytes", rawLen, len(stored))
		}
		dec, err := zstdDecoder()
		if err != nil {
			return nil, err
		}
		out, err = dec.DecodeAll(stored, make([]byte, 0, rawLen))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCompression, c)
	}
	if len(out) != rawLen {
		return nil, fmt.Errorf("raw length %d != %d", len(out), rawLen)
	}
	return out, nil
}
