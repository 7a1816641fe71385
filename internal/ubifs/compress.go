package ubifs

import (
	"bytes"
	"fmt"
	"io"

	lzo "github.com/anchore/go-lzo"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/wiwaszko/ubift/internal/ubiferrors"
)

// Compression identifies the per-node compressor, matching the ordering
// UBIFS itself uses (none, lzo, zlib), extended with zstd.
const (
	CompressNone uint8 = iota
	CompressLZO
	CompressZlib
	CompressZstd
)

func CompressionName(c uint8) string {
	switch c {
	case CompressNone:
		return "none"
	case CompressLZO:
		return "lzo"
	case CompressZlib:
		return "zlib"
	case CompressZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

var zstdDecoder, _ = zstd.NewReader(nil)

// Decompress expands compressed per the node's declared Compression type,
// to exactly uncompressedLen bytes; any other decompressed length is
// returned as a DecodingError.
func Decompress(compression uint8, compressed []byte, uncompressedLen uint32) ([]byte, error) {
	switch compression {
	case CompressNone:
		if uint32(len(compressed)) != uncompressedLen {
			return nil, ubiferrors.DecodingError("uncompressed length mismatch", ubiferrors.NoLocation, nil)
		}
		return compressed, nil

	case CompressLZO:
		out := make([]byte, uncompressedLen)
		n, err := lzo.Decompress(compressed, out)
		if err != nil {
			return nil, ubiferrors.DecodingError("lzo decompression failed", ubiferrors.NoLocation, err)
		}
		if uint32(n) != uncompressedLen {
			return nil, ubiferrors.DecodingError("uncompressed length mismatch", ubiferrors.NoLocation, nil)
		}
		return out[:n], nil

	case CompressZlib:
		r, err := zlib.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, ubiferrors.DecodingError("zlib stream invalid", ubiferrors.NoLocation, err)
		}
		defer r.Close()
		out, err := io.ReadAll(io.LimitReader(r, int64(uncompressedLen)+1))
		if err != nil {
			return nil, ubiferrors.DecodingError("zlib decompression failed", ubiferrors.NoLocation, err)
		}
		if len(out) != int(uncompressedLen) {
			return nil, ubiferrors.DecodingError("uncompressed length mismatch", ubiferrors.NoLocation, nil)
		}
		return out, nil

	case CompressZstd:
		out, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedLen))
		if err != nil {
			return nil, ubiferrors.DecodingError("zstd decompression failed", ubiferrors.NoLocation, err)
		}
		if len(out) != int(uncompressedLen) {
			return nil, ubiferrors.DecodingError("uncompressed length mismatch", ubiferrors.NoLocation, nil)
		}
		return out, nil

	default:
		return nil, ubiferrors.DecodingError(fmt.Sprintf("unknown compression type %d", compression), ubiferrors.NoLocation, nil)
	}
}
