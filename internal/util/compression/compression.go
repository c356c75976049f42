// Package compression provides pluggable compressors for stored draft content.
package compression

import "fmt"

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// ForName maps a draft-store codec name from configuration to a compressor.
// The empty name selects zstd.
func ForName(name string) (Compressor, error) {
	switch name {
	case "", "zstd":
		return ZstdCompressor{}, nil
	case "gzip":
		return GzipCompressor{}, nil
	default:
		return nil, fmt.Errorf("unknown compression codec: %s", name)
	}
}
