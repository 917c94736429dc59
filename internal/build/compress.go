package build

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// compressible lists the extensions precompressed next to the original.
var compressible = map[string]bool{
	".js":   true,
	".css":  true,
	".html": true,
	".svg":  true,
	".json": true,
}

// Encodings written by precompress, by file suffix.
const (
	SuffixGzip = ".gz"
	SuffixZstd = ".zst"
)

// precompress writes a gzip and a zstd variant of every compressible file
// in paths so a static file server can serve them without compressing on
// the fly. It returns the number of files compressed.
func precompress(fs afero.Fs, dir string, paths []string) (int, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return 0, fmt.Errorf("failed to create encoder: %w", err)
	}
	defer enc.Close()

	count := 0
	for _, rel := range paths {
		if !compressible[strings.ToLower(filepath.Ext(rel))] {
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(rel))
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return count, err
		}

		gz, err := gzipBytes(data)
		if err != nil {
			return count, fmt.Errorf("failed to gzip %s: %w", rel, err)
		}
		if err := afero.WriteFile(fs, path+SuffixGzip, gz, 0644); err != nil {
			return count, err
		}

		zst := enc.EncodeAll(data, nil)
		if err := afero.WriteFile(fs, path+SuffixZstd, zst, 0644); err != nil {
			return count, err
		}

		log.Debug().
			Str("file", rel).
			Int("size", len(data)).
			Int("gzip", len(gz)).
			Int("zstd", len(zst)).
			Msg("Precompressed file")
		count++
	}

	return count, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
