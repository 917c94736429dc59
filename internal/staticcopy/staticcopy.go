// Package staticcopy cleans the output directory and copies static asset
// trees into it.
package staticcopy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"
	"github.com/minio/crc64nvme"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/valderanvvk/frontend-base-template/internal/assembler"
	"github.com/valderanvvk/frontend-base-template/internal/telemetry"
)

// ErrNoSource is returned when a copy source is missing or holds no files
// and the pattern does not allow that.
var ErrNoSource = errors.New("copy source not found")

// Stats summarizes a copy run.
type Stats struct {
	Copied  int
	Skipped int
	Ignored int
	Bytes   int64
}

func (s *Stats) add(o Stats) {
	s.Copied += o.Copied
	s.Skipped += o.Skipped
	s.Ignored += o.Ignored
	s.Bytes += o.Bytes
}

// Clean removes everything inside dir, creating dir if it does not exist.
func Clean(fs afero.Fs, dir string) error {
	entries, err := afero.ReadDir(fs, dir)
	if errors.Is(err, os.ErrNotExist) {
		return fs.MkdirAll(dir, 0755)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}

	for _, e := range entries {
		if err := fs.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
	}

	log.Debug().Str("dir", dir).Int("removed", len(entries)).Msg("Cleaned output directory")
	return nil
}

// Copier copies static trees on one filesystem.
type Copier struct {
	fs afero.Fs
}

func New(fs afero.Fs) *Copier {
	return &Copier{fs: fs}
}

// Copy applies every pattern in order.
func (c *Copier) Copy(ctx context.Context, patterns []assembler.CopyPattern) (Stats, error) {
	var total Stats
	for _, p := range patterns {
		s, err := c.CopyPattern(ctx, p)
		total.add(s)
		if err != nil {
			return total, err
		}
	}

	m := telemetry.GetMetrics()
	m.FilesCopiedTotal.Add(ctx, int64(total.Copied))
	m.FilesSkippedTotal.Add(ctx, int64(total.Skipped))

	return total, nil
}

// CopyPattern copies the tree under p.From to p.To. Files matching an ignore
// glob, relative to p.From, are left out; files whose destination already
// holds the same content are not rewritten.
func (c *Copier) CopyPattern(ctx context.Context, p assembler.CopyPattern) (Stats, error) {
	var stats Stats

	ignores, err := compileIgnores(p.Ignore)
	if err != nil {
		return stats, err
	}

	info, err := c.fs.Stat(p.From)
	if err != nil {
		return stats, c.missing(p, err)
	}
	if !info.IsDir() {
		return stats, c.missing(p, fmt.Errorf("%s is not a directory", p.From))
	}

	files := 0
	err = afero.Walk(c.fs, p.From, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		files++

		rel, err := filepath.Rel(p.From, path)
		if err != nil {
			return err
		}
		if ignored(ignores, filepath.ToSlash(rel)) {
			stats.Ignored++
			return nil
		}

		target := filepath.Join(p.To, rel)
		copied, err := c.copyFile(path, target, info)
		if err != nil {
			return err
		}
		if copied {
			stats.Copied++
			stats.Bytes += info.Size()
		} else {
			stats.Skipped++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("failed to copy %s: %w", p.From, err)
	}

	if files == 0 {
		return stats, c.missing(p, fmt.Errorf("%s is empty", p.From))
	}

	log.Debug().
		Str("from", p.From).
		Str("to", p.To).
		Int("copied", stats.Copied).
		Int("skipped", stats.Skipped).
		Int("ignored", stats.Ignored).
		Msg("Copied static files")

	return stats, nil
}

func (c *Copier) missing(p assembler.CopyPattern, cause error) error {
	if p.NoErrorOnMissing {
		log.Debug().Str("from", p.From).Err(cause).Msg("Skipping missing copy source")
		return nil
	}
	return fmt.Errorf("%w: %w", ErrNoSource, cause)
}

// copyFile writes src to dst unless dst already has the same content.
func (c *Copier) copyFile(src, dst string, info os.FileInfo) (bool, error) {
	data, err := afero.ReadFile(c.fs, src)
	if err != nil {
		return false, err
	}

	if existing, err := c.fs.Stat(dst); err == nil && existing.Size() == info.Size() {
		current, err := afero.ReadFile(c.fs, dst)
		if err == nil && checksum(current) == checksum(data) {
			return false, nil
		}
	}

	if err := c.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, err
	}
	if err := afero.WriteFile(c.fs, dst, data, info.Mode().Perm()|0200); err != nil {
		return false, err
	}
	return true, nil
}

func checksum(data []byte) uint64 {
	h := crc64nvme.New()
	_, _ = h.Write(data)
	return h.Sum64()
}

func compileIgnores(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// ignored matches rel and its base name, so "*.map" also excludes nested
// source maps.
func ignored(globs []glob.Glob, rel string) bool {
	base := filepath.Base(rel)
	for _, g := range globs {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}
