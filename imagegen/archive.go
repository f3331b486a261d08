/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package imagegen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Archive keeps the raw API response of every generation on disk, one file
// per prompt. Nothing reads these back; they are for debugging.
type Archive struct {
	dir      string
	compress bool

	mu      sync.Mutex
	encoder *zstd.Encoder
}

func NewArchive(dir string, compress bool) (*Archive, error) {
	a := &Archive{
		dir:      dir,
		compress: compress,
	}

	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		a.encoder = enc
	}

	return a, nil
}

// maxStem keeps archive file names well under the usual 255 byte limit,
// leaving room for the hash and extensions.
const maxStem = 160

// Path returns the file a response for prompt is written to. Long prompts
// are cut short and suffixed with a hash of the full prompt.
func (a *Archive) Path(prompt string) string {
	stem := url.PathEscape(prompt)
	if len(stem) > maxStem {
		stem = stem[:maxStem]

		// Do not split a %XX escape.
		if i := strings.LastIndexByte(stem, '%'); i >= len(stem)-2 {
			stem = stem[:i]
		}

		sum := sha256.Sum256([]byte(prompt))
		stem += "-" + hex.EncodeToString(sum[:6])
	}

	name := stem + ".json"
	if a.compress {
		name += ".zst"
	}

	return filepath.Join(a.dir, name)
}

// Write stores raw for prompt. The file is replaced in one step, so
// concurrent writes for the same prompt never interleave.
func (a *Archive) Write(prompt string, raw []byte) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("creating archive directory: %w", err)
	}

	data := raw
	if a.compress {
		// EncodeAll is safe for concurrent use, but the encoder is shared
		// with Close.
		a.mu.Lock()
		data = a.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))
		a.mu.Unlock()
	}

	tmp, err := os.CreateTemp(a.dir, ".archive-*")
	if err != nil {
		return fmt.Errorf("creating archive file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing archived response: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing archived response: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("writing archived response: %w", err)
	}

	if err := os.Rename(tmp.Name(), a.Path(prompt)); err != nil {
		return fmt.Errorf("writing archived response: %w", err)
	}

	return nil
}

func (a *Archive) Close() error {
	if a.encoder == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.encoder.Close()
}
