// Package persistence stores index snapshots as zstd-compressed gob files.
package persistence

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic starts every zstd frame. Files without it are read as plain gob,
// the format snapshots used before compression.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// SaveGob encodes object with gob, compresses it with zstd and writes it to
// filePath. The file is replaced atomically: readers see the old snapshot or
// the new one, never a partial write. Missing directories are created.
func SaveGob(filePath string, object interface{}) (err error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	enc, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	if err := gob.NewEncoder(enc).Encode(object); err != nil {
		_ = enc.Close()
		return fmt.Errorf("failed to gob encode to file %s: %w", filePath, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to flush compressed data for %s: %w", filePath, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filePath, err)
	}
	return nil
}

// LoadGob decodes the snapshot at filePath into objectPointer, which must
// point to the type that was encoded. A missing file yields os.ErrNotExist
// so callers can treat it as a fresh start.
func LoadGob(filePath string, objectPointer interface{}) error {
	file, err := os.Open(filePath) // #nosec G304 -- filePath is controlled by application, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return os.ErrNotExist
		}
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	br := bufio.NewReader(file)
	var r io.Reader = br
	if head, err := br.Peek(len(zstdMagic)); err == nil && bytes.Equal(head, zstdMagic) {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return fmt.Errorf("failed to create zstd decoder for %s: %w", filePath, err)
		}
		defer dec.Close()
		r = dec
	}

	if err := gob.NewDecoder(r).Decode(objectPointer); err != nil {
		return fmt.Errorf("failed to gob decode from file %s: %w", filePath, err)
	}
	return nil
}
