package index

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// writeFileIfChanged writes content to path only if it differs from what is
// already there. Regenerating the index over unchanged input therefore
// produces no filesystem changes at all.
func writeFileIfChanged(path string, content []byte, logger *slog.Logger) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, content) {
		logger.Debug("file unchanged, skipping", "path", path)
		return nil
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Debug("file written", "path", path)
	return nil
}

// hashFile computes the hex-encoded SHA-256 digest and size of a file.
func hashFile(path string) (digest string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// copyFileIfChanged copies src to dst unless dst already holds content with
// the given digest. The copy is verified: a destination whose hash does not
// match the source afterwards is an error, never a silently corrupt link.
func copyFileIfChanged(src, dst, wantDigest string, logger *slog.Logger) error {
	if existing, _, err := hashFile(dst); err == nil && existing == wantDigest {
		logger.Debug("archive copy up to date", "path", dst)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}

	gotDigest, _, err := hashFile(dst)
	if err != nil {
		return err
	}
	if gotDigest != wantDigest {
		return fmt.Errorf("copy of %s to %s changed content: hash %s, want %s",
			src, dst, gotDigest, wantDigest)
	}

	logger.Debug("archive copied", "src", src, "dst", dst)
	return nil
}
