package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// IsProcessed reports whether a file with this path, size, and hash was
// already converted by an earlier run. A changed file (same path, new
// fingerprint) counts as unprocessed.
func (db *DB) IsProcessed(ctx context.Context, path string, size int64, hash string) (bool, error) {
	var count int
	err := db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM processed_files WHERE path = ? AND size = ? AND sha256 = ?`,
		path, size, hash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking processed file: %w", err)
	}
	return count > 0, nil
}

// MarkProcessed records that a run converted the file. Re-marking a path
// replaces its fingerprint, so edited exports reconvert exactly once.
func (db *DB) MarkProcessed(ctx context.Context, runID uuid.UUID, path string, size int64, hash string) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO processed_files (path, size, sha256, run_id, processed_at)
		 VALUES (?, ?, ?, ?, ?)`,
		path, size, hash, runID.String(), time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("marking processed file: %w", err)
	}
	return nil
}

// HashFile computes the SHA-256 hash of a file.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
