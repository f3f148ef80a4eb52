package audit

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/compliance-sentinel/sentinel/pkg/storage"
)

// writeZip streams each existing artifact into a zip archive and reports
// how many were included. Missing artifacts are skipped; a run that never
// generated a diff still bundles cleanly.
func (t *Trail) writeZip(ctx context.Context, buf *bytes.Buffer, processingID string) (int, error) {
	zw := zip.NewWriter(buf)

	found := 0
	for _, name := range artifactFiles {
		key := blobKey(processingID, name)

		reader, err := t.storage.Download(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return 0, fmt.Errorf("download %s: %w", key, err)
		}

		w, err := zw.Create(name)
		if err != nil {
			reader.Close()
			return 0, fmt.Errorf("create zip entry %s: %w", name, err)
		}

		if _, err := io.Copy(w, reader); err != nil {
			reader.Close()
			return 0, fmt.Errorf("copy %s: %w", key, err)
		}
		reader.Close()
		found++
	}

	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("close zip: %w", err)
	}

	return found, nil
}
