// Package archive exports the audit trail as compressed JSON-lines objects.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"

	"assetd/pkg/s3"
	"assetd/services/registry"
)

// Exporter streams audit entries into a gzip'd JSON-lines archive and uploads
// it to S3. The trail itself is append-only; exports are read-only snapshots.
type Exporter struct {
	store  registry.Store
	client *s3.Client
	bucket string
}

// NewExporter wires the export dependencies.
func NewExporter(store registry.Store, client *s3.Client, bucket string) (*Exporter, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("bucket is required")
	}
	return &Exporter{store: store, client: client, bucket: bucket}, nil
}

// Export writes the full audit trail to a timestamped object and returns its
// key.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	entries, err := e.store.ListAudit(ctx, 0)
	if err != nil {
		return "", fmt.Errorf("list audit entries: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteArchive(&buf, entries); err != nil {
		return "", err
	}

	key := fmt.Sprintf("audit/%s.jsonl.gz", time.Now().UTC().Format("20060102T150405Z"))
	if err := e.client.Put(ctx, e.bucket, key, "application/gzip", &buf); err != nil {
		return "", fmt.Errorf("upload archive: %w", err)
	}

	return key, nil
}

// PresignDownload returns a time-limited download URL for a previously
// exported archive object.
func (e *Exporter) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", errors.New("key is required")
	}
	return e.client.PresignGet(ctx, e.bucket, key, ttl)
}

// WriteArchive encodes entries as gzip-compressed JSON lines.
func WriteArchive(w io.Writer, entries []registry.AuditLogEntry) error {
	gz := gzip.NewWriter(w)
	enc := json.NewEncoder(gz)

	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			gz.Close()
			return fmt.Errorf("encode audit entry %s: %w", entry.ID, err)
		}
	}

	return gz.Close()
}
