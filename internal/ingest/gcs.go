package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/model"
	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

// gcsIngestor reads documents from a Cloud Storage inbox prefix and
// relocates them under archive and review prefixes.
type gcsIngestor struct {
	client           *storage.Client
	bucket           *storage.BucketHandle
	bucketName       string
	inboxPrefix      string
	archivePrefix    string
	reviewPrefix     string
	allowedMimeTypes []string
}

// newGCSIngestor creates a Cloud Storage backed ingestor using ambient
// credentials.
func newGCSIngestor(ctx context.Context, cfg GCSConfig, allowed []string) (service.Ingestor, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("GCS bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &gcsIngestor{
		client:           client,
		bucket:           client.Bucket(cfg.Bucket),
		bucketName:       cfg.Bucket,
		inboxPrefix:      cfg.InboxPrefix,
		archivePrefix:    cfg.ArchivePrefix,
		reviewPrefix:     cfg.ReviewPrefix,
		allowedMimeTypes: allowed,
	}, nil
}

// Name identifies the backend in logs and audit rows.
func (g *gcsIngestor) Name() string {
	return "gcs"
}

// List walks the inbox prefix and returns the supported documents.
func (g *gcsIngestor) List(ctx context.Context) ([]model.FileRef, error) {
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: g.inboxPrefix})

	var refs []model.FileRef
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, &common.RetryableError{Err: fmt.Errorf("failed to list bucket %s: %w", g.bucketName, err), Retryable: true}
		}

		// Directory placeholder objects carry no document.
		if attrs.Name == "" || strings.HasSuffix(attrs.Name, "/") {
			continue
		}

		mimeType := objectMimeType(attrs)
		if !mimeAllowed(mimeType, g.allowedMimeTypes) {
			continue
		}

		refs = append(refs, model.FileRef{
			SourceID: attrs.Name,
			Name:     path.Base(attrs.Name),
			MimeType: mimeType,
			Size:     attrs.Size,
		})
	}

	return refs, nil
}

// objectMimeType prefers the stored content type and falls back to the
// object name's extension.
func objectMimeType(attrs *storage.ObjectAttrs) string {
	if attrs.ContentType != "" {
		return attrs.ContentType
	}
	if guessed := mime.TypeByExtension(path.Ext(attrs.Name)); guessed != "" {
		return guessed
	}
	return "application/octet-stream"
}

// Fetch downloads the raw bytes for a document.
func (g *gcsIngestor) Fetch(ctx context.Context, ref model.FileRef) ([]byte, error) {
	reader, err := g.bucket.Object(ref.SourceID).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: object %s", common.ErrNotFound, ref.SourceID)
		}
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to open %s: %w", ref.SourceID, err), Retryable: true}
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to read %s: %w", ref.SourceID, err), Retryable: true}
	}
	return data, nil
}

// Archive moves a stored document under the archive prefix.
func (g *gcsIngestor) Archive(ctx context.Context, ref model.FileRef) error {
	return g.move(ctx, ref, g.archivePrefix)
}

// MoveToReview moves a flagged document under the review prefix.
func (g *gcsIngestor) MoveToReview(ctx context.Context, ref model.FileRef) error {
	return g.move(ctx, ref, g.reviewPrefix)
}

// move copies the object to its destination prefix and deletes the
// original. An empty prefix means relocation is not configured.
func (g *gcsIngestor) move(ctx context.Context, ref model.FileRef, prefix string) error {
	if prefix == "" {
		return nil
	}

	destination := relocationKey(prefix, ref.SourceID)
	source := g.bucket.Object(ref.SourceID)

	if _, err := g.bucket.Object(destination).CopierFrom(source).Run(ctx); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", ref.SourceID, destination, err)
	}
	if err := source.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s after copy: %w", ref.SourceID, err)
	}
	return nil
}

// relocationKey keeps the object's base name under the new prefix.
func relocationKey(prefix, sourceID string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + path.Base(sourceID)
}
