// Package ingest discovers and fetches source documents from cloud
// backends and relocates them after processing.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/atikulmunna/visual-invoice-processor/internal/gauth"
	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

// SupportedMimeTypes is the default document allow list.
var SupportedMimeTypes = []string{
	"image/jpeg",
	"image/png",
	"application/pdf",
}

// DriveConfig holds the Google Drive backend settings.
type DriveConfig struct {
	InboxFolderID     string
	ProcessedFolderID string
	ReviewFolderID    string
	PageSize          int64
	Auth              gauth.Config
}

// GCSConfig holds the Cloud Storage backend settings.
type GCSConfig struct {
	Bucket        string
	InboxPrefix   string
	ArchivePrefix string
	ReviewPrefix  string
}

// Config selects and configures the ingestion backend.
type Config struct {
	Backend          string
	Drive            DriveConfig
	GCS              GCSConfig
	AllowedMimeTypes []string
}

// New creates the configured ingestor.
func New(ctx context.Context, cfg Config) (service.Ingestor, error) {
	allowed := cfg.AllowedMimeTypes
	if len(allowed) == 0 {
		allowed = SupportedMimeTypes
	}

	switch strings.ToLower(cfg.Backend) {
	case "drive":
		return newDriveIngestor(ctx, cfg.Drive, allowed)
	case "gcs":
		return newGCSIngestor(ctx, cfg.GCS, allowed)
	default:
		return nil, fmt.Errorf("unsupported ingestion backend: %s", cfg.Backend)
	}
}

// mimeAllowed reports whether a document type is in the allow list.
func mimeAllowed(mimeType string, allowed []string) bool {
	for _, candidate := range allowed {
		if mimeType == candidate {
			return true
		}
	}
	return false
}
