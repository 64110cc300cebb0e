package ingest

import (
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/atikulmunna/visual-invoice-processor/internal/common"
	"github.com/atikulmunna/visual-invoice-processor/internal/model"
	"github.com/atikulmunna/visual-invoice-processor/internal/service"
)

// driveIngestor reads documents from a Google Drive inbox folder and
// relocates them to processed and review folders.
type driveIngestor struct {
	service           *drive.Service
	inboxFolderID     string
	processedFolderID string
	reviewFolderID    string
	pageSize          int64
	allowedMimeTypes  []string
}

// newDriveIngestor creates a Drive-backed ingestor.
func newDriveIngestor(ctx context.Context, cfg DriveConfig, allowed []string) (service.Ingestor, error) {
	if cfg.InboxFolderID == "" {
		return nil, fmt.Errorf("drive inbox folder ID is required")
	}

	httpClient, err := cfg.Auth.Client(ctx, drive.DriveScope)
	if err != nil {
		return nil, err
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create drive service: %w", err)
	}

	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = 1000
	}

	return &driveIngestor{
		service:           srv,
		inboxFolderID:     cfg.InboxFolderID,
		processedFolderID: cfg.ProcessedFolderID,
		reviewFolderID:    cfg.ReviewFolderID,
		pageSize:          pageSize,
		allowedMimeTypes:  allowed,
	}, nil
}

// Name identifies the backend in logs and audit rows.
func (d *driveIngestor) Name() string {
	return "drive"
}

// List returns the supported documents in the inbox folder.
func (d *driveIngestor) List(ctx context.Context) ([]model.FileRef, error) {
	query := driveQuery(d.inboxFolderID, d.allowedMimeTypes)

	var refs []model.FileRef
	pageToken := ""
	for {
		call := d.service.Files.List().
			Q(query).
			Fields("nextPageToken, files(id,name,mimeType,size)").
			PageSize(d.pageSize).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		response, err := call.Do()
		if err != nil {
			return nil, &common.RetryableError{Err: fmt.Errorf("failed to list inbox folder: %w", err), Retryable: true}
		}

		for _, file := range response.Files {
			if !mimeAllowed(file.MimeType, d.allowedMimeTypes) {
				continue
			}
			refs = append(refs, model.FileRef{
				SourceID: file.Id,
				Name:     file.Name,
				MimeType: file.MimeType,
				Size:     file.Size,
			})
		}

		if response.NextPageToken == "" {
			break
		}
		pageToken = response.NextPageToken
	}

	return refs, nil
}

// driveQuery builds the files.list query: inbox children, not trashed,
// restricted to the allowed document types.
func driveQuery(folderID string, allowed []string) string {
	query := fmt.Sprintf("'%s' in parents and trashed = false", folderID)
	if len(allowed) == 0 {
		return query
	}

	clauses := make([]string, 0, len(allowed))
	for _, mimeType := range allowed {
		clauses = append(clauses, fmt.Sprintf("mimeType='%s'", mimeType))
	}
	return query + " and (" + strings.Join(clauses, " or ") + ")"
}

// Fetch downloads the raw bytes for a document.
func (d *driveIngestor) Fetch(ctx context.Context, ref model.FileRef) ([]byte, error) {
	response, err := d.service.Files.Get(ref.SourceID).Context(ctx).Download()
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to download %s: %w", ref.Name, err), Retryable: true}
	}
	defer func() { _ = response.Body.Close() }()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to read %s: %w", ref.Name, err), Retryable: true}
	}
	return data, nil
}

// Archive moves a stored document to the processed folder.
func (d *driveIngestor) Archive(ctx context.Context, ref model.FileRef) error {
	return d.move(ctx, ref, d.processedFolderID)
}

// MoveToReview moves a flagged document to the review folder.
func (d *driveIngestor) MoveToReview(ctx context.Context, ref model.FileRef) error {
	return d.move(ctx, ref, d.reviewFolderID)
}

// move reparents the file out of the inbox. An empty destination means
// relocation is not configured and the file stays put.
func (d *driveIngestor) move(ctx context.Context, ref model.FileRef, folderID string) error {
	if folderID == "" {
		return nil
	}

	_, err := d.service.Files.Update(ref.SourceID, nil).
		AddParents(folderID).
		RemoveParents(d.inboxFolderID).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to move %s to folder %s: %w", ref.Name, folderID, err)
	}
	return nil
}
