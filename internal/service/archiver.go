package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/connexus-ai/hybridsearch/internal/model"
)

// SignedURLOptions configures a signed object-storage URL (§4.4a).
type SignedURLOptions struct {
	Method      string
	Expires     time.Time
	ContentType string
}

// ObjectUploader abstracts the object-storage write path archival needs.
// Implemented by gcpclient.StorageAdapter.
type ObjectUploader interface {
	Upload(ctx context.Context, bucket, object string, data []byte, contentType string) error
}

// StorageClient extends ObjectUploader with the read/signing operations a
// future "fetch archived copy" admin path would need against archived
// payloads. gcpclient.StorageAdapter implements the full interface even
// though ArchiverService itself only exercises ObjectUploader.
type StorageClient interface {
	ObjectUploader
	SignedURL(bucket, object string, opts *SignedURLOptions) (string, error)
	SignedDownloadURL(ctx context.Context, bucket, object string, expiry time.Duration) (string, error)
	Download(ctx context.Context, bucket, object string) ([]byte, error)
}

// ArchiverService implements §4.4a: each successfully fetched document's raw
// CMS payload is archived to object storage, keyed by documentId, before
// chunking, so a failed downstream chunk/embed step can be retried from the
// archive without re-fetching the CMS. A nil client or empty bucket makes
// Archive a no-op, matching the spec's "optional GCS bucket" posture.
type ArchiverService struct {
	client ObjectUploader
	bucket string
}

// NewArchiverService creates an ArchiverService. Pass a nil client to
// disable archival entirely.
func NewArchiverService(client ObjectUploader, bucket string) *ArchiverService {
	return &ArchiverService{client: client, bucket: bucket}
}

// Archive uploads doc's raw payload and returns the object URI to stamp onto
// doc.RawPayloadURI. Callers must treat a non-nil error as non-fatal
// (DependencyDegraded) and continue indexing without the archive.
func (a *ArchiverService) Archive(ctx context.Context, doc *model.Document) (string, error) {
	if a == nil || a.client == nil || a.bucket == "" {
		return "", nil
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("service.Archive: marshal: %w", err)
	}

	object := fmt.Sprintf("documents/%s.json", doc.ID)
	if err := a.client.Upload(ctx, a.bucket, object, payload, "application/json"); err != nil {
		return "", fmt.Errorf("service.Archive: upload: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, object), nil
}
