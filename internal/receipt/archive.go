package receipt

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// Archive keeps the original receipt photos.
type Archive interface {
	// Store saves a photo and returns its gs:// URI.
	Store(ctx context.Context, chatID, messageID int64, data []byte, contentType string) (string, error)
}

// GCSArchive stores photos in a Cloud Storage bucket.
// It assumes Application Default Credentials are configured.
type GCSArchive struct {
	client *storage.Client
	bucket string
}

// NewGCSArchive creates a storage client for bucket.
func NewGCSArchive(ctx context.Context, bucket string) (*GCSArchive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSArchive: create storage client: %w", err)
	}
	return &GCSArchive{client: client, bucket: bucket}, nil
}

// Close releases the storage client.
func (a *GCSArchive) Close() error {
	return a.client.Close()
}

// ObjectName is the object path of a receipt photo.
func ObjectName(chatID, messageID int64, contentType string) string {
	ext := ".jpg"
	if contentType == "image/png" {
		ext = ".png"
	}
	return fmt.Sprintf("receipts/%d/%d%s", chatID, messageID, ext)
}

func (a *GCSArchive) Store(ctx context.Context, chatID, messageID int64, data []byte, contentType string) (string, error) {
	objectName := ObjectName(chatID, messageID, contentType)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Store: writing %s: %w", objectName, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Store: finalize upload %s: %w", objectName, err)
	}
	return "gs://" + a.bucket + "/" + objectName, nil
}

// Fetch downloads an archived photo by its gs:// URI.
func (a *GCSArchive) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucket, object, err := SplitGCSURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}
	rc, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// SplitGCSURI splits gs://bucket/path/to/object into bucket and object path.
func SplitGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// MessageIDFromObject recovers the message id from an archived object name,
// e.g. "receipts/42/1001.jpg" → "1001".
func MessageIDFromObject(object string) string {
	base := path.Base(object)
	return strings.TrimSuffix(base, path.Ext(base))
}

var _ Archive = (*GCSArchive)(nil)
