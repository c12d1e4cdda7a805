package s3blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// uploadPartSize is the part size handed to the upload manager. A day's
// outcome archive is a few KiB of JSONL, so in practice every upload is a
// single PutObject; the manager only splits payloads past this size, which
// would take a very large backfill bundle.
const uploadPartSize int64 = 8 * 1024 * 1024

// Writer implements domain.BlobWriter on the archive bucket. Every key is
// placed under the configured prefix, so one bucket can hold archives from
// several bot environments (paper, live) side by side.
type Writer struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	logger   *slog.Logger
}

// NewWriter creates a Writer uploading to the client's bucket. prefix may be
// empty.
func NewWriter(c *Client, prefix string, logger *slog.Logger) *Writer {
	return &Writer{
		uploader: manager.NewUploader(c.S3(), func(u *manager.Uploader) {
			u.PartSize = uploadPartSize
		}),
		bucket: c.Bucket(),
		prefix: prefix,
		logger: logger.With(slog.String("component", "s3_writer")),
	}
}

// Put uploads data under the writer's prefix.
func (w *Writer) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	full := key
	if w.prefix != "" {
		full = path.Join(w.prefix, key)
	}

	_, err := w.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(full),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put %s: %w", full, err)
	}

	w.logger.Debug("archive object uploaded", slog.String("key", full))
	return nil
}
