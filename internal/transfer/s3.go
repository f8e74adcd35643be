// Package transfer uploads queued payloads to S3-compatible object storage
// (Cloudflare R2, MinIO, AWS S3).
package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"notely/internal/attachments"
	"notely/internal/config"
	"notely/internal/logging"
	"notely/internal/queue"
	"notely/internal/services"
	"notely/internal/upload"
)

// S3 implements upload.Transfer on top of the S3 upload manager.
type S3 struct {
	client        *s3.Client
	uploader      *manager.Uploader
	bucket        string
	endpoint      string
	publicBaseURL string
	logger        *slog.Logger
	now           func() time.Time
}

// New builds an S3 transfer from the storage section of cfg.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*S3, error) {
	st := cfg.Storage
	if strings.TrimSpace(st.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transfer", "init", "storage.bucket is not configured", nil)
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(st.Region),
		awsconfig.WithRetryMaxAttempts(1),
	}
	if st.AccessKeyID != "" || st.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(st.AccessKeyID, st.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "transfer", "init", "Failed to load AWS config", err)
	}

	endpoint := strings.TrimRight(strings.TrimSpace(st.Endpoint), "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = st.UsePathStyle
	})
	return &S3{
		client:        client,
		uploader:      manager.NewUploader(client),
		bucket:        st.Bucket,
		endpoint:      endpoint,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(st.PublicBaseURL), "/"),
		logger:        logging.NewComponentLogger(logger, "transfer"),
		now:           time.Now,
	}, nil
}

// Upload sends the job payload and reports progress as bytes are consumed.
func (s *S3) Upload(ctx context.Context, job *queue.Job, onProgress upload.ProgressFunc) (attachments.Meta, error) {
	key := attachments.ObjectKey(job.OwnerID, job.ParentID, job.Name, s.now())
	total := int64(len(job.Payload))
	body := &progressReader{r: bytes.NewReader(job.Payload), total: total, onProgress: onProgress}

	contentType := job.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(total),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attachments.Meta{}, ctxErr
		}
		return attachments.Meta{}, services.Wrap(services.ErrTransient, "transfer", "put object",
			fmt.Sprintf("Upload of %s failed", key), errors.Join(upload.ErrTransferFailed, err))
	}
	if onProgress != nil {
		onProgress(total, total)
	}

	s.logger.DebugContext(ctx, "object stored", logging.JobID(job.ID), logging.String("key", key))
	return attachments.Meta{
		URL:         s.objectURL(key),
		Path:        key,
		Name:        job.Name,
		SizeBytes:   total,
		ContentType: contentType,
	}, nil
}

func (s *S3) objectURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	switch {
	case s.publicBaseURL != "":
		return s.publicBaseURL + "/" + escaped
	case s.endpoint != "":
		return s.endpoint + "/" + s.bucket + "/" + escaped
	default:
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, escaped)
	}
}

// Ping verifies the bucket is reachable with the configured credentials.
func (s *S3) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return services.Wrap(services.ErrTransient, "transfer", "head bucket", "Bucket is unreachable", err)
	}
	return nil
}

type progressReader struct {
	r          io.Reader
	total      int64
	read       atomic.Int64
	onProgress upload.ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 && p.onProgress != nil {
		p.onProgress(p.read.Add(int64(n)), p.total)
	}
	return n, err
}
