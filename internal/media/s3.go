// internal/media/s3.go
// Package media holds uploaded media: temporary local references and the
// S3-compatible object store published videos are served from.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/progress"
)

// DefaultURLTTL is how long a presigned playback URL stays valid.
const DefaultURLTTL = 24 * time.Hour

// S3Client wraps the AWS S3 client for media uploads.
type S3Client struct {
	client *s3.Client
	bucket string
	urlTTL time.Duration
}

// NewS3Client creates a client for AWS S3 or an S3-compatible service like MinIO.
func NewS3Client(endpoint, region, bucket, accessKey, secretKey string) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
		config.WithBaseEndpoint(endpoint),
		config.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     accessKey,
					SecretAccessKey: secretKey,
				}, nil
			})),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Path-style addressing for MinIO
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3Client{
		client: client,
		bucket: bucket,
		urlTTL: DefaultURLTTL,
	}, nil
}

// Prepare returns an upload of blob under a fresh key in the videos/ prefix.
func (s *S3Client) Prepare(blob Blob) Upload {
	key := path.Join("videos", ulid.Make().String()+"-"+path.Base(blob.Name))
	return s.Upload(key, blob)
}

// Upload returns a task that puts blob at key. Nothing is sent until Start.
func (s *S3Client) Upload(key string, blob Blob) *UploadTask {
	return &UploadTask{s3: s, Key: key, blob: blob}
}

// PresignGet returns a time-limited GET URL for key.
func (s *S3Client) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	res, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return res.URL, nil
}

// UploadTask is a PutObject whose progress is the share of the body read so far.
type UploadTask struct {
	s3   *S3Client
	Key  string
	blob Blob
}

func (t *UploadTask) Start(ctx context.Context, obs progress.Observer) error {
	body := &progressReader{
		Reader:  bytes.NewReader(t.blob.Data),
		tracker: progress.NewTracker(t.blob.Size(), obs),
	}
	_, err := t.s3.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.s3.bucket),
		Key:           aws.String(t.Key),
		Body:          body,
		ContentLength: aws.Int64(t.blob.Size()),
		ContentType:   aws.String(t.blob.ContentType),
	}, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", t.Key, err)
	}
	body.tracker.Finish()
	return nil
}

// URL presigns the uploaded object for playback.
func (t *UploadTask) URL(ctx context.Context) (string, error) {
	return t.s3.PresignGet(ctx, t.Key, t.s3.urlTTL)
}

// progressReader feeds bytes read into a tracker. Uploads are sent with an unsigned
// payload and no request checksum, so the body is read once, as it goes on the wire.
// A rewind for a retried request does not move the tracker back.
type progressReader struct {
	*bytes.Reader
	tracker *progress.Tracker
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	r.tracker.Add(n)
	return n, err
}

var _ io.ReadSeeker = (*progressReader)(nil)
