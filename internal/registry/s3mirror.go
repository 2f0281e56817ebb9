package registry

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// S3Mirror best-effort uploads published artifacts to an S3-compatible
// bucket. It is additive: the local filesystem registry remains the
// source of truth, and a mirror failure never fails the publish that
// triggered it (§4.11 DOMAIN note).
type S3Mirror struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	log      zerolog.Logger
}

// NewS3Mirror builds an S3Mirror against an S3-compatible endpoint
// (empty endpoint uses AWS's default resolver), following the same
// custom-resolver-plus-static-credentials construction the teacher's R2
// client and Siryoos-tartarus's S3Store use for MinIO/R2 compatibility.
func NewS3Mirror(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, log zerolog.Logger) (*S3Mirror, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("registry: load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Mirror{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		log:      log.With().Str("component", "registry_s3_mirror").Logger(),
	}, nil
}

// Mirror uploads entry's artifact bytes to the bucket under its
// kind/filename path. Failures are logged, not returned, per the
// additive/best-effort contract.
func (m *S3Mirror) Mirror(ctx context.Context, entry Entry, data []byte) {
	key := fmt.Sprintf("%s/%s", entry.Kind, entry.Filename)
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("s3 mirror upload failed, local registry remains authoritative")
		return
	}
	m.log.Debug().Str("key", key).Msg("artifact mirrored to s3")
}

// PublishAndMirror publishes through r and, if mirror is non-nil, mirrors
// the result without blocking the caller on the upload's outcome.
func PublishAndMirror(ctx context.Context, r *Registry, mirror *S3Mirror, kind, ext string, data []byte, metrics map[string]float64) (Entry, error) {
	entry, err := r.Publish(kind, ext, data, metrics)
	if err != nil {
		return Entry{}, err
	}
	if mirror != nil {
		go mirror.Mirror(context.WithoutCancel(ctx), entry, data)
	}
	return entry, nil
}
