package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"jan-server/services/mesh-api/internal/config"
)

// ErrMirrorDisabled is returned when S3 mirroring is not configured.
var ErrMirrorDisabled = errors.New("model mirror is not configured; set MESH_S3_* to enable")

const modelContentType = "model/gltf-binary"

// S3Mirror copies finished models to S3-compatible storage.
type S3Mirror struct {
	bucket     string
	client     *s3.Client
	presign    *s3.PresignClient
	presignTTL time.Duration
	log        zerolog.Logger
	disabled   bool
}

// NewS3Mirror creates the mirror. Missing bucket or credentials disable it.
func NewS3Mirror(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*S3Mirror, error) {
	logger := log.With().Str("component", "s3-mirror").Logger()
	mirror := &S3Mirror{
		bucket:     cfg.S3Bucket,
		presignTTL: cfg.S3PresignTTL,
		log:        logger,
	}

	if !cfg.IsS3MirrorEnabled() {
		logger.Info().Msg("MESH_S3_BUCKET or credentials are not set; finished models stay on local disk only")
		mirror.disabled = true
		return mirror, nil
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if cfg.S3Endpoint != "" {
			return aws.Endpoint{
				URL:           cfg.S3Endpoint,
				PartitionID:   "aws",
				SigningRegion: cfg.S3Region,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretKey, "")),
		awsconfig.WithEndpointResolverWithOptions(resolver),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	mirror.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3UsePathStyle
	})
	mirror.presign = s3.NewPresignClient(mirror.client)
	return mirror, nil
}

// Enabled reports whether models are mirrored.
func (m *S3Mirror) Enabled() bool {
	return !m.disabled
}

// ObjectKey returns the bucket key used for a job's model file.
func ObjectKey(jobID, localPath string) string {
	return path.Join("models", jobID, filepath.Base(localPath))
}

// Mirror uploads the model at localPath and returns a presigned download URL.
func (m *S3Mirror) Mirror(ctx context.Context, jobID, localPath string) (string, error) {
	if m.disabled {
		return "", ErrMirrorDisabled
	}

	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open model: %w", err)
	}
	defer file.Close()

	key := ObjectKey(jobID, localPath)
	if _, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(modelContentType),
	}); err != nil {
		return "", fmt.Errorf("upload model: %w", err)
	}

	req, err := m.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(m.presignTTL))
	if err != nil {
		return "", fmt.Errorf("presign model url: %w", err)
	}

	m.log.Debug().
		Str("job_id", jobID).
		Str("key", key).
		Msg("model mirrored")
	return req.URL, nil
}

// Health performs a simple HeadBucket request.
func (m *S3Mirror) Health(ctx context.Context) error {
	if m.disabled {
		return nil
	}
	_, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(m.bucket)})
	return err
}
