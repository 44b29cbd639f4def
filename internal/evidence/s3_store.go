package evidence

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store uploads evidence to an S3 bucket under a key prefix.
type S3Store struct {
	client objectPutter
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Store creates an S3-backed evidence store using the default AWS
// credential chain.
func NewS3Store(ctx context.Context, bucket, region, prefix string, logger zerolog.Logger) (*S3Store, error) {
	logger = logger.With().Str("component", "evidence-s3-store").Logger()

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		logger.Error().Err(err).Msg("failed to load AWS configuration")
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	logger.Info().
		Str("bucket", bucket).
		Str("region", region).
		Msg("S3 evidence store initialised")

	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Put uploads data as prefix+key and returns its s3:// location.
func (s *S3Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	objectKey := s.prefix + key
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("bucket", s.bucket).
			Str("key", objectKey).
			Msg("failed to put object to S3")
		return "", fmt.Errorf("failed to put object to S3 (bucket=%s, key=%s): %w", s.bucket, objectKey, err)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, objectKey), nil
}

// FallbackStore tries the primary store first and writes locally when it
// fails or is absent.
type FallbackStore struct {
	primary Store
	local   Store
	logger  zerolog.Logger
}

// NewFallbackStore creates a store that prefers primary. A nil primary means
// local only.
func NewFallbackStore(primary, local Store, logger zerolog.Logger) *FallbackStore {
	return &FallbackStore{
		primary: primary,
		local:   local,
		logger:  logger.With().Str("component", "evidence-fallback-store").Logger(),
	}
}

func (s *FallbackStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if s.primary != nil {
		location, err := s.primary.Put(ctx, key, contentType, data)
		if err == nil {
			return location, nil
		}

		s.logger.Warn().
			Err(err).
			Str("key", key).
			Msg("failed to store evidence remotely, falling back to local file system")
	}

	return s.local.Put(ctx, key, contentType, data)
}
