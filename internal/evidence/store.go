package evidence

import (
	"context"

	"commerce-core/internal/config"

	"github.com/rs/zerolog"
)

// NewStore builds the evidence store from configuration: S3 with a local
// fallback when enabled, otherwise the local directory alone. An S3 client
// that cannot be initialised degrades to local storage.
func NewStore(ctx context.Context, cfg config.EvidenceConfig, logger zerolog.Logger) Store {
	local := NewFileStore(cfg.LocalDir, logger)

	if !cfg.S3.Enabled {
		logger.Info().Str("dir", cfg.LocalDir).Msg("using local file system for refund evidence (S3 disabled)")
		return local
	}

	remote, err := NewS3Store(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 evidence store, falling back to local file system only")
		return local
	}

	return NewFallbackStore(remote, local, logger)
}
