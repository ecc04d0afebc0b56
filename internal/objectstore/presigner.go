// Package objectstore derives time-limited download links for uploaded recordings.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"liveroom/backend/internal/config"
)

var errStorageDisabled = errors.New("recording storage is not configured; set RECORDING_S3_* to enable links")

// Presigner signs GET requests for recording objects.
type Presigner struct {
	bucket   string
	expiry   time.Duration
	presign  *s3.PresignClient
	log      zerolog.Logger
	disabled bool
}

// NewPresigner builds a presigner. Missing credentials leave it disabled rather than failing startup.
func NewPresigner(ctx context.Context, cfg config.RecordingStorageConfig, log zerolog.Logger) (*Presigner, error) {
	logger := log.With().Str("component", "s3-presigner").Logger()
	p := &Presigner{
		bucket: strings.TrimSpace(cfg.Bucket),
		expiry: cfg.URLExpiry,
		log:    logger,
	}
	if !cfg.Enabled() {
		logger.Warn().Msg("RECORDING_S3_BUCKET or credentials are not set; recording links will be omitted")
		p.disabled = true
		return p, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	p.presign = s3.NewPresignClient(client)
	return p, nil
}

// URL returns a link to key valid for the configured expiry.
func (p *Presigner) URL(ctx context.Context, key string) (string, error) {
	if p.disabled {
		return "", errStorageDisabled
	}
	req, err := p.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.expiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// Enabled reports whether links can be produced.
func (p *Presigner) Enabled() bool {
	return !p.disabled
}
