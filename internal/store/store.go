// Package store implements the Downloader contract (spec §6) against three
// backends -- local filesystem, S3, and GCS -- adapted from the teacher's
// repeated store.go shape (dsymprocessor, proguardprocessor,
// symbolicatorprocessor, and sourcemapprocessor all carry a near-identical
// version of this fetch-by-key struct).
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"go.uber.org/zap"
)

// ErrFileNotFound is a definitive miss: the sym file does not exist at the
// expected location.
var ErrFileNotFound = errors.New("sym file not found")

// ErrErrorFileNotFound is a transient/upstream error while looking up a sym
// file -- the file may or may not exist, but the backend couldn't tell us.
var ErrErrorFileNotFound = errors.New("error while looking up sym file")

// Downloader fetches a sym file's raw bytes for a given module identity.
type Downloader interface {
	Get(ctx context.Context, debugFilename, debugID, symFilename string) ([]byte, error)
}

// store is the shared shape behind all three backends: a fetch-by-key
// function plus a key prefix, mirroring the teacher's store struct.
type store struct {
	fetch  func(ctx context.Context, key string) ([]byte, error)
	logger *zap.Logger
	prefix string
}

func (s *store) Get(ctx context.Context, debugFilename, debugID, symFilename string) ([]byte, error) {
	key := filepath.Join(s.prefix, debugFilename, debugID, symFilename)
	s.logger.Debug("fetching sym file", zap.String("key", key))

	data, err := s.fetch(ctx, key)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, key)
		}
		s.logger.Warn("error fetching sym file", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", ErrErrorFileNotFound, key, err)
	}
	return data, nil
}

// LocalConfig configures NewLocal.
type LocalConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// NewLocal returns a Downloader reading sym files from a local directory
// tree.
func NewLocal(logger *zap.Logger, cfg *LocalConfig) (Downloader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no local store configuration provided")
	}
	return &store{
		logger: logger,
		prefix: cfg.Path,
		fetch: func(_ context.Context, key string) ([]byte, error) {
			data, err := os.ReadFile(key)
			if errors.Is(err, os.ErrNotExist) {
				return nil, ErrFileNotFound
			}
			return data, err
		},
	}, nil
}

// S3Config configures NewS3.
type S3Config struct {
	Region     string `mapstructure:"region" yaml:"region"`
	BucketName string `mapstructure:"bucket" yaml:"bucket"`
	Prefix     string `mapstructure:"prefix" yaml:"prefix"`
}

// NewS3 returns a Downloader reading sym files from an S3 bucket.
func NewS3(ctx context.Context, logger *zap.Logger, cfg *S3Config) (Downloader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no S3 store configuration provided")
	}

	opts := make([]func(*config.LoadOptions) error, 0)
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsConfig)

	return &store{
		logger: logger,
		prefix: cfg.Prefix,
		fetch: func(ctx context.Context, key string) ([]byte, error) {
			key = strings.TrimPrefix(key, "/")
			result, err := client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(cfg.BucketName),
				Key:    aws.String(key),
			})
			if err != nil {
				var respErr *smithyhttp.ResponseError
				if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
					return nil, ErrFileNotFound
				}
				return nil, err
			}
			defer result.Body.Close()
			return io.ReadAll(result.Body)
		},
	}, nil
}

// GCSConfig configures NewGCS.
type GCSConfig struct {
	BucketName string `mapstructure:"bucket" yaml:"bucket"`
	Prefix     string `mapstructure:"prefix" yaml:"prefix"`
}

// NewGCS returns a Downloader reading sym files from a GCS bucket.
func NewGCS(ctx context.Context, logger *zap.Logger, cfg *GCSConfig) (Downloader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("no GCS store configuration provided")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	bucket := client.Bucket(cfg.BucketName)

	return &store{
		logger: logger,
		prefix: cfg.Prefix,
		fetch: func(ctx context.Context, key string) ([]byte, error) {
			key = strings.TrimPrefix(key, "/")
			r, err := bucket.Object(key).NewReader(ctx)
			if err != nil {
				if errors.Is(err, storage.ErrObjectNotExist) {
					return nil, ErrFileNotFound
				}
				return nil, err
			}
			defer r.Close()
			return io.ReadAll(r)
		},
	}, nil
}
