package config

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/mdsessiond/pkg/objectstore"
	badgerstore "github.com/marmos91/mdsessiond/pkg/objectstore/badger"
	memorystore "github.com/marmos91/mdsessiond/pkg/objectstore/memory"
	s3store "github.com/marmos91/mdsessiond/pkg/objectstore/s3"
)

// BuildObjectStore constructs the objectstore.Objecter selected by
// cfg.Backend, following the dispatch-by-type-string shape of
// dittofs/pkg/config's createMetadataStore.
func BuildObjectStore(ctx context.Context, cfg ObjectStoreConfig) (objectstore.Objecter, error) {
	switch cfg.Backend {
	case "badger":
		return badgerstore.Open(cfg.Badger.Path)
	case "s3":
		return newS3Store(ctx, cfg.S3)
	case "memory":
		return memorystore.New(), nil
	default:
		return nil, fmt.Errorf("unknown objectstore backend %q", cfg.Backend)
	}
}

func newS3Store(ctx context.Context, cfg S3StoreConfig) (*s3store.Store, error) {
	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("building s3 client: %w", err)
	}

	return s3store.New(ctx, s3store.Config{
		Client:     client,
		Bucket:     cfg.Bucket,
		KeyPrefix:  cfg.Prefix,
		MaxRetries: cfg.MaxRetries,
	})
}

// newS3Client builds an aws-sdk-go-v2 S3 client from static credentials,
// following dittofs/pkg/store/content/s3's NewS3ClientFromConfig.
func newS3Client(ctx context.Context, cfg S3StoreConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
		o.UsePathStyle = cfg.Endpoint != ""
	})

	return client, nil
}
