// Package s3 implements objectstore.Objecter on Amazon S3 or an
// S3-compatible store, exercising aws-sdk-go-v2 as a second, interchangeable
// backend behind the Objecter interface. Grounded on
// dittofs/pkg/store/content/s3 for the client/config shape, retry-with-
// backoff helper, and use of ListObjectsV2's paginator; simplified here
// since session-map objects never need multipart upload or buffered
// deletion.
//
// Object layout, mapped onto S3 keys:
//
//	<prefix><oid>/header        header bytes
//	<prefix><oid>/body          legacy body bytes
//	<prefix><oid>/omap/<key>    OMAP entry value
//
// S3 lists keys in UTF-8 lexicographic order, so ListObjectsV2 with
// Prefix+StartAfter gives the same exclusive-start paging semantics the
// Session Map's OmapGetVals contract requires.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/marmos91/mdsessiond/internal/logger"
	"github.com/marmos91/mdsessiond/pkg/objectstore"
)

// Config configures a Store.
type Config struct {
	// Client is a pre-configured S3 client.
	Client *s3.Client

	// Bucket is the S3 bucket holding session-map objects.
	Bucket string

	// KeyPrefix is prepended to every object key, e.g. "mdsessiond/".
	KeyPrefix string

	// MaxRetries bounds the retry-with-backoff loop around GetObject and
	// PutObject calls (default 3). DeleteObject, ListObjectsV2 and
	// HeadBucket are issued once, without retry.
	MaxRetries int
}

// Store is an S3-backed objectstore.Objecter.
type Store struct {
	client     *s3.Client
	bucket     string
	prefix     string
	maxRetries int
}

// New validates cfg and verifies bucket access, returning a ready Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("objectstore/s3: client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("objectstore/s3: bucket is required")
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	if _, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("objectstore/s3: access bucket %q: %w", cfg.Bucket, err)
	}

	return &Store{client: cfg.Client, bucket: cfg.Bucket, prefix: cfg.KeyPrefix, maxRetries: maxRetries}, nil
}

func (s *Store) headerKey(oid string) string { return s.prefix + oid + "/header" }
func (s *Store) bodyKey(oid string) string   { return s.prefix + oid + "/body" }
func (s *Store) omapKey(oid, k string) string { return s.prefix + oid + "/omap/" + k }
func (s *Store) omapPrefix(oid string) string { return s.prefix + oid + "/omap/" }

// isNotFound reports whether err is S3's "no such key" response, following
// dittofs's own error-classification helpers (isNotFoundError in
// pkg/store/content/s3).
func isNotFound(err error) bool {
	var nsk *s3.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}
	return false
}

func (s *Store) getObject(ctx context.Context, key string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("objectstore/s3: retrying get", logger.KeyBackend, "s3", "attempt", attempt, "key", key)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(attempt - 1)):
			}
		}

		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
		if err != nil {
			if isNotFound(err) {
				return nil, nil
			}
			lastErr = err
			continue
		}
		data, err := io.ReadAll(out.Body)
		_ = out.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return data, nil
	}
	return nil, fmt.Errorf("objectstore/s3: get %s after %d attempts: %w", key, s.maxRetries+1, lastErr)
}

func (s *Store) putObject(ctx context.Context, key string, data []byte) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug("objectstore/s3: retrying put", logger.KeyBackend, "s3", "attempt", attempt, "key", key)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt - 1)):
			}
		}
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("objectstore/s3: put %s after %d attempts: %w", key, s.maxRetries+1, lastErr)
}

func (s *Store) deleteObject(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("objectstore/s3: delete %s: %w", key, err)
	}
	return nil
}

func backoff(attempt int) time.Duration {
	d := 100 * time.Millisecond
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > 2*time.Second {
			return 2 * time.Second
		}
	}
	return d
}

// OmapGetHeader implements objectstore.Objecter.
func (s *Store) OmapGetHeader(ctx context.Context, oid string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.getObject(ctx, s.headerKey(oid))
}

// OmapGetVals implements objectstore.Objecter via ListObjectsV2's
// Prefix+StartAfter, relying on S3's lexicographic key ordering to give the
// same exclusive-start semantics the badger and memory backends provide.
func (s *Store) OmapGetVals(ctx context.Context, oid string, startAfter string, maxReturn int) ([]objectstore.KeyValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxReturn <= 0 {
		maxReturn = 1
	}

	prefix := s.omapPrefix(oid)
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(int32(maxReturn)),
	}
	if startAfter != "" {
		input.StartAfter = aws.String(s.omapKey(oid, startAfter))
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, input)

	var out []objectstore.KeyValue
	for paginator.HasMorePages() && len(out) < maxReturn {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("objectstore/s3: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			if len(out) == maxReturn {
				break
			}
			userKey := (*obj.Key)[len(prefix):]
			val, err := s.getObject(ctx, *obj.Key)
			if err != nil {
				return nil, err
			}
			out = append(out, objectstore.KeyValue{Key: userKey, Value: val})
		}
	}
	return out, nil
}

// ReadFull implements objectstore.Objecter: the legacy whole-object byte
// payload.
func (s *Store) ReadFull(ctx context.Context, oid string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.getObject(ctx, s.bodyKey(oid))
}

// Mutate implements objectstore.Objecter. S3 has no native multi-key
// transaction, so the compound operation is applied as a sequence of
// per-key PUT/DELETE calls; this is the one backend where the "one atomic
// mutation" guarantee is approximated rather than native, a tradeoff noted
// in DESIGN.md.
func (s *Store) Mutate(ctx context.Context, op objectstore.CompoundOp) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.putObject(ctx, s.headerKey(op.OID), op.Header); err != nil {
		return err
	}

	if op.TruncateBody {
		if err := s.deleteObject(ctx, s.bodyKey(op.OID)); err != nil {
			return err
		}
	}

	for k, v := range op.SetValues {
		if err := s.putObject(ctx, s.omapKey(op.OID, k), v); err != nil {
			return err
		}
	}
	for _, k := range op.RemoveKeys {
		if err := s.deleteObject(ctx, s.omapKey(op.OID, k)); err != nil {
			return err
		}
	}

	return nil
}
