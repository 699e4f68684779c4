package objstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/cenkalti/backoff/v4"

	"github.com/objvault/vaultcheck/catalog"
)

// S3Accessor lists a bucket/prefix and reports bucket versioning/lifecycle,
// grounded on weed/remote_storage/s3/s3_storage_client.go's session setup
// and ListObjectsV2Pages pagination idiom.
type S3Accessor struct {
	bucket string
	prefix string
	uri    string
	conn   s3iface.S3API
}

// NewS3Accessor builds an accessor from a storage-vault config.
func NewS3Accessor(conf catalog.StorageVaultPB) (*S3Accessor, error) {
	cfg := &aws.Config{
		Region:           aws.String(conf.Region),
		Endpoint:         aws.String(conf.Endpoint),
		S3ForcePathStyle: aws.Bool(true),
	}
	if conf.AK != "" && conf.SK != "" {
		cfg.Credentials = credentials.NewStaticCredentials(conf.AK, conf.SK, "")
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return &S3Accessor{
		bucket: conf.Bucket,
		prefix: conf.Prefix,
		uri:    fmt.Sprintf("s3://%s/%s", conf.Bucket, conf.Prefix),
		conn:   s3.New(sess),
	}, nil
}

func (a *S3Accessor) Type() AccessorType { return TypeS3 }

func (a *S3Accessor) URI() string { return a.uri }

func (a *S3Accessor) ListDirectory(ctx context.Context, prefix string) ListIterator {
	fullPrefix := prefix
	if a.prefix != "" {
		fullPrefix = a.prefix + "/" + prefix
	}
	it := &s3ListIterator{
		ctx:        ctx,
		conn:       a.conn,
		bucket:     a.bucket,
		rootPrefix: a.prefix,
		input: &s3.ListObjectsV2Input{
			Bucket: aws.String(a.bucket),
			Prefix: aws.String(fullPrefix),
		},
	}
	it.fetchPage()
	return it
}

// CheckVersioning reports whether bucket versioning is enabled, the
// precondition the inspector requires before trusting bucket lifecycle days.
func (a *S3Accessor) CheckVersioning(ctx context.Context) error {
	out, err := a.conn.GetBucketVersioningWithContext(ctx, &s3.GetBucketVersioningInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		return fmt.Errorf("get bucket versioning for %s: %w", a.bucket, err)
	}
	if out.Status == nil || *out.Status != s3.BucketVersioningStatusEnabled {
		return fmt.Errorf("bucket %s does not have versioning enabled", a.bucket)
	}
	return nil
}

// GetLifecycle returns the minimum expiration day count across all enabled
// lifecycle rules on the bucket. A bucket with no lifecycle configuration
// (and therefore no expiration) returns a large sentinel so callers treat it
// as effectively unbounded.
func (a *S3Accessor) GetLifecycle(ctx context.Context) (int64, error) {
	out, err := a.conn.GetBucketLifecycleConfigurationWithContext(ctx, &s3.GetBucketLifecycleConfigurationInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		if isNoSuchLifecycleConfiguration(err) {
			return noLifecycleDays, nil
		}
		return 0, fmt.Errorf("get bucket lifecycle for %s: %w", a.bucket, err)
	}
	minDays := int64(-1)
	for _, rule := range out.Rules {
		if rule.Status == nil || *rule.Status != s3.ExpirationStatusEnabled {
			continue
		}
		if rule.Expiration == nil || rule.Expiration.Days == nil {
			continue
		}
		days := *rule.Expiration.Days
		if minDays < 0 || int64(days) < minDays {
			minDays = int64(days)
		}
	}
	if minDays < 0 {
		return noLifecycleDays, nil
	}
	return minDays, nil
}

// noLifecycleDays stands in for "no expiration configured"; it is large
// enough that the inspector's expiration window never elapses, so no alarm
// fires for it.
const noLifecycleDays = int64(1) << 32

func isNoSuchLifecycleConfiguration(err error) bool {
	type awsErr interface {
		Code() string
	}
	if ae, ok := err.(awsErr); ok {
		return ae.Code() == "NoSuchLifecycleConfiguration"
	}
	return false
}

type s3ListIterator struct {
	ctx        context.Context
	conn       s3iface.S3API
	bucket     string
	rootPrefix string
	input      *s3.ListObjectsV2Input
	entries    []ObjectInfo
	pos        int
	lastPage   bool
	err        error
}

// stripPrefix removes the vault's configured root prefix (plus its
// separating slash) from an S3 key, mirroring hdfs.go's relPath so
// ObjectInfo.Path is layout-relative regardless of accessor backend.
func stripPrefix(rootPrefix, key string) string {
	if rootPrefix == "" {
		return key
	}
	trimmed := strings.TrimPrefix(key, rootPrefix)
	return strings.TrimPrefix(trimmed, "/")
}

func (it *s3ListIterator) fetchPage() {
	var out *s3.ListObjectsV2Output
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), it.ctx)
	err := backoff.Retry(func() error {
		o, listErr := it.conn.ListObjectsV2WithContext(it.ctx, it.input)
		if listErr != nil {
			return listErr
		}
		out = o
		return nil
	}, bo)
	if err != nil {
		it.err = err
		return
	}
	it.entries = it.entries[:0]
	it.pos = 0
	for _, content := range out.Contents {
		it.entries = append(it.entries, ObjectInfo{
			Path: stripPrefix(it.rootPrefix, aws.StringValue(content.Key)),
			Size: aws.Int64Value(content.Size),
		})
	}
	it.input.ContinuationToken = out.NextContinuationToken
	it.lastPage = out.NextContinuationToken == nil
}

func (it *s3ListIterator) Next() (ObjectInfo, bool) {
	if it.err != nil {
		return ObjectInfo{}, false
	}
	if it.pos >= len(it.entries) {
		if it.lastPage {
			return ObjectInfo{}, false
		}
		it.fetchPage()
		if it.err != nil || it.pos >= len(it.entries) {
			return ObjectInfo{}, false
		}
	}
	e := it.entries[it.pos]
	it.pos++
	return e, true
}

func (it *s3ListIterator) Valid() bool {
	return it.err == nil
}
