// Copyright (c) respkv authors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package archive reads sequential Avro-encoded files from object
// storage as a logsource.Consumer (§4.I, archive variant).
package archive

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// countMetadataKey is the S3 user-metadata key each archive file
// carries: how many records it holds.
const countMetadataKey = "count"

// Object is one file's body plus its declared record count.
type Object struct {
	Body  []byte
	Count int64
}

// ObjectStore is the narrow object-storage contract this package
// depends on, so tests can run against an in-memory fake instead of
// real object storage.
type ObjectStore interface {
	// Get fetches one object's full body and its "count" metadata field.
	Get(key string) (Object, error)
	// ListWithPrefix lists every key sharing prefix.
	ListWithPrefix(prefix string) ([]string, error)
}

// S3Config configures an S3-backed ObjectStore.
type S3Config struct {
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Region       string
	UsePathStyle bool
}

// S3Store is an ObjectStore backed by aws-sdk-go-v2's S3 client.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds an S3Store from cfg.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: S3Store: empty bucket name")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("archive: S3Store: load AWS config: %w", err)
	}

	opts := func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}

	return &S3Store{client: s3.NewFromConfig(awsCfg, opts), bucket: cfg.Bucket}, nil
}

// Get fetches the full object body and its count metadata field.
func (s *S3Store) Get(key string) (Object, error) {
	ctx := context.Background()
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Object{}, fmt.Errorf("archive: S3Store: get object %q: %w", key, err)
	}
	defer result.Body.Close()

	body, err := io.ReadAll(result.Body)
	if err != nil {
		return Object{}, fmt.Errorf("archive: S3Store: read object %q: %w", key, err)
	}

	raw, ok := result.Metadata[countMetadataKey]
	if !ok {
		return Object{}, fmt.Errorf("archive: S3Store: object %q missing %q metadata", key, countMetadataKey)
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Object{}, fmt.Errorf("archive: S3Store: object %q has invalid %q metadata %q: %w", key, countMetadataKey, raw, err)
	}
	return Object{Body: body, Count: count}, nil
}

// ListWithPrefix lists every key under prefix.
func (s *S3Store) ListWithPrefix(prefix string) ([]string, error) {
	ctx := context.Background()
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("archive: S3Store: list prefix %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

// fileOffsetKey returns the archive key for (prefix, topic, partition,
// fileOffset): <prefix><topic>/<partition:06d>/<fileOffset:020d>.
func fileOffsetKey(prefix, topic string, partition int, fileOffset int64) string {
	return fmt.Sprintf("%s%s/%06d/%020d", prefix, topic, partition, fileOffset)
}

// partitionDirPrefix returns the listing prefix for every file belonging
// to (topic, partition).
func partitionDirPrefix(prefix, topic string, partition int) string {
	return fmt.Sprintf("%s%s/%06d/", prefix, topic, partition)
}

// parseFileOffset recovers the fileOffset component from a key listed
// under partitionDirPrefix.
func parseFileOffset(dirPrefix, key string) (int64, error) {
	suffix := strings.TrimPrefix(key, dirPrefix)
	return strconv.ParseInt(suffix, 10, 64)
}
