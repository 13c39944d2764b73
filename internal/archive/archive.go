package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// Store keeps a copy of every raw upload.
type Store interface {
	Put(ctx context.Context, tenantID uint, kind string, data []byte) (string, error)
}

// NopStore discards uploads.
type NopStore struct{}

// Put implements Store.
func (NopStore) Put(context.Context, uint, string, []byte) (string, error) { return "", nil }

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes uploads to an S3 bucket under <prefix>/<tenant>/<kind>/.
type S3Store struct {
	client objectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewS3Store builds an S3Store from the default AWS credential chain.
func NewS3Store(ctx context.Context, bucket, prefix string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
		UsePathStyle: true,
	})
	return &S3Store{client: client, bucket: bucket, prefix: prefix, now: time.Now}, nil
}

// Put implements Store and returns the object key.
func (s *S3Store) Put(ctx context.Context, tenantID uint, kind string, data []byte) (string, error) {
	key := s.key(tenantID, kind)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return key, nil
}

func (s *S3Store) key(tenantID uint, kind string) string {
	name := fmt.Sprintf("%s_%s.csv", s.now().UTC().Format("20060102_150405"), uuid.NewString())
	return path.Join(s.prefix, fmt.Sprint(tenantID), kind, name)
}
