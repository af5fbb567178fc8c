package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/fyrsmithlabs/reis-engine/internal/sourcefile"
)

// bucketCreateMu serialises "create bucket if not exists" across every S3
// store instance in the process, matching the single shared client model
// described for blob store clients.
var bucketCreateMu sync.Mutex

// S3Config names the object-store credentials and target bucket.
type S3Config struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	RegionName      string
	BucketName      string
	TempRoot        string
}

// S3 is a blob store backed by an S3-compatible object store. On
// construction it attempts to create the configured bucket, treating
// "already owned by you" as success.
type S3 struct {
	client   *s3.Client
	bucket   string
	tempRoot string
}

// NewS3 builds an S3 client from cfg and ensures the bucket exists.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.RegionName),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("blobstore: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
		o.UsePathStyle = true
	})

	store := &S3{client: client, bucket: cfg.BucketName, tempRoot: cfg.TempRoot}

	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *S3) ensureBucket(ctx context.Context) error {
	bucketCreateMu.Lock()
	defer bucketCreateMu.Unlock()

	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var alreadyOwned *types.BucketAlreadyOwnedByYou
	var alreadyExists *types.BucketAlreadyExists
	if errors.As(err, &alreadyOwned) || errors.As(err, &alreadyExists) {
		return nil
	}

	return fmt.Errorf("blobstore: create bucket %s: %w", s.bucket, err)
}

func (s *S3) AddDocument(ctx context.Context, file *sourcefile.File) error {
	data, err := file.Buffer()
	if err != nil {
		return fmt.Errorf("blobstore: read source: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(file.ID),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("blobstore: put object %s: %w", file.ID, err)
	}
	return nil
}

func (s *S3) Delete(ctx context.Context, docID string) error {
	exists, err := s.Exists(ctx, docID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(docID),
	})
	if err != nil {
		return fmt.Errorf("blobstore: delete object %s: %w", docID, err)
	}
	return nil
}

func (s *S3) GetDocument(ctx context.Context, docID string) (*sourcefile.File, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(docID),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blobstore: get object %s: %w", docID, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read object body: %w", err)
	}

	scope, err := sourcefile.TempFile(s.tempRoot, data, ".pdf", "application/pdf", docID+".pdf")
	if err != nil {
		return nil, fmt.Errorf("blobstore: materialise temp file: %w", err)
	}
	return scope.File, nil
}

func (s *S3) Exists(ctx context.Context, docID string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(docID),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("blobstore: head object %s: %w", docID, err)
	}
	return true, nil
}

// isNotFound reports whether err represents a missing S3 object, covering
// both the typed NoSuchKey error and a bare 404 status returned by HEAD.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404":
			return true
		}
	}
	return false
}
