package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

const (
	MinS3PartSize = int64(5 * 1024 * 1024) // S3/MinIO minimum for all but the last part
	maxS3Parts    = 10000
)

// S3API is the subset of the S3 client used by multipart sessions.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	SessionToken string
	Timeout      time.Duration
}

// S3Client uploads objects below a key prefix using S3 multipart uploads, one
// part per chunk.
type S3Client struct {
	api    S3API
	bucket string
}

func NewS3Client(api S3API, bucket string) *S3Client {
	return &S3Client{api: api, bucket: bucket}
}

// NewS3ClientWithConfig builds an SDK client with its own HTTP transport. Each
// call yields an independent client.
func NewS3ClientWithConfig(ctx context.Context, cfg *S3Config) (*S3Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          16,
			MaxIdleConnsPerHost:   4,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: timeout,
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
		// retries belong to the upload engine
		config.WithRetryMaxAttempts(1),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	awsClient := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3Client(awsClient, cfg.Bucket), nil
}

// Begin keys the object as <parent>/<name>; the parent is the destination folder.
func (c *S3Client) Begin(ctx context.Context, meta Metadata, src io.ReaderAt, chunkSize int64) (Session, error) {
	if meta.Name == "" {
		return nil, errors.New("object name required")
	}
	if meta.Size < 0 {
		return nil, fmt.Errorf("invalid object size %d", meta.Size)
	}

	key := meta.Name
	if len(meta.Parents) > 0 && meta.Parents[0] != "" {
		key = path.Join(strings.Trim(meta.Parents[0], "/"), meta.Name)
	}

	return &s3Session{
		api:      c.api,
		bucket:   c.bucket,
		key:      key,
		meta:     meta,
		src:      src,
		partSize: s3PartSize(meta.Size, chunkSize),
	}, nil
}

// s3PartSize raises the chunk size to the S3 minimum and doubles it until the
// object fits in the part limit.
func s3PartSize(size, chunkSize int64) int64 {
	partSize := max(chunkSize, MinS3PartSize)
	for (size+partSize-1)/partSize > maxS3Parts {
		partSize *= 2
	}
	return partSize
}

type s3Session struct {
	api      S3API
	bucket   string
	key      string
	meta     Metadata
	src      io.ReaderAt
	partSize int64

	uploadID string
	parts    []types.CompletedPart
	offset   int64
	done     bool
}

func (s *s3Session) NextChunk(ctx context.Context) (ChunkResult, error) {
	if s.done {
		return s.result(), nil
	}

	if s.meta.Size <= s.partSize {
		return s.putSingle(ctx)
	}

	if s.uploadID == "" {
		out, err := s.api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
			Bucket:      &s.bucket,
			Key:         &s.key,
			ContentType: aws.String(s.contentType()),
		})
		if err != nil {
			return ChunkResult{}, s3TransferError("create multipart upload", err)
		}
		s.uploadID = aws.ToString(out.UploadId)
		slog.Debug("s3 multipart upload created", "key", s.key, "uploadId", s.uploadID)
	}

	if s.offset < s.meta.Size {
		if err := s.uploadPart(ctx); err != nil {
			return ChunkResult{}, err
		}
	}

	if s.offset >= s.meta.Size {
		if err := s.complete(ctx); err != nil {
			return ChunkResult{}, err
		}
	}

	return s.result(), nil
}

func (s *s3Session) Abort(ctx context.Context) error {
	if s.uploadID == "" || s.done {
		return nil
	}
	_, err := s.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   &s.bucket,
		Key:      &s.key,
		UploadId: &s.uploadID,
	})
	if err != nil {
		return s3TransferError("abort multipart upload", err)
	}
	return nil
}

func (s *s3Session) putSingle(ctx context.Context) (ChunkResult, error) {
	buf := make([]byte, s.meta.Size)
	if s.meta.Size > 0 {
		if _, err := s.src.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
			return ChunkResult{}, &SourceError{Offset: 0, Err: err}
		}
	}

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &s.key,
		Body:          bytes.NewReader(buf),
		ContentLength: aws.Int64(s.meta.Size),
		ContentType:   aws.String(s.contentType()),
	})
	if err != nil {
		return ChunkResult{}, s3TransferError("put object", err)
	}

	s.offset = s.meta.Size
	s.done = true
	return s.result(), nil
}

func (s *s3Session) uploadPart(ctx context.Context) error {
	partNumber := int32(len(s.parts) + 1)
	n := min(s.partSize, s.meta.Size-s.offset)
	buf := make([]byte, n)
	if _, err := s.src.ReadAt(buf, s.offset); err != nil && !errors.Is(err, io.EOF) {
		return &SourceError{Offset: s.offset, Err: err}
	}

	out, err := s.api.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:        &s.bucket,
		Key:           &s.key,
		UploadId:      &s.uploadID,
		PartNumber:    aws.Int32(partNumber),
		Body:          bytes.NewReader(buf),
		ContentLength: aws.Int64(n),
	})
	if err != nil {
		return s3TransferError(fmt.Sprintf("upload part %d", partNumber), err)
	}

	s.parts = append(s.parts, types.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int32(partNumber),
	})
	s.offset += n
	return nil
}

func (s *s3Session) complete(ctx context.Context) error {
	_, err := s.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   &s.bucket,
		Key:      &s.key,
		UploadId: &s.uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: s.parts,
		},
	})
	if err != nil {
		return s3TransferError("complete multipart upload", err)
	}
	s.done = true
	slog.Debug("s3 multipart upload complete", "key", s.key, "parts", len(s.parts))
	return nil
}

func (s *s3Session) contentType() string {
	if s.meta.ContentType != "" {
		return s.meta.ContentType
	}
	return "application/octet-stream"
}

func (s *s3Session) result() ChunkResult {
	return ChunkResult{
		BytesSent:  s.offset,
		TotalBytes: s.meta.Size,
		Done:       s.done,
	}
}

// s3TransferError maps SDK failures onto TransferError, keeping the HTTP status
// when the request reached the service.
func s3TransferError(op string, err error) *TransferError {
	code := 0
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		code = respErr.HTTPStatusCode()
	}

	message := op
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		message = fmt.Sprintf("%s: %s: %s", op, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}

	return NewTransferError(code, message, err)
}

var _ Client = (*S3Client)(nil)
