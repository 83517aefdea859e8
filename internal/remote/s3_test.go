package remote

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects   map[string][]byte
	parts     map[int32][]byte
	created   int
	completed []int32
	aborted   bool
	failParts int
	lastKey   string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, parts: map[int32][]byte{}}
}

func statusError(code int) error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: code}},
			Err:      errors.New("slow down"),
		},
	}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.lastKey = aws.ToString(in.Key)
	f.objects[f.lastKey] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) CreateMultipartUpload(_ context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.created++
	f.lastKey = aws.ToString(in.Key)
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
}

func (f *fakeS3) UploadPart(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	if f.failParts > 0 {
		f.failParts--
		return nil, statusError(http.StatusServiceUnavailable)
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	n := aws.ToInt32(in.PartNumber)
	f.parts[n] = body
	return &s3.UploadPartOutput{ETag: aws.String("etag-" + strconv.Itoa(int(n)))}, nil
}

func (f *fakeS3) CompleteMultipartUpload(_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	var numbers []int32
	var buf bytes.Buffer
	for _, p := range in.MultipartUpload.Parts {
		numbers = append(numbers, aws.ToInt32(p.PartNumber))
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	for _, n := range numbers {
		buf.Write(f.parts[n])
	}
	f.completed = numbers
	f.objects[aws.ToString(in.Key)] = buf.Bytes()
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.aborted = true
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestS3Session_SmallObjectUsesPutObject(t *testing.T) {
	api := newFakeS3()
	data := payload(1024)

	sess, err := NewS3Client(api, "bucket").Begin(context.Background(), Metadata{
		Name:    "notes.txt",
		Parents: []string{"/backups/"},
		Size:    int64(len(data)),
	}, bytes.NewReader(data), DefaultChunkSize)
	require.NoError(t, err)

	res, err := sess.NextChunk(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, "backups/notes.txt", api.lastKey)
	assert.Equal(t, data, api.objects["backups/notes.txt"])
	assert.Zero(t, api.created)
}

func TestS3Session_EmptyObject(t *testing.T) {
	api := newFakeS3()

	sess, err := NewS3Client(api, "bucket").Begin(context.Background(), Metadata{Name: "empty"}, bytes.NewReader(nil), DefaultChunkSize)
	require.NoError(t, err)

	res, err := sess.NextChunk(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Empty(t, api.objects["empty"])
	assert.Contains(t, api.objects, "empty")
}

func TestS3Session_Multipart(t *testing.T) {
	api := newFakeS3()
	data := payload(12 * 1024 * 1024)

	sess, err := NewS3Client(api, "bucket").Begin(context.Background(), Metadata{Name: "big.bin", Size: int64(len(data))}, bytes.NewReader(data), DefaultChunkSize)
	require.NoError(t, err)

	var sent []int64
	for i := 0; i < 10; i++ {
		res, err := sess.NextChunk(context.Background())
		require.NoError(t, err)
		sent = append(sent, res.BytesSent)
		if res.Done {
			break
		}
	}

	assert.Equal(t, []int64{MinS3PartSize, 2 * MinS3PartSize, int64(len(data))}, sent)
	assert.Equal(t, 1, api.created)
	assert.Equal(t, []int32{1, 2, 3}, api.completed)
	assert.Equal(t, data, api.objects["big.bin"])
}

func TestS3Session_RetryPart(t *testing.T) {
	api := newFakeS3()
	api.failParts = 1
	data := payload(6 * 1024 * 1024)

	sess, err := NewS3Client(api, "bucket").Begin(context.Background(), Metadata{Name: "big.bin", Size: int64(len(data))}, bytes.NewReader(data), DefaultChunkSize)
	require.NoError(t, err)

	_, err = sess.NextChunk(context.Background())
	var te *TransferError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.Code)

	res, err := sess.NextChunk(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MinS3PartSize, res.BytesSent)

	res, err = sess.NextChunk(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, 1, api.created)
	assert.Equal(t, data, api.objects["big.bin"])
}

func TestS3Session_Abort(t *testing.T) {
	api := newFakeS3()
	data := payload(6 * 1024 * 1024)

	sess, err := NewS3Client(api, "bucket").Begin(context.Background(), Metadata{Name: "big.bin", Size: int64(len(data))}, bytes.NewReader(data), DefaultChunkSize)
	require.NoError(t, err)

	require.NoError(t, sess.Abort(context.Background()))
	assert.False(t, api.aborted)

	_, err = sess.NextChunk(context.Background())
	require.NoError(t, err)
	require.NoError(t, sess.Abort(context.Background()))
	assert.True(t, api.aborted)
}

func TestS3PartSize(t *testing.T) {
	assert.Equal(t, MinS3PartSize, s3PartSize(100, DefaultChunkSize))
	assert.Equal(t, 8*MinS3PartSize, s3PartSize(8*MinS3PartSize, 8*MinS3PartSize))

	huge := int64(maxS3Parts) * MinS3PartSize * 3
	got := s3PartSize(huge, DefaultChunkSize)
	assert.Equal(t, 4*MinS3PartSize, got)
	assert.LessOrEqual(t, (huge+got-1)/got, int64(maxS3Parts))
}

func TestS3TransferError(t *testing.T) {
	err := s3TransferError("upload part 1", statusError(http.StatusInternalServerError))
	assert.Equal(t, http.StatusInternalServerError, err.Code)
	assert.Equal(t, "upload part 1", err.Message)

	err = s3TransferError("put object", errors.New("dial tcp: connection refused"))
	assert.Zero(t, err.Code)
	assert.ErrorContains(t, err, "connection refused")
}
