package attachment

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	lastPut *s3.PutObjectInput
	failGet error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = b
	f.lastPut = in
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.failGet != nil {
		return nil, f.failGet
	}
	b, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func newFakeS3Store() (*S3Store, *fakeS3) {
	f := &fakeS3{objects: make(map[string][]byte)}
	return &S3Store{client: f, bucket: "charts"}, f
}

func TestS3Store_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, f := newFakeS3Store()

	require.NoError(t, s.Put(ctx, "p/a.pdf", "application/pdf", []byte("%PDF-1.4")))
	assert.Equal(t, "charts", aws.ToString(f.lastPut.Bucket))
	assert.Equal(t, "application/pdf", aws.ToString(f.lastPut.ContentType))
	assert.Equal(t, int64(8), aws.ToInt64(f.lastPut.ContentLength))

	rc, err := s.Get(ctx, "p/a.pdf")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(got))

	require.NoError(t, s.Delete(ctx, "p/a.pdf"))
	_, err = s.Get(ctx, "p/a.pdf")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestS3Store_GetWrapsOtherErrors(t *testing.T) {
	s, f := newFakeS3Store()
	f.failGet = errors.New("access denied")

	_, err := s.Get(context.Background(), "p/a.pdf")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBlobNotFound)
	assert.Contains(t, err.Error(), "access denied")
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"})
	assert.Error(t, err)
}
