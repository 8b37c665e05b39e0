package imagestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"foodImage-1-abc.jpg", true},
		{"apple.svg", true},
		{"", false},
		{".", false},
		{"..", false},
		{"../etc/passwd", false},
		{"a/b.jpg", false},
		{`a\b.jpg`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidName(tt.name))
		})
	}
}

func TestDiskSaveOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	d, err := NewDisk(dir)
	require.NoError(t, err)

	_, err = os.Stat(dir)
	require.NoError(t, err, "upload dir should be created")

	ctx := context.Background()
	require.NoError(t, d.Save(ctx, "a.png", "image/png", []byte("png-bytes")))

	obj, err := d.Open(ctx, "a.png")
	require.NoError(t, err)
	defer obj.Body.Close()

	body, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))
	assert.Equal(t, int64(9), obj.Size)
	assert.Equal(t, "image/png", obj.ContentType)
}

func TestDiskSaveDoesNotOverwrite(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, d.Save(ctx, "a.jpg", "image/jpeg", []byte("one")))
	assert.Error(t, d.Save(ctx, "a.jpg", "image/jpeg", []byte("two")))
}

func TestDiskOpenErrors(t *testing.T) {
	d, err := NewDisk(t.TempDir())
	require.NoError(t, err)

	_, err = d.Open(context.Background(), "missing.jpg")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.Open(context.Background(), "../secret")
	assert.ErrorIs(t, err, ErrInvalidName)

	assert.ErrorIs(t, d.Save(context.Background(), "x/y.jpg", "", nil), ErrInvalidName)
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(f.types[aws.ToString(in.Key)]),
	}, nil
}

func TestS3SaveOpen(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	s := newS3WithClient(fake, "food", "uploads")

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, "b.jpg", "image/jpeg", []byte{0xff, 0xd8}))
	assert.Contains(t, fake.objects, "uploads/b.jpg")

	obj, err := s.Open(ctx, "b.jpg")
	require.NoError(t, err)
	defer obj.Body.Close()
	assert.Equal(t, int64(2), obj.Size)
	assert.Equal(t, "image/jpeg", obj.ContentType)

	_, err = s.Open(ctx, "nope.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3SaveError(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}, putErr: errors.New("boom")}
	s := newS3WithClient(fake, "food", "")

	err := s.Save(context.Background(), "c.jpg", "image/jpeg", []byte("x"))
	assert.ErrorContains(t, err, "boom")
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{})
	assert.Error(t, err)
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(context.Background(), Config{}, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &Disk{}, s)

	_, err = New(context.Background(), Config{Type: "ftp"}, t.TempDir())
	assert.Error(t, err)
}
