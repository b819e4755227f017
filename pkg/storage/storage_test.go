package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	info, err := st.Upload(ctx, "empresa-7", "boleto maio/2026.pdf", "application/pdf", strings.NewReader("%PDF-1.4 body"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("%PDF-1.4 body")), info.Size)
	assert.Equal(t, "boleto maio/2026.pdf", info.Name)
	assert.Equal(t, info.ID.String()+".pdf", info.Path)
	assert.Equal(t, sha256Hex("%PDF-1.4 body"), info.SHA256)

	rc, got, err := st.Download(ctx, "empresa-7", info.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(body))
	assert.Equal(t, info.ID, got.ID)
	assert.Equal(t, info.SHA256, got.SHA256)

	// another namespace cannot see the file
	_, err = st.GetInfo(ctx, "empresa-8", info.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)

	require.NoError(t, st.Delete(ctx, "empresa-7", info.ID))
	_, err = st.GetInfo(ctx, "empresa-7", info.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c.pdf", sanitizeFilename("a/b\\c.pdf"))
	assert.Equal(t, "__secret", sanitizeFilename("../secret"))
	assert.Equal(t, "_", sanitizeFilename(""))
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestNew_SelectsBackend(t *testing.T) {
	st, err := New(context.Background(), &Config{Type: StorageTypeNone})
	require.NoError(t, err)
	assert.Nil(t, st)

	st, err = New(context.Background(), &Config{Type: StorageTypeLocal, LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, st)

	_, err = New(context.Background(), &Config{Type: StorageTypeS3})
	assert.Error(t, err)
}

type fakeS3 struct {
	objects map[string]*s3.PutObjectInput
	bodies  map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]*s3.PutObjectInput{}, bodies: map[string][]byte{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = in
	f.bodies[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	data := f.bodies[aws.ToString(in.Key)]
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   obj.ContentType,
		Metadata:      obj.Metadata,
	}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(f.bodies[aws.ToString(in.Key)]))),
		ContentType:   obj.ContentType,
		Metadata:      obj.Metadata,
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	delete(f.bodies, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Storage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	st := NewS3StorageWithClient(fake, "boletos")

	info, err := st.Upload(ctx, "empresa-7", "fatura ção.pdf", "application/pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "empresa-7/"+info.ID.String(), info.Path)
	assert.Equal(t, int64(8), info.Size)
	assert.Equal(t, "boletos", aws.ToString(fake.objects[info.Path].Bucket))

	got, err := st.GetInfo(ctx, "empresa-7", info.ID)
	require.NoError(t, err)
	assert.Equal(t, "fatura ção.pdf", got.Name)
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, info.CreatedAt.Unix(), got.CreatedAt.Unix())
	assert.Equal(t, sha256Hex("%PDF-1.7"), got.SHA256)

	rc, _, err := st.Download(ctx, "empresa-7", info.ID)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF-1.7", string(body))

	require.NoError(t, st.Delete(ctx, "empresa-7", info.ID))
	_, err = st.GetInfo(ctx, "empresa-7", info.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)
	_, _, err = st.Download(ctx, "empresa-7", uuid.New())
	assert.ErrorIs(t, err, ErrFileNotFound)
}
