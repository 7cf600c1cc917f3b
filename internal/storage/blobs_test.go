package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "newspaper.pdf")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLocalBlobs_SaveFetchDelete(t *testing.T) {
	ctx := context.Background()
	b, err := NewLocalBlobs(t.TempDir())
	require.NoError(t, err)

	src := writeTemp(t, "%PDF-1.4 body")
	ref, err := b.Save(ctx, "file-1.pdf", src)
	require.NoError(t, err)
	assert.Equal(t, "file-1.pdf", ref)

	// the source can go away once saved
	require.NoError(t, os.Remove(src))

	dst := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, b.Fetch(ctx, ref, dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(got))

	require.NoError(t, b.Delete(ctx, ref))
	assert.ErrorIs(t, b.Fetch(ctx, ref, dst), ErrNotFound)
	assert.NoError(t, b.Delete(ctx, ref))
}

func TestLocalBlobs_RejectsTraversal(t *testing.T) {
	b, err := NewLocalBlobs(t.TempDir())
	require.NoError(t, err)
	_, err = b.Save(context.Background(), "../escape.pdf", writeTemp(t, "x"))
	assert.Error(t, err)
}

func TestDefaultLocalDir(t *testing.T) {
	assert.Equal(t, filepath.Join(os.TempDir(), "editorial_bot_files"), DefaultLocalDir())
}

func TestGCM_RoundTripAndWrongPassword(t *testing.T) {
	sealed, err := encryptGCM([]byte("secret pdf"), "pw")
	require.NoError(t, err)
	assert.True(t, isEncrypted(sealed))

	plain, err := decryptGCM(sealed, "pw")
	require.NoError(t, err)
	assert.Equal(t, "secret pdf", string(plain))

	_, err = decryptGCM(sealed, "other")
	assert.Error(t, err)

	_, err = decryptGCM([]byte("short"), "pw")
	assert.Error(t, err)
}

type memBucket struct {
	objects map[string][]byte
	deleted []string
}

func (m *memBucket) Upload(ctx context.Context, in *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[*in.Key] = data
	return &manager.UploadOutput{}, nil
}

func (m *memBucket) Download(ctx context.Context, w io.WriterAt, in *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error) {
	data, ok := m.objects[*in.Key]
	if !ok {
		return 0, &s3types.NoSuchKey{}
	}
	n, err := w.WriteAt(data, 0)
	return int64(n), err
}

func (m *memBucket) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(m.objects, *in.Key)
	m.deleted = append(m.deleted, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func newTestS3(password string) (*S3Blobs, *memBucket) {
	mb := &memBucket{objects: map[string][]byte{}}
	return &S3Blobs{up: mb, down: mb, del: mb, bucket: "b", prefix: "editorial_bot_files", password: password}, mb
}

func TestS3Blobs_EncryptsAtRest(t *testing.T) {
	ctx := context.Background()
	b, mb := newTestS3("pw")

	ref, err := b.Save(ctx, "doc.pdf", writeTemp(t, "%PDF-1.7 page"))
	require.NoError(t, err)
	assert.Equal(t, "editorial_bot_files/doc.pdf", ref)
	assert.True(t, isEncrypted(mb.objects[ref]))
	assert.False(t, bytes.Contains(mb.objects[ref], []byte("%PDF")))

	dst := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, b.Fetch(ctx, ref, dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 page", string(got))

	require.NoError(t, b.Delete(ctx, ref))
	assert.Equal(t, []string{ref}, mb.deleted)
	assert.ErrorIs(t, b.Fetch(ctx, ref, dst), ErrNotFound)
}

func TestS3Blobs_PlainWithoutPassword(t *testing.T) {
	ctx := context.Background()
	b, mb := newTestS3("")

	ref, err := b.Save(ctx, "doc.pdf", writeTemp(t, "%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(mb.objects[ref]))
}

func TestPageCount_InvalidFile(t *testing.T) {
	_, err := PageCount(writeTemp(t, "not a pdf"))
	assert.Error(t, err)
}
