package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

type downloader interface {
	Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, opts ...func(*manager.Downloader)) (int64, error)
}

type objectDeleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Blobs stores retained PDFs in a bucket, optionally AES-GCM encrypted
// with a key derived from password.
type S3Blobs struct {
	up       uploader
	down     downloader
	del      objectDeleter
	bucket   string
	prefix   string
	password string
}

// NewS3Blobs loads the default AWS config chain (env, shared config, IMDS).
func NewS3Blobs(ctx context.Context, bucket, prefix, password string) (*S3Blobs, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 blobs: bucket is required")
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return &S3Blobs{
		up:       manager.NewUploader(cli),
		down:     manager.NewDownloader(cli),
		del:      cli,
		bucket:   bucket,
		prefix:   prefix,
		password: password,
	}, nil
}

func (b *S3Blobs) Bucket() string { return b.bucket }

func (b *S3Blobs) Save(ctx context.Context, key, srcPath string) (string, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return "", fmt.Errorf("read blob source: %w", err)
	}
	encrypted := "false"
	if b.password != "" {
		data, err = encryptGCM(data, b.password)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt data: %w", err)
		}
		encrypted = "true"
	}

	objKey := path.Join(b.prefix, key)
	_, err = b.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(objKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/pdf"),
		Metadata:    map[string]string{"encrypted": encrypted},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Info().Str("bucket", b.bucket).Str("key", objKey).Bool("encrypted", b.password != "").Msg("retained pdf uploaded to S3")
	return objKey, nil
}

func (b *S3Blobs) Fetch(ctx context.Context, ref, dstPath string) error {
	buf := manager.NewWriteAtBuffer([]byte{})
	_, err := b.down.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to download from S3: %w", err)
	}

	data := buf.Bytes()
	if isEncrypted(data) {
		if b.password == "" {
			return fmt.Errorf("blob %s is encrypted but no password is configured", ref)
		}
		data, err = decryptGCM(data, b.password)
		if err != nil {
			return fmt.Errorf("failed to decrypt data: %w", err)
		}
	}
	if err := os.WriteFile(dstPath, data, 0o600); err != nil {
		return fmt.Errorf("write fetched blob: %w", err)
	}
	return nil
}

func (b *S3Blobs) Delete(ctx context.Context, ref string) error {
	_, err := b.del.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return fmt.Errorf("delete object failed: %w", err)
	}
	return nil
}
