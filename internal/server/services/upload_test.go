package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/coastwatch/hazardplatform/internal/common"
	sc "github.com/coastwatch/hazardplatform/internal/server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUploadService() *UploadService {
	return NewUploadService(&sc.Config{
		S3BaseEndpoint: "http://localhost:9000",
		S3Region:       "us-east-1",
		S3Bucket:       "hazard-media",
		S3RootUser:     "minio",
		S3RootPassword: "minio123",
		MaxUploadSize:  10 << 20,
		MaxUploadFiles: 5,
	})
}

func stubAWSClient(t *testing.T) {
	t.Helper()
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return &s3.Client{}
	}
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})
}

func imageInput(name string, size int64) UploadInput {
	return UploadInput{
		Name:        name,
		ContentType: "image/jpeg",
		Size:        size,
		Reader:      strings.NewReader("fake-bytes"),
	}
}

func TestStore_ValidationFailures(t *testing.T) {
	s := newUploadService()

	tests := []struct {
		name   string
		inputs []UploadInput
	}{
		{name: "no files", inputs: nil},
		{name: "too many files", inputs: []UploadInput{
			imageInput("a.jpg", 10), imageInput("b.jpg", 10), imageInput("c.jpg", 10),
			imageInput("d.jpg", 10), imageInput("e.jpg", 10), imageInput("f.jpg", 10),
		}},
		{name: "oversize file", inputs: []UploadInput{imageInput("big.jpg", 11<<20)}},
		{name: "disallowed type", inputs: []UploadInput{{
			Name: "report.pdf", ContentType: "application/pdf", Size: 10, Reader: strings.NewReader("x"),
		}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Store(context.Background(), tc.inputs)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestStore_PutsEveryFile(t *testing.T) {
	s := newUploadService()
	stubAWSClient(t)

	var keys []string
	origPut := putObject
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		require.Equal(t, "hazard-media", *in.Bucket)
		keys = append(keys, *in.Key)
		return &s3.PutObjectOutput{}, nil
	}
	t.Cleanup(func() { putObject = origPut })

	inputs := []UploadInput{
		imageInput("wave.jpg", 1024),
		{Name: "surge.mp4", ContentType: "video/mp4", Size: 2048, Reader: strings.NewReader("vid")},
	}

	stored, err := s.Store(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	require.Len(t, keys, 2)

	assert.Equal(t, keys[0], stored[0].Key)
	assert.True(t, strings.HasPrefix(stored[0].Key, "uploads/"))
	assert.True(t, strings.HasSuffix(stored[0].Key, ".jpg"))
	assert.Equal(t, "wave.jpg", stored[0].OriginalName)
	assert.Equal(t, int64(1024), stored[0].Size)
	assert.Equal(t, "/"+stored[0].Key, stored[0].URL)

	assert.True(t, strings.HasSuffix(stored[1].Key, ".mp4"))
	assert.NotEqual(t, stored[0].Key, stored[1].Key)
}

func TestStore_PutError(t *testing.T) {
	s := newUploadService()
	stubAWSClient(t)

	origPut := putObject
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return nil, errors.New("bucket unavailable")
	}
	t.Cleanup(func() { putObject = origPut })

	_, err := s.Store(context.Background(), []UploadInput{imageInput("wave.jpg", 10)})
	assert.ErrorIs(t, err, common.ErrInternal)
}

func TestPresignedGetURL(t *testing.T) {
	s := newUploadService()
	stubAWSClient(t)

	origPresign := presignGetObject
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		require.Equal(t, "hazard-media", *in.Bucket)
		require.Equal(t, "uploads/2026/3/1/abc.jpg", *in.Key)
		return &v4.PresignedHTTPRequest{URL: "http://localhost:9000/hazard-media/signed"}, nil
	}
	t.Cleanup(func() { presignGetObject = origPresign })

	url, err := s.PresignedGetURL(context.Background(), "uploads/2026/3/1/abc.jpg")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/hazard-media/signed", url)
}

func TestPresignedGetURL_Error(t *testing.T) {
	s := newUploadService()
	stubAWSClient(t)

	origPresign := presignGetObject
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("presign failed")
	}
	t.Cleanup(func() { presignGetObject = origPresign })

	_, err := s.PresignedGetURL(context.Background(), "uploads/x")
	assert.ErrorIs(t, err, common.ErrInternal)
}

func TestRandomStorageKey_DateBucketed(t *testing.T) {
	key := randomStorageKey("photo.PNG")
	assert.True(t, strings.HasPrefix(key, "uploads/"))
	assert.Contains(t, key, time.Now().Format("2006"))
	assert.True(t, strings.HasSuffix(key, ".PNG"))
}
