package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/coastwatch/hazardplatform/internal/common"
	sc "github.com/coastwatch/hazardplatform/internal/server/config"
	"github.com/coastwatch/hazardplatform/internal/server/models"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// UploadInput is a single hazard-report attachment received from a client.
type UploadInput struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// UploadService stores report attachments (photos and videos of observed
// hazards) in an S3-compatible bucket and hands out time-limited retrieval
// links.
type UploadService struct {
	config *sc.Config
}

func NewUploadService(config *sc.Config) *UploadService {
	return &UploadService{config: config}
}

// randomStorageKey buckets objects by date so operators can prune old media.
func randomStorageKey(originalName string) string {
	d := time.Now()
	return fmt.Sprintf("uploads/%d/%d/%d/%v%s", d.Year(), d.Month(), d.Day(), uuid.New(), path.Ext(originalName))
}

func allowedContentType(ct string) bool {
	return strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "video/")
}

func (s *UploadService) getClient() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(s.config.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Store validates and persists the given attachments. Limits mirror the
// upload contract: at most MaxUploadFiles per request, MaxUploadSize bytes
// each, images and videos only.
func (s *UploadService) Store(ctx context.Context, inputs []UploadInput) ([]*models.UploadedFile, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no files uploaded", common.ErrValidation)
	}
	if len(inputs) > s.config.MaxUploadFiles {
		return nil, fmt.Errorf("%w: too many files, maximum is %d", common.ErrValidation, s.config.MaxUploadFiles)
	}
	for _, in := range inputs {
		if in.Size > s.config.MaxUploadSize {
			return nil, fmt.Errorf("%w: file too large, maximum size is %d bytes", common.ErrValidation, s.config.MaxUploadSize)
		}
		if !allowedContentType(in.ContentType) {
			return nil, fmt.Errorf("%w: only image and video files are allowed", common.ErrValidation)
		}
	}

	client, err := s.getClient()
	if err != nil {
		return nil, common.ErrInternal
	}

	bucket := s.config.S3Bucket
	stored := make([]*models.UploadedFile, 0, len(inputs))

	for _, in := range inputs {
		key := randomStorageKey(in.Name)

		_, err := putObject(client, ctx, &s3.PutObjectInput{
			Bucket:        &bucket,
			Key:           &key,
			Body:          in.Reader,
			ContentType:   aws.String(in.ContentType),
			ContentLength: aws.Int64(in.Size),
		})
		if err != nil {
			return nil, common.ErrInternal
		}

		stored = append(stored, &models.UploadedFile{
			Key:          key,
			OriginalName: in.Name,
			Size:         in.Size,
			ContentType:  in.ContentType,
			URL:          "/" + key,
			UploadedAt:   time.Now(),
		})
	}

	return stored, nil
}

// PresignedGetURL returns a time-limited link for retrieving a stored
// attachment.
func (s *UploadService) PresignedGetURL(ctx context.Context, key string) (string, error) {
	client, err := s.getClient()
	if err != nil {
		return "", common.ErrInternal
	}

	bucket := s.config.S3Bucket

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", common.ErrInternal
	}

	return req.URL, nil
}
