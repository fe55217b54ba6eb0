// utils/media_upload.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type MediaR2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	BucketName      string
	PublicURL       string // base URL of the public bucket domain
}

// MediaR2Client stores listing photos and logos in Cloudflare R2. Google only
// accepts media by public URL, so uploads land here first and the public URL
// is handed to the GBP API.
type MediaR2Client struct {
	client *s3.Client
	config MediaR2Config
}

// allowedImageExts lists what GBP accepts as photo uploads
var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

func NewMediaR2Client(cfg MediaR2Config) (*MediaR2Client, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.AccessKeySecret == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("missing required R2 configuration parameters")
	}

	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID),
		}, nil
	})

	awsCfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(r2Resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.AccessKeySecret,
			"",
		)),
		config.WithRetryer(func() aws.Retryer {
			return aws.NopRetryer{}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	// Verify bucket exists and we have permissions
	_, err = client.HeadBucket(context.TODO(), &s3.HeadBucketInput{
		Bucket: aws.String(cfg.BucketName),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") {
			return nil, fmt.Errorf("bucket %s not found or you don't have permission to access it", cfg.BucketName)
		}
		return nil, fmt.Errorf("failed to access bucket: %w", err)
	}

	return &MediaR2Client{
		client: client,
		config: cfg,
	}, nil
}

// Upload writes raw content under the given key.
func (r *MediaR2Client) Upload(ctx context.Context, key string, content []byte, contentType string) error {
	// bytes.NewReader keeps binary payloads intact through checksum handling
	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to R2: %w", err)
	}
	return nil
}

// UploadListingPhoto stores a location photo under "listing_photos/" and
// returns its public URL.
func (r *MediaR2Client) UploadListingPhoto(ctx context.Context, file io.Reader, originalFileName, accountID string) (string, error) {
	return r.uploadImage(ctx, file, originalFileName, accountID, "listing_photos")
}

// UploadListingLogo stores a business logo under "listing_logos/" and returns
// its public URL.
func (r *MediaR2Client) UploadListingLogo(ctx context.Context, file io.Reader, originalFileName, accountID string) (string, error) {
	return r.uploadImage(ctx, file, originalFileName, accountID, "listing_logos")
}

func (r *MediaR2Client) uploadImage(ctx context.Context, file io.Reader, originalFileName, accountID, folder string) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file reader cannot be nil")
	}
	if originalFileName == "" {
		return "", fmt.Errorf("filename cannot be empty")
	}

	ext := strings.ToLower(filepath.Ext(originalFileName))
	if !allowedImageExts[ext] {
		return "", fmt.Errorf("unsupported image type %q (allowed: jpg, jpeg, png, gif, webp)", ext)
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	uniqueName := fmt.Sprintf("%s/%s_%s%s", folder, accountID, uuid.New().String(), ext)

	if err := r.Upload(ctx, uniqueName, content, getContentType(originalFileName)); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s", r.config.PublicURL, uniqueName), nil
}

// DeleteMediaFile removes an object by key or by its full public URL.
func (r *MediaR2Client) DeleteMediaFile(ctx context.Context, fileName string) error {
	if fileName == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	fileName = strings.TrimPrefix(fileName, r.config.PublicURL+"/")

	_, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.config.BucketName),
		Key:    aws.String(fileName),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from R2: %w", err)
	}

	return nil
}

func getContentType(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
