// Copyright (c) 2026 Crawlgate. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package media

import (
	"bytes"
	stdctx "context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// coverCacheControl lets CDNs keep covers; keys are content-addressed.
const coverCacheControl = "public, max-age=31536000, immutable"

// S3Config holds the object storage settings.
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

// S3Uploader implements [Uploader] on any S3-compatible store (R2, Spaces, MinIO).
type S3Uploader struct {
	client  s3iface.S3API
	bucket  string
	baseURL string
}

// NewS3Uploader opens an AWS session for the configured bucket.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("media: S3 bucket is required")
	}

	awsConfig := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	awsSession, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("media: failed to create S3 session: %w", err)
	}

	return newS3Uploader(s3.New(awsSession), cfg), nil
}

func newS3Uploader(client s3iface.S3API, cfg S3Config) *S3Uploader {
	return &S3Uploader{client: client, bucket: cfg.Bucket, baseURL: publicBaseURL(cfg)}
}

// Upload implements [Uploader].
func (uploader *S3Uploader) Upload(context stdctx.Context, key, contentType string, body []byte) (string, error) {
	_, err := uploader.client.PutObjectWithContext(context, &s3.PutObjectInput{
		Bucket:       aws.String(uploader.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(coverCacheControl),
		ACL:          aws.String(s3.ObjectCannedACLPublicRead),
	})
	if err != nil {
		return "", fmt.Errorf("s3: failed to put %s: %w", key, err)
	}
	return uploader.baseURL + "/" + key, nil
}

// publicBaseURL picks the URL prefix objects are served from.
func publicBaseURL(cfg S3Config) string {
	if cfg.PublicBaseURL != "" {
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	}
	if cfg.Endpoint != "" {
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + url.PathEscape(cfg.Bucket)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
}
