package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOClient task asset bucket, only used to presign reads
type MinIOClient struct {
	Client     *minio.Client
	BucketName string
}

// NewMinIOConnection connect and require the bucket to exist
func NewMinIOConnection(d MinIOConnection) (*MinIOClient, error) {
	client, err := minio.New(d.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(d.User, d.Password, ""),
		Secure: d.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio [%s]: %w", d.Endpoint, err)
	}

	_, err = retry("minio", d.RetryCount, d.RetryInterval, func() (bool, error) {
		exists, err := client.BucketExists(context.Background(), d.BucketName)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, fmt.Errorf("bucket [%s] not exist", d.BucketName)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	return &MinIOClient{Client: client, BucketName: d.BucketName}, nil
}

// PresignGetURL 產生限時讀取 url
func (m *MinIOClient) PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := m.Client.PresignedGetObject(ctx, m.BucketName, objectName, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign [%s]: %w", objectName, err)
	}
	return u.String(), nil
}
