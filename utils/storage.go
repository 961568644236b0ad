package utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const MaxUploadSizeBytes int64 = 5 * 1024 * 1024

var ImageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

var DocumentMimeTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"image/jpeg": true,
	"image/png":  true,
}

// ObjectStorage stores uploaded files and returns their access URL.
type ObjectStorage interface {
	Upload(ctx context.Context, objectKey string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, objectKey string) error
}

var (
	objectStorage   ObjectStorage = GCSStorage{}
	objectStorageMu sync.RWMutex
)

func GetObjectStorage() ObjectStorage {
	objectStorageMu.RLock()
	defer objectStorageMu.RUnlock()
	return objectStorage
}

func SetObjectStorage(s ObjectStorage) {
	objectStorageMu.Lock()
	defer objectStorageMu.Unlock()
	objectStorage = s
}

// DetectContentType sniffs data and fixes up office formats that sniff as zip.
func DetectContentType(objectName string, data []byte) string {
	mimeType := http.DetectContentType(data)
	if mimeType == "application/zip" && strings.HasSuffix(strings.ToLower(objectName), ".docx") {
		mimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return mimeType
}

// GCSStorage writes to the GCS_BUCKET bucket.
type GCSStorage struct{}

func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC. GCS_CREDENTIALS_JSON overrides it for local runs.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func gcsBucket() (string, error) {
	bucketName := os.Getenv("GCS_BUCKET")
	if bucketName == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	return bucketName, nil
}

func (GCSStorage) Upload(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	bucketName, err := gcsBucket()
	if err != nil {
		return "", err
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectKey).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return "", fmt.Errorf("failed to upload file to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %v", err)
	}
	return BuildObjectAccessURL(objectKey), nil
}

func (GCSStorage) Delete(ctx context.Context, objectKey string) error {
	bucketName, err := gcsBucket()
	if err != nil {
		return err
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	err = client.Bucket(bucketName).Object(objectKey).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return err
}
