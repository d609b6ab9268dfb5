package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/xelth-com/esealgo/internal/apperr"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gcs "google.golang.org/api/storage/v1"
)

const gcsPublicHost = "https://storage.googleapis.com"

// GCS stores objects in Google Cloud Storage buckets with public-read URLs
type GCS struct {
	svc *gcs.Service
}

// NewGCS uses the given service account file, or application default credentials when empty
func NewGCS(ctx context.Context, credentialsFile string) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := gcs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{svc: svc}, nil
}

// Put uploads the object and returns its public URL
func (g *GCS) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	obj := &gcs.Object{Name: key, ContentType: contentType}
	_, err := g.svc.Objects.Insert(bucket, obj).
		Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return "", apperr.Storage(err, "failed to upload %s/%s", bucket, key)
	}
	return gcsPublicHost + "/" + bucket + "/" + escapeKey(key), nil
}

// Get downloads the object
func (g *GCS) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	resp, err := g.svc.Objects.Get(bucket, key).Context(ctx).Download()
	if err != nil {
		if isNotFound(err) {
			return nil, apperr.Storage(err, "object %s/%s does not exist", bucket, key)
		}
		return nil, apperr.Storage(err, "failed to download %s/%s", bucket, key)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Storage(err, "failed to read %s/%s", bucket, key)
	}
	return data, nil
}

// Remove deletes the object
func (g *GCS) Remove(ctx context.Context, bucket, key string) error {
	if err := g.svc.Objects.Delete(bucket, key).Context(ctx).Do(); err != nil {
		return apperr.Storage(err, "failed to remove %s/%s", bucket, key)
	}
	return nil
}

// PathFromURL reverses the public URL issued by Put
func (g *GCS) PathFromURL(bucket, publicURL string) (string, bool) {
	prefix := gcsPublicHost + "/" + bucket + "/"
	if !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(publicURL, prefix))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
