package signing

import (
	"context"

	"github.com/xelth-com/esealgo/internal/compositor"
	"github.com/xelth-com/esealgo/internal/storage"
)

// NewImageFetcher reads images issued by our own signatures bucket straight
// from storage and hands every other address to fallback.
func NewImageFetcher(objects storage.Storage, bucket string, fallback compositor.Fetcher) compositor.Fetcher {
	return compositor.FetcherFunc(func(ctx context.Context, url string) ([]byte, error) {
		if key, ok := objects.PathFromURL(bucket, url); ok {
			return objects.Get(ctx, bucket, key)
		}
		return fallback.Fetch(ctx, url)
	})
}
