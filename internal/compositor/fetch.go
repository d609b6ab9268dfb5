package compositor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"syscall"
	"time"

	"github.com/xelth-com/esealgo/internal/apperr"
	"github.com/xelth-com/esealgo/internal/models"
	"golang.org/x/sync/errgroup"
)

// Fetcher loads signature image bytes from their address
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// maxImageBytes caps a single signature image
const maxImageBytes = 5 * 1024 * 1024

// errBlockedAddress is returned for hosts inside the server's own network
var errBlockedAddress = errors.New("address is not publicly routable")

// HTTPFetcher downloads images over HTTP(S). Hosts that resolve to
// loopback, private, link-local or unspecified addresses are refused at
// dial time, redirects included.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher whose requests time out after timeout
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	dialer := &net.Dialer{Timeout: timeout, Control: refuseInternal}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &HTTPFetcher{client: &http.Client{Timeout: timeout, Transport: transport}}
}

// publicAddress reports whether ip may be fetched from
func publicAddress(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsValid() &&
		!ip.IsLoopback() &&
		!ip.IsPrivate() &&
		!ip.IsLinkLocalUnicast() &&
		!ip.IsLinkLocalMulticast() &&
		!ip.IsInterfaceLocalMulticast() &&
		!ip.IsMulticast() &&
		!ip.IsUnspecified()
}

// refuseInternal runs after name resolution, on the address actually dialed
func refuseInternal(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	if !publicAddress(ip) {
		return fmt.Errorf("dial %s: %w", ip, errBlockedAddress)
	}
	return nil
}

// Fetch downloads rawURL and fails on non-2xx answers or oversized bodies
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("GET %s: only http and https images can be fetched", rawURL)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("GET %s: missing host", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: unexpected status %s", rawURL, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("GET %s: image larger than %d bytes", rawURL, maxImageBytes)
	}
	return data, nil
}

// fetchImages downloads every image annotation with at most limit requests in
// flight. The result is indexed like sigs; text annotations get nil.
func fetchImages(ctx context.Context, fetcher Fetcher, limit int, sigs []models.Signature) ([][]byte, error) {
	images := make([][]byte, len(sigs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range sigs {
		if !sigs[i].HasImage() {
			continue
		}
		i := i
		src := *sigs[i].SignatureURL
		g.Go(func() error {
			data, err := fetcher.Fetch(gctx, src)
			if err != nil {
				return apperr.Render(err, "failed to fetch image for signature %d", i+1)
			}
			if len(data) == 0 {
				return apperr.Render(nil, "image for signature %d is empty", i+1)
			}
			images[i] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}
