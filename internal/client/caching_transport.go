package client

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/klauspost/compress/gzhttp"
	"github.com/wolfeidau/polifeed/internal/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"
)

// TransportOptions controls how the shared HTTP client is assembled.
type TransportOptions struct {
	// Cache enables RFC 7234 caching of GET responses. Entries are keyed by URL
	// and Vary headers only, so the backend must send Vary: Authorization on
	// per-user resources.
	Cache bool
	// CacheDir persists the cache on disk. Empty keeps it in memory.
	CacheDir string
	// Base is the innermost transport, http.DefaultTransport when nil.
	Base http.RoundTripper
}

// NewHTTPClient creates the HTTP client shared by every capability derived from
// one Client. Cookies are always kept in a jar so they are sent with every verb.
//
// The transport chain is, outermost first: request logging, optional caching,
// OpenTelemetry instrumentation, then transparent gzip/zstd decompression.
func NewHTTPClient(opts TransportOptions) (*http.Client, error) {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}

	var rt http.RoundTripper = gzhttp.Transport(base)
	rt = otelhttp.NewTransport(rt)

	if opts.Cache {
		rt = newCachingTransport(opts.CacheDir, rt)
	}

	rt = logger.NewRequestLogger(rt)

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &http.Client{
		Transport: rt,
		Jar:       jar,
	}, nil
}

// newCachingTransport wraps next with a cache honouring Cache-Control headers
// returned by the backend.
func newCachingTransport(cacheDir string, next http.RoundTripper) *httpcache.Transport {
	var cache httpcache.Cache
	if cacheDir == "" {
		// Use in-memory cache if no cache directory specified
		cache = httpcache.NewMemoryCache()
	} else {
		// Use disk-based cache for persistence across restarts
		cache = diskcache.New(cacheDir)
	}

	t := httpcache.NewTransport(cache)
	t.Transport = next
	t.MarkCachedResponses = true

	return t
}
