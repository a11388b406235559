package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"slices"
	"time"

	"golang.org/x/net/html/charset"

	"sjsage522/retailcrawler/logger"
	"sjsage522/retailcrawler/pkg/errors"
	"sjsage522/retailcrawler/services/cache"
	"sjsage522/retailcrawler/services/proxy"
)

const maxBodyBytes = 10 << 20

var (
	defaultUserAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	}

	referers = []string{
		"https://www.google.co.uk/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
	}
)

// FetchOptions tune a single request
type FetchOptions struct {
	// Retailer names the site in errors, metrics and the rate-limit cache key
	Retailer string
	// Headers are merged over the defaults
	Headers map[string]string
	// RotateProxy forces a proxy rotation before this request
	RotateProxy bool
}

// Response is a fetched page decoded to UTF-8
type Response struct {
	Body       string
	StatusCode int
	Header     http.Header
	URL        string
}

// Observer receives the outcome of every fetch
type Observer interface {
	ObserveFetch(retailer string, status int, elapsed time.Duration, err error)
}

// Fetcher performs browser-like GET requests through a proxy provider
type Fetcher struct {
	client           *http.Client
	proxies          proxy.Provider
	rotatePerRequest bool
	cache            cache.CacheService
	blockTime        time.Duration
	userAgents       []string
	observer         Observer
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithProxy routes requests through p. With rotatePerRequest the provider is
// rotated before every request.
func WithProxy(p proxy.Provider, rotatePerRequest bool) FetcherOption {
	return func(f *Fetcher) {
		f.proxies = p
		f.rotatePerRequest = rotatePerRequest
	}
}

// WithCache stores a block marker for blockTime after a 429/430 response
func WithCache(c cache.CacheService, blockTime time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cache = c
		f.blockTime = blockTime
	}
}

// WithTimeout sets the overall request timeout
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.client.Timeout = d
	}
}

// WithUserAgents replaces the user-agent rotation list
func WithUserAgents(agents []string) FetcherOption {
	return func(f *Fetcher) {
		if len(agents) > 0 {
			f.userAgents = agents
		}
	}
}

// WithObserver reports fetch outcomes to o
func WithObserver(o Observer) FetcherOption {
	return func(f *Fetcher) {
		f.observer = o
	}
}

type proxyCtxKey struct{}

// NewFetcher creates a fetcher. Without WithProxy it connects directly.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		proxies:    proxy.None{},
		blockTime:  5 * time.Minute,
		userAgents: defaultUserAgents,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxyFromContext
	f.client = &http.Client{
		Timeout:   10 * time.Second,
		Transport: transport,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func proxyFromContext(req *http.Request) (*url.URL, error) {
	if u, ok := req.Context().Value(proxyCtxKey{}).(*url.URL); ok {
		return u, nil
	}
	return nil, nil
}

func blockKey(retailer string) string {
	return "retailcrawler:blocked:" + retailer
}

// IsBlocked reports whether retailer is inside a rate-limit block window
func (f *Fetcher) IsBlocked(retailer string) bool {
	if f.cache == nil || retailer == "" {
		return false
	}
	_, err := f.cache.Get(blockKey(retailer))
	return err == nil
}

// Fetch sends a GET request with randomized browser headers and returns the
// body decoded to UTF-8. Non-2xx responses are errors; 429 and 430 block the
// retailer in the cache for the configured block time.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*Response, error) {
	start := time.Now()
	resp, err := f.fetch(ctx, rawURL, opts)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	} else if ce, ok := err.(*errors.CrawlerError); ok {
		status = ce.StatusCode
	}
	if f.observer != nil {
		f.observer.ObserveFetch(opts.Retailer, status, time.Since(start), err)
	}
	return resp, err
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string, opts FetchOptions) (*Response, error) {
	log := logger.ForFetcher().WithStr("retailer", opts.Retailer)

	if f.IsBlocked(opts.Retailer) {
		return nil, errors.NewRateLimit(opts.Retailer, f.blockTime)
	}

	if f.rotatePerRequest || opts.RotateProxy {
		f.proxies.Rotate()
	}
	pc, err := f.proxies.Current()
	if err != nil {
		return nil, err
	}
	if !pc.Direct() {
		ctx = context.WithValue(ctx, proxyCtxKey{}, pc.URL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.NewValidation(opts.Retailer, fmt.Sprintf("invalid url %q: %v", rawURL, err))
	}
	f.setHeaders(req, opts.Headers)

	resp, err := f.client.Do(req)
	if err != nil {
		if !pc.Direct() {
			if r, ok := f.proxies.(interface{ ReportFailure() }); ok {
				r.ReportFailure()
			}
		}
		return nil, errors.NewNetwork(opts.Retailer, "failed to fetch "+rawURL, err)
	}
	defer resp.Body.Close()
	if !pc.Direct() {
		if r, ok := f.proxies.(interface{ ReportSuccess() }); ok {
			r.ReportSuccess()
		}
	}

	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		if f.cache != nil && opts.Retailer != "" {
			value := []byte(fmt.Sprintf("%d", int(f.blockTime/time.Second)))
			if cerr := f.cache.Set(blockKey(opts.Retailer), value, f.blockTime); cerr != nil {
				log.Warn().Err(cerr).Msg("Failed to store rate-limit block")
			}
		}
		log.Warn().
			Int("status", resp.StatusCode).
			Str("retry_after", resp.Header.Get("Retry-After")).
			Str("url", rawURL).
			Msg("Rate limited")
		rl := errors.NewRateLimit(opts.Retailer, f.blockTime)
		rl.StatusCode = resp.StatusCode
		return nil, rl
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewFetchStatus(opts.Retailer, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.NewNetwork(opts.Retailer, "failed to read response body", err)
	}
	decoded, err := toUTF8(body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, errors.NewParsing(opts.Retailer, "failed to decode response body", err)
	}

	log.Debug().
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Int("bytes", len(decoded)).
		Str("proxy", pc.Provider).
		Msg("Fetched page")

	return &Response{
		Body:       decoded,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		URL:        resp.Request.URL.String(),
	}, nil
}

func (f *Fetcher) setHeaders(req *http.Request, overrides map[string]string) {
	req.Header.Set("User-Agent", f.userAgents[rand.IntN(len(f.userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Referer", referers[rand.IntN(len(referers))])
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Ch-Ua", `"Chromium";v="124", "Not-A.Brand";v="99", "Google Chrome";v="124"`)
	req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
	req.Header.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Sec-Fetch-User", "?1")

	for k, v := range overrides {
		req.Header.Set(k, v)
	}
}

func toUTF8(body []byte, contentType string) (string, error) {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" {
		return string(body), nil
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, enc.NewDecoder().Reader(bytes.NewReader(body))); err != nil {
		return "", err
	}
	return buf.String(), nil
}
