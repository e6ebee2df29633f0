package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultFetchTimeout = 20 * time.Second
	defaultUserAgent    = "rsslib/1.0 RSS Reader"
)

// Opener 为给定 URL 打开一个可读的字节流。
// 返回的错误一律视为传输层错误。
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// OpenerFunc 将普通函数适配为 Opener。
type OpenerFunc func(ctx context.Context, url string) (io.ReadCloser, error)

// Open 实现 Opener。
func (f OpenerFunc) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	return f(ctx, url)
}

// FilterFunc 决定是否保留一个条目，可能被多个 goroutine 并发调用。
type FilterFunc func(url, title string, publishedAt time.Time) bool

// acceptAll 是默认过滤函数。
func acceptAll(string, string, time.Time) bool { return true }

// HTTPOpener 通过 HTTP GET 打开订阅源。
type HTTPOpener struct {
	client    *http.Client
	userAgent string
}

// NewHTTPOpener 创建 HTTP 打开器。timeout 或 userAgent 为零值时使用默认值。
func NewHTTPOpener(timeout time.Duration, userAgent string) *HTTPOpener {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPOpener{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Open 实现 Opener。非 2xx 状态码视为失败。
func (o *HTTPOpener) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", o.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}
