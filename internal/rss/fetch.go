package rss

import (
	"context"
	"fmt"

	"github.com/iabetor/rsslib/internal/logger"
)

// DefaultSuffixes 是站点根 URL 不是订阅源时依次尝试的路径后缀。
var DefaultSuffixes = []string{
	"",
	"/feed",
	"/feed.xml",
	"/rss",
	"/rss.xml",
	"/atom",
	"/atom.xml",
}

// FetchResult 是单个订阅源的抓取结果。
// Err 为 nil 时 Source 为成功的那次尝试（URL 含后缀）；否则 Source 为原始订阅源，
// Entries 只包含格式错误之前已完成的条目。
type FetchResult struct {
	Source  *Source
	Entries []Entry
	Err     error
}

// Malformed 判断结果是否因文档格式错误而失败。
func (r FetchResult) Malformed() bool {
	return r.Err != nil && IsMalformed(r.Err)
}

// Cancelled 判断抓取是否因上下文取消或超时而中止。
func (r FetchResult) Cancelled() bool {
	return r.Err == context.Canceled || r.Err == context.DeadlineExceeded
}

// Fetch 依次尝试 suffixes，直到某个后缀的数据流被完整解析。
// 传输错误会继续尝试下一个后缀；格式错误立即停止，不再重试。
func Fetch(ctx context.Context, src *Source, opener Opener, suffixes []string, opts ParseOptions) (res FetchResult) {
	res.Source = src
	defer func() {
		if p := recover(); p != nil {
			logger.Errorf("[rss] 处理 %s 时过滤函数 panic: %v", src.URL, p)
			res = FetchResult{Source: src, Err: &FilterError{URL: src.URL, Panic: p}}
		}
	}()

	if len(suffixes) == 0 {
		suffixes = DefaultSuffixes
	}

	var lastErr error
	for _, suffix := range suffixes {
		if err := ctx.Err(); err != nil {
			return FetchResult{Source: src, Err: err}
		}

		attempt := src.clone()
		attempt.URL = src.URL + suffix

		entries, err := fetchOnce(ctx, attempt, opener, opts)
		if err == nil {
			logger.Debugf("[rss] %s 解析完成，%d 条", attempt.URL, len(entries))
			return FetchResult{Source: attempt, Entries: entries}
		}
		if IsMalformed(err) {
			logger.Warnf("[rss] %v", err)
			return FetchResult{Source: attempt, Entries: entries, Err: err}
		}
		logger.Debugf("[rss] %v，尝试下一个后缀", err)
		lastErr = err
	}

	if err := ctx.Err(); err != nil {
		return FetchResult{Source: src, Err: err}
	}
	return FetchResult{Source: src, Err: fmt.Errorf("所有后缀均失败: %w", lastErr)}
}

func fetchOnce(ctx context.Context, src *Source, opener Opener, opts ParseOptions) ([]Entry, error) {
	body, err := opener.Open(ctx, src.URL)
	if err != nil {
		return nil, &TransportError{URL: src.URL, Err: err}
	}
	defer body.Close()

	entries, err := ParseFeed(body, src, opts)
	if err != nil && ctx.Err() != nil {
		// 上下文取消导致的读取中断按传输错误处理
		return entries, &TransportError{URL: src.URL, Err: ctx.Err()}
	}
	return entries, err
}
