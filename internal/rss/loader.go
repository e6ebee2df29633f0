package rss

import (
	"context"
	"strings"
	"time"

	"github.com/iabetor/rsslib/internal/logger"
)

// DefaultBudget 是一次加载所有订阅源的总时间预算。
const DefaultBudget = 60 * time.Second

// Result 是一次加载的合并结果，条目未排序也未去重。
type Result struct {
	// Errored 为所有后缀都失败的订阅源。
	Errored []*Source
	// Malformed 为内容无法解析的订阅源，其解析失败前的条目仍包含在 Entries 中。
	Malformed []*Source
	Entries   []Entry
}

// Loader 并发抓取多个订阅源，所有源共享同一个截止时间。
type Loader struct {
	opener   Opener
	suffixes []string
	budget   time.Duration
	maxItems int
	filter   FilterFunc
}

// Option 配置 Loader。
type Option func(*Loader)

// WithSuffixes 设置依次尝试的 URL 后缀。
func WithSuffixes(suffixes []string) Option {
	return func(l *Loader) {
		if len(suffixes) > 0 {
			l.suffixes = append([]string(nil), suffixes...)
		}
	}
}

// WithBudget 设置总时间预算，非正数时使用 DefaultBudget。
func WithBudget(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.budget = d
		}
	}
}

// WithMaxItemsPerURL 设置每个订阅源最多保留的条目数，0 表示不限制。
func WithMaxItemsPerURL(n int) Option {
	return func(l *Loader) {
		if n >= 0 {
			l.maxItems = n
		}
	}
}

// WithFilter 设置条目过滤函数。
func WithFilter(f FilterFunc) Option {
	return func(l *Loader) {
		if f != nil {
			l.filter = f
		}
	}
}

// NewLoader 创建加载器。
func NewLoader(opener Opener, opts ...Option) *Loader {
	l := &Loader{
		opener:   opener,
		suffixes: DefaultSuffixes,
		budget:   DefaultBudget,
		filter:   acceptAll,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load 为每个非空输入启动一个 goroutine 抓取，最多等待预算时间。
// 超时仍未完成的订阅源既不计入成功也不计入失败；它们的结果之后不会再写入返回值。
func (l *Loader) Load(ctx context.Context, urls []string) Result {
	ctx, cancel := context.WithTimeout(ctx, l.budget)
	defer cancel()

	var sources []*Source
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		sources = append(sources, NewSource(strings.TrimSpace(u)))
	}

	var res Result
	if len(sources) == 0 {
		return res
	}

	opts := ParseOptions{MaxItems: l.maxItems, Filter: l.filter}
	// 带缓冲，超时后仍在运行的 goroutine 写入时不会阻塞
	results := make(chan FetchResult, len(sources))
	for _, src := range sources {
		go func(src *Source) {
			results <- Fetch(ctx, src, l.opener, l.suffixes, opts)
		}(src)
	}

	start := time.Now()
	pending := len(sources)
	for pending > 0 {
		select {
		case r := <-results:
			res.merge(r)
			pending--
		case <-ctx.Done():
			// 截止时已经完成的结果仍然合并，不再等待其余订阅源
			for drained := false; !drained && pending > 0; {
				select {
				case r := <-results:
					res.merge(r)
					pending--
				default:
					drained = true
				}
			}
			if pending > 0 {
				logger.Warnf("[rss] 等待超时 (%v)，%d 个订阅源未完成", time.Since(start).Round(time.Millisecond), pending)
			}
			return res
		}
	}

	logger.Infof("[rss] 加载完成: %d 个源，%d 条，%d 个失败，%d 个格式错误",
		len(sources), len(res.Entries), len(res.Errored), len(res.Malformed))
	return res
}

// merge 只在 Load 所在的 goroutine 中调用，无需加锁。
func (res *Result) merge(r FetchResult) {
	switch {
	case r.Err == nil:
		res.Entries = append(res.Entries, r.Entries...)
	case r.Malformed():
		res.Malformed = append(res.Malformed, r.Source)
		res.Entries = append(res.Entries, r.Entries...)
	case r.Cancelled():
		// 被取消的源不计入结果
	default:
		logger.Warnf("[rss] %s 获取失败: %v", r.Source.URL, r.Err)
		res.Errored = append(res.Errored, r.Source)
	}
}

// LoadAsync 在新的 goroutine 中执行 Load，完成后调用 onFinished。
// 返回的 channel 在 onFinished 返回后关闭。
func (l *Loader) LoadAsync(ctx context.Context, urls []string, onFinished func(Result)) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		res := l.Load(ctx, urls)
		if onFinished != nil {
			onFinished(res)
		}
	}()
	return done
}

// Load 使用默认 HTTP 打开器加载订阅源。
func Load(ctx context.Context, urls []string, opts ...Option) Result {
	return NewLoader(NewHTTPOpener(0, ""), opts...).Load(ctx, urls)
}
