package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/iabetor/rsslib/internal/config"
	"github.com/iabetor/rsslib/internal/database"
	"github.com/iabetor/rsslib/internal/history"
	"github.com/iabetor/rsslib/internal/logger"
	"github.com/iabetor/rsslib/internal/rss"
	"github.com/iabetor/rsslib/internal/subscription"
)

// maxTitleLen 表格输出中标题的最大字符数。
const maxTitleLen = 60

type loadOptions struct {
	maxItems int
	since    time.Duration
	json     bool
}

// jsonEntry 是 -json 输出的条目格式。
type jsonEntry struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Image       string    `json:"image,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
}

func cmdLoad(ctx context.Context, cfg *config.Config, subs *subscription.Store, args []string, opts loadOptions) int {
	sources := mergeSources(cfg.Sources, subs.Raws(), args)
	if len(sources) == 0 {
		fmt.Fprintln(os.Stderr, "没有订阅源：请在配置文件中添加 sources，或使用 rsslib add <url>")
		return 1
	}

	loaderOpts := []rss.Option{
		rss.WithBudget(cfg.Fetch.Budget()),
		rss.WithSuffixes(cfg.Fetch.Suffixes),
		rss.WithMaxItemsPerURL(opts.maxItems),
	}
	if opts.since > 0 {
		loaderOpts = append(loaderOpts, rss.WithFilter(sinceFilter(time.Now().Add(-opts.since))))
	}
	loader := rss.NewLoader(rss.NewHTTPOpener(cfg.Fetch.Timeout(), cfg.Fetch.UserAgent), loaderOpts...)

	logger.Infof("[main] 开始加载 %d 个订阅源", len(sources))
	startedAt := time.Now()
	res := loader.Load(ctx, sources)

	renameSubscriptions(subs, res.Entries)
	entries := newestFirst(res.Entries)

	var err error
	if opts.json {
		err = writeJSON(os.Stdout, entries)
	} else {
		err = writeTable(os.Stdout, entries)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "输出失败: %v\n", err)
		return 1
	}
	reportFailures(os.Stderr, res)

	if cfg.Store.History {
		if err := recordHistory(ctx, cfg, startedAt, len(sources), res); err != nil {
			logger.Warnf("[main] 记录加载历史失败: %v", err)
		}
	}
	return 0
}

// mergeSources 合并多个来源的订阅源，按规范化后的 URL 去重，保持先后顺序。
func mergeSources(lists ...[]string) []string {
	seen := make(map[string]bool)
	var merged []string
	for _, list := range lists {
		for _, raw := range list {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			url, _, _ := rss.ResolveSource(raw)
			if seen[url] {
				continue
			}
			seen[url] = true
			merged = append(merged, raw)
		}
	}
	return merged
}

func sinceFilter(cutoff time.Time) rss.FilterFunc {
	return func(_, _ string, publishedAt time.Time) bool {
		return !publishedAt.Before(cutoff)
	}
}

// newestFirst 去重后按发布时间倒序排列。
func newestFirst(entries []rss.Entry) []rss.Entry {
	entries = rss.Dedupe(entries)
	rss.SortEntries(entries)
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

// renameSubscriptions 用频道标题更新订阅列表中的显示名称。
func renameSubscriptions(subs *subscription.Store, entries []rss.Entry) {
	seen := make(map[*rss.Source]bool)
	list := subs.List()
	for _, e := range entries {
		if e.Source == nil || seen[e.Source] {
			continue
		}
		seen[e.Source] = true
		for _, sub := range list {
			if e.Source.URL == sub.URL || strings.HasPrefix(e.Source.URL, sub.URL+"/") {
				subs.Rename(sub.URL, e.Source.Name)
				break
			}
		}
	}
}

func writeTable(w io.Writer, entries []rss.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "没有条目")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "时间\t来源\t标题\t链接")
	for _, e := range entries {
		published := "-"
		if e.PublishedAt.Unix() != 0 {
			published = e.PublishedAt.Local().Format("2006-01-02 15:04")
		}
		var source string
		if e.Source != nil {
			source = e.Source.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", published, source, truncate(e.Title, maxTitleLen), e.Link)
	}
	return tw.Flush()
}

// truncate 截断字符串到指定字符数（按 UTF-8 字符计算）。
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}

func writeJSON(w io.Writer, entries []rss.Entry) error {
	out := make([]jsonEntry, 0, len(entries))
	for _, e := range entries {
		je := jsonEntry{
			Title:       e.Title,
			Link:        e.Link,
			Image:       e.Image,
			PublishedAt: e.PublishedAt,
		}
		if e.Source != nil {
			je.Source = e.Source.Name
			je.SourceURL = e.Source.URL
		}
		out = append(out, je)
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func reportFailures(w io.Writer, res rss.Result) {
	for _, src := range res.Errored {
		fmt.Fprintf(w, "获取失败: %s\n", src.URL)
	}
	for _, src := range res.Malformed {
		fmt.Fprintf(w, "格式错误: %s\n", src.URL)
	}
}

func openHistory(cfg *config.Config) (*history.Store, func(), error) {
	db, err := database.Open(databasePath(cfg))
	if err != nil {
		return nil, nil, err
	}
	store, err := history.NewStore(db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, func() { db.Close() }, nil
}

func recordHistory(ctx context.Context, cfg *config.Config, startedAt time.Time, sourceCount int, res rss.Result) error {
	store, closeDB, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	// 使用独立的上下文，中断加载后仍然记录已完成的部分
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	run, err := store.RecordRun(ctx, startedAt, sourceCount, res)
	if err != nil {
		return err
	}
	if run.NewEntries > 0 {
		fmt.Fprintf(os.Stderr, "本次新增 %d 条\n", run.NewEntries)
	}
	return nil
}

func cmdHistory(ctx context.Context, cfg *config.Config, limit int, asJSON bool) int {
	store, closeDB, err := openHistory(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "打开历史数据库失败: %v\n", err)
		return 1
	}
	defer closeDB()

	entries, err := store.RecentEntries(ctx, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "查询历史条目失败: %v\n", err)
		return 1
	}
	if asJSON {
		if err := writeJSON(os.Stdout, entries); err != nil {
			fmt.Fprintf(os.Stderr, "输出失败: %v\n", err)
			return 1
		}
		return 0
	}
	if err := writeTable(os.Stdout, entries); err != nil {
		fmt.Fprintf(os.Stderr, "输出失败: %v\n", err)
		return 1
	}

	runs, err := store.Runs(ctx, 5)
	if err != nil {
		fmt.Fprintf(os.Stderr, "查询加载记录失败: %v\n", err)
		return 1
	}
	if len(runs) > 0 {
		fmt.Println()
		fmt.Println("最近的加载:")
		for _, r := range runs {
			fmt.Printf("  %s  %d 个源，%d 条，%d 个失败，%d 个格式错误，耗时 %v\n",
				r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Sources, r.Entries, r.Errored, r.Malformed,
				r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
		}
	}

	counts, err := store.FailureCounts(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "查询失败统计失败: %v\n", err)
		return 1
	}
	if len(counts) > 0 {
		fmt.Println()
		fmt.Println("累计失败:")
		urls := make([]string, 0, len(counts))
		for url := range counts {
			urls = append(urls, url)
		}
		sort.Strings(urls)
		for _, url := range urls {
			fmt.Printf("  %-50s %d 次\n", url, counts[url])
		}
	}
	return 0
}
