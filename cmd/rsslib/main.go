package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/iabetor/rsslib/internal/config"
	"github.com/iabetor/rsslib/internal/database"
	"github.com/iabetor/rsslib/internal/logger"
	"github.com/iabetor/rsslib/internal/rss"
	"github.com/iabetor/rsslib/internal/subscription"
)

const defaultConfigPath = "configs/rsslib.yaml"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", defaultConfigPath, "配置文件路径")
	maxItems := flag.Int("max", -1, "每个订阅源最多保留的条目数，0 表示不限制，-1 表示使用配置")
	since := flag.Duration("since", 0, "只保留这段时间内发布的条目（如 24h），0 表示不限制")
	asJSON := flag.Bool("json", false, "以 JSON 格式输出")
	flag.Usage = printUsage
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		return 1
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		return 1
	}
	defer logger.Sync()

	subs, err := subscription.NewStore(cfg.Store.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "打开订阅列表失败: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听系统信号，中断时返回已完成的部分结果
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Infof("[main] 收到信号 %v，停止等待剩余订阅源", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	args := flag.Args()
	if len(args) > 0 {
		switch args[0] {
		case "add":
			if len(args) < 2 {
				fmt.Fprintln(os.Stderr, "用法: rsslib add <url>...")
				return 1
			}
			return cmdAdd(ctx, cfg, subs, args[1:])
		case "list":
			return cmdList(subs)
		case "remove":
			if len(args) < 2 {
				fmt.Fprintln(os.Stderr, "用法: rsslib remove <url|名称>")
				return 1
			}
			return cmdRemove(subs, args[1])
		case "history":
			limit := 20
			if len(args) > 1 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n <= 0 {
					fmt.Fprintf(os.Stderr, "无效的条数: %s\n", args[1])
					return 1
				}
				limit = n
			}
			return cmdHistory(ctx, cfg, limit, *asJSON)
		case "help":
			printUsage()
			return 0
		}
	}

	perURL := cfg.Fetch.MaxItemsPerURL
	if *maxItems >= 0 {
		perURL = *maxItems
	}
	return cmdLoad(ctx, cfg, subs, args, loadOptions{
		maxItems: perURL,
		since:    *since,
		json:     *asJSON,
	})
}

// loadConfig 读取配置文件；默认路径下没有配置文件时使用默认配置。
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, err
}

func databasePath(cfg *config.Config) string {
	return filepath.Join(cfg.Store.DataDir, database.FileName)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "rsslib 并发加载 RSS/Atom 订阅源")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "用法: rsslib [-config <path>] [-max n] [-since 24h] [-json] [url ...]")
	fmt.Fprintln(os.Stderr, "      rsslib [-config <path>] <command> [args]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "不带命令时加载配置文件、订阅列表和命令行中的所有订阅源。")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "命令:")
	fmt.Fprintln(os.Stderr, "  add <url>...        添加订阅源")
	fmt.Fprintln(os.Stderr, "  list                列出订阅源")
	fmt.Fprintln(os.Stderr, "  remove <url|名称>    删除订阅源")
	fmt.Fprintln(os.Stderr, "  history [n]         查看最近 n 条历史条目和加载记录")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "参数:")
	flag.PrintDefaults()
}

// cmdAdd 先抓取验证订阅源，成功后再加入订阅列表。
func cmdAdd(ctx context.Context, cfg *config.Config, subs *subscription.Store, raws []string) int {
	ctx, cancel := context.WithTimeout(ctx, cfg.Fetch.Budget())
	defer cancel()
	opener := rss.NewHTTPOpener(cfg.Fetch.Timeout(), cfg.Fetch.UserAgent)

	code := 0
	for _, raw := range raws {
		res := rss.Fetch(ctx, rss.NewSource(raw), opener, cfg.Fetch.Suffixes, rss.ParseOptions{MaxItems: 1})
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "无法解析该 RSS 地址 %s: %v\n", raw, res.Err)
			code = 1
			continue
		}
		sub, err := subs.Add(raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "添加 %s 失败: %v\n", raw, err)
			code = 1
			continue
		}
		subs.Rename(sub.URL, res.Source.Name)
		fmt.Printf("已添加: %s (%s)\n", res.Source.Name, res.Source.URL)
	}
	return code
}

func cmdList(subs *subscription.Store) int {
	list := subs.List()
	if len(list) == 0 {
		fmt.Println("暂无订阅源")
		return 0
	}
	for i, sub := range list {
		fmt.Printf("%d. %s\n   %s  (添加于 %s)\n", i+1, sub.Name, sub.URL, sub.AddedAt.Format("2006-01-02"))
	}
	return 0
}

func cmdRemove(subs *subscription.Store, key string) int {
	if !subs.Remove(key) {
		fmt.Fprintf(os.Stderr, "未找到订阅源: %s\n", key)
		return 1
	}
	fmt.Printf("已删除: %s\n", key)
	return 0
}
