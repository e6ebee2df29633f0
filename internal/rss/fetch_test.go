package rss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeOpener 按 URL 返回预设内容，并记录请求顺序。
type fakeOpener struct {
	mu    sync.Mutex
	docs  map[string]string
	calls []string
}

func (f *fakeOpener) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	doc, ok := f.docs[url]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("HTTP 404")
	}
	return io.NopCloser(strings.NewReader(doc)), nil
}

func (f *fakeOpener) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestFetchSuffixFallback(t *testing.T) {
	opener := &fakeOpener{docs: map[string]string{
		"https://example.com/rss.xml": numberedRSS(2),
	}}
	res := Fetch(context.Background(), NewSource("example.com"), opener, nil, ParseOptions{})
	if res.Err != nil {
		t.Fatalf("Fetch 失败: %v", res.Err)
	}
	if res.Source.URL != "https://example.com/rss.xml" {
		t.Errorf("成功的订阅源应带后缀: %s", res.Source.URL)
	}
	if res.Source.Name != "Numbered" {
		t.Errorf("订阅源名称应来自频道标题: %s", res.Source.Name)
	}
	for _, e := range res.Entries {
		if e.Source != res.Source {
			t.Error("条目应指向成功的那次尝试")
		}
	}

	want := []string{"https://example.com", "https://example.com/feed", "https://example.com/feed.xml",
		"https://example.com/rss", "https://example.com/rss.xml"}
	if got := opener.Calls(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("尝试顺序不对: %v", got)
	}
}

func TestFetchAllSuffixesFail(t *testing.T) {
	opener := &fakeOpener{docs: map[string]string{}}
	src := NewSource("example.com")
	res := Fetch(context.Background(), src, opener, []string{"", "/feed"}, ParseOptions{})
	if res.Err == nil {
		t.Fatal("期望失败")
	}
	if !IsTransport(res.Err) || res.Malformed() || res.Cancelled() {
		t.Errorf("错误类型不对: %v", res.Err)
	}
	if res.Source != src {
		t.Error("失败时应返回原始订阅源")
	}
	if len(opener.Calls()) != 2 {
		t.Errorf("期望尝试 2 次，实际 %d 次", len(opener.Calls()))
	}
}

func TestFetchMalformedNotRetried(t *testing.T) {
	opener := &fakeOpener{docs: map[string]string{
		"https://example.com":      `<rss><channel><item><title>A</title><link>https://x/a</link></item><item>`,
		"https://example.com/feed": numberedRSS(3),
	}}
	src := NewSource("example.com")
	res := Fetch(context.Background(), src, opener, nil, ParseOptions{})
	if !res.Malformed() {
		t.Fatalf("期望格式错误，得到 %v", res.Err)
	}
	if len(opener.Calls()) != 1 {
		t.Errorf("格式错误不应重试其他后缀: %v", opener.Calls())
	}
	if len(res.Entries) != 1 {
		t.Errorf("应保留出错前的条目，得到 %d 条", len(res.Entries))
	}
	if src.Name != "example.com" {
		t.Error("原始订阅源不应被修改")
	}
}

func TestFetchFilterPanic(t *testing.T) {
	opener := &fakeOpener{docs: map[string]string{"https://example.com": numberedRSS(2)}}
	res := Fetch(context.Background(), NewSource("example.com"), opener, nil, ParseOptions{
		Filter: func(string, string, time.Time) bool { panic("boom") },
	})
	var fe *FilterError
	if !errors.As(res.Err, &fe) {
		t.Fatalf("期望 FilterError，得到 %v", res.Err)
	}
	if fe.Panic != "boom" {
		t.Errorf("panic 值不匹配: %v", fe.Panic)
	}
	if res.Entries != nil {
		t.Error("panic 后不应返回条目")
	}
}

func TestFetchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opener := &fakeOpener{docs: map[string]string{"https://example.com": numberedRSS(1)}}
	res := Fetch(ctx, NewSource("example.com"), opener, nil, ParseOptions{})
	if !res.Cancelled() {
		t.Fatalf("期望取消，得到 %v", res.Err)
	}
	if len(opener.Calls()) != 0 {
		t.Error("已取消时不应发起请求")
	}
}

func TestHTTPOpener(t *testing.T) {
	var gotUA string
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, numberedRSS(1))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	opener := NewHTTPOpener(5*time.Second, "test-agent/1.0")
	body, err := opener.Open(context.Background(), srv.URL+"/feed.xml")
	if err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if !strings.Contains(string(data), "Item 1") {
		t.Errorf("内容不匹配: %s", data)
	}
	if gotUA != "test-agent/1.0" {
		t.Errorf("User-Agent 不匹配: %q", gotUA)
	}

	if _, err := opener.Open(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatal("404 应返回错误")
	}
}

func TestHTTPOpenerDefaults(t *testing.T) {
	o := NewHTTPOpener(0, "")
	if o.client.Timeout != defaultFetchTimeout {
		t.Errorf("默认超时不匹配: %v", o.client.Timeout)
	}
	if o.userAgent != defaultUserAgent {
		t.Errorf("默认 User-Agent 不匹配: %q", o.userAgent)
	}
}
