package subscription

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestStoreAddAndList(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore 失败: %v", err)
	}

	// 空列表
	if subs := store.List(); len(subs) != 0 {
		t.Fatalf("期望空列表，得到 %d 条", len(subs))
	}

	sub, err := store.Add("www.example.com/")
	if err != nil {
		t.Fatalf("Add 失败: %v", err)
	}
	if sub.URL != "https://www.example.com" {
		t.Errorf("URL 不匹配: %s", sub.URL)
	}
	if sub.Name != "example.com" {
		t.Errorf("名称不匹配: %s", sub.Name)
	}
	if sub.Raw != "www.example.com/" {
		t.Errorf("原始字符串应保持不变: %s", sub.Raw)
	}

	subs := store.List()
	if len(subs) != 1 {
		t.Fatalf("期望 1 条，得到 %d 条", len(subs))
	}
	if subs[0].AddedAt.IsZero() {
		t.Error("AddedAt 不应为零值")
	}
}

func TestStoreAddEmpty(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	if _, err := store.Add("   "); err == nil {
		t.Fatal("期望空地址返回错误")
	}
}

func TestStoreAddDuplicate(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore 失败: %v", err)
	}

	if _, err := store.Add("example.com/feed"); err != nil {
		t.Fatalf("第一次 Add 失败: %v", err)
	}

	// 规范化后相同也算重复
	if _, err := store.Add("https://example.com/feed/"); err == nil {
		t.Fatal("期望重复添加返回错误")
	}
	if len(store.List()) != 1 {
		t.Fatalf("重复添加后期望 1 条，得到 %d 条", len(store.List()))
	}
}

func TestStoreRemove(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	_, _ = store.Add("https://36kr.com/feed")
	_, _ = store.Add("sspai.com")
	_, _ = store.Add("https://blog.example.org/rss")

	// 按原始字符串删除
	if !store.Remove("https://36kr.com/feed") {
		t.Fatal("按原始字符串删除应成功")
	}
	// 按规范 URL 删除
	if !store.Remove("https://sspai.com") {
		t.Fatal("按规范 URL 删除应成功")
	}
	// 按名称删除（不区分大小写）
	if !store.Remove("BLOG.EXAMPLE.ORG") {
		t.Fatal("按名称删除应成功")
	}
	if len(store.List()) != 0 {
		t.Fatal("删除后列表应为空")
	}

	// 删除不存在的
	if store.Remove("not-exist.com") {
		t.Fatal("删除不存在的应返回 false")
	}
}

func TestStoreRaws(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	_, _ = store.Add("example.com")
	_, _ = store.Add("https://blog.example.org/feed")

	raws := store.Raws()
	if len(raws) != 2 || raws[0] != "example.com" || raws[1] != "https://blog.example.org/feed" {
		t.Errorf("Raws 不匹配: %v", raws)
	}
}

func TestStoreRename(t *testing.T) {
	store, _ := NewStore(t.TempDir())
	sub, _ := store.Add("example.com")

	store.Rename(sub.URL, "Example Blog")
	if got := store.List()[0].Name; got != "Example Blog" {
		t.Errorf("重命名后名称不匹配: %s", got)
	}

	// 空名称不生效
	store.Rename(sub.URL, "  ")
	if got := store.List()[0].Name; got != "Example Blog" {
		t.Errorf("空名称不应覆盖: %s", got)
	}
}

func TestStorePersistence(t *testing.T) {
	dir := t.TempDir()

	store1, _ := NewStore(dir)
	_, _ = store1.Add("example.com")

	if _, err := os.Stat(filepath.Join(dir, "subscriptions.json")); err != nil {
		t.Fatalf("持久化文件不存在: %v", err)
	}

	// 第二次创建，应加载已有数据
	store2, _ := NewStore(dir)
	subs := store2.List()
	if len(subs) != 1 {
		t.Fatalf("加载后期望 1 条，得到 %d 条", len(subs))
	}
	if subs[0].URL != "https://example.com" {
		t.Errorf("加载后 URL 不匹配: %s", subs[0].URL)
	}
}

func TestStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "subscriptions.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("写入文件失败: %v", err)
	}

	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("损坏的文件不应导致 NewStore 失败: %v", err)
	}
	if len(store.List()) != 0 {
		t.Fatal("损坏的文件应得到空列表")
	}
}

func TestStoreConcurrency(t *testing.T) {
	store, _ := NewStore(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = store.Add("https://example.com/feed" + string(rune('0'+i)))
		}(i)
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.List()
			store.Raws()
		}()
	}

	wg.Wait()

	if n := len(store.List()); n != 10 {
		t.Errorf("期望 10 条，得到 %d 条", n)
	}
}
