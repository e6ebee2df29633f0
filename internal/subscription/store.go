// Package subscription 管理用户订阅的原始订阅源字符串，以 JSON 文件持久化。
package subscription

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/iabetor/rsslib/internal/logger"
	"github.com/iabetor/rsslib/internal/rss"
)

// Subscription 一条订阅。
type Subscription struct {
	// Raw 为用户输入的原始字符串，加载时原样交给 rss.Loader。
	Raw     string    `json:"raw"`
	URL     string    `json:"url"`
	Name    string    `json:"name"`
	AddedAt time.Time `json:"added_at"`
}

// Store 订阅列表持久化存储。
type Store struct {
	mu       sync.RWMutex
	filePath string
	subs     []Subscription
}

// NewStore 创建订阅存储，文件存放在 dataDir/subscriptions.json。
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	s := &Store{
		filePath: filepath.Join(dataDir, "subscriptions.json"),
	}
	if err := s.load(); err != nil {
		logger.Warnf("[subscription] 加载订阅数据失败（将使用空列表）: %v", err)
		s.subs = make([]Subscription, 0)
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			s.subs = make([]Subscription, 0)
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &s.subs)
}

// save 先写临时文件再重命名，避免写到一半留下损坏的文件。
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.subs, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath)
}

// Add 添加订阅。规范化后的 URL 已存在时返回错误。
func (s *Store) Add(raw string) (Subscription, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Subscription{}, fmt.Errorf("订阅地址不能为空")
	}
	url, _, name := rss.ResolveSource(raw)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if sub.URL == url {
			return sub, fmt.Errorf("该订阅源已存在: %s", sub.Name)
		}
	}

	sub := Subscription{Raw: raw, URL: url, Name: name, AddedAt: time.Now()}
	s.subs = append(s.subs, sub)
	if err := s.save(); err != nil {
		s.subs = s.subs[:len(s.subs)-1]
		return sub, fmt.Errorf("保存订阅失败: %w", err)
	}
	return sub, nil
}

// List 列出所有订阅。
func (s *Store) List() []Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Subscription, len(s.subs))
	copy(result, s.subs)
	return result
}

// Raws 返回所有订阅的原始字符串，供 rss.Loader 使用。
func (s *Store) Raws() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raws := make([]string, 0, len(s.subs))
	for _, sub := range s.subs {
		raws = append(raws, sub.Raw)
	}
	return raws
}

// Remove 按原始字符串、规范 URL 或名称（不区分大小写）删除订阅。
func (s *Store) Remove(key string) bool {
	key = strings.TrimSpace(key)
	url, _, _ := rss.ResolveSource(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subs {
		if sub.Raw == key || sub.URL == url || strings.EqualFold(sub.Name, key) {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			if err := s.save(); err != nil {
				logger.Warnf("[subscription] 保存订阅失败: %v", err)
			}
			return true
		}
	}
	return false
}

// Rename 在订阅源声明了自己的标题后更新显示名称。
func (s *Store) Rename(url, name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.subs {
		if s.subs[i].URL == url && s.subs[i].Name != name {
			s.subs[i].Name = name
			_ = s.save()
			return
		}
	}
}
