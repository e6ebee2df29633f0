// Package rss 并发抓取 RSS/Atom 订阅源，流式解析条目并合并结果。
package rss

import (
	"sort"
	"time"
)

// Source 订阅源信息。
// 只在解析自己的 Feed 时可变，解析完成后只读共享。
type Source struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Domain string `json:"domain"`

	// IconURL 为空表示没有图标。
	IconURL string `json:"icon_url,omitempty"`
	// AccentColor 为 ARGB 值（alpha 固定为 0xff），nil 表示没有主题色。
	AccentColor *uint32 `json:"accent_color,omitempty"`
}

// clone 返回一份独立副本，每次后缀尝试在副本上解析，成功后才对外暴露。
func (s *Source) clone() *Source {
	c := *s
	if s.AccentColor != nil {
		color := *s.AccentColor
		c.AccentColor = &color
	}
	return &c
}

// Entry 订阅源条目。
type Entry struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Image       string    `json:"image,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Source      *Source   `json:"-"`
}

// EntryKey 是条目的去重键，只包含标题和链接。
type EntryKey struct {
	Title string
	Link  string
}

// Key 返回条目的去重键。
func (e Entry) Key() EntryKey {
	return EntryKey{Title: e.Title, Link: e.Link}
}

// Equal 当标题和链接完全相同时返回 true，时间和图片不参与比较。
func (e Entry) Equal(other Entry) bool {
	return e.Key() == other.Key()
}

// Before 按发布时间升序比较。
func (e Entry) Before(other Entry) bool {
	return e.PublishedAt.Before(other.PublishedAt)
}

// SortEntries 按发布时间升序稳定排序。
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Before(entries[j])
	})
}

// Dedupe 按 (标题, 链接) 去重，保留第一次出现的条目，顺序不变。
func Dedupe(entries []Entry) []Entry {
	if len(entries) == 0 {
		return entries
	}
	seen := make(map[EntryKey]struct{}, len(entries))
	result := make([]Entry, 0, len(entries))
	for _, e := range entries {
		k := e.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, e)
	}
	return result
}
