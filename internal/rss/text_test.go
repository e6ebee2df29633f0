package rss

import (
	"testing"
	"time"
	"unicode/utf8"
)

func TestUnescape(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"&#65;&#66;C", "ABC"},
		{"&#20013;&#25991;标题", "中文标题"},
		{"Tom &amp; Jerry", "Tom &amp; Jerry"},
		{"&#65", "&#65"},
		{"&#;", "&#;"},
		{"&#x41;", "&#x41;"},
		{"a &# b", "a &# b"},
		{"&#99999999;", string(utf8.RuneError)},
		{"end &", "end &"},
	}
	for _, tt := range tests {
		if got := Unescape(tt.in); got != tt.want {
			t.Errorf("Unescape(%q) = %q, 期望 %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractImgSrc(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`<p>hi <img class="cover" src="https://cdn.example.com/a.png"> there</p>`, "https://cdn.example.com/a.png"},
		{`<video src="https://cdn.example.com/v.mp4"></video>`, "https://cdn.example.com/v.mp4"},
		{`<img src='single.png'>`, ""},
		{`<img src="unterminated`, ""},
		{"no markup", ""},
	}
	for _, tt := range tests {
		if got := extractImgSrc(tt.in); got != tt.want {
			t.Errorf("extractImgSrc(%q) = %q, 期望 %q", tt.in, got, tt.want)
		}
	}
}

func TestParseRSSDate(t *testing.T) {
	want := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"Tue, 05 Mar 2024 10:00:00 GMT", want},
		{"Tue, 5 Mar 2024 10:00:00 +0000", want},
		{"Tue, 05 Mar 2024 03:00:00 -0700", want},
		{"Tue, 05 Mar 2024 18:00:00 +0800", want},
		// EDT 与 GMT 一样按 +0000 处理
		{"Tue, 05 Mar 2024 10:00:00 EDT", want},
		// 时区缩写按固定偏移换算
		{"Tue, 05 Mar 2024 05:00:00 EST", want},
		{"Tue, 05 Mar 2024 04:00:00 CST", want},
		{"Tue, 05 Mar 2024 03:00:00 PDT", want},
		{"Tue, 05 Mar 2024 02:00:00 PST", want},
		{"Tue, 05 Mar 2024 10:00:00 UTC", want},
		{"Tue, 05 Mar 2024 10:00:00 UT", want},
		// 时区后的附加文本被忽略
		{"Tue, 05 Mar 2024 10:00:00 +0000 (UTC)", want},
		{"Tue, 05 Mar 2024 05:00:00 EST (Eastern)", want},
		{"Tue, 05 Mar 2024 10:00:00 GMT (Greenwich)", want},
		{"  2024-03-05T10:00:00Z  ", want},
		{"Tue, 05 Mar 2024 10:00:00 XYZ", epoch},
		{"Tue, 05 Mar 2024 10:00:00", epoch},
		{"yesterday", epoch},
		{"", epoch},
	}
	for _, tt := range tests {
		if got := parseRSSDate(tt.in); !got.Equal(tt.want) {
			t.Errorf("parseRSSDate(%q) = %v, 期望 %v", tt.in, got, tt.want)
		}
	}
}

func TestParseAtomDate(t *testing.T) {
	if got := parseAtomDate("2024-03-05T10:00:00Z"); !got.Equal(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("parseAtomDate 结果不匹配: %v", got)
	}
	// Atom 不接受 RSS 格式和带偏移的时间
	for _, in := range []string{"Tue, 05 Mar 2024 10:00:00 GMT", "2024-03-05T10:00:00+08:00"} {
		if got := parseAtomDate(in); !got.Equal(epoch) {
			t.Errorf("parseAtomDate(%q) = %v, 期望 epoch", in, got)
		}
	}
}
