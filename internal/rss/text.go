package rss

import (
	"strings"
	"unicode/utf8"
)

// Unescape 解码标题中的十进制数字字符引用（如 &#65;）。
// 命名实体（如 &amp;）和格式不正确的引用原样保留。
func Unescape(s string) string {
	if !strings.Contains(s, "&#") {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); {
		if s[i] == '&' && i+1 < len(s) && s[i+1] == '#' {
			j := i + 2
			code := 0
			for j < len(s) && s[j] >= '0' && s[j] <= '9' {
				if code <= utf8.MaxRune {
					code = code*10 + int(s[j]-'0')
				}
				j++
			}
			if j > i+2 && j < len(s) && s[j] == ';' {
				r := rune(code)
				if !utf8.ValidRune(r) {
					r = utf8.RuneError
				}
				sb.WriteRune(r)
				i = j + 1
				continue
			}
		}
		sb.WriteByte(s[i])
		i++
	}
	return sb.String()
}

// extractImgSrc 在 HTML 片段中先找 "img"，再找其后第一个 src="，取引号内的值。
// 这是尽力而为的子串扫描，不是真正的 HTML 解析，可能误匹配。
func extractImgSrc(html string) string {
	start := strings.Index(html, "img")
	if start == -1 {
		start = 0
	}
	i := strings.Index(html[start:], `src="`)
	if i == -1 {
		return ""
	}
	i += start + len(`src="`)
	end := strings.IndexByte(html[i:], '"')
	if end == -1 {
		return ""
	}
	return html[i : i+end]
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
