package rss

import "strings"

// ResolveSource 将用户输入规范化为 (规范 URL, 域名, 显示名称)。
// 只做字符串处理，不访问网络；对已规范化的输入幂等。
func ResolveSource(raw string) (canonicalURL, domain, name string) {
	u := strings.TrimSuffix(raw, "/")

	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		canonicalURL = u
		domain = u
		// 从第 8 个字符开始找，跳过 "https://" 中的斜杠
		if len(u) > 8 {
			if i := strings.IndexByte(u[8:], '/'); i != -1 {
				domain = u[:8+i]
			}
		}
	} else {
		host := u
		if i := strings.IndexByte(u, '/'); i != -1 {
			host = u[:i]
		}
		canonicalURL = "https://" + u
		domain = "https://" + host
	}

	name = strings.TrimPrefix(domain, "https://")
	name = strings.TrimPrefix(name, "http://")
	name = strings.TrimPrefix(name, "www.")
	return canonicalURL, domain, name
}

// NewSource 根据用户输入创建订阅源。
func NewSource(raw string) *Source {
	u, domain, name := ResolveSource(raw)
	return &Source{Name: name, URL: u, Domain: domain}
}
