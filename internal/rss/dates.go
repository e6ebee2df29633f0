package rss

import (
	"strings"
	"time"

	"github.com/iabetor/rsslib/internal/logger"
)

const (
	// rssDateLayout 对应 "EEE, dd MMM yyyy HH:mm:ss Z"，日期允许一位数。
	rssDateLayout = "Mon, 2 Jan 2006 15:04:05 -0700"
	// rssStampLayout 是 rssDateLayout 去掉时区的部分。
	rssStampLayout = "Mon, 2 Jan 2006 15:04:05"
	// isoDateLayout 对应 "yyyy-MM-dd'T'HH:mm:ss'Z'"，末尾 Z 是字面量。
	isoDateLayout = "2006-01-02T15:04:05Z"
)

// epoch 是无法解析的日期的默认值。
var epoch = time.Unix(0, 0).UTC()

var zoneReplacer = strings.NewReplacer("GMT", "+0000", "EDT", "+0000")

// zoneOffsets 是 pubDate 中常见时区缩写对应的偏移（小时）。EDT 已被 zoneReplacer 改写。
var zoneOffsets = map[string]int{
	"UT": 0, "UTC": 0, "Z": 0,
	"EST": -5,
	"CST": -6, "CDT": -5,
	"MST": -7, "MDT": -6,
	"PST": -8, "PDT": -7,
}

// parseRSSDate 解析 RSS pubDate，失败时回退到 ISO 格式，仍失败返回 epoch。
func parseRSSDate(text string) time.Time {
	text = strings.TrimSpace(zoneReplacer.Replace(text))
	if t, err := time.Parse(rssDateLayout, text); err == nil {
		return t
	}
	if t, ok := parseZonedRSSDate(text); ok {
		return t
	}
	if t, err := time.Parse(isoDateLayout, text); err == nil {
		return t
	}
	logger.Debugf("[rss] 无法解析 pubDate %q，使用 epoch", text)
	return epoch
}

// parseZonedRSSDate 处理时区为缩写或时区后还有附加文本的 pubDate，
// 如 "Tue, 05 Mar 2024 05:00:00 EST" 和 "Tue, 05 Mar 2024 10:00:00 +0000 (UTC)"。
func parseZonedRSSDate(text string) (time.Time, bool) {
	fields := strings.Fields(text)
	if len(fields) < 6 {
		return time.Time{}, false
	}
	stamp, zone := strings.Join(fields[:5], " "), fields[5]
	if t, err := time.Parse(rssDateLayout, stamp+" "+zone); err == nil {
		return t, true
	}
	hours, ok := zoneOffsets[zone]
	if !ok {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(rssStampLayout, stamp, time.FixedZone(zone, hours*3600))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseAtomDate 只接受 ISO 格式，失败返回 epoch。
func parseAtomDate(text string) time.Time {
	text = strings.TrimSpace(text)
	if t, err := time.Parse(isoDateLayout, text); err == nil {
		return t
	}
	logger.Debugf("[rss] 无法解析 Atom 日期 %q，使用 epoch", text)
	return epoch
}
