package rss

import (
	"strconv"
	"strings"

	"github.com/iabetor/rsslib/internal/logger"
)

// fieldSetter 处理一个开始标签，按需读取其文本或属性。
type fieldSetter func(fp *feedParser) error

// fieldTables 按 (语法, 小写限定名) 查找字段处理函数。
var fieldTables = map[grammar]map[string]fieldSetter{
	grammarNone: channelFields,
	grammarRSS:  rssFields,
	grammarAtom: atomFields,
}

var rssFields = map[string]fieldSetter{
	"title": func(fp *feedParser) error {
		s, err := fp.text()
		fp.item.title = s
		return err
	},
	"guid": func(fp *feedParser) error {
		fp.item.isPermaLink = strings.EqualFold(fp.p.Attribute("isPermaLink"), "true")
		s, err := fp.text()
		fp.item.id = strings.TrimSpace(s)
		return err
	},
	"link": func(fp *feedParser) error {
		if fp.item.link != "" {
			return nil
		}
		s, err := fp.text()
		fp.item.link = strings.TrimSpace(s)
		return err
	},
	"pubdate": func(fp *feedParser) error {
		s, err := fp.text()
		if err != nil {
			return err
		}
		fp.item.setTime(parseRSSDate(s))
		return nil
	},
	"description":     imageFromMarkup,
	"content:encoded": imageFromMarkup,
	"image": func(fp *feedParser) error {
		if fp.item.image != "" {
			return nil
		}
		s, err := fp.text()
		fp.item.image = strings.TrimSpace(s)
		return err
	},
	"media:content": func(fp *feedParser) error {
		if fp.item.image != "" {
			return nil
		}
		url := fp.p.Attribute("url")
		if fp.p.Attribute("medium") == "image" || hasImageExt(url) {
			fp.item.image = url
		}
		return nil
	},
	"media:thumbnail": imageFromAttr("url"),
	"enclosure":       imageFromAttr("url"),
	"itunes:image":    imageFromAttr("href"),
}

var atomFields = map[string]fieldSetter{
	"title": func(fp *feedParser) error {
		s, err := fp.text()
		fp.item.title = s
		return err
	},
	"id": func(fp *feedParser) error {
		s, err := fp.text()
		fp.item.link = strings.TrimSpace(s)
		return err
	},
	"published": atomDate,
	"updated":   atomDate,
	"summary":   imageFromMarkup,
	"content":   imageFromMarkup,
}

var channelFields = map[string]fieldSetter{
	"title": func(fp *feedParser) error {
		s, err := fp.text()
		if err != nil {
			return err
		}
		if s = Unescape(s); !isBlank(s) {
			fp.src.Name = strings.TrimSpace(s)
		}
		return nil
	},
	"icon":          channelIcon,
	"webfeeds:icon": channelIcon,
	"image": func(fp *feedParser) error {
		s, err := fp.findChildText("image", "url")
		if err != nil {
			return err
		}
		fp.setIcon(s)
		return nil
	},
	"webfeeds:accentcolor": func(fp *feedParser) error {
		s, err := fp.text()
		if err != nil || isBlank(s) {
			return err
		}
		hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
		v, perr := strconv.ParseUint(hex, 16, 32)
		if perr != nil {
			logger.Debugf("[rss] %s 的主题色 %q 无法解析: %v", fp.src.URL, s, perr)
			return nil
		}
		color := uint32(v)&0xffffff | 0xff000000
		fp.src.AccentColor = &color
		return nil
	},
}

func atomDate(fp *feedParser) error {
	s, err := fp.text()
	if err != nil {
		return err
	}
	fp.item.setTime(parseAtomDate(s))
	return nil
}

// imageFromMarkup 从 HTML 正文中提取第一张图片。
func imageFromMarkup(fp *feedParser) error {
	if fp.item.image != "" {
		return nil
	}
	s, err := fp.text()
	if err != nil {
		return err
	}
	fp.item.image = extractImgSrc(s)
	return nil
}

func imageFromAttr(attr string) fieldSetter {
	return func(fp *feedParser) error {
		if fp.item.image == "" {
			fp.item.image = fp.p.Attribute(attr)
		}
		return nil
	}
}

func channelIcon(fp *feedParser) error {
	s, err := fp.text()
	if err != nil {
		return err
	}
	fp.setIcon(s)
	return nil
}

// setIcon 只在图标尚未设置且值非空时生效，先到先得。
func (fp *feedParser) setIcon(s string) {
	if fp.src.IconURL == "" && !isBlank(s) {
		fp.src.IconURL = strings.TrimSpace(s)
	}
}

func hasImageExt(url string) bool {
	for _, ext := range []string{".jpg", ".png", ".svg", ".jpeg"} {
		if strings.HasSuffix(url, ext) {
			return true
		}
	}
	return false
}
