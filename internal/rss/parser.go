package rss

import (
	"errors"
	"io"
	"strings"
	"time"

	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/net/html/charset"
)

// grammar 表示当前所在条目的语法。
type grammar int

const (
	grammarNone grammar = iota
	grammarRSS
	grammarAtom
)

func (g grammar) String() string {
	switch g {
	case grammarRSS:
		return "rss"
	case grammarAtom:
		return "atom"
	default:
		return "none"
	}
}

// ParseOptions 控制单个数据流的解析。
type ParseOptions struct {
	// MaxItems 为 0 表示不限制条目数量。
	MaxItems int
	// Filter 为 nil 时接受所有条目。
	Filter FilterFunc
}

// itemState 是当前 <item>/<entry> 的临时字段，每个条目开始和结束时重置。
type itemState struct {
	title       string
	link        string
	image       string
	id          string
	isPermaLink bool
	publishedAt time.Time
	hasTime     bool
}

// finalLink 返回条目最终的链接：没有 link 但 guid 标记为永久链接时使用 guid。
func (it *itemState) finalLink() string {
	if it.link == "" && it.isPermaLink {
		return it.id
	}
	return it.link
}

func (it *itemState) setTime(t time.Time) {
	if !it.hasTime {
		it.publishedAt = t
		it.hasTime = true
	}
}

// errStopParsing 表示达到条目上限，正常结束。
var errStopParsing = errors.New("已达到条目上限")

// feedParser 是单遍流式状态机，不构建 DOM。
type feedParser struct {
	p       *xpp.XMLPullParser
	src     *Source
	opts    ParseOptions
	grammar grammar
	item    itemState
	entries []Entry
	// replay 为 true 时主循环先处理当前事件，而不是读取下一个事件。
	replay  bool
	sawRoot bool
}

// readTracker 记录底层数据流的读取错误，用于区分传输错误和格式错误。
type readTracker struct {
	r   io.Reader
	err error
}

func (t *readTracker) Read(b []byte) (int, error) {
	n, err := t.r.Read(b)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

// ParseFeed 解析一个 RSS 或 Atom 数据流，返回通过过滤的条目。
// 解析过程中可能修改 src 的名称、图标和主题色。
// 正常结束（文档结束或达到 MaxItems）时 error 为 nil；出错时仍返回出错前已完成的条目，
// error 为 *TransportError（读取失败）或 *MalformedError（内容无法解析）。
func ParseFeed(r io.Reader, src *Source, opts ParseOptions) ([]Entry, error) {
	if opts.Filter == nil {
		opts.Filter = acceptAll
	}
	tracker := &readTracker{r: r}
	fp := &feedParser{
		p:    xpp.NewXMLPullParser(tracker, false, charset.NewReaderLabel),
		src:  src,
		opts: opts,
	}

	err := fp.run()
	switch {
	case err == nil, errors.Is(err, errStopParsing):
		return fp.entries, nil
	case tracker.err != nil:
		return fp.entries, &TransportError{URL: src.URL, Err: tracker.err}
	default:
		return fp.entries, &MalformedError{URL: src.URL, Err: err}
	}
}

func (fp *feedParser) run() error {
	for {
		event, err := fp.next()
		if err != nil {
			return err
		}
		switch event {
		case xpp.EndDocument:
			if !fp.sawRoot {
				return errors.New("文档中没有根元素")
			}
			return nil
		case xpp.StartTag:
			fp.sawRoot = true
			if err := fp.startTag(); err != nil {
				return err
			}
		case xpp.EndTag:
			if err := fp.endTag(); err != nil {
				return err
			}
		}
	}
}

func (fp *feedParser) next() (xpp.XMLEventType, error) {
	if fp.replay {
		fp.replay = false
		return fp.p.Event, nil
	}
	return fp.p.Next()
}

func (fp *feedParser) startTag() error {
	name := fp.qname()
	switch name {
	case "item":
		fp.grammar = grammarRSS
		fp.item = itemState{}
		return nil
	case "entry":
		fp.grammar = grammarAtom
		fp.item = itemState{}
		return nil
	}

	if set, ok := fieldTables[fp.grammar][name]; ok {
		return set(fp)
	}
	return nil
}

func (fp *feedParser) endTag() error {
	name := strings.ToLower(fp.p.Name)
	if name != "item" && name != "entry" {
		return nil
	}
	fp.grammar = grammarNone
	it := fp.item
	fp.item = itemState{}

	link := it.finalLink()
	if it.title == "" || link == "" {
		return nil
	}
	published := it.publishedAt
	if !it.hasTime {
		published = epoch
	}
	if !fp.opts.Filter(link, it.title, published) {
		return nil
	}

	fp.entries = append(fp.entries, Entry{
		Title:       Unescape(it.title),
		Link:        link,
		Image:       it.image,
		PublishedAt: published,
		Source:      fp.src,
	})
	if fp.opts.MaxItems > 0 && len(fp.entries) >= fp.opts.MaxItems {
		return errStopParsing
	}
	return nil
}

// qname 返回小写的限定名（prefix:local），前缀取自文档中声明的命名空间前缀。
func (fp *feedParser) qname() string {
	prefix := fp.p.Space
	if prefix != "" {
		if declared, ok := fp.p.Spaces[prefix]; ok {
			prefix = declared
		}
	}
	if prefix == "" {
		return strings.ToLower(fp.p.Name)
	}
	return strings.ToLower(prefix + ":" + fp.p.Name)
}

// text 读取当前开始标签内的文本。
// 遇到嵌套的开始标签时停止，并让主循环重新处理该事件。
func (fp *feedParser) text() (string, error) {
	var sb strings.Builder
	for {
		event, err := fp.p.Next()
		if err != nil {
			return "", err
		}
		if event == xpp.Text {
			sb.WriteString(fp.p.Text)
			continue
		}
		if event != xpp.EndTag {
			fp.replay = true
		}
		return sb.String(), nil
	}
}

// findChildText 在当前元素内查找第一个名为 child 的子元素并返回其文本。
// 元素先结束时返回空字符串。
func (fp *feedParser) findChildText(parent, child string) (string, error) {
	for {
		event, err := fp.p.Next()
		if err != nil {
			return "", err
		}
		switch event {
		case xpp.EndDocument:
			fp.replay = true
			return "", nil
		case xpp.EndTag:
			if strings.EqualFold(fp.p.Name, parent) {
				return "", nil
			}
		case xpp.StartTag:
			if fp.qname() == child {
				return fp.text()
			}
		}
	}
}
