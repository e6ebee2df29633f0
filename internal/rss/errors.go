package rss

import (
	"errors"
	"fmt"
)

// TransportError 表示打开或读取数据流失败（连接、DNS、超时、HTTP 状态码等）。
// 抓取时遇到此错误会继续尝试下一个 URL 后缀。
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("获取 %s 失败: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedError 表示数据流已打开，但内容无法作为 XML 解析。
// 不会重试其他后缀，也不会被当作成功。
type MalformedError struct {
	URL string
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("解析 %s 失败: %v", e.URL, e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// FilterError 表示调用方提供的过滤函数发生 panic。
type FilterError struct {
	URL   string
	Panic any
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("过滤函数处理 %s 时 panic: %v", e.URL, e.Panic)
}

// IsTransport 判断 err 是否为传输层错误。
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsMalformed 判断 err 是否为文档格式错误。
func IsMalformed(err error) bool {
	var me *MalformedError
	return errors.As(err, &me)
}
