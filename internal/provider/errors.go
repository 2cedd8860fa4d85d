package provider

import (
	"fmt"
	"strings"
)

// TransportError 表示站点返回了非 2xx 的 HTTP 状态码。
// 该错误在边界上产生：响应 body 不会进入解析器。
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	Location   string
}

func (e *TransportError) Error() string {
	if e == nil {
		return "transport error"
	}
	head := fmt.Sprintf("HTTP %d", e.StatusCode)
	if m := strings.TrimSpace(e.Method); m != "" {
		head = fmt.Sprintf("%s %s: HTTP %d", m, e.URL, e.StatusCode)
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return head
	}
	return head + " location=" + loc
}

// BlockedError 表示请求被站点引导到了“验证/拦截”页面（通常意味着需要浏览器执行 JS）。
// 产品约束：不尝试绕过，直接报告给调用方。
type BlockedError struct {
	URL    string
	Reason string // 例如 "cloudflare"
}

func (e *BlockedError) Error() string {
	if e == nil {
		return "blocked"
	}
	if strings.TrimSpace(e.Reason) == "" {
		return "blocked"
	}
	return "blocked: " + strings.TrimSpace(e.Reason)
}
