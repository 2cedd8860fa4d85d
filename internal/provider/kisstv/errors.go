package kisstv

import (
	"errors"
	"fmt"
)

// ErrLoginFailed 表示登录请求成功返回，但页面仍停留在登录表单（用户名或密码错误）。
var ErrLoginFailed = errors.New("登录失败：站点仍返回登录表单（用户名或密码错误？）")

// ErrNotInSnapshot 表示回放模式下快照目录里没有请求的页面。
var ErrNotInSnapshot = errors.New("快照中没有该页面")

// ErrReplayUnsupported 表示该操作需要访问站点，回放模式下不可用（登录、下载图片）。
var ErrReplayUnsupported = errors.New("回放模式不支持该操作")

// ListingRowSchemaError 表示列表/分集表中的某一行缺少必需的单元格或锚点。
// 行级错误只会导致该行被跳过，不影响整次解析。
type ListingRowSchemaError struct {
	Table   string // "listing" 或 "episodes"
	Row     int    // 行号（从 1 开始，含被固定跳过的行）
	Missing string // 缺失的部件，例如 "td" / "a" / "title"
}

func (e *ListingRowSchemaError) Error() string {
	return fmt.Sprintf("%s 第 %d 行缺少 %s", e.Table, e.Row, e.Missing)
}

// DetailPageSchemaError 表示详情页缺少结构性锚点（页面容器、封面、标题、分集表）。
// 这意味着返回的根本不是详情页，整次解析失败，不返回部分结果。
type DetailPageSchemaError struct {
	Missing string
}

func (e *DetailPageSchemaError) Error() string {
	return fmt.Sprintf("不是有效的详情页：缺少 %s", e.Missing)
}
