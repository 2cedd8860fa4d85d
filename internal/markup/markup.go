package markup

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// MalformedMarkupError 表示输入根本不是可解析的标记文本（空输入、二进制内容、读取失败）。
//
// 注意：缺少某个预期元素不属于该错误，那是解析器（provider）层面的事。
type MalformedMarkupError struct {
	Reason string
	Err    error
}

func (e *MalformedMarkupError) Error() string {
	if e == nil {
		return "malformed markup"
	}
	if e.Err != nil {
		return fmt.Sprintf("malformed markup: %s: %v", e.Reason, e.Err)
	}
	return "malformed markup: " + e.Reason
}

func (e *MalformedMarkupError) Unwrap() error { return e.Err }

// Attr 是按属性查找节点时的一个条件。
// class 按空白分隔的类名集合匹配；其它属性按值精确匹配。
type Attr struct {
	Key string
	Val string
}

func Class(v string) Attr { return Attr{Key: "class", Val: v} }
func ID(v string) Attr    { return Attr{Key: "id", Val: v} }
func Title(v string) Attr { return Attr{Key: "title", Val: v} }

// Document 是一次 Parse 的结果（只读）。
type Document struct {
	scope
}

// Node 是文档中的单个元素。
type Node struct {
	scope
}

// sniffLen 是判定二进制内容时检查的前缀长度。
const sniffLen = 512

// Parse 把原始 HTML 解析为可查询的文档树。
//
// 宽松策略：未闭合标签/非标准标记交给 HTML5 树构建算法尽力修复，不报错。
// 只有“不是文本”的输入才返回 *MalformedMarkupError。
func Parse(raw []byte) (*Document, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &MalformedMarkupError{Reason: "输入为空"}
	}
	// 站点偶尔会把图片/压缩包当成页面返回。文本标记里不会出现 NUL，二进制头部几乎总有；
	// 其它控制字符（例如 ESC）照常交给宽松解析。
	if bytes.IndexByte(raw[:min(len(raw), sniffLen)], 0) >= 0 {
		return nil, &MalformedMarkupError{Reason: "非文本内容（含 NUL 字节）"}
	}

	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, &MalformedMarkupError{Reason: "构建文档树失败", Err: err}
	}
	doc := goquery.NewDocumentFromNode(root)
	return &Document{scope{sel: doc.Selection}}, nil
}

// Text 返回节点全部后代文本（拼接后去首尾空白，含 NBSP）。
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.sel.Text())
}

// Attr 读取属性；属性不存在时 ok=false（存在但为空时 ok=true）。
func (n *Node) Attr(name string) (string, bool) {
	if n == nil {
		return "", false
	}
	return n.sel.Attr(strings.ToLower(name))
}

// Tag 返回元素名（小写）。
func (n *Node) Tag() string {
	if n == nil {
		return ""
	}
	return goquery.NodeName(n.sel)
}

// Children 返回直接子元素（tag 为空表示任意元素），用于表格行取单元格等场景，
// 避免把嵌套表格里的单元格也算进来。
func (n *Node) Children(tag string) []*Node {
	if n == nil {
		return []*Node{}
	}
	if tag == "" {
		return wrap(n.sel.Children())
	}
	return wrap(n.sel.ChildrenFiltered(strings.ToLower(tag)))
}

type scope struct {
	sel *goquery.Selection
}

// FindFirst 返回第一个匹配 tag + attrs 的后代元素；不存在返回 nil。
func (s scope) FindFirst(tag string, attrs ...Attr) *Node {
	if s.sel == nil {
		return nil
	}
	var found *Node
	s.candidates(tag).EachWithBreak(func(_ int, c *goquery.Selection) bool {
		if !matchAttrs(c.Get(0), attrs) {
			return true
		}
		found = &Node{scope{sel: c}}
		return false
	})
	return found
}

// FindAll 返回全部匹配 tag + attrs 的后代元素（文档顺序）；无匹配返回空切片而不是 nil。
func (s scope) FindAll(tag string, attrs ...Attr) []*Node {
	if s.sel == nil {
		return []*Node{}
	}
	matched := s.candidates(tag).FilterFunction(func(_ int, c *goquery.Selection) bool {
		return matchAttrs(c.Get(0), attrs)
	})
	return wrap(matched)
}

// Select 按 CSS 选择器查找后代元素。选择器非法时按“无匹配”处理。
func (s scope) Select(css string) []*Node {
	if s.sel == nil {
		return []*Node{}
	}
	return wrap(s.sel.Find(css))
}

func (s scope) candidates(tag string) *goquery.Selection {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		tag = "*"
	}
	return s.sel.Find(tag)
}

func wrap(sel *goquery.Selection) []*Node {
	out := make([]*Node, 0, sel.Length())
	sel.Each(func(_ int, c *goquery.Selection) {
		out = append(out, &Node{scope{sel: c}})
	})
	return out
}

func matchAttrs(n *html.Node, attrs []Attr) bool {
	if n == nil {
		return false
	}
	for _, a := range attrs {
		v, ok := attrValue(n, a.Key)
		if !ok {
			return false
		}
		if strings.EqualFold(a.Key, "class") {
			if !hasToken(v, a.Val) {
				return false
			}
			continue
		}
		if v != a.Val {
			return false
		}
	}
	return true
}

func attrValue(n *html.Node, key string) (string, bool) {
	key = strings.ToLower(key)
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasToken(list, want string) bool {
	want = strings.TrimSpace(want)
	for _, f := range strings.Fields(list) {
		if f == want {
			return true
		}
	}
	return false
}
