package kisstv

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/John-Robertt/kisstv/internal/domain"
	"github.com/John-Robertt/kisstv/internal/markup"
)

// 徽章以 <img title="..."> 的形式出现在列表行里，只做存在性判断。
const (
	badgeJustUpdated = "Just updated"
	badgePopular     = "Popular show"
)

// ExtractLink 取 n 内第一个 <a> 的链接。
//
// - Short：href 原值（缺少 href 属性时为空串）
// - Complete：Short 以 base 解析后的绝对 URL；Short 本身是绝对 URL 时原样返回
// - 没有 <a>：返回零值 Link
func ExtractLink(n *markup.Node, base *url.URL) domain.Link {
	if n == nil {
		return domain.Link{}
	}
	a := n.FindFirst("a")
	if a == nil {
		return domain.Link{}
	}
	href, _ := a.Attr("href")
	return NewLink(href, base)
}

// NewLink 由站内 href 构造 Link。
func NewLink(short string, base *url.URL) domain.Link {
	return domain.Link{Short: short, Complete: resolveURL(base, short)}
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return joinRaw(base, href)
	}
	if ref.IsAbs() {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

var schemeRE = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*:`)

// joinRaw 处理 net/url 拒绝的 href（例如 "/Show/100%-Wolf" 里的裸 %）：按字符串拼接到 base 上，
// href 原样保留。
func joinRaw(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if base == nil || schemeRE.MatchString(href) {
		return href
	}
	origin := base.Scheme + "://" + base.Host
	switch {
	case strings.HasPrefix(href, "//"):
		return base.Scheme + ":" + href
	case strings.HasPrefix(href, "/"):
		return origin + href
	case strings.HasPrefix(href, "?"):
		return origin + base.EscapedPath() + href
	}
	dir := base.EscapedPath()
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		dir = dir[:i+1]
	} else {
		dir = "/"
	}
	return origin + dir + href
}

// HasBadge 判断行内是否存在 title 精确等于 title 的 <img>。
func HasBadge(row *markup.Node, title string) bool {
	if row == nil {
		return false
	}
	return row.FindFirst("img", markup.Title(title)) != nil
}

var colonSpaceRE = regexp.MustCompile(`:\s+`)

// SplitStatusViews 拆分形如 "Status: Ongoing   Views: 10,000" 的复合文本。
//
// 规则：删除 NBSP，折叠冒号后的空白，按空白切分；token[0] 冒号后的部分是 Status，
// token[1] 冒号后的部分是 Views。文本不是恰好这种两段形态时结果不可靠；
// 不足两段或 token 没有冒号时 ok=false。
func SplitStatusViews(text string) (status, views string, ok bool) {
	s := strings.ReplaceAll(text, "\u00a0", "")
	s = colonSpaceRE.ReplaceAllString(s, ":")
	tokens := strings.Fields(s)
	if len(tokens) < 2 {
		return "", "", false
	}
	status, ok1 := tokenValue(tokens[0])
	views, ok2 := tokenValue(tokens[1])
	if !ok1 || !ok2 {
		return "", "", false
	}
	return status, views, true
}

func tokenValue(tok string) (string, bool) {
	_, v, ok := strings.Cut(tok, ":")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// FieldLabel 读取详情段落的标签（<span class="info">）。
// label 去掉了尾部冒号；raw 是标签节点的原始文本，用于从段落全文中剔除。
func FieldLabel(p *markup.Node) (label, raw string, ok bool) {
	if p == nil {
		return "", "", false
	}
	span := p.FindFirst("span", markup.Class("info"))
	if span == nil {
		return "", "", false
	}
	raw = span.Text()
	label = normHeader(raw)
	if label == "" {
		return "", "", false
	}
	return label, raw, true
}

// GenericField 把 "<span class=info>Genres:</span> Comedy, Drama" 这样的段落转成 label→value。
// value 为段落全文去掉标签文本后再去首尾空白；值内部的换行与缩进保持原样。
func GenericField(p *markup.Node) (label, value string, ok bool) {
	label, raw, ok := FieldLabel(p)
	if !ok {
		return "", "", false
	}
	value = strings.TrimSpace(strings.Replace(p.Text(), raw, "", 1))
	return label, value, true
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }

func normHeader(s string) string {
	s = normSpace(s)
	s = strings.TrimSuffix(s, ":")
	return strings.TrimSpace(s)
}
