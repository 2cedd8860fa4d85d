package kisstv

import (
	"strings"

	"github.com/John-Robertt/kisstv/internal/markup"
)

// RuleKind 是详情块规则的变体标签。
type RuleKind int

const (
	// RuleExcluded：该标签的段落不进入 details（Summary 由位置规则处理，Bookmark 不是数据）。
	RuleExcluded RuleKind = iota + 1
	// RuleComposite：一个段落合成多个字段（Status/Views）。
	RuleComposite
	// RuleGeneric：任意带标签的段落，label→value。
	RuleGeneric
	// RulePositional：不看标签，取详情块最后一个段落。
	RulePositional
)

func (k RuleKind) String() string {
	switch k {
	case RuleExcluded:
		return "excluded"
	case RuleComposite:
		return "composite"
	case RuleGeneric:
		return "generic"
	case RulePositional:
		return "positional"
	default:
		return "unknown"
	}
}

// DetailRule 是一条详情块抽取规则。
type DetailRule struct {
	Kind RuleKind
	// Label 用于 Excluded/Composite 的标签匹配（忽略大小写）；Generic 不使用。
	Label string
	// Keys 是输出键：Composite 依次对应 Status、Views；Positional 只用 Keys[0]。
	Keys []string
}

// DefaultDetailRules 是详情页使用的规则表。
//
// 段落按顺序匹配第一条命中的标签规则；Positional 规则在全部段落处理完后单独执行，
// 因此 Summary 总是“最后一个段落的文本”，哪怕它带有别的标签。
var DefaultDetailRules = []DetailRule{
	{Kind: RuleExcluded, Label: "Summary"},
	{Kind: RuleExcluded, Label: "Bookmark"},
	{Kind: RuleComposite, Label: "Status", Keys: []string{"Status", "Views"}},
	{Kind: RuleGeneric},
	{Kind: RulePositional, Keys: []string{"Summary"}},
}

func (r DetailRule) matchLabel(label string) bool {
	switch r.Kind {
	case RuleExcluded, RuleComposite:
		return strings.EqualFold(strings.TrimSpace(r.Label), label)
	case RuleGeneric:
		return true
	default:
		return false
	}
}

// ApplyDetailRules 把详情块段落按 rules 转为 details 字典。
func ApplyDetailRules(paragraphs []*markup.Node, rules []DetailRule) map[string]string {
	details := make(map[string]string, len(paragraphs)+1)

	for _, p := range paragraphs {
		label, _, ok := FieldLabel(p)
		if !ok {
			continue
		}
		for _, r := range rules {
			if !r.matchLabel(label) {
				continue
			}
			applyLabelRule(details, r, p)
			break
		}
	}

	for _, r := range rules {
		if r.Kind != RulePositional || len(r.Keys) == 0 || len(paragraphs) == 0 {
			continue
		}
		details[r.Keys[0]] = paragraphs[len(paragraphs)-1].Text()
	}
	return details
}

func applyLabelRule(details map[string]string, r DetailRule, p *markup.Node) {
	switch r.Kind {
	case RuleComposite:
		if len(r.Keys) < 2 {
			return
		}
		status, views, ok := SplitStatusViews(p.Text())
		if !ok {
			return
		}
		details[r.Keys[0]] = status
		details[r.Keys[1]] = views
	case RuleGeneric:
		if label, value, ok := GenericField(p); ok {
			details[label] = value
		}
	}
}
