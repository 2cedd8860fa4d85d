package kisstv

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/John-Robertt/kisstv/internal/markup"
)

func paragraphs(t *testing.T, body string) []*markup.Node {
	t.Helper()
	doc := parseHTML(t, `<div class="barContent">`+body+`</div>`)
	return doc.FindFirst("div", markup.Class("barContent")).FindAll("p")
}

func TestApplyDetailRules_Default(t *testing.T) {
	ps := paragraphs(t, `
		<p><span class="info">Genres:</span> Comedy</p>
		<p><span class="info">Status:</span> Ongoing&nbsp; <span class="info">Views:</span> 10000</p>
		<p><span class="info">Bookmark:</span> <a href="#">Add</a></p>
		<p><span class="info">Summary:</span></p>
		<p>The last paragraph.</p>`)

	got := ApplyDetailRules(ps, DefaultDetailRules)
	want := map[string]string{
		"Genres":  "Comedy",
		"Status":  "Ongoing",
		"Views":   "10000",
		"Summary": "The last paragraph.",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("details 不一致（-want +got）：\n%s", diff)
	}
}

func TestApplyDetailRules_SummaryIsAlwaysLastParagraph(t *testing.T) {
	// 最后一段带标签时，Summary 依然取它的全文。
	ps := paragraphs(t, `
		<p><span class="info">Summary:</span></p>
		<p><span class="info">Country:</span> USA</p>`)

	got := ApplyDetailRules(ps, DefaultDetailRules)
	if got["Summary"] != "Country: USA" {
		t.Fatalf("期望 Summary=%q，实际=%q", "Country: USA", got["Summary"])
	}
	if got["Country"] != "USA" {
		t.Fatalf("期望 Country=USA，实际=%q", got["Country"])
	}
}

func TestApplyDetailRules_ExcludedLabelsCaseInsensitive(t *testing.T) {
	ps := paragraphs(t, `
		<p><span class="info">BOOKMARK:</span> x</p>
		<p>tail</p>`)
	got := ApplyDetailRules(ps, DefaultDetailRules)
	if _, ok := got["BOOKMARK"]; ok {
		t.Fatalf("Bookmark 段落不应进入 details：%v", got)
	}
}

func TestApplyDetailRules_MalformedCompositeDropped(t *testing.T) {
	ps := paragraphs(t, `<p><span class="info">Status:</span> Ongoing</p><p>s</p>`)
	got := ApplyDetailRules(ps, DefaultDetailRules)
	if _, ok := got["Status"]; ok {
		t.Fatalf("无法拆分的复合段落不应写入 Status：%v", got)
	}
}

func TestApplyDetailRules_NoParagraphs(t *testing.T) {
	got := ApplyDetailRules(nil, DefaultDetailRules)
	if len(got) != 0 {
		t.Fatalf("期望空 details，实际 %v", got)
	}
}

func TestApplyDetailRules_CustomTable(t *testing.T) {
	rules := []DetailRule{
		{Kind: RuleExcluded, Label: "Genres"},
		{Kind: RulePositional, Keys: []string{"Tail"}},
	}
	ps := paragraphs(t, `<p><span class="info">Genres:</span> x</p><p><span class="info">Other:</span> y</p>`)
	got := ApplyDetailRules(ps, rules)
	want := map[string]string{"Tail": "Other: y"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("details 不一致（-want +got）：\n%s", diff)
	}
}

func TestRuleKind_String(t *testing.T) {
	for k, want := range map[RuleKind]string{
		RuleExcluded:   "excluded",
		RuleComposite:  "composite",
		RuleGeneric:    "generic",
		RulePositional: "positional",
		RuleKind(0):    "unknown",
	} {
		if k.String() != want {
			t.Fatalf("RuleKind(%d).String()=%q，期望 %q", int(k), k.String(), want)
		}
	}
}
