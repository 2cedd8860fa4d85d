package kisstv

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/kisstv/internal/domain"
)

func TestExtractLink_RelativeResolvedAgainstBase(t *testing.T) {
	doc := parseHTML(t, `<div><a href="/Show/The-Office">The Office</a></div>`)
	cell := doc.FindFirst("div")
	require.NotNil(t, cell)

	got := ExtractLink(cell, testBase(t))
	require.Equal(t, domain.Link{
		Short:    "/Show/The-Office",
		Complete: "https://kisstvshow.to/Show/The-Office",
	}, got)
}

func TestExtractLink_AbsoluteWins(t *testing.T) {
	doc := parseHTML(t, `<p><a href="https://cdn.example/x?id=1">x</a></p>`)
	got := ExtractLink(doc.FindFirst("p"), testBase(t))
	require.Equal(t, "https://cdn.example/x?id=1", got.Short)
	require.Equal(t, got.Short, got.Complete)
}

func TestExtractLink_Idempotent(t *testing.T) {
	base := testBase(t)
	first := NewLink("Show/Alpha/Episode-1?id=9", base)
	again := NewLink(first.Complete, base)
	require.Equal(t, first.Complete, again.Complete)
}

func TestExtractLink_UnparseableHrefStillResolved(t *testing.T) {
	base := testBase(t)
	showBase, err := url.Parse("https://kisstvshow.to/Show/Wolf/")
	require.NoError(t, err)

	cases := []struct {
		base *url.URL
		href string
		want string
	}{
		{base, "/Show/100%-Wolf", "https://kisstvshow.to/Show/100%-Wolf"},
		{base, "Show/100%-Wolf", "https://kisstvshow.to/Show/100%-Wolf"},
		{showBase, "Episode-1?id=50%", "https://kisstvshow.to/Show/Wolf/Episode-1?id=50%"},
		{base, "//cdn.example/100%.jpg", "https://cdn.example/100%.jpg"},
		{base, "https://other.example/100%-Wolf", "https://other.example/100%-Wolf"},
	}
	for _, tc := range cases {
		got := NewLink(tc.href, tc.base)
		require.Equal(t, tc.href, got.Short)
		require.Equal(t, tc.want, got.Complete, "href=%q", tc.href)
	}

	doc := parseHTML(t, `<div><a href="/Show/100%-Wolf">100% Wolf</a></div>`)
	require.Equal(t, "https://kisstvshow.to/Show/100%-Wolf", ExtractLink(doc.FindFirst("div"), base).Complete)
}

func TestExtractLink_FirstAnchorOnly(t *testing.T) {
	doc := parseHTML(t, `<div><a href="/a">A</a><a href="/b">B</a></div>`)
	got := ExtractLink(doc.FindFirst("div"), testBase(t))
	require.Equal(t, "/a", got.Short)
}

func TestExtractLink_NoAnchor(t *testing.T) {
	doc := parseHTML(t, `<div>Completed</div>`)
	got := ExtractLink(doc.FindFirst("div"), testBase(t))
	require.True(t, got.IsZero())
	require.True(t, ExtractLink(nil, testBase(t)).IsZero())
}

func TestExtractLink_MissingHref(t *testing.T) {
	doc := parseHTML(t, `<div><a name="x">X</a></div>`)
	got := ExtractLink(doc.FindFirst("div"), testBase(t))
	require.Equal(t, "", got.Short)
	require.Equal(t, "https://kisstvshow.to/", got.Complete)
}

func TestHasBadge(t *testing.T) {
	doc := parseHTML(t, `<table><tr id="r"><td><a href="/a">A</a><img title="Popular show" src="/h.png"></td></tr></table>`)
	row := doc.FindFirst("tr")
	require.True(t, HasBadge(row, badgePopular))
	require.False(t, HasBadge(row, badgeJustUpdated))
	// 只认精确的 title，不做包含匹配。
	require.False(t, HasBadge(row, "Popular"))
	require.False(t, HasBadge(nil, badgePopular))
}

func TestSplitStatusViews(t *testing.T) {
	cases := []struct {
		in     string
		status string
		views  string
		ok     bool
	}{
		{in: "Status: Ongoing  Views: 10000", status: "Ongoing", views: "10000", ok: true},
		{in: "Status: Completed\n     Views: 125,431", status: "Completed", views: "125,431", ok: true},
		{in: "Status:Ongoing Views:1", status: "Ongoing", views: "1", ok: true},
		{in: "Status: Ongoing", ok: false},
		{in: "Ongoing 10000", ok: false},
		{in: "", ok: false},
	}
	for _, tc := range cases {
		status, views, ok := SplitStatusViews(tc.in)
		require.Equal(t, tc.ok, ok, "输入 %q", tc.in)
		require.Equal(t, tc.status, status, "输入 %q", tc.in)
		require.Equal(t, tc.views, views, "输入 %q", tc.in)
	}
}

func TestGenericField(t *testing.T) {
	doc := parseHTML(t, `<p><span class="info">Genres:</span>
		<a href="/Genre/Comedy">Comedy</a>,
		<a href="/Genre/Drama">Drama</a></p>`)
	label, value, ok := GenericField(doc.FindFirst("p"))
	require.True(t, ok)
	require.Equal(t, "Genres", label)
	require.Equal(t, "Comedy,\n\t\tDrama", value)
}

func TestFieldLabel_NoLabel(t *testing.T) {
	doc := parseHTML(t, `<p>Just a summary.</p>`)
	_, _, ok := FieldLabel(doc.FindFirst("p"))
	require.False(t, ok)
}
