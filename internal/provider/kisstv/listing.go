package kisstv

import (
	"net/url"

	"github.com/John-Robertt/kisstv/internal/domain"
	"github.com/John-Robertt/kisstv/internal/markup"
)

// listingLeadingRows 是 table.listing 中去掉 tr.head 之后仍需固定跳过的行数。
// 站点在表头后面还有一行没有标记 class 的装饰行（<tr style="height: 10px">）。
// 该行是否属于模板 bug 尚不确定；保持跳过，布局变化由 testdata 夹具测试兜底。
const listingLeadingRows = 1

// ParseListing 解析搜索结果页/剧集列表页中的 table.listing。
//
// 没有列表表格时返回空切片（空搜索结果是正常结果，不是错误）。
// 缺少必需单元格/锚点的行会被跳过。
func ParseListing(doc *markup.Document, base *url.URL) []domain.ListingEntry {
	entries, _ := ParseListingTrace(doc, base)
	return entries
}

// ParseListingTrace 与 ParseListing 相同，但额外返回被跳过行的 *ListingRowSchemaError（用于日志）。
func ParseListingTrace(doc *markup.Document, base *url.URL) ([]domain.ListingEntry, []error) {
	entries := []domain.ListingEntry{}
	if doc == nil {
		return entries, nil
	}
	table := doc.FindFirst("table", markup.Class("listing"))
	if table == nil {
		return entries, nil
	}

	var skipped []error
	for i, row := range table.Select("tr:not(.head)") {
		if i < listingLeadingRows {
			continue
		}
		e, missing := parseListingRow(row, base)
		if missing != "" {
			skipped = append(skipped, &ListingRowSchemaError{Table: "listing", Row: i + 1, Missing: missing})
			continue
		}
		entries = append(entries, e)
	}
	return entries, skipped
}

// parseListingRow 返回 missing!="" 表示该行不合格。
func parseListingRow(row *markup.Node, base *url.URL) (domain.ListingEntry, string) {
	cells := row.Children("td")
	if len(cells) < 2 {
		return domain.ListingEntry{}, "td"
	}
	a := cells[0].FindFirst("a")
	if a == nil {
		return domain.ListingEntry{}, "a"
	}
	title := a.Text()
	if title == "" {
		return domain.ListingEntry{}, "title"
	}

	// 第二格可能只有文字（例如 "Completed"），此时 URL 为空。
	latest := domain.LatestEpisode{Title: cells[1].Text()}
	if cells[1].FindFirst("a") != nil {
		latest.URL = ExtractLink(cells[1], base).Complete
	}

	return domain.ListingEntry{
		Title:       title,
		Link:        ExtractLink(cells[0], base),
		Latest:      latest,
		JustUpdated: HasBadge(row, badgeJustUpdated),
		Hot:         HasBadge(row, badgePopular),
	}, ""
}
