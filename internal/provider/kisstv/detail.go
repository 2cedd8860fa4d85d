package kisstv

import (
	"net/url"
	"strings"

	"github.com/John-Robertt/kisstv/internal/domain"
	"github.com/John-Robertt/kisstv/internal/markup"
)

// episodeLeadingRows 是详情页分集表固定跳过的行数：表头 <th> 行 + 一行空白间隔行。
// 与 listingLeadingRows 一样是站点模板的固定布局，变化时由夹具测试发现。
const episodeLeadingRows = 2

// ParseShowDetail 把详情页解析为 ShowDetail。
//
// 页面容器、封面、标题锚点、分集表任一缺失时返回 *DetailPageSchemaError，且不返回部分结果。
// 演员容器缺失不算错误（Casts 为空切片）。
func ParseShowDetail(doc *markup.Document, base *url.URL) (domain.ShowDetail, error) {
	d, _, err := ParseShowDetailTrace(doc, base)
	return d, err
}

// ParseShowDetailTrace 与 ParseShowDetail 相同，但额外返回被跳过分集行的 *ListingRowSchemaError。
func ParseShowDetailTrace(doc *markup.Document, base *url.URL) (domain.ShowDetail, []error, error) {
	if doc == nil {
		return domain.ShowDetail{}, nil, &DetailPageSchemaError{Missing: "document"}
	}

	page := doc.FindFirst("div", markup.ID("container"))
	if page == nil {
		return domain.ShowDetail{}, nil, &DetailPageSchemaError{Missing: "div#container"}
	}

	boxes := rightBoxes(page)
	cover := findCover(boxes)
	if cover == nil {
		return domain.ShowDetail{}, nil, &DetailPageSchemaError{Missing: "cover image"}
	}

	var titleA *markup.Node
	info := first(page.Select("div#leftside div.barContent"))
	if info != nil {
		titleA = info.FindFirst("a", markup.Class("bigChar"))
	}
	if titleA == nil {
		return domain.ShowDetail{}, nil, &DetailPageSchemaError{Missing: "a.bigChar"}
	}

	table := page.FindFirst("table", markup.Class("listing"))
	if table == nil {
		return domain.ShowDetail{}, nil, &DetailPageSchemaError{Missing: "table.listing"}
	}

	coverURL := ""
	if src, ok := cover.Attr("src"); ok && strings.TrimSpace(src) != "" {
		coverURL = resolveURL(base, src)
	}
	href, _ := titleA.Attr("href")

	episodes, skipped := parseEpisodes(table, base)

	return domain.ShowDetail{
		Title:    titleA.Text(),
		Cover:    coverURL,
		Link:     NewLink(href, base),
		Details:  ApplyDetailRules(info.FindAll("p"), DefaultDetailRules),
		Episodes: episodes,
		Casts:    parseCasts(boxes),
	}, skipped, nil
}

func parseEpisodes(table *markup.Node, base *url.URL) ([]domain.EpisodeEntry, []error) {
	episodes := []domain.EpisodeEntry{}
	var skipped []error
	for i, row := range table.Select("tr") {
		if i < episodeLeadingRows {
			continue
		}
		cells := row.Children("td")
		missing := ""
		switch {
		case len(cells) < 2:
			missing = "td"
		case cells[0].FindFirst("a") == nil:
			missing = "a"
		}
		if missing != "" {
			skipped = append(skipped, &ListingRowSchemaError{Table: "episodes", Row: i + 1, Missing: missing})
			continue
		}
		episodes = append(episodes, domain.EpisodeEntry{
			Name:     cells[0].Text(),
			Link:     ExtractLink(cells[0], base),
			DayAdded: cells[1].Text(),
		})
	}
	return episodes, skipped
}

// rightBoxes 返回右侧栏的 div.rightBox（封面、演员等都在这里）。
func rightBoxes(page *markup.Node) []*markup.Node {
	side := page.FindFirst("div", markup.ID("rightside"))
	if side == nil {
		return nil
	}
	return side.FindAll("div", markup.Class("rightBox"))
}

// findCover：右侧栏中第一个含 <img> 的 rightBox 就是封面容器。
func findCover(boxes []*markup.Node) *markup.Node {
	for _, b := range boxes {
		if img := b.FindFirst("img"); img != nil {
			return img
		}
	}
	return nil
}

func parseCasts(boxes []*markup.Node) []string {
	casts := []string{}
	for _, b := range boxes {
		title := b.FindFirst("div", markup.Class("barTitle"))
		if title == nil {
			continue
		}
		t := normHeader(title.Text())
		if !strings.EqualFold(t, "Cast") && !strings.EqualFold(t, "Casts") {
			continue
		}
		content := b.FindFirst("div", markup.Class("barContent"))
		if content == nil {
			return casts
		}
		for _, a := range content.FindAll("a") {
			if name := normSpace(a.Text()); name != "" {
				casts = append(casts, name)
			}
		}
		return casts
	}
	return casts
}

func first(nodes []*markup.Node) *markup.Node {
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}
