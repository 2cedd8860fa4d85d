package nfo

import (
	"encoding/xml"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/John-Robertt/kisstv/internal/domain"
)

// FileName 是媒体库识别剧集元数据的固定文件名。
const FileName = "tvshow.nfo"

// 详情字典中会被写入 NFO 的标签。
const (
	labelOtherName = "Other name"
	labelGenres    = "Genres"
	labelDateAired = "Date aired"
	labelStatus    = "Status"
	labelSummary   = "Summary"
)

type tvshow struct {
	XMLName xml.Name `xml:"tvshow"`

	Title         string `xml:"title"`
	OriginalTitle string `xml:"originaltitle,omitempty"`
	Plot          string `xml:"plot,omitempty"`
	Status        string `xml:"status,omitempty"`

	Premiered string `xml:"premiered,omitempty"`
	Year      int    `xml:"year,omitempty"`

	Genres []string `xml:"genre,omitempty"`
	Actors []actor  `xml:"actor,omitempty"`

	Thumb   *thumb `xml:"thumb,omitempty"`
	Website string `xml:"website,omitempty"`
}

type actor struct {
	Name  string `xml:"name"`
	Order int    `xml:"order"`
}

type thumb struct {
	Aspect string `xml:"aspect,attr"`
	URL    string `xml:",chardata"`
}

// EncodeShow 把 ShowDetail 转成 Kodi/Jellyfin 可读取的 tvshow.nfo（XML）。
//
// - Genres 按逗号切分；演员按页面顺序写入 order
// - Date aired 取区间的起始日期；无法识别时只尝试提取年份
func EncodeShow(d domain.ShowDetail) ([]byte, error) {
	m := tvshow{
		Title:         strings.TrimSpace(d.Title),
		OriginalTitle: strings.TrimSpace(d.Detail(labelOtherName)),
		Plot:          strings.TrimSpace(d.Detail(labelSummary)),
		Status:        strings.TrimSpace(d.Detail(labelStatus)),
		Genres:        normList(strings.Split(d.Detail(labelGenres), ",")),
		Website:       strings.TrimSpace(d.Link.Complete),
	}
	if m.OriginalTitle == m.Title {
		m.OriginalTitle = ""
	}
	m.Premiered, m.Year = premiered(d.Detail(labelDateAired))

	for i, name := range normList(d.Casts) {
		m.Actors = append(m.Actors, actor{Name: name, Order: i})
	}
	if c := strings.TrimSpace(d.Cover); c != "" {
		m.Thumb = &thumb{Aspect: "poster", URL: c}
	}

	b, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	const header = `<?xml version="1.0" encoding="UTF-8" standalone="yes" ?>` + "\n"
	return append([]byte(header), b...), nil
}

var yearRE = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// 站点日期形如 "Mar 24, 2005" 或 "Mar 24, 2005 to May 16, 2013"。
var dateLayouts = []string{"Jan 2, 2006", "January 2, 2006", "Jan 02, 2006", "2006-01-02"}

func premiered(aired string) (string, int) {
	aired = strings.TrimSpace(aired)
	if aired == "" {
		return "", 0
	}
	start := aired
	if i := strings.Index(strings.ToLower(start), " to "); i >= 0 {
		start = strings.TrimSpace(start[:i])
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, start); err == nil {
			return t.Format("2006-01-02"), t.Year()
		}
	}
	if y := yearRE.FindString(start); y != "" {
		n, _ := strconv.Atoi(y)
		return "", n
	}
	return "", 0
}

func normList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := m[s]; ok {
			continue
		}
		m[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
