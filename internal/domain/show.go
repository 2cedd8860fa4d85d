package domain

// Link 是页面中的一个站内链接。
//
// 不变量：Complete 恒等于 Short 以站点 base URL 解析后的结果（绝对 href 原样胜出）。
// 未找到 <a> 时为零值。
type Link struct {
	Short    string `json:"short"`
	Complete string `json:"complete"`
}

// IsZero 表示该链接来自一个不存在的 <a>。
func (l Link) IsZero() bool { return l == Link{} }

// LatestEpisode 是列表行第二格（最新一集）的信息；URL 可能为空（例如只写了 "Completed"）。
type LatestEpisode struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ListingEntry 是搜索结果/剧集列表中的一行。
type ListingEntry struct {
	Title       string        `json:"title"`
	Link        Link          `json:"link"`
	Latest      LatestEpisode `json:"latest"`
	JustUpdated bool          `json:"just_updated"`
	Hot         bool          `json:"hot"`
}

// EpisodeEntry 是详情页分集表中的一行。顺序即文档顺序（站点按时间倒序发布），不做重排。
type EpisodeEntry struct {
	Name     string `json:"name"`
	Link     Link   `json:"link"`
	DayAdded string `json:"day_added"`
}

// ShowDetail 是一次详情页解析的完整结果。
//
// 约束：要么完整返回，要么返回 DetailPageSchemaError；不存在“部分填充”的 ShowDetail。
type ShowDetail struct {
	Title    string            `json:"title"`
	Cover    string            `json:"cover"`
	Link     Link              `json:"link"`
	Details  map[string]string `json:"details"`
	Episodes []EpisodeEntry    `json:"episodes"`
	Casts    []string          `json:"casts"`
}

// Detail 读取某个 detail 字段（不存在返回空串）。
func (d ShowDetail) Detail(label string) string {
	if d.Details == nil {
		return ""
	}
	return d.Details[label]
}
