package kisstv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/John-Robertt/kisstv/internal/domain"
	"github.com/John-Robertt/kisstv/internal/infra/httpx"
	"github.com/John-Robertt/kisstv/internal/markup"
	providerx "github.com/John-Robertt/kisstv/internal/provider"
)

// DefaultBaseURL 是站点默认地址；站点经常换域名，可通过配置覆盖。
const DefaultBaseURL = "https://kisstvshow.to/"

const (
	defaultConcurrency = 4
	maxConcurrency     = 16
)

// 页面种类（同时也是快照目录名）。
const (
	PageSearch = "search"
	PageList   = "list"
	PageShow   = "show"
)

// PageSink 接收每一个成功抓取并解析的页面（原始 HTML + 解析结果）。
// 实现必须可并发调用；返回的错误只记录日志，不影响主流程。
type PageSink interface {
	SavePage(kind, pageURL string, html []byte, parsed any) error
}

// PageSource 是回放模式的页面来源：按 (kind, pageURL) 读取 PageSink 之前保存的原始 HTML
// 与解析结果 JSON。ok=false 表示没有该页面。
type PageSource interface {
	ReadHTML(kind, pageURL string) ([]byte, bool, error)
	ReadJSON(kind, pageURL string) ([]byte, bool, error)
}

// Options 是 Client 的构造参数；零值字段使用默认值。
type Options struct {
	BaseURL     string
	UserAgent   string
	Headers     map[string]string
	ProxyURL    string
	Timeout     time.Duration
	Concurrency int

	Logger   *zap.Logger
	Sink     PageSink
	Observer Observer
	// Source 非空时进入回放模式：页面从 Source 读取，不发任何网络请求；
	// 重新解析的结果与快照中的 JSON 不一致时记警告。
	Source PageSource
}

// Observer 接收批量读取详情页的进度事件；客户端本身不做任何终端输出。
// 实现必须并发安全：OnShowDone 可能来自多个 goroutine。
type Observer interface {
	// OnShowsStart 在批量读取开始时调用一次。
	OnShowsStart(total, workers int)
	// OnShowDone 在每个链接完成（成功或失败）时调用；done 从 1 递增到 total。
	OnShowDone(done, total int, r ShowResult, dur time.Duration)
}

// Client 是一个站点会话：持有 cookie jar，所有请求共用同一身份。
type Client struct {
	base        *url.URL
	session     *httpx.Session
	log         *zap.Logger
	sink        PageSink
	source      PageSource
	observer    Observer
	concurrency int
}

// NewClient 构造客户端。BaseURL 必须是绝对地址（缺少尾部 "/" 时自动补上，保证相对路径拼接正确）。
func NewClient(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("base url 无效：%w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url 必须是绝对地址：%s", raw)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	session, err := httpx.NewSession(httpx.SessionOptions{
		UserAgent:    opts.UserAgent,
		Headers:      opts.Headers,
		ProxyURL:     opts.ProxyURL,
		Timeout:      opts.Timeout,
		RedirectHost: base.Hostname(),
	})
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		base:        base,
		session:     session,
		log:         log,
		sink:        opts.Sink,
		source:      opts.Source,
		observer:    opts.Observer,
		concurrency: clampConcurrency(opts.Concurrency),
	}, nil
}

func clampConcurrency(n int) int {
	if n <= 0 {
		return defaultConcurrency
	}
	if n > maxConcurrency {
		return maxConcurrency
	}
	return n
}

// BaseURL 返回解析链接时使用的站点根地址。
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// UserAgent 返回会话固定的 UA。
func (c *Client) UserAgent() string { return c.session.UserAgent() }

// LoggedIn 判断会话中是否已经持有站点 cookie。
func (c *Client) LoggedIn() bool { return len(c.session.Cookies(c.base)) > 0 }

// Replaying 表示客户端处于回放模式。
func (c *Client) Replaying() bool { return c.source != nil }

// Login 提交登录表单。成功后 cookie 保存在会话中，后续请求自动携带。
//
// 站点对错误密码同样返回 200，只能通过响应里是否仍有登录表单来判断。
func (c *Client) Login(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return errors.New("用户名和密码不能为空")
	}
	if c.source != nil {
		return fmt.Errorf("登录：%w", ErrReplayUnsupported)
	}
	pageURL := c.resolve("Login")
	body, err := c.post(ctx, pageURL, map[string]string{
		"username":    username,
		"password":    password,
		"chkRemember": "on",
		"redirect":    "",
	})
	if err != nil {
		return err
	}
	doc, err := markup.Parse(body)
	if err != nil {
		// 登录后跳转到首页；首页都解析不了说明拿到的不是页面，按失败处理。
		return err
	}
	if doc.FindFirst("form", markup.ID("formLogin")) != nil {
		return ErrLoginFailed
	}
	c.log.Info("登录成功", zap.String("user", username))
	return nil
}

// Search 按关键字搜索剧集。没有结果时返回空切片。
func (c *Client) Search(ctx context.Context, keyword string) ([]domain.ListingEntry, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, errors.New("keyword 不能为空")
	}
	pageURL := c.resolve("Search/Show")
	// 搜索是 POST，URL 相同；把关键字拼进快照键，避免不同搜索互相覆盖。
	key := pageURL + "?keyword=" + url.QueryEscape(keyword)
	body, err := c.load(PageSearch, key, func() ([]byte, error) {
		return c.post(ctx, pageURL, map[string]string{"keyword": keyword})
	})
	if err != nil {
		return nil, err
	}
	return c.listing(PageSearch, key, body)
}

// ListSort 是剧集列表的排序方式。
type ListSort string

const (
	SortAlphabet ListSort = ""
	SortPopular  ListSort = "popular"
	SortLatest   ListSort = "latest"
	SortNewest   ListSort = "newest"
)

// ParseListSort 校验 CLI/配置中的排序名。
func ParseListSort(s string) (ListSort, error) {
	switch v := ListSort(strings.ToLower(strings.TrimSpace(s))); v {
	case SortAlphabet, SortPopular, SortLatest, SortNewest:
		return v, nil
	default:
		return "", fmt.Errorf("未知排序方式：%q（可选 popular/latest/newest）", s)
	}
}

func (s ListSort) path() string {
	switch s {
	case SortPopular:
		return "ShowList/MostPopular"
	case SortLatest:
		return "ShowList/LatestUpdate"
	case SortNewest:
		return "ShowList/Newest"
	default:
		return "ShowList"
	}
}

// ShowList 读取剧集列表的第 page 页（从 1 开始）。
func (c *Client) ShowList(ctx context.Context, sort ListSort, page int) ([]domain.ListingEntry, error) {
	if page < 1 {
		return nil, fmt.Errorf("page 必须 >= 1：%d", page)
	}
	pageURL := c.resolve(sort.path())
	if page > 1 {
		pageURL += "?page=" + strconv.Itoa(page)
	}
	body, err := c.load(PageList, pageURL, func() ([]byte, error) { return c.get(ctx, pageURL) })
	if err != nil {
		return nil, err
	}
	return c.listing(PageList, pageURL, body)
}

// Show 读取一个详情页。link 可以是站内短链接（"Show/Foo"）或完整 URL。
func (c *Client) Show(ctx context.Context, link string) (domain.ShowDetail, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return domain.ShowDetail{}, errors.New("link 不能为空")
	}
	pageURL := c.resolve(link)
	body, err := c.load(PageShow, pageURL, func() ([]byte, error) { return c.get(ctx, pageURL) })
	if err != nil {
		return domain.ShowDetail{}, err
	}
	doc, err := markup.Parse(body)
	if err != nil {
		return domain.ShowDetail{}, err
	}
	detail, skipped, err := ParseShowDetailTrace(doc, c.base)
	if err != nil {
		return domain.ShowDetail{}, err
	}
	c.logSkipped(pageURL, skipped)
	c.save(PageShow, pageURL, body, detail)
	return detail, nil
}

// Image 下载图片（通常是封面）。与页面请求共用会话的 cookie、UA 与代理。
func (c *Client) Image(ctx context.Context, rawURL string) ([]byte, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("图片 URL 不能为空")
	}
	if c.source != nil {
		return nil, fmt.Errorf("下载图片：%w", ErrReplayUnsupported)
	}
	body, err := c.get(ctx, c.resolve(rawURL))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("图片为空：%s", rawURL)
	}
	return body, nil
}

// ShowResult 是 Shows 批量读取中单个链接的结果；Detail 与 Error 二选一。
type ShowResult struct {
	Link   string             `json:"link"`
	Detail *domain.ShowDetail `json:"detail,omitempty"`
	Error  string             `json:"error,omitempty"`

	Err error `json:"-"`
}

// Shows 以有界并发读取多个详情页。结果顺序与 links 一致；单个失败不影响其它链接。
func (c *Client) Shows(ctx context.Context, links []string) []ShowResult {
	results := make([]ShowResult, len(links))
	total := len(links)
	if c.observer != nil {
		c.observer.OnShowsStart(total, min(c.concurrency, total))
	}

	var done atomic.Int64
	p := pool.New().WithMaxGoroutines(c.concurrency)
	for i, link := range links {
		i, link := i, link
		p.Go(func() {
			start := time.Now()
			results[i] = c.showResult(ctx, link)
			if c.observer != nil {
				c.observer.OnShowDone(int(done.Add(1)), total, results[i], time.Since(start))
			}
		})
	}
	p.Wait()
	return results
}

func (c *Client) showResult(ctx context.Context, link string) ShowResult {
	r := ShowResult{Link: link}
	if err := ctx.Err(); err != nil {
		r.Err, r.Error = err, err.Error()
		return r
	}
	d, err := c.Show(ctx, link)
	if err != nil {
		c.log.Warn("读取详情页失败", zap.String("link", link), zap.Error(err))
		r.Err, r.Error = err, err.Error()
		return r
	}
	r.Detail = &d
	return r
}

func (c *Client) listing(kind, pageURL string, body []byte) ([]domain.ListingEntry, error) {
	doc, err := markup.Parse(body)
	if err != nil {
		return nil, err
	}
	entries, skipped := ParseListingTrace(doc, c.base)
	c.logSkipped(pageURL, skipped)
	c.save(kind, pageURL, body, entries)
	return entries, nil
}

func (c *Client) logSkipped(pageURL string, skipped []error) {
	for _, err := range skipped {
		c.log.Debug("跳过不完整的行", zap.String("url", pageURL), zap.Error(err))
	}
}

// load 在回放模式下从快照读取页面，否则调用 fetch 走网络。
func (c *Client) load(kind, pageURL string, fetch func() ([]byte, error)) ([]byte, error) {
	if c.source == nil {
		return fetch()
	}
	body, ok, err := c.source.ReadHTML(kind, pageURL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w：%s %s", ErrNotInSnapshot, kind, pageURL)
	}
	c.log.Debug("从快照读取页面", zap.String("kind", kind), zap.String("url", pageURL), zap.Int("bytes", len(body)))
	return body, nil
}

func (c *Client) save(kind, pageURL string, body []byte, parsed any) {
	if c.source != nil {
		c.verify(kind, pageURL, parsed)
		return
	}
	if c.sink == nil {
		return
	}
	if err := c.sink.SavePage(kind, pageURL, body, parsed); err != nil {
		c.log.Warn("保存页面快照失败", zap.String("kind", kind), zap.String("url", pageURL), zap.Error(err))
	}
}

// verify 对比回放时重新解析的结果与快照里保存的 JSON；不一致说明解析规则的行为变了。
func (c *Client) verify(kind, pageURL string, parsed any) {
	stored, ok, err := c.source.ReadJSON(kind, pageURL)
	if err != nil || !ok {
		c.log.Debug("快照缺少解析结果，跳过对比", zap.String("kind", kind), zap.String("url", pageURL), zap.Error(err))
		return
	}
	same, err := sameJSON(stored, parsed)
	if err != nil {
		c.log.Warn("快照解析结果无法对比", zap.String("kind", kind), zap.String("url", pageURL), zap.Error(err))
		return
	}
	if !same {
		c.log.Warn("解析结果与快照不一致", zap.String("kind", kind), zap.String("url", pageURL))
	}
}

func sameJSON(stored []byte, parsed any) (bool, error) {
	b, err := json.Marshal(parsed)
	if err != nil {
		return false, err
	}
	var want, got any
	if err := json.Unmarshal(stored, &want); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, &got); err != nil {
		return false, err
	}
	return reflect.DeepEqual(want, got), nil
}

func (c *Client) resolve(ref string) string { return resolveURL(c.base, ref) }

func (c *Client) get(ctx context.Context, pageURL string) ([]byte, error) {
	res, err := c.session.HTTP.R().SetContext(ctx).Get(pageURL)
	return c.check(res, err)
}

func (c *Client) post(ctx context.Context, pageURL string, form map[string]string) ([]byte, error) {
	res, err := c.session.HTTP.R().SetContext(ctx).SetFormData(form).Post(pageURL)
	return c.check(res, err)
}

// check 在边界上把响应分类：拦截页 -> BlockedError，非 2xx -> TransportError。
// 只有通过检查的 body 才会交给解析器。
func (c *Client) check(res *resty.Response, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	req := res.Request
	body := res.Body()
	finalURL := req.URL
	if raw := res.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}

	if reason := blockedReason(res.StatusCode(), res.Header(), body); reason != "" {
		c.log.Warn("请求被站点拦截", zap.String("url", finalURL), zap.String("reason", reason))
		return nil, &providerx.BlockedError{URL: finalURL, Reason: reason}
	}
	if !res.IsSuccess() {
		return nil, &providerx.TransportError{
			Method:     req.Method,
			URL:        req.URL,
			StatusCode: res.StatusCode(),
			Location:   strings.TrimSpace(res.Header().Get("Location")),
		}
	}
	c.log.Debug("页面已获取", zap.String("method", req.Method), zap.String("url", finalURL), zap.Int("bytes", len(body)))
	return body, nil
}

// 拦截页的强信号：出现即判定为验证页。
var cloudflareInterstitialMarkers = [][]byte{
	[]byte("<title>Just a moment...</title>"),
	[]byte("cf-browser-verification"),
}

// Cloudflare 会往正常页面里注入 /cdn-cgi/challenge-platform/scripts/jsd/main.js，
// 所以该标记只在拦截状态码或 cf-mitigated 头存在时才算数。
var cloudflareChallengeMarker = []byte("challenge-platform")

// blockedReason 识别 Cloudflare 的 JS 验证页。不尝试绕过。
func blockedReason(status int, header http.Header, body []byte) string {
	if status != http.StatusOK && status != http.StatusForbidden && status != http.StatusServiceUnavailable {
		return ""
	}
	mitigated := strings.TrimSpace(header.Get("cf-mitigated")) != ""
	if mitigated {
		return "cloudflare"
	}
	for _, m := range cloudflareInterstitialMarkers {
		if bytes.Contains(body, m) {
			return "cloudflare"
		}
	}
	if status != http.StatusOK && bytes.Contains(body, cloudflareChallengeMarker) {
		return "cloudflare"
	}
	return ""
}
