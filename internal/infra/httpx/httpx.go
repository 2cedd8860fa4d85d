package httpx

import (
	"errors"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRetryMax = 2
)

// Transport 把“UA 兜底 + keep-alive 策略 + 有界重试”固化为统一策略。
//
// 设计目标：provider 只负责“定位页面 + 解析 HTML”，不关心网络策略细节。
type Transport struct {
	Base *http.Transport

	ua *uaPool

	// RetryMax 表示最大重试次数（不含首次尝试）。例如 2 表示最多 3 次尝试。
	// 只对网络错误重试；HTTP 状态码原样交给上层。
	RetryMax int

	// DisableKeepAlives 决定是否对 Request 设置 Close=true。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。登录/搜索是 POST，不重试。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" && t.ua != nil {
			r.Header.Set("User-Agent", t.ua.random())
		}
		if t.DisableKeepAlives {
			r.Close = true
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// SessionOptions 描述一个站点会话的客户端身份。
type SessionOptions struct {
	// UserAgent 为空时从内置 UA 池中挑一个，并在整个会话内固定（cookie 与 UA 需保持一致）。
	UserAgent string
	// Headers 是附加请求头（例如 Accept-Language / Referer）。
	Headers map[string]string
	// ProxyURL 非空时所有请求走代理，且禁用 keep-alive。
	ProxyURL string
	Timeout  time.Duration
	// RedirectHost 非空时只允许跳转到该主机（站点登录后会 302 回首页）。
	RedirectHost string
}

// Session 是显式的会话上下文：cookie jar + 固定的请求头集合。
// 不使用任何全局状态；一个 Session 对应一个登录身份。
type Session struct {
	HTTP *resty.Client
	Jar  http.CookieJar

	userAgent string
}

// NewSession 构造带 cookie 持久化的 resty 客户端。
func NewSession(opts SessionOptions) (*Session, error) {
	hc, err := newClient(strings.TrimSpace(opts.ProxyURL))
	if err != nil {
		return nil, err
	}
	if opts.Timeout > 0 {
		hc.Timeout = opts.Timeout
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = globalUA.random()
	}

	client := resty.NewWithClient(hc)
	client.SetCookieJar(jar)
	client.SetHeader("User-Agent", ua)
	for k, v := range opts.Headers {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		client.SetHeader(k, v)
	}
	if host := strings.TrimSpace(opts.RedirectHost); host != "" {
		client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(host), resty.FlexibleRedirectPolicy(10))
	}

	return &Session{HTTP: client, Jar: jar, userAgent: ua}, nil
}

// UserAgent 返回该会话固定使用的 UA。
func (s *Session) UserAgent() string { return s.userAgent }

// Cookies 返回会话中发往 u 的 cookie（用于判断是否已登录/调试）。
func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	if s == nil || s.Jar == nil || u == nil {
		return nil
	}
	return s.Jar.Cookies(u)
}

func newClient(proxyURL string) (*http.Client, error) {
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
	}

	disableKeepAlives := false
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, errors.New("proxy url 必须是绝对地址：" + proxyURL)
		}
		base.Proxy = http.ProxyURL(u)
		// proxy 模式强制每请求新连接（代理池轮换依赖该行为）。
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	tr := &Transport{
		Base:              base,
		ua:                globalUA,
		RetryMax:          defaultRetryMax,
		DisableKeepAlives: disableKeepAlives,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   defaultTimeout,
	}, nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
