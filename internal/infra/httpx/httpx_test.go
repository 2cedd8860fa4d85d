package httpx

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSession_ProxyDisablesKeepAlive(t *testing.T) {
	s, err := NewSession(SessionOptions{ProxyURL: "http://127.0.0.1:8080"})
	require.NoError(t, err)

	tr, ok := s.HTTP.GetClient().Transport.(*Transport)
	require.True(t, ok, "期望 *Transport，实际 %T", s.HTTP.GetClient().Transport)
	require.NotNil(t, tr.Base.Proxy, "期望启用代理")
	require.True(t, tr.Base.DisableKeepAlives)
	require.True(t, tr.DisableKeepAlives)
}

func TestNewSession_NoProxyKeepsDefault(t *testing.T) {
	s, err := NewSession(SessionOptions{})
	require.NoError(t, err)

	tr := s.HTTP.GetClient().Transport.(*Transport)
	require.Nil(t, tr.Base.Proxy)
	require.False(t, tr.Base.DisableKeepAlives)
}

func TestNewSession_InvalidProxyURL(t *testing.T) {
	_, err := NewSession(SessionOptions{ProxyURL: "http://[::1"})
	require.Error(t, err)

	_, err = NewSession(SessionOptions{ProxyURL: "127.0.0.1:8080"})
	require.Error(t, err)
}

func TestSession_FixedUserAgentAndHeaders(t *testing.T) {
	var gotUA []string
	var gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = append(gotUA, r.Header.Get("User-Agent"))
		gotLang = r.Header.Get("Accept-Language")
	}))
	defer srv.Close()

	s, err := NewSession(SessionOptions{Headers: map[string]string{"Accept-Language": "en-US"}})
	require.NoError(t, err)
	require.NotEmpty(t, s.UserAgent())

	for i := 0; i < 3; i++ {
		_, err := s.HTTP.R().Get(srv.URL)
		require.NoError(t, err)
	}
	require.Len(t, gotUA, 3)
	for _, ua := range gotUA {
		require.Equal(t, s.UserAgent(), ua, "同一会话内 UA 必须固定")
	}
	require.Equal(t, "en-US", gotLang)
}

func TestSession_CookiesPersistAcrossRequests(t *testing.T) {
	var sawCookie bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/Login":
			http.SetCookie(w, &http.Cookie{Name: "usr", Value: "abc", Path: "/"})
		default:
			c, err := r.Cookie("usr")
			sawCookie = err == nil && c.Value == "abc"
		}
	}))
	defer srv.Close()

	s, err := NewSession(SessionOptions{UserAgent: "test-agent"})
	require.NoError(t, err)
	require.Equal(t, "test-agent", s.UserAgent())

	_, err = s.HTTP.R().SetFormData(map[string]string{"username": "u"}).Post(srv.URL + "/Login")
	require.NoError(t, err)
	_, err = s.HTTP.R().Get(srv.URL + "/ShowList")
	require.NoError(t, err)
	require.True(t, sawCookie, "登录 cookie 应在后续请求中携带")

	u, _ := url.Parse(srv.URL)
	require.Len(t, s.Cookies(u), 1)
}

func TestTransport_PostIsNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// 直接断开连接，制造网络错误。
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatalf("httptest server 不支持 Hijack")
		}
		conn, _, _ := hj.Hijack()
		_ = conn.Close()
	}))
	defer srv.Close()

	s, err := NewSession(SessionOptions{})
	require.NoError(t, err)

	_, err = s.HTTP.R().SetFormData(map[string]string{"keyword": "x"}).Post(srv.URL + "/Search/Show")
	require.Error(t, err)
	require.Equal(t, 1, calls)
}
