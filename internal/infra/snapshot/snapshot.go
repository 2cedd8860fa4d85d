package snapshot

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/kisstv/internal/infra/fsx"
)

// Store 把抓取到的页面保存到 <root>/pages/<kind>/<slug>.html|.json。
//
// 快照用于采集新的测试夹具；回放模式（ReadHTML/ReadJSON）用它离线重新解析并对比结果。
// 同一页面再次抓取会覆盖旧快照。
type Store struct {
	Root string
}

const maxSlugLen = 96

func New(root string) Store {
	return Store{Root: filepath.Clean(strings.TrimSpace(root))}
}

// HTMLPath 返回页面 HTML 快照的绝对路径。
func (s Store) HTMLPath(kind, pageURL string) (string, error) {
	return s.path(kind, pageURL, ".html")
}

// JSONPath 返回页面解析结果快照的绝对路径。
func (s Store) JSONPath(kind, pageURL string) (string, error) {
	return s.path(kind, pageURL, ".json")
}

func (s Store) path(kind, pageURL, ext string) (string, error) {
	dir, slug, err := s.locate(kind, pageURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, slug+ext), nil
}

func (s Store) locate(kind, pageURL string) (dir, slug string, err error) {
	k, err := cleanKind(kind)
	if err != nil {
		return "", "", err
	}
	slug, err = Slug(pageURL)
	if err != nil {
		return "", "", err
	}
	return filepath.Join(s.Root, "pages", k), slug, nil
}

// ReadHTML 读取页面 HTML 快照；不存在时 ok=false。
func (s Store) ReadHTML(kind, pageURL string) ([]byte, bool, error) {
	path, err := s.HTMLPath(kind, pageURL)
	if err != nil {
		return nil, false, err
	}
	return readOptional(path)
}

// ReadJSON 读取 SavePage 写入的解析结果。
func (s Store) ReadJSON(kind, pageURL string) ([]byte, bool, error) {
	path, err := s.JSONPath(kind, pageURL)
	if err != nil {
		return nil, false, err
	}
	return readOptional(path)
}

// SavePage 写入原始 HTML 与解析结果（缩进 JSON）。可并发调用：不同页面写不同文件，
// 同一页面的并发写由原子 rename 保证读者只会看到某一次完整写入。
func (s Store) SavePage(kind, pageURL string, html []byte, parsed any) error {
	dir, slug, err := s.locate(kind, pageURL)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化解析结果失败：%w", err)
	}
	if err := fsx.WriteFileAtomicReplace(dir, slug+".html", html); err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(dir, slug+".json", append(b, '\n'))
}

func readOptional(path string) ([]byte, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

var (
	kindRE    = regexp.MustCompile(`^[a-z0-9_]+$`)
	nonSlugRE = regexp.MustCompile(`[^a-z0-9]+`)
)

func cleanKind(k string) (string, error) {
	k = strings.ToLower(strings.TrimSpace(k))
	if k == "" {
		return "", fmt.Errorf("kind 不能为空")
	}
	// 最小约束：避免路径穿越。
	if !kindRE.MatchString(k) {
		return "", fmt.Errorf("非法 kind：%q", k)
	}
	return k, nil
}

// Slug 把页面 URL（路径 + 查询串）转成文件名：小写字母数字，其余字符折叠为 "-"。
// 站点根路径得到 "index"；过长的 slug 截断并追加短哈希以免冲突。
func Slug(pageURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return "", fmt.Errorf("页面 URL 无效：%w", err)
	}
	raw := u.EscapedPath()
	if u.RawQuery != "" {
		raw += "?" + u.RawQuery
	}
	if dec, err := url.PathUnescape(raw); err == nil {
		raw = dec
	}

	slug := strings.Trim(nonSlugRE.ReplaceAllString(strings.ToLower(raw), "-"), "-")
	if slug == "" {
		return "index", nil
	}
	if len(slug) > maxSlugLen {
		sum := sha1.Sum([]byte(raw))
		slug = strings.TrimRight(slug[:maxSlugLen], "-") + "-" + hex.EncodeToString(sum[:4])
	}
	return slug, nil
}
