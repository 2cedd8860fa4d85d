package kisstv

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/kisstv/internal/markup"
)

func testBase(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse(DefaultBaseURL)
	require.NoError(t, err)
	return u
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	return b
}

func parseFixture(t *testing.T, name string) *markup.Document {
	t.Helper()
	return parseHTML(t, string(readFixture(t, name)))
}

func parseHTML(t *testing.T, s string) *markup.Document {
	t.Helper()
	doc, err := markup.Parse([]byte(s))
	if err != nil {
		t.Fatalf("解析 HTML 失败：%v", err)
	}
	return doc
}
