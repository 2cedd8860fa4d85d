package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/kisstv/internal/domain"
	"github.com/John-Robertt/kisstv/internal/infra/fsx"
	"github.com/John-Robertt/kisstv/internal/infra/imgx"
	"github.com/John-Robertt/kisstv/internal/nfo"
	"github.com/John-Robertt/kisstv/internal/provider/kisstv"
)

const posterFileName = "poster.jpg"

// writeNFOs 为每个成功的详情写 tvshow.nfo（以及可选的 poster.jpg）；已存在的文件保持不动。
// 封面下载失败只记警告，不影响 nfo。
func (a *app) writeNFOs(ctx context.Context, root string, results []kisstv.ShowResult, poster bool) error {
	if !filepath.IsAbs(root) {
		root = filepath.Join(a.cwd, root)
	}
	for _, r := range results {
		if r.Detail == nil {
			continue
		}
		b, err := nfo.EncodeShow(*r.Detail)
		if err != nil {
			return fmt.Errorf("生成 %s 失败：%w", nfo.FileName, err)
		}
		dir := filepath.Join(root, showDirName(*r.Detail))
		if err := a.writeSidecar(dir, nfo.FileName, b); err != nil {
			return err
		}
		if poster && r.Detail.Cover != "" {
			a.writePoster(ctx, dir, r.Detail.Cover)
		}
	}
	return nil
}

func (a *app) writePoster(ctx context.Context, dir, coverURL string) {
	if _, err := os.Lstat(filepath.Join(dir, posterFileName)); err == nil {
		a.log.Info("poster.jpg 已存在，跳过", zap.String("dir", dir))
		return
	}
	raw, err := a.client.Image(ctx, coverURL)
	if err == nil {
		raw, err = imgx.PosterJPEG(raw)
	}
	if err == nil {
		err = a.writeSidecar(dir, posterFileName, raw)
	}
	if err != nil {
		a.log.Warn("下载封面失败", zap.String("url", coverURL), zap.Error(err))
	}
}

func (a *app) writeSidecar(dir, name string, b []byte) error {
	err := fsx.WriteFileAtomicNoOverwrite(dir, name, b)
	switch {
	case errors.Is(err, os.ErrExist):
		a.log.Info("文件已存在，跳过", zap.String("dir", dir), zap.String("file", name))
		return nil
	case err != nil:
		return err
	default:
		a.log.Debug("已写入", zap.String("dir", dir), zap.String("file", name))
		return nil
	}
}

// showDirName 取详情链接路径的最后一段（"/Show/The-Office" -> "The-Office"）；
// 取不到时退回标题。
func showDirName(d domain.ShowDetail) string {
	name := ""
	if u, err := url.Parse(d.Link.Complete); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		name = d.Title
	}
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" || name == "." || name == ".." {
		return "untitled"
	}
	return name
}
