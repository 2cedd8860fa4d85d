package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/kisstv/internal/provider/kisstv"
)

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <keyword>",
		Short: "按关键字搜索剧集，输出 ListingEntry 数组",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := strings.TrimSpace(strings.Join(args, " "))
			if keyword == "" {
				return usageErr(errors.New("keyword 不能为空"))
			}
			if err := a.setup(cmd, true); err != nil {
				return err
			}
			entries, err := a.client.Search(cmd.Context(), keyword)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "完成：%d 条结果\n", len(entries))
			return a.emitJSON(entries)
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var (
		page int
		sort string
	)
	cmd := &cobra.Command{
		Use:   "list [--page N] [--sort popular|latest|newest]",
		Short: "读取剧集列表，输出 ListingEntry 数组",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if page < 1 {
				return usageErr(fmt.Errorf("--page 必须 >= 1，实际是 %d", page))
			}
			order, err := kisstv.ParseListSort(sort)
			if err != nil {
				return usageErr(err)
			}
			if err := a.setup(cmd, true); err != nil {
				return err
			}
			entries, err := a.client.ShowList(cmd.Context(), order, page)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "完成：第 %d 页 %d 条\n", page, len(entries))
			return a.emitJSON(entries)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "页码（从 1 开始）")
	cmd.Flags().StringVar(&sort, "sort", "", "排序：popular|latest|newest（默认按字母）")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	var (
		nfoDir string
		poster bool
	)
	cmd := &cobra.Command{
		Use:   "show <link>...",
		Short: "读取一个或多个详情页，输出 ShowResult 数组",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if poster && nfoDir == "" {
				return usageErr(errors.New("--poster 需要同时指定 --nfo"))
			}
			if err := a.setup(cmd, true); err != nil {
				return err
			}
			results := a.client.Shows(cmd.Context(), args)

			failed := 0
			for _, r := range results {
				if r.Detail == nil {
					failed++
					fmt.Fprintf(a.stderr, "%s: %s\n", r.Link, r.Error)
				}
			}
			if nfoDir != "" {
				if err := a.writeNFOs(cmd.Context(), nfoDir, results, poster); err != nil {
					return err
				}
			}

			fmt.Fprintf(a.stderr, "完成：ok=%d failed=%d\n", len(results)-failed, failed)
			if err := a.emitJSON(results); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d 个详情页读取失败", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&nfoDir, "nfo", "", "为每个详情写 <dir>/<剧集>/tvshow.nfo（已存在则跳过）")
	cmd.Flags().BoolVar(&poster, "poster", false, "同时下载封面为 <dir>/<剧集>/poster.jpg（需要 --nfo）")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "用配置中的凭据登录，只验证凭据是否有效",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(cmd, false); err != nil {
				return err
			}
			if a.client.Replaying() {
				return usageErr(errors.New("--replay 模式下不能登录"))
			}
			if !a.eff.HasCredentials() {
				return usageErr(errors.New("未配置凭据：请设置 username/password 或环境变量"))
			}
			if err := a.client.Login(cmd.Context(), a.eff.Username, a.eff.Password); err != nil {
				return err
			}
			a.log.Debug("凭据有效", zap.String("user", a.eff.Username))
			return a.emitJSON(map[string]any{"logged_in": a.client.LoggedIn(), "user": a.eff.Username})
		},
	}
}
