package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/kisstv/internal/config"
	"github.com/John-Robertt/kisstv/internal/infra/logx"
	"github.com/John-Robertt/kisstv/internal/infra/snapshot"
	"github.com/John-Robertt/kisstv/internal/provider/kisstv"
)

// 退出码：0 成功；1 运行失败（网络/解析/部分详情失败）；2 参数或配置错误。
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		os.Exit(exitFailed)
	}
	code := execute(ctx, &app{cwd: cwd, stdout: os.Stdout, stderr: os.Stderr}, os.Args[1:])
	stop()
	os.Exit(code)
}

// app 持有一次 CLI 调用的全部状态；stdout 只输出结果 JSON，其余信息写 stderr。
type app struct {
	cwd    string
	stdout io.Writer
	stderr io.Writer

	flags globalFlags

	eff    config.EffectiveConfig
	log    *zap.Logger
	client *kisstv.Client

	closeLog func()
}

type globalFlags struct {
	configPath  string
	baseURL     string
	proxy       string
	logLevel    string
	snapshotDir string
	replayDir   string
	concurrency int
}

// exitError 携带退出码；其它错误默认按运行失败处理。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErr(err error) error { return &exitError{code: exitUsage, err: err} }

func execute(ctx context.Context, a *app, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(a.stderr)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if a.closeLog != nil {
		a.closeLog()
	}
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(a.stderr, "错误：%v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if config.Code(err) != "" {
		return exitUsage
	}
	return exitFailed
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "kisstv",
		Short:         "kisstvshow 站点客户端：搜索、列表、详情（JSON 输出）",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "配置文件路径（默认 ./"+config.FileName+"，可选）")
	pf.StringVar(&a.flags.baseURL, "base-url", "", "站点地址（覆盖配置与 "+config.EnvBaseURL+"）")
	pf.StringVar(&a.flags.proxy, "proxy", "", "HTTP 代理地址（覆盖配置与 "+config.EnvProxy+"）")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "日志级别：debug|info|warn|error")
	pf.StringVar(&a.flags.snapshotDir, "snapshot", "", "保存页面快照（原始 HTML + 解析结果）的目录")
	pf.StringVar(&a.flags.replayDir, "replay", "", "离线回放：从快照目录读取页面并重新解析，不访问站点")
	pf.IntVar(&a.flags.concurrency, "concurrency", 0, "详情页并发数（1-16）")

	root.AddCommand(
		newSearchCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newLoginCmd(a),
	)
	return root
}

// setup 加载配置并构造日志器与客户端。autoLogin=true 时若配置了凭据则先登录。
func (a *app) setup(cmd *cobra.Command, autoLogin bool) error {
	eff, err := config.LoadEffective(a.cwd, config.CLIArgs{
		ConfigPath:     a.flags.configPath,
		BaseURL:        a.flags.baseURL,
		Proxy:          a.flags.proxy,
		LogLevel:       a.flags.logLevel,
		SnapshotDir:    a.flags.snapshotDir,
		ReplayDir:      a.flags.replayDir,
		Concurrency:    a.flags.concurrency,
		ConcurrencySet: cmd.Flags().Changed("concurrency"),
	})
	if err != nil {
		return err
	}
	a.eff = eff

	logger, closeLog, err := logx.New(eff.LogLevel, eff.LogFile)
	if err != nil {
		return usageErr(fmt.Errorf("初始化日志失败：%w", err))
	}
	a.log = logger
	a.closeLog = closeLog

	opts := kisstv.Options{
		BaseURL:     eff.BaseURL,
		UserAgent:   eff.UserAgent,
		Headers:     eff.Headers,
		ProxyURL:    eff.ProxyURL,
		Timeout:     eff.Timeout,
		Concurrency: eff.Concurrency,
		Logger:      logger,
		Observer:    newProgressUI(a.stderr),
	}
	switch {
	case eff.ReplayDir != "":
		// 回放时不再写快照，避免覆盖正在对比的基准。
		opts.Source = snapshot.New(eff.ReplayDir)
	case eff.SnapshotDir != "":
		opts.Sink = snapshot.New(eff.SnapshotDir)
	}
	client, err := kisstv.NewClient(opts)
	if err != nil {
		return usageErr(err)
	}
	a.client = client

	logger.Debug("配置已加载",
		zap.String("config", eff.ConfigPath),
		zap.String("base_url", eff.BaseURL),
		zap.Int("concurrency", eff.Concurrency),
		zap.Bool("proxy", eff.ProxyURL != ""),
		zap.String("snapshot", eff.SnapshotDir),
		zap.String("replay", eff.ReplayDir),
	)

	if autoLogin && eff.HasCredentials() && !client.Replaying() {
		if err := client.Login(cmd.Context(), eff.Username, eff.Password); err != nil {
			return fmt.Errorf("自动登录失败：%w", err)
		}
	}
	return nil
}

// emitJSON 把结果写到 stdout（单个 JSON 值，末尾换行）。
func (a *app) emitJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
