package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/kisstv/internal/infra/logx"
)

const (
	// ErrCodeNotFound 表示 --config 显式指定的文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeEnv 表示 .env 文件存在但无法解析。
	ErrCodeEnv = "env_invalid"
)

const (
	// FileName 是默认配置文件名（位于工作目录）。
	FileName = "kisstv.yaml"
	// EnvFileName 是可选的环境变量文件名（位于工作目录）。
	EnvFileName = ".env"

	DefaultBaseURL        = "https://kisstvshow.to/"
	DefaultConcurrency    = 4
	MaxConcurrency        = 16
	DefaultTimeoutSeconds = 30
)

// 环境变量名。
const (
	EnvUsername = "KISSTV_USERNAME"
	EnvPassword = "KISSTV_PASSWORD"
	EnvBaseURL  = "KISSTV_BASE_URL"
	EnvProxy    = "KISSTV_PROXY"
)

// CLIArgs 是 CLI 暴露的全局参数。字符串为空表示未指定；并发用 Set 标记区分“未指定”和显式值。
type CLIArgs struct {
	ConfigPath string

	BaseURL     string
	Proxy       string
	LogLevel    string
	SnapshotDir string
	ReplayDir   string

	Concurrency    int
	ConcurrencySet bool
}

// FileConfig 对应 kisstv.yaml 的解析结构。
type FileConfig struct {
	BaseURL        string            `yaml:"base_url"`
	Username       string            `yaml:"username"`
	Password       string            `yaml:"password"`
	UserAgent      string            `yaml:"user_agent"`
	Headers        map[string]string `yaml:"headers"`
	Proxy          *ProxyConfig      `yaml:"proxy"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Concurrency    int               `yaml:"concurrency"`
	Log            LogConfig         `yaml:"log"`
	SnapshotDir    string            `yaml:"snapshot_dir"`
}

type ProxyConfig struct {
	URL string `yaml:"url"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// EffectiveConfig 是合并并规范化后的最终配置。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件（未读取任何文件时为空）。
	ConfigPath string

	BaseURL   string
	Username  string
	Password  string
	UserAgent string
	Headers   map[string]string
	ProxyURL  string
	Timeout   time.Duration

	Concurrency int

	LogLevel string
	LogFile  string

	// SnapshotDir 为空表示不保存页面快照。
	SnapshotDir string
	// ReplayDir 非空时从该快照目录离线回放页面（只来自 CLI）。
	ReplayDir string
}

// HasCredentials 表示是否配置了登录凭据。
func (c EffectiveConfig) HasCredentials() bool {
	return strings.TrimSpace(c.Username) != "" && c.Password != ""
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	case ErrCodeEnv:
		return fmt.Sprintf("%s：环境变量文件 %q 无法解析：%v", e.Code, e.Path, e.Err)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取配置文件与环境变量，然后与 CLI 参数合并为最终配置。
//
// 发现规则：
// 1) CLI 提供 --config：读取该文件（必须存在）
// 2) 否则：读取 <cwd>/kisstv.yaml（可选）
// 3) <cwd>/.env（可选）补充环境变量；进程环境变量优先于 .env
//
// 覆盖优先级：CLI > 环境变量 > 配置文件 > 默认值。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	required := false
	if strings.TrimSpace(cli.ConfigPath) != "" {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
		required = true
	}

	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		if required {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		cfgPath = ""
	}

	env, err := loadEnv(filepath.Join(cwdAbs, EnvFileName))
	if err != nil {
		return EffectiveConfig{}, err
	}

	eff, err := merge(cwdAbs, cli, env, fc)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	eff.ConfigPath = cfgPath
	return eff, nil
}

// envLookup 先查进程环境，再查 .env 内容。
type envLookup func(key string) string

func loadEnv(path string) (envLookup, error) {
	fileEnv := map[string]string{}
	if _, err := os.Stat(path); err == nil {
		m, err := godotenv.Read(path)
		if err != nil {
			return nil, &Error{Code: ErrCodeEnv, Path: path, Err: err}
		}
		fileEnv = m
	}
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(fileEnv[key])
	}, nil
}

func merge(cwd string, cli CLIArgs, env envLookup, fc FileConfig) (EffectiveConfig, error) {
	baseURL := pick(cli.BaseURL, env(EnvBaseURL), fc.BaseURL, DefaultBaseURL)
	if err := validateHTTPURL("base_url", baseURL); err != nil {
		return EffectiveConfig{}, err
	}

	fileProxy := ""
	if fc.Proxy != nil {
		fileProxy = fc.Proxy.URL
	}
	proxyURL := pick(cli.Proxy, env(EnvProxy), fileProxy, "")
	if proxyURL != "" {
		if err := validateHTTPURL("proxy.url", proxyURL); err != nil {
			return EffectiveConfig{}, err
		}
	}

	concurrency := fc.Concurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	}
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	timeout := fc.TimeoutSeconds
	if timeout < 0 {
		return EffectiveConfig{}, fmt.Errorf("timeout_seconds 不能为负数：%d", timeout)
	}
	if timeout == 0 {
		timeout = DefaultTimeoutSeconds
	}

	logLevel := pick(cli.LogLevel, "", fc.Log.Level, "info")
	if _, err := logx.ParseLevel(logLevel); err != nil {
		return EffectiveConfig{}, err
	}

	logFile := ""
	if strings.TrimSpace(fc.Log.File) != "" {
		logFile = absCleanFrom(cwd, fc.Log.File)
	}
	snapshotDir := pick(cli.SnapshotDir, "", fc.SnapshotDir, "")
	if snapshotDir != "" {
		snapshotDir = absCleanFrom(cwd, snapshotDir)
	}

	replayDir := ""
	if strings.TrimSpace(cli.ReplayDir) != "" {
		replayDir = absCleanFrom(cwd, cli.ReplayDir)
		fi, err := os.Stat(replayDir)
		if err != nil {
			return EffectiveConfig{}, fmt.Errorf("回放目录不可用：%w", err)
		}
		if !fi.IsDir() {
			return EffectiveConfig{}, fmt.Errorf("回放路径不是目录：%q", replayDir)
		}
	}

	headers := make(map[string]string, len(fc.Headers))
	for k, v := range fc.Headers {
		k = strings.TrimSpace(k)
		if k == "" {
			return EffectiveConfig{}, errors.New("headers 中存在空的请求头名")
		}
		headers[k] = v
	}

	return EffectiveConfig{
		BaseURL:     baseURL,
		Username:    pick("", env(EnvUsername), fc.Username, ""),
		Password:    pickRaw(env(EnvPassword), fc.Password),
		UserAgent:   strings.TrimSpace(fc.UserAgent),
		Headers:     headers,
		ProxyURL:    proxyURL,
		Timeout:     time.Duration(timeout) * time.Second,
		Concurrency: concurrency,
		LogLevel:    strings.ToLower(logLevel),
		LogFile:     logFile,
		SnapshotDir: snapshotDir,
		ReplayDir:   replayDir,
	}, nil
}

// pick 返回第一个非空（去空白后）的值。
func pick(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// pickRaw 与 pick 相同，但不修剪密码中的空白。
func pickRaw(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 必须是绝对 URL：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 YAML 配置文件；未知字段视为错误（拼错的键不应被静默忽略）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		// 空文件/只有注释：等同于没有任何配置。
		if errors.Is(err, io.EOF) {
			return FileConfig{}, true, nil
		}
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
