package pdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// ErrBrowser 表示无头浏览器启动、连接或打印失败。
var ErrBrowser = errors.New("headless browser failure")

// Launcher 每次调用启动一个独立的 Chromium 进程，调用结束即释放。
type Launcher struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

// LauncherOption 调整 Launcher 行为。
type LauncherOption func(*Launcher)

// WithBin 指定 Chromium 可执行文件路径。
func WithBin(path string) LauncherOption {
	return func(l *Launcher) { l.bin = path }
}

// WithTimeout 限制单次页面操作的总时长。
func WithTimeout(d time.Duration) LauncherOption {
	return func(l *Launcher) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithLogger 设置日志记录器。
func WithLogger(logger *slog.Logger) LauncherOption {
	return func(l *Launcher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLauncher 创建 Launcher；未指定路径时使用 launcher.LookPath 的结果。
func NewLauncher(opts ...LauncherOption) *Launcher {
	l := &Launcher{timeout: 60 * time.Second, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	if l.bin == "" {
		if path, ok := launcher.LookPath(); ok {
			l.bin = path
		}
	}
	return l
}

// WithPage 启动浏览器、打开空白页并执行 fn。
// 无论 fn 返回错误还是 panic，页面、浏览器连接和进程都会被释放。
func (l *Launcher) WithPage(ctx context.Context, fn func(page *rod.Page) error) (err error) {
	launch := launcher.New().
		Headless(true).
		NoSandbox(true).
		Leakless(false)
	if l.bin != "" {
		launch = launch.Bin(l.bin)
	}
	launch = launch.Context(ctx)

	var (
		launched bool
		browser  *rod.Browser
		page     *rod.Page
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrBrowser, r)
		}
		if page != nil {
			_ = page.Close()
		}
		if browser != nil {
			_ = browser.Close()
		}
		// Cleanup 会等待进程退出，未启动成功时不能调用
		if launched {
			launch.Kill()
			launch.Cleanup()
		}
	}()

	controlURL, launchErr := launch.Launch()
	if launchErr != nil {
		return fmt.Errorf("%w: launch chromium: %v", ErrBrowser, launchErr)
	}
	launched = true

	browser = rod.New().ControlURL(controlURL).Context(ctx)
	if connectErr := browser.Connect(); connectErr != nil {
		browser = nil
		return fmt.Errorf("%w: connect browser: %v", ErrBrowser, connectErr)
	}

	page, err = browser.Timeout(l.timeout).Page(proto.TargetCreateTarget{})
	if err != nil {
		page = nil
		return fmt.Errorf("%w: create page: %v", ErrBrowser, err)
	}
	page = page.Timeout(l.timeout)

	if err := fn(page); err != nil {
		if errors.Is(err, ErrBrowser) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrBrowser, err)
	}
	return nil
}
