package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/kisstv/internal/provider/kisstv"
)

var _ kisstv.Observer = (*progressUI)(nil)

// progressUI 把批量详情读取的进度逐行写到 stderr，不污染 stdout 的 JSON。
// 长时间没有链接完成时，按 keepalive 间隔补一行汇总。
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	workers int
	total   int
	done    int
	ok      int
	fail    int

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnShowsStart(total, workers int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startedAt = time.Now()
	p.total = total
	p.workers = workers
	fmt.Fprintf(p.w, "[%s] 读取详情页: links=%d workers=%d\n", p.startedAt.Format("15:04:05"), total, workers)
	p.lastPrinted = time.Now()
	if total > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnShowDone(done, total int, r kisstv.ShowResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = done
	p.total = total
	if r.Detail != nil {
		p.ok++
		fmt.Fprintf(p.w, "[%d/%d] %s OK %q episodes=%d (%s)\n",
			done, total, r.Link, truncate(r.Detail.Title, 60), len(r.Detail.Episodes), formatShortDuration(dur),
		)
	} else {
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL: %s (%s)\n",
			done, total, r.Link, truncate(r.Error, 160), formatShortDuration(dur),
		)
	}
	p.lastPrinted = time.Now()

	if p.tickerStarted && p.done >= p.total {
		close(p.stopCh)
		p.tickerStarted = false
	}
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	go func() {
		t := time.NewTicker(p.tickerInterval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.done >= p.total {
					p.mu.Unlock()
					return
				}
				if time.Since(p.lastPrinted) > p.keepaliveThreshold {
					active := p.workers
					if remain := p.total - p.done; remain < active {
						active = remain
					}
					fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d active=%d elapsed=%s\n",
						p.done, p.total, p.ok, p.fail, active, formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}
