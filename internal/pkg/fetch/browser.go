package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Cookie banner buttons accepted before scraping a rendered page.
var cookieButtonTexts = []string{
	"aceptar", "acepto", "consentir", "de acuerdo", "aceptar todo", "aceptar todas",
	"i agree", "accept", "accept all", "allow all", "agree",
}

// BrowserOptions configures the headless browser.
type BrowserOptions struct {
	Headful     bool
	ExecPath    string
	UserAgent   string
	NavTimeout  time.Duration
	SettleDelay time.Duration
	MaxPages    int
}

// Browser owns one headless Chrome for the whole run. Every fetch opens its own
// tab and closes it on return; Close releases the browser itself.
type Browser struct {
	opts          BrowserOptions
	dataDir       string
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc

	// tabMu serializes tab usage so only one page is loaded at a time
	tabMu     sync.Mutex
	closeOnce sync.Once
}

// NewBrowser starts Chrome. The error wraps ErrBrowserUnavailable when Chrome
// cannot be launched, so callers can degrade to direct HTTP.
func NewBrowser(opts BrowserOptions) (*Browser, error) {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 45 * time.Second
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 1500 * time.Millisecond
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = 10
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgents[0]
	}

	dataDir, err := os.MkdirTemp("", "loterias_chrome_")
	if err != nil {
		return nil, fmt.Errorf("create chrome temp dir: %w", err)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !opts.Headful),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("lang", "es-ES"),
		chromedp.UserDataDir(dataDir),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(1366, 900),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, v ...interface{}) {
		if os.Getenv("LOTERIAS_CHROME_DEBUG") == "1" {
			slog.Debug("chromedp", "message", fmt.Sprintf(format, v...))
		}
	}))

	b := &Browser{
		opts:          opts,
		dataDir:       dataDir,
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
	}

	// Running an empty action list launches the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}

	slog.Info("Headless browser started", "headless", !opts.Headful)
	return b, nil
}

// Close stops Chrome and removes its profile directory. Safe to call more than once.
func (b *Browser) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.browserCtx != nil {
			if cerr := chromedp.Cancel(b.browserCtx); cerr != nil && b.browserCtx.Err() == nil {
				err = cerr
			}
		}
		if b.cancelBrowser != nil {
			b.cancelBrowser()
		}
		if b.cancelAlloc != nil {
			b.cancelAlloc()
		}
		if rerr := os.RemoveAll(b.dataDir); rerr != nil && err == nil {
			err = rerr
		}
	})
	return err
}

// withTab runs fn in a fresh tab that is closed on every exit path.
// The tab is cancelled when ctx is done or the navigation timeout expires.
func (b *Browser) withTab(ctx context.Context, fn func(tabCtx context.Context) error) error {
	if b.browserCtx.Err() != nil {
		return ErrBrowserUnavailable
	}

	b.tabMu.Lock()
	defer b.tabMu.Unlock()

	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	timeout := b.opts.NavTimeout * time.Duration(1+b.opts.MaxPages)
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, timeout)
	defer cancelTimeout()

	err := fn(tabCtx)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

type inPageResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        string `json:"body"`
}

// SameOriginFetch opens listingURL to obtain the site's cookies and session,
// then requests targetURL from inside the page with credentials included.
func (b *Browser) SameOriginFetch(ctx context.Context, listingURL, targetURL string, accept Accept) (*Payload, error) {
	if listingURL == "" {
		listingURL = targetURL
	}
	acceptHeader := "text/html,application/xhtml+xml,*/*;q=0.8"
	if accept == AcceptJSON {
		acceptHeader = "application/json, text/plain, */*"
	}

	target, _ := json.Marshal(targetURL)
	headers, _ := json.Marshal(map[string]string{
		"Accept":           acceptHeader,
		"X-Requested-With": "XMLHttpRequest",
	})
	script := fmt.Sprintf(`(async () => {
  const r = await fetch(%s, {credentials: 'include', headers: %s});
  const body = await r.text();
  return {status: r.status, contentType: r.headers.get('content-type') || '', body: body};
})()`, target, headers)

	var res inPageResponse
	err := b.withTab(ctx, func(tabCtx context.Context) error {
		if err := chromedp.Run(tabCtx,
			chromedp.Navigate(listingURL),
			chromedp.Sleep(b.opts.SettleDelay),
		); err != nil {
			return fmt.Errorf("navigate listing: %w", err)
		}
		if _, err := b.clickCookieBanner(tabCtx); err != nil {
			slog.Debug("Cookie banner check failed", "url", listingURL, "error", err)
		}
		return chromedp.Run(tabCtx,
			chromedp.Evaluate(script, &res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("same-origin fetch %s: %w", targetURL, err)
	}

	if res.Status < 200 || res.Status > 299 {
		return nil, &StatusError{Status: res.Status, URL: targetURL, Preview: preview([]byte(res.Body), 500)}
	}

	body := []byte(res.Body)
	kind, err := sniffKind(body, res.ContentType)
	if err != nil {
		return nil, fmt.Errorf("same-origin fetch %s: %w", targetURL, err)
	}
	return &Payload{
		Body:        body,
		ContentType: res.ContentType,
		Origin:      targetURL,
		Kind:        kind,
		Status:      res.Status,
	}, nil
}

const collectTablesJS = `Array.from(document.querySelectorAll('table')).map(t => t.outerHTML)`

const nextPageJS = `(() => {
  const selectors = ["a[rel='next']", ".pagination a[rel='next']", "a[aria-label='Next']", "a[aria-label='Siguiente']", "li.next a"];
  for (const s of selectors) {
    const el = document.querySelector(s);
    if (el) { el.click(); return true; }
  }
  const texts = ['siguiente', 'siguiente »', 'next', 'next »', '»', 'cargar más', 'ver más', 'load more'];
  for (const n of document.querySelectorAll('a, button')) {
    const t = (n.innerText || '').trim().toLowerCase();
    if (texts.includes(t)) { n.click(); return true; }
  }
  return false;
})()`

// RenderTables loads pageURL, dismisses the cookie banner, and collects every
// table across at most maxPages pages of pagination.
func (b *Browser) RenderTables(ctx context.Context, pageURL string, maxPages int) (*Payload, error) {
	if maxPages <= 0 || maxPages > b.opts.MaxPages {
		maxPages = b.opts.MaxPages
	}

	var collected []string
	pages := 0
	err := b.withTab(ctx, func(tabCtx context.Context) error {
		if err := chromedp.Run(tabCtx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(b.opts.SettleDelay),
		); err != nil {
			return fmt.Errorf("navigate: %w", err)
		}

		if clicked, err := b.clickCookieBanner(tabCtx); err == nil && clicked {
			_ = chromedp.Run(tabCtx, chromedp.Sleep(b.opts.SettleDelay/2))
		}

		seen := make(map[string]bool)
		for pages < maxPages {
			waitCtx, cancel := context.WithTimeout(tabCtx, b.opts.NavTimeout)
			err := chromedp.Run(waitCtx, chromedp.WaitVisible("table", chromedp.ByQuery))
			cancel()
			if err != nil {
				if pages == 0 {
					return ErrNoTable
				}
				break
			}

			var tables []string
			if err := chromedp.Run(tabCtx, chromedp.Evaluate(collectTablesJS, &tables)); err != nil {
				return fmt.Errorf("collect tables: %w", err)
			}
			fresh := 0
			for _, t := range tables {
				if !seen[t] {
					seen[t] = true
					collected = append(collected, t)
					fresh++
				}
			}
			pages++
			if fresh == 0 {
				break
			}

			var moved bool
			if err := chromedp.Run(tabCtx, chromedp.Evaluate(nextPageJS, &moved)); err != nil || !moved {
				break
			}
			if err := chromedp.Run(tabCtx, chromedp.Sleep(b.opts.SettleDelay)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", pageURL, err)
	}
	if len(collected) == 0 {
		return nil, fmt.Errorf("render %s: %w", pageURL, ErrNoTable)
	}

	slog.Debug("Rendered tables collected", "url", pageURL, "pages", pages, "tables", len(collected))
	body := "<html><body>\n" + strings.Join(collected, "\n") + "\n</body></html>"
	return &Payload{
		Body:        []byte(body),
		ContentType: "text/html; charset=utf-8",
		Origin:      pageURL,
		Kind:        KindHTML,
		Status:      200,
		Pages:       pages,
	}, nil
}

// clickCookieBanner clicks the first consent button it recognizes.
func (b *Browser) clickCookieBanner(ctx context.Context) (bool, error) {
	texts, _ := json.Marshal(cookieButtonTexts)
	script := fmt.Sprintf(`(() => {
  const texts = %s;
  const nodes = document.querySelectorAll('button, a, [role=button], input[type=button], input[type=submit]');
  for (const n of nodes) {
    const t = (n.innerText || n.value || '').trim().toLowerCase();
    if (t && texts.some(x => t === x || t.startsWith(x + ' '))) { n.click(); return true; }
  }
  return false;
})()`, texts)

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, err
	}
	if clicked {
		slog.Debug("Cookie banner accepted")
	}
	return clicked, nil
}
