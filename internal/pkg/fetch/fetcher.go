package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Mode selects the transport used for a request.
type Mode string

const (
	ModeHTTP       Mode = "http"
	ModeSameOrigin Mode = "same_origin"
	ModeRendered   Mode = "rendered"
)

// ParseMode validates a mode name from the source catalog.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeHTTP, ModeSameOrigin, ModeRendered:
		return m, nil
	case "":
		return ModeHTTP, nil
	default:
		return "", fmt.Errorf("unknown transport mode %q", s)
	}
}

// Accept hints what the source is expected to answer with.
type Accept string

const (
	AcceptHTML Accept = "html"
	AcceptJSON Accept = "json"
)

// Kind is the sniffed payload format.
type Kind string

const (
	KindHTML Kind = "html"
	KindJSON Kind = "json"
)

// Request describes one fetch of one source variant.
type Request struct {
	Mode Mode
	URL  string
	// Referer is the listing page: sent as Referer, and opened first by same-origin fetches.
	Referer  string
	Accept   Accept
	MaxPages int
}

// Payload is a validated upstream body.
type Payload struct {
	Body        []byte
	ContentType string
	Origin      string
	Kind        Kind
	Status      int
	Pages       int
}

// Fetcher dispatches requests to the configured transports and applies the retry policy.
type Fetcher struct {
	http    *Client
	browser *Browser
	policy  RetryPolicy
}

// NewFetcher wires the transports. browser may be nil when no browser is available;
// same-origin requests then fall back to direct HTTP and rendered requests fail.
func NewFetcher(client *Client, browser *Browser, policy RetryPolicy) *Fetcher {
	return &Fetcher{http: client, browser: browser, policy: policy}
}

// Fetch performs req with retries. The returned error wraps the last attempt error.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (*Payload, error) {
	var payload *Payload
	err := f.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		p, err := f.fetchOnce(ctx, req)
		if err != nil {
			slog.Debug("Fetch attempt failed", "mode", req.Mode, "url", req.URL, "attempt", attempt, "error", err)
			return err
		}
		payload = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, req Request) (*Payload, error) {
	switch req.Mode {
	case ModeSameOrigin:
		if f.browser == nil {
			slog.Debug("No browser, same-origin request falls back to direct HTTP", "url", req.URL)
			return f.http.Get(ctx, req.URL, req.Referer, req.Accept)
		}
		p, err := f.browser.SameOriginFetch(ctx, req.Referer, req.URL, req.Accept)
		if errors.Is(err, ErrBrowserUnavailable) {
			return f.http.Get(ctx, req.URL, req.Referer, req.Accept)
		}
		return p, err
	case ModeRendered:
		if f.browser == nil {
			return nil, Permanent(fmt.Errorf("rendered %s: %w", req.URL, ErrBrowserUnavailable))
		}
		return f.browser.RenderTables(ctx, req.URL, req.MaxPages)
	default:
		return f.http.Get(ctx, req.URL, req.Referer, req.Accept)
	}
}
