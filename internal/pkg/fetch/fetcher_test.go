package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func instantPolicy(tries int) RetryPolicy {
	return RetryPolicy{
		MaxTries:   tries,
		BaseDelay:  time.Millisecond,
		Multiplier: 2,
		Sleep:      func(ctx context.Context, d time.Duration) error { return ctx.Err() },
		Rand:       func() float64 { return 0 },
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected Mode
		wantErr  bool
	}{
		{"", ModeHTTP, false},
		{"http", ModeHTTP, false},
		{"same_origin", ModeSameOrigin, false},
		{"rendered", ModeRendered, false},
		{"ftp", "", true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if got != tt.expected || (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) = %q, %v, want %q (error %v)", tt.input, got, err, tt.expected, tt.wantErr)
		}
	}
}

func TestFetcher_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<table><tr><td>12/09/2024</td></tr></table>"))
	}))
	defer srv.Close()

	f := NewFetcher(NewClient(ClientOptions{}), nil, instantPolicy(5))
	p, err := f.Fetch(context.Background(), Request{Mode: ModeHTTP, URL: srv.URL, Accept: AcceptHTML})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.Kind != KindHTML {
		t.Errorf("Kind = %q, want %q", p.Kind, KindHTML)
	}
	if calls.Load() != 3 {
		t.Errorf("upstream calls = %d, want 3", calls.Load())
	}
}

func TestFetcher_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(NewClient(ClientOptions{}), nil, instantPolicy(5))
	_, err := f.Fetch(context.Background(), Request{URL: srv.URL, Accept: AcceptJSON})

	var status *StatusError
	if !errors.As(err, &status) || status.Status != http.StatusNotFound {
		t.Errorf("Fetch error = %v, want StatusError 404", err)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", calls.Load())
	}
}

func TestFetcher_SameOriginWithoutBrowserUsesHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"busqueda":[]}`))
	}))
	defer srv.Close()

	f := NewFetcher(NewClient(ClientOptions{}), nil, instantPolicy(2))
	p, err := f.Fetch(context.Background(), Request{
		Mode:    ModeSameOrigin,
		URL:     srv.URL + "/servicios/buscadorSorteos",
		Referer: srv.URL + "/es/bonoloto/sorteos",
		Accept:  AcceptJSON,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.Kind != KindJSON {
		t.Errorf("Kind = %q, want %q", p.Kind, KindJSON)
	}
}

func TestFetcher_RenderedWithoutBrowserFailsFast(t *testing.T) {
	f := NewFetcher(NewClient(ClientOptions{}), nil, instantPolicy(5))
	_, err := f.Fetch(context.Background(), Request{Mode: ModeRendered, URL: "http://127.0.0.1:1/"})
	if !errors.Is(err, ErrBrowserUnavailable) {
		t.Errorf("Fetch error = %v, want ErrBrowserUnavailable", err)
	}
	if IsRetryable(err) {
		t.Error("missing browser should not be retried")
	}
}
