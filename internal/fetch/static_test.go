package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestStaticFetchHashMode(t *testing.T) {
	// WHAT: Hash mode returns the raw body unmodified.
	// WHY: The fingerprint covers the whole document.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{}, nil)
	res, err := f.Fetch(context.Background(), Request{URL: srv.URL, Mode: ModeHash})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Content != "<html><body>hello</body></html>" {
		t.Errorf("content = %q", res.Content)
	}
	if res.Capture != nil {
		t.Error("static fetch should not produce a capture")
	}
}

func TestStaticFetchTextMode(t *testing.T) {
	// WHAT: Text mode reduces the body to the concatenated text of all
	// selector matches, in document order.
	// WHY: Trackers watch one region of a page, not the markup around it.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
			<div class="price">42</div>
			<p>noise</p>
			<div class="price">43</div>
		</body></html>`))
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{}, nil)
	res, err := f.Fetch(context.Background(), Request{URL: srv.URL, Mode: ModeText, Selector: "div.price"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Content != "42\n43" {
		t.Errorf("content = %q, want %q", res.Content, "42\n43")
	}
}

func TestStaticFetchTextModeNoMatches(t *testing.T) {
	// WHAT: A selector matching nothing yields an empty result, not an
	// error.
	// WHY: Empty is a legitimate observation; going from content to empty
	// is itself a change.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>text</p></body></html>"))
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{}, nil)
	res, err := f.Fetch(context.Background(), Request{URL: srv.URL, Mode: ModeText, Selector: ".absent"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Content != "" {
		t.Errorf("content = %q, want empty", res.Content)
	}
}

func TestStaticFetchServerError(t *testing.T) {
	// WHAT: A persistent 5xx exhausts retries and surfaces as *Error.
	// WHY: The engine classifies fetch failures by unwrapping.
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{Attempts: 2}, nil)
	_, err := f.Fetch(context.Background(), Request{URL: srv.URL, Mode: ModeHash})
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *Error
	if !errors.As(err, &fe) {
		t.Errorf("expected *Error, got %T: %v", err, err)
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2", got)
	}
}

func TestStaticFetchClientErrorNoRetry(t *testing.T) {
	// WHAT: A 404 fails on the first attempt without retrying.
	// WHY: Client errors will not heal; retrying hammers the target.
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{Attempts: 3}, nil)
	_, err := f.Fetch(context.Background(), Request{URL: srv.URL, Mode: ModeHash})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "http 404") {
		t.Errorf("error = %v, want http 404", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
}

func TestStaticFetchBodyLimit(t *testing.T) {
	// WHAT: The body read is capped at MaxBytes.
	// WHY: A misbehaving page must not balloon memory or storage.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 1000)))
	}))
	defer srv.Close()

	f := NewStatic(StaticConfig{MaxBytes: 100}, nil)
	res, err := f.Fetch(context.Background(), Request{URL: srv.URL, Mode: ModeHash})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(res.Content) != 100 {
		t.Errorf("content length = %d, want 100", len(res.Content))
	}
}

type stubFetcher struct {
	result *Result
	err    error
	calls  int
}

func (s *stubFetcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	s.calls++
	return s.result, s.err
}

func TestDispatcherRoutesByMode(t *testing.T) {
	// WHAT: hash/text go to the static strategy, element to the rendered
	// one, unknown modes error.
	// WHY: Mode is the single switch between the two retrieval paths.
	static := &stubFetcher{result: &Result{Content: "static"}}
	render := &stubFetcher{result: &Result{Content: "render"}}
	d := NewDispatcher(static, render)
	ctx := context.Background()

	for _, mode := range []Mode{ModeHash, ModeText} {
		res, err := d.Fetch(ctx, Request{URL: "https://x", Mode: mode})
		if err != nil {
			t.Fatalf("mode %s: %v", mode, err)
		}
		if res.Content != "static" {
			t.Errorf("mode %s routed to %q", mode, res.Content)
		}
	}

	res, err := d.Fetch(ctx, Request{URL: "https://x", Mode: ModeElement})
	if err != nil {
		t.Fatalf("element: %v", err)
	}
	if res.Content != "render" {
		t.Errorf("element routed to %q", res.Content)
	}

	if _, err := d.Fetch(ctx, Request{URL: "https://x", Mode: Mode("bogus")}); err == nil {
		t.Error("expected error for unknown mode")
	}

	if static.calls != 2 || render.calls != 1 {
		t.Errorf("calls: static=%d render=%d", static.calls, render.calls)
	}
}

func TestParseMode(t *testing.T) {
	// WHAT: Only the three known modes parse.
	// WHY: Mode strings arrive from external callers.
	for _, s := range []string{"hash", "text", "element"} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q): %v", s, err)
		}
	}
	if _, err := ParseMode("screenshot"); err == nil {
		t.Error("expected error for unknown mode")
	}
}
