package tle

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const (
	issTLE      = "ISS (ZARYA)\n1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005\n2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09\n"
	starlinkTLE = "STARLINK-1007\n1 44713U 19074A   24100.50000000  .00001000  00000-0  10000-4 0  9995\n2 44713  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000    05\n"
)

func textServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
}

func failingServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
}

// TestFetcherBodyLimit verifies that responses exceeding the 50 MB limit
// return an error instead of consuming unbounded memory.
func TestFetcherBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		chunk := strings.Repeat("A", 1024*1024)
		for i := 0; i < 52; i++ {
			if _, err := w.Write([]byte(chunk)); err != nil {
				return // Client closed connection.
			}
		}
	}))
	defer server.Close()

	_, err := NewFetcher(testLogger).Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for oversized response, got nil")
	}
	if !strings.Contains(err.Error(), "byte limit") {
		t.Errorf("expected body limit error, got: %v", err)
	}
}

func TestFetcherSuccess(t *testing.T) {
	server := textServer(issTLE)
	defer server.Close()

	data, err := NewFetcher(testLogger).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != issTLE {
		t.Errorf("body mismatch: got %d bytes, want %d", len(data), len(issTLE))
	}
}

func TestFetcherHTTPError(t *testing.T) {
	server := failingServer()
	defer server.Close()

	_, err := NewFetcher(testLogger).Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
}

// TestFetchAllKeepsSourceOrder verifies results line up with the configured sources
// even when the first source answers last.
func TestFetchAllKeepsSourceOrder(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(starlinkTLE))
	}))
	defer slow.Close()
	fast := textServer(issTLE)
	defer fast.Close()

	sources := []Source{
		{Name: "starlink", URL: slow.URL, Color: [3]float32{0, 1, 0}},
		{Name: "stations", URL: fast.URL, Color: [3]float32{1, 1, 1}},
	}

	texts, failed, err := NewFetcher(testLogger).FetchAll(context.Background(), sources, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failed) != 0 {
		t.Errorf("expected no failed sources, got %v", failed)
	}
	if len(texts) != 2 {
		t.Fatalf("expected 2 texts, got %d", len(texts))
	}
	if texts[0].Source.Name != "starlink" || texts[0].Text != starlinkTLE {
		t.Errorf("texts[0] = %q from %q, want starlink text", texts[0].Text, texts[0].Source.Name)
	}
	if texts[1].Source.Name != "stations" || texts[1].Text != issTLE {
		t.Errorf("texts[1] = %q from %q, want ISS text", texts[1].Text, texts[1].Source.Name)
	}
}

// TestFetchAllFailsWhole verifies one unreachable source aborts the whole refresh.
func TestFetchAllFailsWhole(t *testing.T) {
	ok := textServer(starlinkTLE)
	defer ok.Close()
	bad := failingServer()
	defer bad.Close()

	sources := []Source{{Name: "ok", URL: ok.URL}, {Name: "bad", URL: bad.URL}}
	texts, _, err := NewFetcher(testLogger).FetchAll(context.Background(), sources, false)
	if err == nil {
		t.Fatal("expected error when a source fails")
	}
	if !strings.Contains(err.Error(), `"bad"`) {
		t.Errorf("error should name the failing source, got: %v", err)
	}
	if texts != nil {
		t.Errorf("expected no texts on failure, got %d", len(texts))
	}
}

// TestFetchAllPartial verifies a failing source is reported but does not break the
// refresh when partial refreshes are allowed.
func TestFetchAllPartial(t *testing.T) {
	ok := textServer(starlinkTLE)
	defer ok.Close()
	bad := failingServer()
	defer bad.Close()

	sources := []Source{{Name: "bad", URL: bad.URL}, {Name: "ok", URL: ok.URL}}
	texts, failed, err := NewFetcher(testLogger).FetchAll(context.Background(), sources, true)
	if err != nil {
		t.Fatalf("partial fetch should succeed: %v", err)
	}
	if len(texts) != 1 || texts[0].Source.Name != "ok" {
		t.Fatalf("expected only the ok source, got %+v", texts)
	}
	if len(failed) != 1 || failed[0].Name != "bad" {
		t.Errorf("expected bad to be reported as failed, got %+v", failed)
	}
}

func TestFetchAllPartialAllFail(t *testing.T) {
	bad := failingServer()
	defer bad.Close()

	_, failed, err := NewFetcher(testLogger).FetchAll(context.Background(), []Source{{Name: "bad", URL: bad.URL}}, true)
	if err == nil {
		t.Fatal("expected error when every source fails")
	}
	if len(failed) != 1 {
		t.Errorf("expected 1 failed source, got %d", len(failed))
	}
}

// TestFetchAllCancelsSiblings verifies the first failure cancels in-flight requests.
func TestFetchAllCancelsSiblings(t *testing.T) {
	hang := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer hang.Close()
	bad := failingServer()
	defer bad.Close()

	start := time.Now()
	_, _, err := NewFetcher(testLogger).FetchAll(context.Background(),
		[]Source{{Name: "hang", URL: hang.URL}, {Name: "bad", URL: bad.URL}}, false)
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > 4*time.Second {
		t.Errorf("FetchAll waited for the hanging source (%v)", time.Since(start))
	}
}
