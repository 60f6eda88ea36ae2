package indexverify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tierwatch/internal/logging"
)

// newIngestor stands up a fake ingestor service with a healthy /health
// endpoint and the given /search handler.
func newIngestor(t *testing.T, search http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if search != nil {
		mux.HandleFunc("/search", search)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func searchResults(sources ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type result struct {
			Source string `json:"source"`
		}
		results := make([]result, 0, len(sources))
		for _, s := range sources {
			results = append(results, result{Source: s})
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	}
}

func TestHealthy(t *testing.T) {
	srv := newIngestor(t, nil)
	client := New(srv.URL, 5, logging.NewNop())
	if !client.Healthy(context.Background()) {
		t.Error("Healthy = false against a live server")
	}

	srv.Close()
	if client.Healthy(context.Background()) {
		t.Error("Healthy = true against a closed server")
	}
}

func TestConfirmMatchesFilenameInSources(t *testing.T) {
	var gotReq searchRequest
	srv := newIngestor(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode search request: %v", err)
		}
		searchResults("/data/reports/briefing.pdf", "/data/reports/other.pdf")(w, r)
	})
	client := New(srv.URL, 5, logging.NewNop())

	outcome := client.Confirm(context.Background(), "/mnt/anvil/hub/reports/briefing.pdf", "intel_3")
	if outcome != OutcomeConfirmed {
		t.Errorf("outcome = %s, want confirmed", outcome)
	}
	if gotReq.Collection != "intel_3" {
		t.Errorf("collection = %q, want intel_3", gotReq.Collection)
	}
	if gotReq.Query != "briefing.pdf" {
		t.Errorf("query = %q, want bare filename", gotReq.Query)
	}
	if gotReq.TopK != 10 {
		t.Errorf("top_k = %d, want 10", gotReq.TopK)
	}
}

func TestConfirmAbsentWhenNoSourceMatches(t *testing.T) {
	srv := newIngestor(t, searchResults("/data/unrelated.pdf"))
	client := New(srv.URL, 5, logging.NewNop())

	if outcome := client.Confirm(context.Background(), "/hub/briefing.pdf", "intel_3"); outcome != OutcomeAbsent {
		t.Errorf("outcome = %s, want absent", outcome)
	}
}

func TestConfirmAbsentOnNotFound(t *testing.T) {
	srv := newIngestor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	})
	client := New(srv.URL, 5, logging.NewNop())

	if outcome := client.Confirm(context.Background(), "/hub/briefing.pdf", "missing"); outcome != OutcomeAbsent {
		t.Errorf("outcome = %s, want absent", outcome)
	}
}

func TestConfirmUnreachableOnServerError(t *testing.T) {
	srv := newIngestor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index offline", http.StatusServiceUnavailable)
	})
	client := New(srv.URL, 5, logging.NewNop())

	if outcome := client.Confirm(context.Background(), "/hub/briefing.pdf", "intel_3"); outcome != OutcomeUnreachable {
		t.Errorf("outcome = %s, want unreachable", outcome)
	}
}

func TestConfirmUnreachableWhenServiceDown(t *testing.T) {
	srv := newIngestor(t, nil)
	url := srv.URL
	srv.Close()
	client := New(url, 1, logging.NewNop())

	if outcome := client.Confirm(context.Background(), "/hub/briefing.pdf", "intel_3"); outcome != OutcomeUnreachable {
		t.Errorf("outcome = %s, want unreachable", outcome)
	}
}

func TestOutcomeString(t *testing.T) {
	if OutcomeConfirmed.String() != "confirmed" || OutcomeAbsent.String() != "absent" || OutcomeUnreachable.String() != "unreachable" {
		t.Error("unexpected outcome strings")
	}
}

func TestNewTrimsTrailingSlash(t *testing.T) {
	client := New("http://ingestor:8082/", 5, logging.NewNop())
	if client.BaseURL() != "http://ingestor:8082" {
		t.Errorf("base url = %q", client.BaseURL())
	}
}
