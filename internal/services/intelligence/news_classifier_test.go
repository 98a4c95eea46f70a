package intelligence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"FxBridge/internal/domain/models"
	icache "FxBridge/internal/service/cache"
	"FxBridge/pkg/config"
)

func classifierForURL(url string) *HTTPNewsClassifier {
	cfg := &config.Config{}
	cfg.Intelligence.ServiceURL = url
	return NewHTTPNewsClassifier(cfg)
}

func TestClassifyClampsAndCaches(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		if r.URL.Path != "/news/classify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Title string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]int{"impact": 250})
	}))
	defer srv.Close()

	c := classifierForURL(srv.URL)
	c.SetCache(icache.NewTTLCache())

	item := &models.NewsItem{Title: "central bank surprise hike", Currency: "USD"}
	impact, err := c.Classify(context.Background(), item)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if impact != 100 {
		t.Fatalf("impact = %d, want clamped 100", impact)
	}

	// Same headline again must come from the cache.
	if _, err := c.Classify(context.Background(), item); err != nil {
		t.Fatalf("cached Classify: %v", err)
	}
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Fatalf("service called %d times, want 1", n)
	}
}

func TestClassifyKeepsExistingImpact(t *testing.T) {
	c := classifierForURL("http://127.0.0.1:0")
	impact, err := c.Classify(context.Background(), &models.NewsItem{Title: "x", Impact: 60})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if impact != 60 {
		t.Fatalf("impact = %d, want passthrough 60", impact)
	}
}

func TestClassifyServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := classifierForURL(srv.URL)
	if _, err := c.Classify(context.Background(), &models.NewsItem{Title: "y"}); err == nil {
		t.Fatal("upstream error must propagate")
	}
}
