package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/benoute/calibre-viewer-mcp/pkg/calibre"
	"github.com/benoute/calibre-viewer-mcp/pkg/viewer"
)

func TestResultCache(t *testing.T) {
	cache := newResultCache()

	if _, ok := cache.get("q"); ok {
		t.Fatal("empty cache returned a hit")
	}

	results := &calibre.SearchResult{TotalNum: 3}
	cache.put("q", results)
	got, ok := cache.get("q")
	if !ok || got != results {
		t.Fatalf("cache miss after put: %v %v", got, ok)
	}

	// Expired entries do not serve.
	cache.entries["q"] = resultCacheEntry{results: results, timestamp: time.Now().Add(-2 * resultCacheTTL)}
	if _, ok := cache.get("q"); ok {
		t.Fatal("stale entry served")
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{viewer.ErrFileNotFound, http.StatusNotFound},
		{viewer.ErrPageNotFound, http.StatusNotFound},
		{viewer.ErrNotLoaded, http.StatusConflict},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
