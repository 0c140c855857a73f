package quotakit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRoutes_Usage(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.IncrementUsage(ctx, "u1", "standard", 10); err != nil {
			t.Fatalf("IncrementUsage() error = %v", err)
		}
	}

	srv := httptest.NewServer(c.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/usage/u1?provider=standard&limit=10")
	if err != nil {
		t.Fatalf("GET /usage error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusOK)
	}

	var res UsageResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if res.CurrentCount != 3 || res.RemainingCalls != 7 || !res.Success {
		t.Errorf("result = %+v, want CurrentCount=3 RemainingCalls=7 Success=true", res)
	}

	// Reads through the endpoint must stay pure.
	if got := c.Stats().MemoryEntries; got != 1 {
		t.Errorf("MemoryEntries = %v, want 1", got)
	}
}

func TestRoutes_Usage_BadRequest(t *testing.T) {
	c := newTestCache(t)

	srv := httptest.NewServer(c.Routes())
	defer srv.Close()

	tests := []struct {
		name string
		path string
	}{
		{name: "missing limit", path: "/usage/u1?provider=standard"},
		{name: "non-integer limit", path: "/usage/u1?provider=standard&limit=many"},
		{name: "missing provider", path: "/usage/u1?limit=10"},
		{name: "negative limit", path: "/usage/u1?provider=standard&limit=-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET error = %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestRoutes_Reset(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := c.IncrementUsage(ctx, "u1", "standard", 10); err != nil {
			t.Fatalf("IncrementUsage() error = %v", err)
		}
	}

	srv := httptest.NewServer(c.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/usage/u1/reset", "application/json",
		strings.NewReader(`{"provider":"standard"}`))
	if err != nil {
		t.Fatalf("POST /reset error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusNoContent)
	}

	res, err := c.GetCurrentUsage(ctx, "u1", "standard", 10)
	if err != nil {
		t.Fatalf("GetCurrentUsage() error = %v", err)
	}
	if res.CurrentCount != 0 {
		t.Errorf("CurrentCount after reset = %v, want 0", res.CurrentCount)
	}
}

func TestRoutes_Reset_BadRequest(t *testing.T) {
	c := newTestCache(t)

	srv := httptest.NewServer(c.Routes())
	defer srv.Close()

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{`},
		{name: "missing provider", body: `{}`},
		{name: "empty provider", body: `{"provider":""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/usage/u1/reset", "application/json",
				strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST error = %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusBadRequest)
			}
		})
	}
}

func TestRoutes_Stats(t *testing.T) {
	c := newTestCache(t)

	if _, err := c.IncrementUsage(context.Background(), "u1", "standard", 10); err != nil {
		t.Fatalf("IncrementUsage() error = %v", err)
	}

	srv := httptest.NewServer(c.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusOK)
	}

	var stats CacheStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if stats.MemoryEntries != 1 {
		t.Errorf("MemoryEntries = %v, want 1", stats.MemoryEntries)
	}
	if stats.Backend != "memory" {
		t.Errorf("Backend = %v, want memory", stats.Backend)
	}
}
