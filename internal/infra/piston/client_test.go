package piston

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestRunUsesCachedRuntimeVersion(t *testing.T) {
	var runtimeCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/runtimes":
			runtimeCalls.Add(1)
			_ = json.NewEncoder(w).Encode([]runtime{{Language: "javascript", Version: "18.15.0"}, {Language: "python", Version: "3.12.0"}})
		case "/execute":
			var req executeRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if req.Version != "3.12.0" || req.Files[0].Name != "main.py" {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"run":{"output":"echo:` + req.Stdin + `\n"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL + "/"}, srv.Client(), nil)
	for i := 0; i < 3; i++ {
		out, err := c.Run(context.Background(), "print(input())", "hi")
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if out != "echo:hi\n" {
			t.Fatalf("unexpected output %q", out)
		}
	}
	if runtimeCalls.Load() != 1 {
		t.Fatalf("expected one runtime lookup, got %d", runtimeCalls.Load())
	}
}

func TestVersionFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL}, srv.Client(), nil)
	if v := c.Version(context.Background()); v != DefaultFallbackVersion {
		t.Fatalf("expected fallback version, got %s", v)
	}
	if _, err := c.Run(context.Background(), "print(1)", ""); err == nil {
		t.Fatalf("expected execute error on 503")
	}
}
